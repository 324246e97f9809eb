package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"strconv"
	"time"
	"unsafe"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/filetransfer"
	"github.com/familyvault/familyvault-core/internal/netmanager"
	"github.com/familyvault/familyvault-core/internal/store"
	"github.com/familyvault/familyvault-core/internal/transport"
)

// fileTransferHandle holds everything fv_filetransfer_fetch needs to dial
// a peer's dedicated FileTransfer port and everything its accept loop
// needs to serve inbound requests. Unlike cmd/familyvaultd's hub, each
// fetch dials its own connection rather than caching one per peer: the C
// ABI has no notion of a long-lived "session" object a caller would hold
// onto across calls, so there is nothing to key a cache by except
// deviceID, and a single-shot dial per request keeps the surface small at
// the cost of a handshake per fetch.
type fileTransferHandle struct {
	deviceID string
	psk      []byte
	port     int
	db       *store.DB
	cache    *filetransfer.Cache
	bus      *events.Logger
	listener *transport.Listener
	cancel   context.CancelFunc
}

//export fv_filetransfer_listen
func fv_filetransfer_listen(deviceID *C.char, psk unsafe.Pointer, pskLen C.int, port C.int, dbHandle, busHandle, netmanagerHandle C.ulonglong, cacheDir *C.char) C.ulonglong {
	db, ok := lookup[*store.DB](handle(dbHandle), "fv_filetransfer_listen")
	if !ok {
		return 0
	}
	bus, ok := lookup[*events.Logger](handle(busHandle), "fv_filetransfer_listen")
	if !ok {
		return 0
	}
	netman, ok := lookup[*netmanager.Manager](handle(netmanagerHandle), "fv_filetransfer_listen")
	if !ok {
		return 0
	}

	pskBytes := C.GoBytes(psk, pskLen)
	id := fromGoString(deviceID)
	validator := func(peerID string) bool { return netman.IsConnectedTo(peerID) }
	ln, err := transport.Listen(":"+strconv.Itoa(int(port)), pskBytes, id, validator)
	if err != nil {
		setLastErrorFromErr("fv_filetransfer_listen", err)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &fileTransferHandle{
		deviceID: id, psk: pskBytes, port: int(port), db: db,
		cache: filetransfer.NewCache(fromGoString(cacheDir)), bus: bus,
		listener: ln, cancel: cancel,
	}
	go h.acceptLoop(ctx)

	clearLastError()
	return C.ulonglong(handles.put(h))
}

func (h *fileTransferHandle) acceptLoop(ctx context.Context) {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		sess := filetransfer.NewSession(conn, h.db, h.cache, conn.PeerIdentity, h.bus)
		go sess.Run(ctx)
	}
}

//export fv_filetransfer_close
func fv_filetransfer_close(hd C.ulonglong) {
	if h, ok := lookup[*fileTransferHandle](handle(hd), "fv_filetransfer_close"); ok {
		h.cancel()
		h.listener.Close()
	}
	handles.delete(handle(hd))
	clearLastError()
}

// fv_filetransfer_fetch dials peerHost:port (the FileTransfer port, not
// the service port) directly and retrieves fileID, returning the local
// cache path (§4.15, §8 scenario 6). A prior cache hit short-circuits the
// dial entirely, same as filetransfer.Session.Fetch's own contract.
//
//export fv_filetransfer_fetch
func fv_filetransfer_fetch(hd C.ulonglong, peerDeviceID, peerHost *C.char, fileID C.longlong, ext *C.char, expectedSize C.longlong, checksum *C.char) *C.char {
	h, ok := lookup[*fileTransferHandle](handle(hd), "fv_filetransfer_fetch")
	if !ok {
		return nil
	}

	deviceID := fromGoString(peerDeviceID)
	var sum *string
	if checksum != nil {
		s := fromGoString(checksum)
		sum = &s
	}

	if path, cached := h.cache.Lookup(deviceID, int64(fileID), fromGoString(ext), int64(expectedSize), sum); cached {
		clearLastError()
		return C.CString(path)
	}

	addr := fromGoString(peerHost) + ":" + strconv.Itoa(h.port)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	conn, err := transport.Dial(ctx, addr, h.psk, h.deviceID, func(id string) bool { return id == deviceID })
	if err != nil {
		setLastErrorFromErr("fv_filetransfer_fetch", err)
		return nil
	}

	sess := filetransfer.NewSession(conn, h.db, h.cache, deviceID, h.bus)
	go sess.Run(context.Background())

	path, err := sess.Fetch(context.Background(), int64(fileID), fromGoString(ext), int64(expectedSize), sum, nil)
	if err != nil {
		setLastErrorFromErr("fv_filetransfer_fetch", err)
		return nil
	}
	clearLastError()
	return C.CString(path)
}
