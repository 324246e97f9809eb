package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/filetransfer"
	"github.com/familyvault/familyvault-core/internal/netmanager"
	"github.com/familyvault/familyvault-core/internal/store"
	"github.com/familyvault/familyvault-core/internal/transport"
)

// peerHostResolver resolves a device_id to the host (no port) it is
// currently reachable at. Backed by Discovery's peer table rather than
// NetworkManager's own Connection.Address, since that field is only
// populated for connections this device dialed itself — an inbound,
// accepted connection leaves it empty.
type peerHostResolver func(deviceID string) (string, bool)

// fileTransferHub runs FileTransfer's own psk-authenticated listener on a
// port separate from NetworkManager's (§4.15's request_id multiplexing
// assumes one connection serves only FileTransfer frames, so it cannot
// share NetworkManager's single-reader service-port session). It dials
// peers lazily on first Fetch and reuses that Session afterward.
type fileTransferHub struct {
	deviceID string
	psk      []byte
	port     int
	db       *store.DB
	cache    *filetransfer.Cache
	bus      *events.Logger
	netman   *netmanager.Manager
	hostFor  peerHostResolver

	mut      sync.Mutex
	sessions map[string]*filetransfer.Session
}

func newFileTransferHub(deviceID string, psk []byte, port int, db *store.DB, cache *filetransfer.Cache, bus *events.Logger, netman *netmanager.Manager, hostFor peerHostResolver) *fileTransferHub {
	return &fileTransferHub{
		deviceID: deviceID, psk: psk, port: port, db: db, cache: cache, bus: bus, netman: netman, hostFor: hostFor,
		sessions: make(map[string]*filetransfer.Session),
	}
}

// Serve satisfies suture.Service, accepting inbound FileTransfer
// connections until ctx is cancelled.
func (h *fileTransferHub) Serve(ctx context.Context) error {
	validator := func(peerID string) bool { return h.netman.IsConnectedTo(peerID) }
	ln, err := transport.Listen(":"+strconv.Itoa(h.port), h.psk, h.deviceID, validator)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		sess := filetransfer.NewSession(conn, h.db, h.cache, conn.PeerIdentity, h.bus)
		h.mut.Lock()
		h.sessions[conn.PeerIdentity] = sess
		h.mut.Unlock()
		go sess.Run(ctx)
	}
}

// Fetch retrieves fileID from deviceID, dialing a dedicated FileTransfer
// connection to it on first use and reusing that Session for later
// fetches from the same peer.
func (h *fileTransferHub) Fetch(ctx context.Context, deviceID string, fileID int64, ext string, expectedSize int64, checksum *string) (string, error) {
	sess, err := h.sessionFor(ctx, deviceID)
	if err != nil {
		return "", err
	}
	return sess.Fetch(ctx, fileID, ext, expectedSize, checksum, nil)
}

func (h *fileTransferHub) sessionFor(ctx context.Context, deviceID string) (*filetransfer.Session, error) {
	h.mut.Lock()
	if s, ok := h.sessions[deviceID]; ok {
		h.mut.Unlock()
		return s, nil
	}
	h.mut.Unlock()

	if !h.netman.IsConnectedTo(deviceID) {
		return nil, fmt.Errorf("filetransfer: no live NetworkManager session with device %s", deviceID)
	}
	host, ok := h.hostFor(deviceID)
	if !ok {
		return nil, fmt.Errorf("filetransfer: no known address for device %s", deviceID)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(h.port))

	tc, err := transport.Dial(ctx, addr, h.psk, h.deviceID, func(id string) bool { return id == deviceID })
	if err != nil {
		return nil, err
	}

	sess := filetransfer.NewSession(tc, h.db, h.cache, deviceID, h.bus)
	h.mut.Lock()
	h.sessions[deviceID] = sess
	h.mut.Unlock()
	go sess.Run(context.Background())
	return sess, nil
}
