package filetransfer

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/fverrors"
	"github.com/familyvault/familyvault-core/internal/logger"
	"github.com/familyvault/familyvault-core/internal/store"
)

var log = logger.New("filetransfer")

// ErrChecksumMismatch is returned when the fetched bytes don't hash to
// the expected checksum (§4.15).
var ErrChecksumMismatch = fmt.Errorf("filetransfer: checksum mismatch")

// inflight is one fetch in progress on the requester side: inbound chunk
// /end/error frames for its request_id are routed here by Session.Run.
type inflight struct {
	frames chan frame
	done   chan struct{}
}

// Session runs the FileTransfer protocol over one established connection
// to a single peer, serving local files it owns and fetching remote ones
// on demand (§4.15). One connection multiplexes many concurrent
// request_ids.
type Session struct {
	conn   net.Conn
	db     *store.DB
	cache  *Cache
	peerID string
	bus    *events.Logger

	writeMu  sync.Mutex
	inflight *xsync.MapOf[string, *inflight]
}

// NewSession wraps conn for the transfer protocol with peerID, the
// device_id of the far end.
func NewSession(conn net.Conn, db *store.DB, cache *Cache, peerID string, bus *events.Logger) *Session {
	return &Session{
		conn: conn, db: db, cache: cache, peerID: peerID, bus: bus,
		inflight: xsync.NewMapOf[string, *inflight](),
	}
}

// Run reads frames until conn closes or ctx is cancelled. Inbound
// requests spawn a responder goroutine per request_id; inbound
// chunk/end/error frames are routed to the matching Fetch call.
func (s *Session) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f, err := readFrame(s.conn)
		if err != nil {
			log.Debugf("filetransfer: session with %s ended: %v", s.peerID, err)
			s.failAllInflight(err)
			return err
		}
		switch f.kind {
		case typeRequest:
			go s.serveRequest(ctx, f)
		case typeChunk, typeEnd, typeError:
			if ifl, ok := s.inflight.Load(f.requestID); ok {
				select {
				case ifl.frames <- f:
				case <-ifl.done:
				}
			}
		}
	}
}

func (s *Session) failAllInflight(err error) {
	s.inflight.Range(func(id string, ifl *inflight) bool {
		select {
		case ifl.frames <- frame{kind: typeError, requestID: id, payload: []byte(fmt.Sprintf(`{"code":"Network","message":%q}`, err.Error()))}:
		default:
		}
		return true
	})
}

// serveRequest answers an inbound Request by streaming the local file's
// bytes, chunked, followed by an End frame.
func (s *Session) serveRequest(ctx context.Context, f frame) {
	var req Request
	if err := json.Unmarshal(f.payload, &req); err != nil {
		s.writeErrorFrame(f.requestID, "InvalidArgument", err.Error())
		return
	}

	path, size, err := localFilePath(ctx, s.db, req.FileID)
	if err != nil {
		s.writeErrorFrame(f.requestID, "NotFound", err.Error())
		return
	}

	fh, err := os.Open(path)
	if err != nil {
		s.writeErrorFrame(f.requestID, "Io", err.Error())
		return
	}
	defer fh.Close()

	buf := make([]byte, chunkSize)
	var sent int64
	for {
		n, rerr := fh.Read(buf)
		if n > 0 {
			s.writeMu.Lock()
			werr := writeChunk(s.conn, f.requestID, buf[:n])
			s.writeMu.Unlock()
			if werr != nil {
				metricTransfersTotal.WithLabelValues("sent", "error").Inc()
				return
			}
			sent += int64(n)
			metricBytesTotal.WithLabelValues("sent").Add(float64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			metricTransfersTotal.WithLabelValues("sent", "error").Inc()
			s.writeErrorFrame(f.requestID, "Io", rerr.Error())
			return
		}
	}
	_ = size

	s.writeMu.Lock()
	writeEnd(s.conn, f.requestID, End{TotalBytes: sent})
	s.writeMu.Unlock()
	metricTransfersTotal.WithLabelValues("sent", "ok").Inc()
}

func (s *Session) writeErrorFrame(requestID, code, message string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	writeError(s.conn, requestID, code, message)
}

// Fetch requests fileID from the peer owning this session and returns the
// cache path to its bytes, resolving synchronously from cache when
// possible without opening a new stream (§4.15).
func (s *Session) Fetch(ctx context.Context, fileID int64, ext string, expectedSize int64, checksum *string, progress func(sent, total int64)) (string, error) {
	if path, ok := s.cache.Lookup(s.peerID, fileID, ext, expectedSize, checksum); ok {
		return path, nil
	}

	// Transfer request ids are ephemeral and not part of any wire-critical
	// identity check (unlike device ids, §4.3), so they're generated with
	// the general-purpose library rather than cryptoutil's hand-rolled
	// RFC4122 bit-twiddling.
	requestID := uuid.NewString()

	ifl := &inflight{frames: make(chan frame, 8), done: make(chan struct{})}
	s.inflight.Store(requestID, ifl)
	defer func() {
		close(ifl.done)
		s.inflight.Delete(requestID)
	}()

	s.writeMu.Lock()
	err := writeRequest(s.conn, requestID, Request{FileID: fileID, ExpectedSize: expectedSize, Checksum: checksum})
	s.writeMu.Unlock()
	if err != nil {
		return "", err
	}

	tempPath := s.cache.tempPathFor(s.peerID, fileID)
	if err := os.MkdirAll(filepath.Dir(tempPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(tempPath)
	if err != nil {
		return "", err
	}
	defer func() {
		out.Close()
	}()

	h := sha256.New()
	var written int64

	for {
		select {
		case <-ctx.Done():
			os.Remove(tempPath)
			return "", ctx.Err()
		case f := <-ifl.frames:
			switch f.kind {
			case typeChunk:
				if _, err := out.Write(f.payload); err != nil {
					os.Remove(tempPath)
					metricTransfersTotal.WithLabelValues("received", "error").Inc()
					return "", err
				}
				h.Write(f.payload)
				written += int64(len(f.payload))
				metricBytesTotal.WithLabelValues("received").Add(float64(len(f.payload)))
				if progress != nil {
					progress(written, expectedSize)
				}
				s.emit(events.TransferProgress, map[string]any{"request_id": requestID, "bytes": written, "total": expectedSize})
			case typeEnd:
				out.Close()
				var end End
				if json.Unmarshal(f.payload, &end) == nil && end.TotalBytes != written {
					os.Remove(tempPath)
					metricTransfersTotal.WithLabelValues("received", "error").Inc()
					sizeErr := fmt.Errorf("filetransfer: received %d bytes, sender reported %d", written, end.TotalBytes)
					s.emit(events.TransferFailed, map[string]any{"request_id": requestID, "error": sizeErr.Error()})
					return "", sizeErr
				}
				if checksum != nil && hex.EncodeToString(h.Sum(nil)) != *checksum {
					os.Remove(tempPath)
					metricTransfersTotal.WithLabelValues("received", "error").Inc()
					s.emit(events.TransferFailed, map[string]any{"request_id": requestID, "error": ErrChecksumMismatch.Error()})
					return "", ErrChecksumMismatch
				}
				final, err := s.cache.Commit(s.peerID, fileID, ext, tempPath)
				if err != nil {
					metricTransfersTotal.WithLabelValues("received", "error").Inc()
					return "", err
				}
				metricTransfersTotal.WithLabelValues("received", "ok").Inc()
				s.emit(events.TransferCompleted, map[string]any{"request_id": requestID, "bytes": written})
				return final, nil
			case typeError:
				os.Remove(tempPath)
				metricTransfersTotal.WithLabelValues("received", "error").Inc()
				var ef ErrorFrame
				json.Unmarshal(f.payload, &ef)
				s.emit(events.TransferFailed, map[string]any{"request_id": requestID, "error": ef.Message})
				return "", fmt.Errorf("filetransfer: peer reported %s: %s", ef.Code, ef.Message)
			}
		}
	}
}

func (s *Session) emit(t events.Type, data any) {
	if s.bus != nil {
		s.bus.Log(t, data)
	}
}

func localFilePath(ctx context.Context, db *store.DB, fileID int64) (string, int64, error) {
	type loc struct {
		folderPath string
		relPath    string
		size       int64
	}
	row, err := store.QueryOne[loc](ctx, db,
		`SELECT fo.path, f.relative_path, f.size FROM files f JOIN folders fo ON fo.id = f.folder_id WHERE f.id = ? AND f.is_remote = 0`,
		func(r *sql.Rows) (loc, error) {
			var l loc
			err := r.Scan(&l.folderPath, &l.relPath, &l.size)
			return l, err
		}, fileID)
	if err != nil {
		return "", 0, fverrors.Wrap(fverrors.NotFound, "filetransfer.localFilePath", err)
	}
	return filepath.Join(row.folderPath, filepath.FromSlash(row.relPath)), row.size, nil
}
