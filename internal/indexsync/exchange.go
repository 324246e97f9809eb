package indexsync

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/familyvault/familyvault-core/internal/store"
)

// Session runs the IndexSync message exchange over one established
// connection to a single peer (§4.14). A single reader goroutine
// dispatches inbound frames; requests and responses are correlated
// positionally, since at most one request is ever outstanding per
// connection (pull-on-connect, then periodic push — never concurrent
// pulls on the same session).
type Session struct {
	conn   net.Conn
	db     *store.DB
	peerID string

	writeMu sync.Mutex
	resps   chan IndexResponse
}

// NewSession wraps conn for the exchange with peerID, the device_id of
// the far end (already authenticated by the transport handshake).
func NewSession(conn net.Conn, db *store.DB, peerID string) *Session {
	return &Session{conn: conn, db: db, peerID: peerID, resps: make(chan IndexResponse, 1)}
}

// Run reads frames until conn closes or ctx is cancelled, applying
// inbound notifies/tombstones to db and answering inbound requests.
// Responses to our own outstanding request are delivered to Pull instead
// of being handled here.
func (s *Session) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgType, msg, err := readMessage(s.conn)
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case IndexRequest:
			if err := s.answer(ctx, m); err != nil {
				return err
			}
		case IndexResponse:
			select {
			case s.resps <- m:
			default:
			}
		case IndexNotify:
			if err := ApplyRows(ctx, s.db, s.peerID, m.Rows); err != nil {
				return err
			}
		case IndexTombstone:
			if err := ApplyTombstone(ctx, s.db, s.peerID, m.RemoteIDs); err != nil {
				return err
			}
		default:
			return fmt.Errorf("indexsync: unexpected frame type %#x", msgType)
		}
	}
}

func (s *Session) answer(ctx context.Context, req IndexRequest) error {
	rows, maxVersion, err := localRowsSince(ctx, s.db, req.SinceVersion, req.Full)
	if err != nil {
		return err
	}
	if maxVersion < req.SinceVersion {
		maxVersion = req.SinceVersion
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeResponse(s.conn, IndexResponse{Rows: rows, NewCursor: maxVersion})
}

// Pull sends an IndexRequest and blocks for its response, applying the
// returned rows and yielding the peer's new cursor.
func (s *Session) Pull(ctx context.Context, cursor int64, full bool) (int64, error) {
	s.writeMu.Lock()
	err := writeRequest(s.conn, IndexRequest{SinceVersion: cursor, Full: full})
	s.writeMu.Unlock()
	if err != nil {
		return cursor, err
	}

	select {
	case resp := <-s.resps:
		if err := ApplyRows(ctx, s.db, s.peerID, resp.Rows); err != nil {
			return cursor, err
		}
		return resp.NewCursor, nil
	case <-ctx.Done():
		return cursor, ctx.Err()
	}
}

// Push sends every locally-owned family-visible row newer than cursor as
// an unsolicited IndexNotify and returns the new high-water mark.
func (s *Session) Push(ctx context.Context, cursor int64) (int64, error) {
	rows, maxVersion, err := localRowsSince(ctx, s.db, cursor, false)
	if err != nil {
		return cursor, err
	}
	if len(rows) == 0 {
		return cursor, nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := writeNotify(s.conn, IndexNotify{Rows: rows}); err != nil {
		return cursor, err
	}
	return maxVersion, nil
}
