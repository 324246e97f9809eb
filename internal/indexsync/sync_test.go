package indexsync

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/familyvault/familyvault-core/internal/store"
)

type fakePeers struct {
	conns map[string]net.Conn
}

func (f *fakePeers) ConnectedDevices() []string {
	ids := make([]string, 0, len(f.conns))
	for id := range f.conns {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakePeers) TransportConn(id string) (net.Conn, bool) {
	c, ok := f.conns[id]
	return c, ok
}

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunPeerPullsAndPushesThenResetsBackoff(t *testing.T) {
	clientDB := newTestDB(t)
	serverDB := newTestDB(t)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverSess := NewSession(serverConn, serverDB, "client-device")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go serverSess.Run(ctx)

	peers := &fakePeers{conns: map[string]net.Conn{"peer-device": clientConn}}
	m := New(clientDB, nil, peers)
	defer m.Close()

	m.runPeer(ctx, "peer-device", true)

	st := m.stateFor("peer-device")
	if st.curPeriod != minBackoff {
		t.Fatalf("expected backoff reset to %v after success, got %v", minBackoff, st.curPeriod)
	}
	if m.IsSyncing() {
		t.Fatal("expected IsSyncing to be false once the round completes")
	}
}

func TestRunPeerWidensBackoffOnFailure(t *testing.T) {
	clientDB := newTestDB(t)

	clientConn, serverConn := net.Pipe()
	serverConn.Close() // immediately broken: every read/write on clientConn will fail

	peers := &fakePeers{conns: map[string]net.Conn{"peer-device": clientConn}}
	m := New(clientDB, nil, peers)
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.runPeer(ctx, "peer-device", true)

	st := m.stateFor("peer-device")
	if st.curPeriod <= minBackoff {
		t.Fatalf("expected backoff to widen past %v after failure, got %v", minBackoff, st.curPeriod)
	}
}
