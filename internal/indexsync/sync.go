package indexsync

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/logger"
	"github.com/familyvault/familyvault-core/internal/store"
)

var log = logger.New("indexsync")

const (
	pushInterval = 10 * time.Second
	minBackoff   = 1 * time.Second
	maxBackoff   = 60 * time.Second
)

// PeerSource is the narrow view of NetworkManager that Manager needs:
// which devices are connected, and a raw connection to reach one.
type PeerSource interface {
	ConnectedDevices() []string
	TransportConn(deviceID string) (net.Conn, bool)
}

type peerState struct {
	cursor    int64
	pushed    int64
	syncing   bool
	limiter   *rate.Limiter
	curPeriod time.Duration
}

// Manager drives the push/pull exchange with every connected peer. It
// implements suture.Service so an embedder's supervisor can own its
// lifecycle alongside NetworkManager and ContentExtractor.
type Manager struct {
	db   *store.DB
	bus  *events.Logger
	net  PeerSource

	mut    sync.Mutex
	peers  map[string]*peerState
	active int
}

// New constructs a Manager reading/writing db and reaching peers through
// net (typically an *netmanager.Manager).
func New(db *store.DB, bus *events.Logger, net PeerSource) *Manager {
	db.AddRef()
	return &Manager{db: db, bus: bus, net: net, peers: make(map[string]*peerState)}
}

func (m *Manager) Close() { m.db.Release() }

// IsSyncing reports whether at least one peer exchange is in flight.
func (m *Manager) IsSyncing() bool {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.active > 0
}

func (m *Manager) stateFor(deviceID string) *peerState {
	m.mut.Lock()
	defer m.mut.Unlock()
	p, ok := m.peers[deviceID]
	if !ok {
		p = &peerState{limiter: rate.NewLimiter(rate.Every(minBackoff), 1), curPeriod: minBackoff}
		m.peers[deviceID] = p
	}
	return p
}

// Serve periodically pulls and pushes against every connected peer until
// ctx is cancelled.
func (m *Manager) Serve(ctx context.Context) error {
	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, id := range m.net.ConnectedDevices() {
				if !seen[id] {
					seen[id] = true
					go m.runPeer(ctx, id, true)
				} else {
					go m.runPeer(ctx, id, false)
				}
			}
		}
	}
}

// runPeer performs one exchange round with deviceID: a pull (full sync on
// first contact, incremental afterward), then a push of local changes. A
// failure widens the backoff gate for the next attempt, capped at 60 s.
func (m *Manager) runPeer(ctx context.Context, deviceID string, firstContact bool) {
	conn, ok := m.net.TransportConn(deviceID)
	if !ok {
		return
	}
	st := m.stateFor(deviceID)

	if err := st.limiter.Wait(ctx); err != nil {
		return
	}

	m.mut.Lock()
	m.active++
	m.mut.Unlock()
	m.emit(events.SyncStarted, map[string]string{"device_id": deviceID})
	defer func() {
		m.mut.Lock()
		m.active--
		m.mut.Unlock()
	}()

	sess := NewSession(conn, m.db, deviceID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sess.Run(runCtx)

	newCursor, err := sess.Pull(ctx, st.cursor, firstContact)
	if err != nil {
		m.backoff(st, deviceID, err)
		return
	}
	st.cursor = newCursor

	pushed, err := sess.Push(ctx, st.pushed)
	if err != nil {
		m.backoff(st, deviceID, err)
		return
	}
	st.pushed = pushed

	m.resetBackoff(st)
	m.emit(events.SyncCompleted, map[string]string{"device_id": deviceID})
}

func (m *Manager) backoff(st *peerState, deviceID string, err error) {
	log.Warnf("indexsync: exchange with %s failed: %v", deviceID, err)
	st.curPeriod *= 2
	if st.curPeriod > maxBackoff {
		st.curPeriod = maxBackoff
	}
	st.limiter.SetLimit(rate.Every(st.curPeriod))
	m.emit(events.Error, map[string]string{"device_id": deviceID, "error": err.Error()})
}

func (m *Manager) resetBackoff(st *peerState) {
	st.curPeriod = minBackoff
	st.limiter.SetLimit(rate.Every(minBackoff))
}

func (m *Manager) emit(t events.Type, data any) {
	if m.bus != nil {
		m.bus.Log(t, data)
	}
}
