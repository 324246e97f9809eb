// Package netmanager implements §4.13 NetworkManager: the state machine
// that owns the transport listener, routes Discovery/transport events
// onto the shared event bus, and exposes connect/disconnect operations
// keyed by device_id.
package netmanager

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/familyvault/familyvault-core/internal/discovery"
	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/logger"
	"github.com/familyvault/familyvault-core/internal/transport"
)

var log = logger.New("netmanager")

// State is a NetworkManager lifecycle state (§4.13).
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
	Error
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Connection is a live session with one peer device.
type Connection struct {
	DeviceID string
	Address  string
	conn     *transport.Conn
	connAt   time.Time
}

func (c *Connection) Conn() *transport.Conn { return c.conn }

// Manager is the NetworkManager (§4.13).
type Manager struct {
	deviceID    string
	deviceName  string
	deviceType  string
	psk         []byte
	knownPeers  func(deviceID string) bool
	bus         *events.Logger
	disco       *discovery.Discovery

	mut        sync.Mutex
	state      State
	port       int
	listener   *transport.Listener
	cancelServe context.CancelFunc
	wg         sync.WaitGroup

	conns   *xsync.MapOf[string, *Connection]
	pending *xsync.MapOf[string, struct{}] // device_ids with a connect in flight
}

// New constructs a Manager. knownPeers validates inbound peer identities;
// pass nil to accept any.
func New(deviceID, deviceName, deviceType string, psk []byte, knownPeers func(string) bool, bus *events.Logger, disco *discovery.Discovery) *Manager {
	return &Manager{
		deviceID: deviceID, deviceName: deviceName, deviceType: deviceType,
		psk: psk, knownPeers: knownPeers, bus: bus, disco: disco,
		state:   Stopped,
		conns:   xsync.NewMapOf[string, *Connection](),
		pending: xsync.NewMapOf[string, struct{}](),
	}
}

// ListenAddr returns the listener's bound address, if running.
func (m *Manager) ListenAddr() (string, bool) {
	m.mut.Lock()
	defer m.mut.Unlock()
	if m.listener == nil {
		return "", false
	}
	return m.listener.Addr().String(), true
}

func (m *Manager) State() State {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mut.Lock()
	m.state = s
	m.mut.Unlock()
	m.emit(events.StateChanged, map[string]string{"state": s.String()})
}

// Start derives the transport listener on port (default 45678), begins
// accepting inbound connections, and — if a Discovery was supplied —
// lets callers start it separately via its own Serve (§5 composition is
// the embedder's job, via suture).
func (m *Manager) Start(port int) error {
	m.mut.Lock()
	if m.state == Running || m.state == Starting {
		m.mut.Unlock()
		return fmt.Errorf("netmanager: already %s", m.state)
	}
	m.state = Starting
	if port <= 0 {
		port = 45678
	}
	m.port = port
	m.mut.Unlock()
	m.emit(events.StateChanged, map[string]string{"state": Starting.String()})

	validator := transport.Validator(transport.AllowAny)
	if m.knownPeers != nil {
		validator = m.knownPeers
	}
	ln, err := transport.Listen(net.JoinHostPort("", strconv.Itoa(port)), m.psk, m.deviceID, validator)
	if err != nil {
		m.setState(Error)
		return fmt.Errorf("netmanager: listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mut.Lock()
	m.listener = ln
	m.cancelServe = cancel
	m.mut.Unlock()

	m.wg.Add(1)
	go m.acceptLoop(ctx, ln)

	m.setState(Running)
	return nil
}

// Stop closes the listener and every live connection, then waits for the
// accept loop to exit.
func (m *Manager) Stop() {
	m.mut.Lock()
	if m.state == Stopped || m.state == Stopping {
		m.mut.Unlock()
		return
	}
	m.state = Stopping
	ln := m.listener
	cancel := m.cancelServe
	m.mut.Unlock()
	m.emit(events.StateChanged, map[string]string{"state": Stopping.String()})

	if cancel != nil {
		cancel()
	}
	if ln != nil {
		ln.Close()
	}
	m.disconnectAll()
	m.wg.Wait()

	m.mut.Lock()
	m.state = Stopped
	m.listener = nil
	m.mut.Unlock()
	m.emit(events.StateChanged, map[string]string{"state": Stopped.String()})
}

func (m *Manager) acceptLoop(ctx context.Context, ln *transport.Listener) {
	defer m.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Warnf("netmanager: accept: %v", err)
				return
			}
		}
		m.adopt(c, "")
	}
}

// adopt registers an authenticated connection, resolving simultaneous-open
// races by lexicographically lower device_id.
func (m *Manager) adopt(c *transport.Conn, dialedAddr string) {
	id := c.PeerIdentity
	conn := &Connection{DeviceID: id, Address: dialedAddr, conn: c, connAt: time.Now()}

	existing, loaded := m.conns.LoadOrStore(id, conn)
	if loaded {
		if m.deviceID < id {
			// we already hold the winning connection; drop the new one
			c.Close()
			m.pending.Delete(id)
			return
		}
		m.conns.Store(id, conn)
		existing.conn.Close()
	}
	m.pending.Delete(id)
	m.emit(events.DeviceConnected, map[string]string{"device_id": id})
}

// ConnectToDevice resolves addr via Discovery's peer table and connects
// asynchronously.
func (m *Manager) ConnectToDevice(ctx context.Context, deviceID string) {
	if m.disco == nil {
		m.emitError(deviceID, fmt.Errorf("netmanager: no discovery configured"))
		return
	}
	for _, p := range m.disco.Peers() {
		if p.DeviceID == deviceID {
			m.ConnectToAddress(ctx, deviceID, net.JoinHostPort(p.IPAddress, strconv.Itoa(p.ServicePort)))
			return
		}
	}
	m.emitError(deviceID, fmt.Errorf("netmanager: device %s not known to discovery", deviceID))
}

// ConnectToAddress dials host:port asynchronously, coalescing duplicate
// concurrent connects to the same device.
func (m *Manager) ConnectToAddress(ctx context.Context, deviceID, addr string) {
	if _, already := m.conns.Load(deviceID); already {
		return
	}
	if _, inFlight := m.pending.LoadOrStore(deviceID, struct{}{}); inFlight {
		return
	}

	go func() {
		validator := transport.Validator(func(id string) bool { return id == deviceID })
		c, err := transport.Dial(ctx, addr, m.psk, m.deviceID, validator)
		if err != nil {
			m.pending.Delete(deviceID)
			m.emitError(deviceID, err)
			return
		}
		m.adopt(c, addr)
	}()
}

func (m *Manager) DisconnectDevice(deviceID string) {
	if c, ok := m.conns.LoadAndDelete(deviceID); ok {
		c.conn.Close()
		m.emit(events.DeviceDisconnected, map[string]string{"device_id": deviceID})
	}
}

func (m *Manager) disconnectAll() {
	m.conns.Range(func(id string, c *Connection) bool {
		c.conn.Close()
		m.conns.Delete(id)
		m.emit(events.DeviceDisconnected, map[string]string{"device_id": id})
		return true
	})
}

func (m *Manager) IsConnectedTo(deviceID string) bool {
	_, ok := m.conns.Load(deviceID)
	return ok
}

// Connection returns the live connection to deviceID, if any.
func (m *Manager) Connection(deviceID string) (*Connection, bool) {
	return m.conns.Load(deviceID)
}

// TransportConn returns the raw transport connection to deviceID, if any,
// for higher-level protocols (IndexSync, FileTransfer) layered on top.
func (m *Manager) TransportConn(deviceID string) (net.Conn, bool) {
	c, ok := m.conns.Load(deviceID)
	if !ok {
		return nil, false
	}
	return c.conn, true
}

// ConnectedDevices returns the device_ids of every currently-connected peer.
func (m *Manager) ConnectedDevices() []string {
	var ids []string
	m.conns.Range(func(id string, _ *Connection) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

func (m *Manager) emit(t events.Type, data any) {
	if m.bus != nil {
		m.bus.Log(t, data)
	}
}

func (m *Manager) emitError(deviceID string, err error) {
	log.Warnf("netmanager: %s: %v", deviceID, err)
	m.emit(events.Error, map[string]string{"device_id": deviceID, "error": err.Error()})
}
