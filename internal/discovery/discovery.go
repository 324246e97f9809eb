// Package discovery implements §4.11: periodic LAN-wide multicast
// announce plus a passive listener maintaining an in-memory peer table.
package discovery

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/ipv4"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/logger"
)

var log = logger.New("discovery")

const (
	// multicastGroup is an address in the administratively-scoped block
	// (239.0.0.0/8), conventionally used by LAN discovery protocols that
	// don't need global multicast routing.
	multicastGroup     = "239.255.83.10"
	announceInterval    = 5 * time.Second
	peerLostAfter       = 30 * time.Second
	maxKnownPeers       = 512
)

// Announcement is the small JSON record each device multicasts (§4.11).
type Announcement struct {
	DeviceID    string `json:"device_id"`
	DeviceName  string `json:"device_name"`
	DeviceType  string `json:"device_type"`
	ServicePort int    `json:"service_port"`
	Version     string `json:"version"`
}

// Peer is an ephemeral peer-table entry (§3 Peer record).
type Peer struct {
	DeviceID      string
	DeviceName    string
	DeviceType    string
	IPAddress     string
	ServicePort   int
	LastSeenAt    time.Time
	IsOnline      bool
	IsConnected   bool
}

// Discovery owns the announce/listen loops and the peer table. It
// implements suture.Service so an embedder can supervise it alongside
// the rest of the network stack (§5).
type Discovery struct {
	deviceID    string
	deviceName  string
	deviceType  string
	servicePort int
	port        int
	bus         *events.Logger

	mut   sync.Mutex
	peers *lru.Cache[string, *Peer]
}

// New constructs a Discovery for this device's identity. port is the
// discovery UDP port (default 45679 if zero).
func New(deviceID, deviceName, deviceType string, servicePort, port int, bus *events.Logger) (*Discovery, error) {
	if port <= 0 {
		port = 45679
	}
	cache, err := lru.New[string, *Peer](maxKnownPeers)
	if err != nil {
		return nil, err
	}
	return &Discovery{
		deviceID: deviceID, deviceName: deviceName, deviceType: deviceType,
		servicePort: servicePort, port: port, bus: bus, peers: cache,
	}, nil
}

// Peers returns a snapshot of every currently-known peer.
func (d *Discovery) Peers() []Peer {
	d.mut.Lock()
	defer d.mut.Unlock()
	out := make([]Peer, 0, d.peers.Len())
	for _, id := range d.peers.Keys() {
		if p, ok := d.peers.Get(id); ok {
			out = append(out, *p)
		}
	}
	return out
}

// Serve runs the announce loop, the listen loop, and the lost-peer
// sweeper concurrently until ctx is cancelled.
func (d *Discovery) Serve(ctx context.Context) error {
	groupAddr := &net.UDPAddr{IP: net.ParseIP(multicastGroup), Port: d.port}

	conn, err := net.ListenPacket("udp4", net.JoinHostPort("", strconv.Itoa(d.port)))
	if err != nil {
		return err
	}
	defer conn.Close()

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.JoinGroup(nil, groupAddr); err != nil {
		log.Warnf("discovery: join multicast group: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); d.announceLoop(ctx, groupAddr) }()
	go func() { defer wg.Done(); d.listenLoop(ctx, conn) }()
	go func() { defer wg.Done(); d.sweepLoop(ctx) }()
	wg.Wait()
	return nil
}

func (d *Discovery) announceLoop(ctx context.Context, group *net.UDPAddr) {
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()

	send := func() {
		pkt := Announcement{
			DeviceID: d.deviceID, DeviceName: d.deviceName, DeviceType: d.deviceType,
			ServicePort: d.servicePort, Version: "1",
		}
		body, err := json.Marshal(pkt)
		if err != nil {
			return
		}
		conn, err := net.DialUDP("udp4", nil, group)
		if err != nil {
			log.Warnf("discovery: dial multicast: %v", err)
			return
		}
		defer conn.Close()
		if _, err := conn.Write(body); err != nil {
			log.Warnf("discovery: send announcement: %v", err)
		}
	}

	send()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}

func (d *Discovery) listenLoop(ctx context.Context, conn net.PacketConn) {
	buf := make([]byte, 2048)
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-done:
				return
			default:
				return
			}
		}
		var a Announcement
		if err := json.Unmarshal(buf[:n], &a); err != nil {
			continue
		}
		if a.DeviceID == d.deviceID {
			continue // don't add ourselves
		}
		host, _, _ := net.SplitHostPort(addr.String())
		d.observe(a, host)
	}
}

func (d *Discovery) observe(a Announcement, ip string) {
	d.mut.Lock()
	defer d.mut.Unlock()

	now := time.Now()
	existing, known := d.peers.Get(a.DeviceID)
	p := &Peer{
		DeviceID: a.DeviceID, DeviceName: a.DeviceName, DeviceType: a.DeviceType,
		IPAddress: ip, ServicePort: a.ServicePort, LastSeenAt: now, IsOnline: true,
	}
	if known {
		p.IsConnected = existing.IsConnected
	}
	d.peers.Add(a.DeviceID, p)

	if !known {
		d.emit(events.DeviceFound, p)
		return
	}
	if existing.DeviceName != a.DeviceName || existing.DeviceType != a.DeviceType ||
		existing.IPAddress != ip || existing.ServicePort != a.ServicePort {
		d.emit(events.StateChanged, p)
	}
}

func (d *Discovery) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepOnce()
		}
	}
}

func (d *Discovery) sweepOnce() {
	d.mut.Lock()
	defer d.mut.Unlock()

	cutoff := time.Now().Add(-peerLostAfter)
	for _, id := range d.peers.Keys() {
		p, ok := d.peers.Get(id)
		if !ok || !p.IsOnline {
			continue
		}
		if p.LastSeenAt.Before(cutoff) {
			p.IsOnline = false
			d.emit(events.DeviceLost, p)
		}
	}
}

func (d *Discovery) emit(t events.Type, p *Peer) {
	if d.bus == nil {
		return
	}
	cp := *p
	d.bus.Log(t, cp)
}
