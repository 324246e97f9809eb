package netmanager_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/familyvault/familyvault-core/internal/events"
	"github.com/familyvault/familyvault-core/internal/netmanager"
)

func TestStartStopTransitionsState(t *testing.T) {
	bus := events.NewLogger()
	defer bus.Close()

	m := netmanager.New("device-a", "A", "desktop", []byte("a shared psk of sufficient length"), nil, bus, nil)
	if m.State() != netmanager.Stopped {
		t.Fatalf("initial state = %v, want Stopped", m.State())
	}

	if err := m.Start(0); err != nil {
		t.Fatal(err)
	}
	if m.State() != netmanager.Running {
		t.Fatalf("state after Start = %v, want Running", m.State())
	}

	m.Stop()
	if m.State() != netmanager.Stopped {
		t.Fatalf("state after Stop = %v, want Stopped", m.State())
	}
}

func TestConnectToAddressEstablishesConnection(t *testing.T) {
	psk := []byte("a shared psk of sufficient length")

	busA := events.NewLogger()
	defer busA.Close()
	mA := netmanager.New("device-a", "A", "desktop", psk, nil, busA, nil)
	if err := mA.Start(freePort(t)); err != nil {
		t.Fatal(err)
	}
	defer mA.Stop()

	busB := events.NewLogger()
	defer busB.Close()
	mB := netmanager.New("device-b", "B", "mobile", psk, nil, busB, nil)
	if err := mB.Start(freePort(t)); err != nil {
		t.Fatal(err)
	}
	defer mB.Stop()

	subA := busA.Subscribe(events.DeviceConnected)

	mA.ConnectToAddress(context.Background(), "device-b", mBAddr(t, mB))

	ev, err := subA.Poll(2 * time.Second)
	if err != nil {
		t.Fatalf("expected DeviceConnected event: %v", err)
	}
	if ev.Type != events.DeviceConnected {
		t.Fatalf("got %v, want DeviceConnected", ev.Type)
	}

	if !mA.IsConnectedTo("device-b") {
		t.Fatal("expected IsConnectedTo(device-b) to be true")
	}
}

// freePort asks the OS for an unused TCP port: Start(0) binds the fixed
// default port, so two managers in one test need explicit ports.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// mBAddr exists purely so the test above reads linearly; in real wiring
// the address comes from Discovery's peer table, not introspection.
func mBAddr(t *testing.T, m *netmanager.Manager) string {
	t.Helper()
	addr, ok := m.ListenAddr()
	if !ok {
		t.Fatal("expected manager to be listening")
	}
	return addr
}

func TestDisconnectDeviceRemovesConnection(t *testing.T) {
	psk := []byte("a shared psk of sufficient length")

	mA := netmanager.New("device-a", "A", "desktop", psk, nil, nil, nil)
	if err := mA.Start(freePort(t)); err != nil {
		t.Fatal(err)
	}
	defer mA.Stop()

	mB := netmanager.New("device-b", "B", "mobile", psk, nil, nil, nil)
	if err := mB.Start(freePort(t)); err != nil {
		t.Fatal(err)
	}
	defer mB.Stop()

	addr, _ := mB.ListenAddr()
	mA.ConnectToAddress(context.Background(), "device-b", addr)

	deadline := time.Now().Add(2 * time.Second)
	for !mA.IsConnectedTo("device-b") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !mA.IsConnectedTo("device-b") {
		t.Fatal("connection never established")
	}

	mA.DisconnectDevice("device-b")
	if mA.IsConnectedTo("device-b") {
		t.Fatal("expected device-b to be disconnected")
	}
}
