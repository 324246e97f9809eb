package pairing_test

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/familyvault/familyvault-core/internal/pairing"
	"github.com/familyvault/familyvault-core/internal/securestorage"
)

func newBackend(t *testing.T) *securestorage.FileBackend {
	t.Helper()
	b, err := securestorage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newFP(t *testing.T, name string) *pairing.FamilyPairing {
	t.Helper()
	fp, err := pairing.New(pairing.FromSecureStorage(newBackend(t)), name, "desktop", freePort(t))
	if err != nil {
		t.Fatal(err)
	}
	return fp
}

// freePort asks the OS for an unused TCP port: a pairing port of 0 selects
// the fixed default port, which the servers of earlier tests still hold.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func hostPort(t *testing.T, addr net.Addr) (string, int) {
	t.Helper()
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return "127.0.0.1", port
}

func TestCreateThenJoinSucceeds(t *testing.T) {
	initiator := newFP(t, "initiator")
	joiner := newFP(t, "joiner")

	cr, err := initiator.CreateFamily("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	addr, ok := initiator.ServerAddr()
	if !ok {
		t.Fatal("expected pairing server to be running")
	}
	host, port := hostPort(t, addr)

	result, err := joiner.JoinFamily(host, port, cr.PIN)
	if err != nil {
		t.Fatal(err)
	}
	if result != pairing.ResultSuccess {
		t.Fatalf("expected success, got %s", result)
	}
	if !joiner.HasFamilySecret() {
		t.Fatal("expected joiner to have persisted the family secret")
	}

	initSecret, _, _ := initiator.FamilySecret()
	joinSecret, _, _ := joiner.FamilySecret()
	if string(initSecret) != string(joinSecret) {
		t.Fatal("expected joiner's family secret to match initiator's")
	}
}

func TestJoinWithWrongPinFails(t *testing.T) {
	initiator := newFP(t, "initiator")
	joiner := newFP(t, "joiner")

	_, err := initiator.CreateFamily("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	addr, _ := initiator.ServerAddr()
	host, port := hostPort(t, addr)

	result, err := joiner.JoinFamily(host, port, "000000")
	if err != nil {
		t.Fatal(err)
	}
	if result != pairing.ResultInvalidPin {
		t.Fatalf("expected invalid_pin, got %s", result)
	}
}

func TestRateLimitAfterThreeFailures(t *testing.T) {
	initiator := newFP(t, "initiator")
	joiner := newFP(t, "joiner")

	_, err := initiator.CreateFamily("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	addr, _ := initiator.ServerAddr()
	host, port := hostPort(t, addr)

	want := []pairing.Result{
		pairing.ResultInvalidPin,
		pairing.ResultInvalidPin,
		pairing.ResultRateLimited,
	}
	for i, w := range want {
		result, err := joiner.JoinFamily(host, port, "000000")
		if err != nil {
			t.Fatal(err)
		}
		if result != w {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, w, result)
		}
	}
}

func TestJoinWhenAlreadyConfiguredReturnsAlreadyConfigured(t *testing.T) {
	initiator := newFP(t, "initiator")
	joiner := newFP(t, "joiner")

	_, err := initiator.CreateFamily("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	addr, _ := initiator.ServerAddr()
	host, port := hostPort(t, addr)

	if _, err := joiner.JoinFamily(host, port, "anything"); err != nil {
		t.Fatal(err)
	}
	// joiner still doesn't have a secret yet from a bad pin; give it one directly
	// by performing a real join first.
	cr, err := initiator.RegeneratePin("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := joiner.JoinFamily(host, port, cr.PIN); err != nil {
		t.Fatal(err)
	}

	result, err := joiner.JoinFamily(host, port, cr.PIN)
	if err != nil {
		t.Fatal(err)
	}
	if result != pairing.ResultAlreadyConfigured {
		t.Fatalf("expected already_configured, got %s", result)
	}
}

func TestResetRemovesFamilySecret(t *testing.T) {
	initiator := newFP(t, "initiator")
	if _, err := initiator.CreateFamily("127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if !initiator.HasFamilySecret() {
		t.Fatal("expected family secret after create")
	}
	if err := initiator.Reset(); err != nil {
		t.Fatal(err)
	}
	if initiator.HasFamilySecret() {
		t.Fatal("expected no family secret after reset")
	}
}

func TestPinLengthIsSixDigits(t *testing.T) {
	initiator := newFP(t, "initiator")
	cr, err := initiator.CreateFamily("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cr.PIN) != 6 {
		t.Fatalf("expected 6-digit PIN, got %q", cr.PIN)
	}
	if cr.ExpiresAt.Before(time.Now()) {
		t.Fatal("expected expiry to be in the future")
	}
}
