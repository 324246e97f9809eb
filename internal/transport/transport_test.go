package transport_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/familyvault/familyvault-core/internal/transport"
)

func serve(t *testing.T, ln *transport.Listener) <-chan *transport.Conn {
	t.Helper()
	ch := make(chan *transport.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		ch <- c
	}()
	return ch
}

func TestDialAndAcceptAuthenticateBothSides(t *testing.T) {
	psk := []byte("a shared family secret of some length")

	ln, err := transport.Listen("127.0.0.1:0", psk, "server-device", transport.AllowAny)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := serve(t, ln)

	client, err := transport.Dial(context.Background(), ln.Addr().String(), psk, "client-device", transport.AllowAny)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if client.PeerIdentity != "server-device" {
		t.Fatalf("client sees peer identity %q, want server-device", client.PeerIdentity)
	}

	server := <-accepted
	if server == nil {
		t.Fatal("server side never accepted")
	}
	defer server.Close()
	if server.PeerIdentity != "client-device" {
		t.Fatalf("server sees peer identity %q, want client-device", server.PeerIdentity)
	}

	msg := []byte("hello over authenticated channel")
	go server.Write(msg)
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != string(msg) {
		t.Fatalf("got %q, want %q", buf, msg)
	}
}

func TestDialWithWrongPSKFailsHandshake(t *testing.T) {
	pskA := []byte("family secret A is long enough")
	pskB := []byte("family secret B is long enough")

	ln, err := transport.Listen("127.0.0.1:0", pskA, "server-device", transport.AllowAny)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := serve(t, ln)

	_, err = transport.Dial(context.Background(), ln.Addr().String(), pskB, "client-device", transport.AllowAny)
	if err == nil {
		t.Fatal("expected dial with mismatched psk to fail")
	}

	select {
	case c := <-accepted:
		if c != nil {
			t.Fatal("server should not have accepted a connection authenticated with the wrong psk")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept loop to fail")
	}
}

func TestListenerRejectsUnknownIdentity(t *testing.T) {
	psk := []byte("shared secret used by both devices")
	onlyKnown := func(id string) bool { return id == "known-device" }

	ln, err := transport.Listen("127.0.0.1:0", psk, "server-device", onlyKnown)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := serve(t, ln)

	_, err = transport.Dial(context.Background(), ln.Addr().String(), psk, "unknown-device", transport.AllowAny)
	if err == nil {
		t.Fatal("expected dial from an unapproved identity to fail")
	}

	select {
	case c := <-accepted:
		if c != nil {
			t.Fatal("server should not have accepted an unapproved identity")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept loop to reject")
	}
}

func TestDialTimesOutAgainstUnresponsivePeer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(transport.HandshakeTimeout + time.Second)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = transport.Dial(ctx, l.Addr().String(), []byte("some psk"), "client", transport.AllowAny)
	if err == nil {
		t.Fatal("expected dial against an unresponsive peer to time out")
	}
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		t.Fatalf("expected context deadline to have elapsed, err=%v", err)
	}
}
