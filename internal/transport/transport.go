// Package transport implements §4.12 TlsPskTransport: a role-symmetric,
// mutually authenticated connection between two FamilyVault devices that
// both hold the same family pre-shared key.
//
// Go's crypto/tls has no raw TLS-PSK ciphersuite (RFC 4279/8446 external
// PSK binders aren't exposed by the stdlib API), so authentication is
// built on top of stock TLS 1.3 instead: each peer derives an ed25519
// certificate deterministically from (psk, its own identity) and presents
// it during the handshake. Because both the certificate's key material
// and its "random" signing input are themselves HKDF outputs of the PSK,
// nobody who lacks the PSK can produce a certificate that verifies — the
// certificate chain itself never has to be checked against a CA, only
// against the expected psk-derived key for the peer's claimed identity.
// This is recorded as a resolved Open Question in DESIGN.md.
package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	// HandshakeTimeout bounds how long the TLS handshake may take.
	HandshakeTimeout = 5 * time.Second
	// IdleTimeout bounds how long a Conn may go without a successful read
	// before it is considered dead.
	IdleTimeout = 30 * time.Second
)

var (
	ErrIdentityMismatch = errors.New("transport: peer certificate does not match its claimed identity under the shared secret")
	ErrPeerRejected     = errors.New("transport: peer identity rejected")
)

// Validator decides whether a peer identity (verified as psk-authentic)
// should be allowed to complete the handshake, e.g. "is this a known
// family device_id".
type Validator func(peerIdentity string) bool

// AllowAny accepts every psk-authenticated peer.
func AllowAny(string) bool { return true }

// Conn is an established, authenticated session with a single peer.
// It has move-only semantics: once handed to a caller, transport package
// internals never retain or reuse it.
type Conn struct {
	*tls.Conn
	PeerIdentity string
}

func buildTLSConfig(psk []byte, myIdentity string, validator Validator) (*tls.Config, error) {
	rawCert, priv, err := selfSignedCert(psk, myIdentity)
	if err != nil {
		return nil, err
	}
	cert := tls.Certificate{Certificate: [][]byte{rawCert}, PrivateKey: priv}

	verify := func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("transport: no peer certificate presented")
		}
		peerCert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("transport: parse peer certificate: %w", err)
		}
		claimed := peerCert.Subject.CommonName

		expectedPub, _, err := deriveKey(psk, claimed)
		if err != nil {
			return err
		}
		peerPub, ok := peerCert.PublicKey.(ed25519.PublicKey)
		if !ok || !peerPub.Equal(expectedPub) {
			return ErrIdentityMismatch
		}
		if validator != nil && !validator(claimed) {
			return fmt.Errorf("%w: %s", ErrPeerRejected, claimed)
		}
		return nil
	}

	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		MinVersion:            tls.VersionTLS13, // TLS1.3 default suites are all AEAD; no legacy CBC reachable
		InsecureSkipVerify:    true,             // chain trust is replaced by VerifyPeerCertificate below
		VerifyPeerCertificate: verify,
		ClientAuth:            tls.RequireAnyClientCert,
	}, nil
}

// Dial opens an authenticated connection to addr, deriving this device's
// certificate from psk and myIdentity and accepting the remote peer only
// if it presents a psk-derived certificate that validator approves.
func Dial(ctx context.Context, addr string, psk []byte, myIdentity string, validator Validator) (*Conn, error) {
	cfg, err := buildTLSConfig(psk, myIdentity, validator)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	dialer := &tls.Dialer{Config: cfg}
	raw, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	tc := raw.(*tls.Conn)
	return wrapConn(tc)
}

func wrapConn(tc *tls.Conn) (*Conn, error) {
	state := tc.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		tc.Close()
		return nil, errors.New("transport: handshake completed without peer certificate")
	}
	peer := state.PeerCertificates[0].Subject.CommonName
	tc.SetReadDeadline(time.Now().Add(IdleTimeout))
	return &Conn{Conn: tc, PeerIdentity: peer}, nil
}

// Read refreshes the idle deadline on every successful read so a quiet
// but healthy connection isn't mistaken for a dead one.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err == nil {
		c.Conn.SetReadDeadline(time.Now().Add(IdleTimeout))
	}
	return n, err
}

// Listener accepts inbound psk-authenticated connections.
type Listener struct {
	net.Listener
}

// Listen binds addr and returns a Listener that authenticates inbound
// peers the same way Dial authenticates outbound ones.
func Listen(addr string, psk []byte, myIdentity string, validator Validator) (*Listener, error) {
	cfg, err := buildTLSConfig(psk, myIdentity, validator)
	if err != nil {
		return nil, err
	}
	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &Listener{Listener: ln}, nil
}

// Accept blocks for the next inbound connection, performs its handshake
// under HandshakeTimeout, and returns an authenticated Conn.
func (l *Listener) Accept() (*Conn, error) {
	raw, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	tc, ok := raw.(*tls.Conn)
	if !ok {
		raw.Close()
		return nil, errors.New("transport: listener did not produce a TLS connection")
	}

	tc.SetDeadline(time.Now().Add(HandshakeTimeout))
	if err := tc.Handshake(); err != nil {
		tc.Close()
		return nil, fmt.Errorf("transport: handshake: %w", err)
	}
	tc.SetDeadline(time.Time{})
	return wrapConn(tc)
}
