package pairing

import (
	"net"
	"strconv"
	"time"

	"github.com/familyvault/familyvault-core/internal/cryptoutil"
	"github.com/familyvault/familyvault-core/internal/logger"
)

var log = logger.New("pairing")

// Server is the single-purpose TCP endpoint carrying the pairing
// handshake (§4.10). It serves one conversation at a time.
type Server struct {
	fp       *FamilyPairing
	listener net.Listener
	done     chan struct{}
}

// listen starts the pairing TCP listener on fp.pairingPort.
func (fp *FamilyPairing) listen() (*Server, error) {
	ln, err := net.Listen("tcp", portAddr(fp.pairingPort))
	if err != nil {
		return nil, err
	}
	s := &Server{fp: fp, listener: ln, done: make(chan struct{})}
	go s.acceptLoop()
	return s, nil
}

func portAddr(port int) string {
	if port <= 0 {
		port = 45680
	}
	return net.JoinHostPort("", strconv.Itoa(port))
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Warnf("pairing accept: %v", err)
				return
			}
		}
		s.serveOne(conn)
	}
}

// serveOne handles exactly one request/response conversation, per §4.10's
// "one in-flight pairing conversation at a time".
func (s *Server) serveOne(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(15 * time.Second))

	req, err := readRequest(conn)
	if err != nil {
		log.Warnf("pairing read request: %v", err)
		return
	}

	resp := s.fp.validate(req)
	if err := writeResponse(conn, resp); err != nil {
		log.Warnf("pairing write response: %v", err)
	}
}

// Stop closes the listener.
func (s *Server) Stop() {
	close(s.done)
	s.listener.Close()
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// ServerAddr returns the pairing server's bound address, if one is
// currently running.
func (fp *FamilyPairing) ServerAddr() (net.Addr, bool) {
	fp.mut.Lock()
	defer fp.mut.Unlock()
	if fp.server == nil {
		return nil, false
	}
	return fp.server.Addr(), true
}

// validate is the server-side validation logic of §4.9: refuses
// immediately on no/expired session, derives and constant-time-compares
// the expected PIN, applies the 3-failures/30s rate limit, and on success
// returns the family secret while leaving the session live.
func (fp *FamilyPairing) validate(req Request) Response {
	fp.mut.Lock()
	defer fp.mut.Unlock()

	now := time.Now()
	if fp.sess == nil {
		return Response{Result: ResultExpired, Message: "no active pairing session"}
	}
	if fp.sess.expired(now) {
		return Response{Result: ResultExpired}
	}
	if !fp.sess.attempt(now) {
		return Response{Result: ResultRateLimited}
	}

	secret, ok, err := fp.FamilySecret()
	if err != nil || !ok {
		return Response{Result: ResultInternalError, Message: "no family secret configured"}
	}

	expected, err := pinFor(secret, fp.sess.nonce)
	if err != nil {
		return Response{Result: ResultInternalError}
	}

	if !constantTimeEqual(expected, req.PIN) {
		return Response{Result: ResultInvalidPin}
	}

	return Response{Result: ResultSuccess, FamilySecret: cryptoutil.Base64Encode(secret)}
}
