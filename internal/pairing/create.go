package pairing

import (
	"fmt"
	"time"

	"github.com/familyvault/familyvault-core/internal/cryptoutil"
)

// CreateResult is returned by CreateFamily (§4.9).
type CreateResult struct {
	PIN        string
	QRPayload  string
	ExpiresAt  time.Time
}

func pinFor(secret, nonce []byte) (string, error) {
	return cryptoutil.PIN(secret, nonce)
}

// CreateFamily generates a family secret and a fresh pairing session,
// starts the PairingServer, and returns the PIN/QR payload/expiry (§4.9).
func (fp *FamilyPairing) CreateFamily(localIP string) (CreateResult, error) {
	fp.mut.Lock()
	defer fp.mut.Unlock()

	secretBytes, err := cryptoutil.RandomBytes(32)
	if err != nil {
		return CreateResult{}, err
	}
	if err := fp.secrets.StoreString("family_secret", cryptoutil.Base64Encode(secretBytes)); err != nil {
		return CreateResult{}, err
	}

	sess, err := fp.newSessionLocked(secretBytes)
	if err != nil {
		return CreateResult{}, err
	}

	if fp.server == nil {
		srv, err := fp.listen()
		if err != nil {
			return CreateResult{}, err
		}
		fp.server = srv
	}

	pin, err := pinFor(secretBytes, sess.nonce)
	if err != nil {
		return CreateResult{}, err
	}

	return CreateResult{
		PIN:       pin,
		QRPayload: qrPayload(pin, localIP, fp.pairingPort),
		ExpiresAt: sess.expiresAt,
	}, nil
}

func (fp *FamilyPairing) newSessionLocked(secret []byte) (*session, error) {
	nonce, err := cryptoutil.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := newSession(nonce, now, now.Add(sessionTTL))
	fp.sess = sess
	return sess, nil
}

func qrPayload(pin, host string, port int) string {
	return fmt.Sprintf("fv://join?pin=%s&host=%s&port=%d", pin, host, port)
}

// RegeneratePin creates a fresh nonce (and therefore a fresh PIN) and
// starts the pairing server again if it is not running (§4.9).
func (fp *FamilyPairing) RegeneratePin(localIP string) (CreateResult, error) {
	fp.mut.Lock()
	defer fp.mut.Unlock()

	secret, ok, err := fp.FamilySecret()
	if err != nil {
		return CreateResult{}, err
	}
	if !ok {
		return CreateResult{}, fmt.Errorf("pairing: no family secret to regenerate a pin for")
	}
	sess, err := fp.newSessionLocked(secret)
	if err != nil {
		return CreateResult{}, err
	}
	if fp.server == nil {
		srv, err := fp.listen()
		if err != nil {
			return CreateResult{}, err
		}
		fp.server = srv
	}
	pin, err := pinFor(secret, sess.nonce)
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{PIN: pin, QRPayload: qrPayload(pin, localIP, fp.pairingPort), ExpiresAt: sess.expiresAt}, nil
}

// Reset deletes the family secret and tears down any active session and
// server (§4.9).
func (fp *FamilyPairing) Reset() error {
	fp.mut.Lock()
	defer fp.mut.Unlock()

	fp.sess = nil
	if fp.server != nil {
		fp.server.Stop()
		fp.server = nil
	}
	return fp.secrets.Remove("family_secret")
}

// StopServer stops the pairing server without touching the family secret.
func (fp *FamilyPairing) StopServer() {
	fp.mut.Lock()
	defer fp.mut.Unlock()
	if fp.server != nil {
		fp.server.Stop()
		fp.server = nil
	}
}
