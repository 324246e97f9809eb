// Package pairing implements §4.9/§4.10: FamilyPairing's PIN-based
// enrollment flow and the single-purpose PairingServer/PairingClient that
// carry it over TCP.
package pairing

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/familyvault/familyvault-core/internal/cryptoutil"
	"github.com/familyvault/familyvault-core/internal/securestorage"
)

// Result mirrors §4.9's join-flow error taxonomy.
type Result string

const (
	ResultSuccess           Result = "success"
	ResultInvalidPin        Result = "invalid_pin"
	ResultExpired           Result = "expired"
	ResultRateLimited       Result = "rate_limited"
	ResultNetworkError      Result = "network_error"
	ResultAlreadyConfigured Result = "already_configured"
	ResultInternalError     Result = "internal_error"
)

const (
	sessionTTL     = 5 * time.Minute
	maxFailures    = 3
	cooldownPeriod = 30 * time.Second
)

var (
	ErrNoActiveSession = errors.New("pairing: no active session")
	ErrRateLimited      = errors.New("pairing: rate limited")
)

// session is the ephemeral, in-memory pairing-session state (§3 Pairing
// session). limiter grants maxFailures-1 attempts up front (a burst) so
// that the maxFailures'th attempt in the same instant is the one that
// gets refused: two wrong PINs still reach validate() and come back
// InvalidPin, and the third is turned away as RateLimited before ever
// comparing the PIN (§8 scenario 3: "InvalidPin, InvalidPin,
// RateLimited").
type session struct {
	nonce     []byte
	createdAt time.Time
	expiresAt time.Time
	limiter   *rate.Limiter
}

func newSession(nonce []byte, createdAt, expiresAt time.Time) *session {
	return &session{
		nonce:     nonce,
		createdAt: createdAt,
		expiresAt: expiresAt,
		limiter:   rate.NewLimiter(rate.Every(cooldownPeriod), maxFailures-1),
	}
}

func (s *session) expired(now time.Time) bool {
	return now.After(s.expiresAt)
}

// attempt consumes one slot of the attempt budget and reports whether
// the caller may proceed to verify a PIN this round.
func (s *session) attempt(now time.Time) bool {
	return s.limiter.AllowN(now, 1)
}

// FamilyPairing owns the family secret lifecycle and the active pairing
// session (§4.9).
type FamilyPairing struct {
	mut           sync.Mutex
	secrets       SecretStore
	deviceID      string
	deviceName    string
	deviceType    string
	sess          *session
	server        *Server
	pairingPort   int
}

// SecretStore is the subset of securestorage.Store FamilyPairing needs:
// persisting the family secret and device identity. Unlike
// securestorage.Store it is context-free, since pairing's own API
// (§4.9/§4.10) is synchronous.
type SecretStore interface {
	StoreString(key, value string) error
	RetrieveString(key string) (string, bool, error)
	Remove(key string) error
}

// FromSecureStorage adapts a securestorage.Store into a SecretStore,
// binding every call to context.Background(): pairing's backing store
// access is local and fast enough that callers don't need per-call
// cancellation here.
func FromSecureStorage(s securestorage.Store) SecretStore {
	return secureStoreAdapter{s}
}

type secureStoreAdapter struct {
	store securestorage.Store
}

func (a secureStoreAdapter) StoreString(key, value string) error {
	return securestorage.StoreString(context.Background(), a.store, key, value)
}

func (a secureStoreAdapter) RetrieveString(key string) (string, bool, error) {
	return securestorage.RetrieveString(context.Background(), a.store, key)
}

func (a secureStoreAdapter) Remove(key string) error {
	return a.store.Remove(context.Background(), key)
}

// New constructs a FamilyPairing bound to secrets, generating a device_id
// on first use if none is persisted yet.
func New(secrets SecretStore, deviceName, deviceType string, pairingPort int) (*FamilyPairing, error) {
	fp := &FamilyPairing{secrets: secrets, deviceName: deviceName, deviceType: deviceType, pairingPort: pairingPort}

	if id, ok, err := secrets.RetrieveString("device_id"); err != nil {
		return nil, err
	} else if ok {
		fp.deviceID = id
	} else {
		id, err := cryptoutil.UUIDv4()
		if err != nil {
			return nil, err
		}
		if err := secrets.StoreString("device_id", id); err != nil {
			return nil, err
		}
		fp.deviceID = id
	}
	return fp, nil
}

// DeviceID returns this installation's stable device identifier.
func (fp *FamilyPairing) DeviceID() string { return fp.deviceID }

// HasFamilySecret reports whether this device already holds a family
// secret (used for the AlreadyConfigured join-flow error).
func (fp *FamilyPairing) HasFamilySecret() bool {
	_, ok, _ := fp.secrets.RetrieveString("family_secret")
	return ok
}

// FamilySecret returns the persisted family secret, if any.
func (fp *FamilyPairing) FamilySecret() ([]byte, bool, error) {
	s, ok, err := fp.secrets.RetrieveString("family_secret")
	if err != nil || !ok {
		return nil, ok, err
	}
	b, err := cryptoutil.Base64Decode(s)
	return b, true, err
}

// constantTimeEqual compares two PIN strings without leaking timing
// information about where they first differ (§4.9 "compares in constant
// time").
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
