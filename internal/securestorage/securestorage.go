// Package securestorage defines the §4.2 SecureStorage contract: an
// opaque key→bytes store for the three reserved secrets (family_secret,
// device_id, device_name) plus any embedder-chosen keys. Concrete
// platform backends (OS keychain, credential manager) are adapter work
// outside the core (§1); this package additionally ships a single
// encrypted-file backend so the core and its tests are self-contained on
// any platform without a native keychain.
package securestorage

import "context"

// Reserved keys. The core never interprets arbitrary keys, but these three
// have meaning to FamilyPairing.
const (
	KeyFamilySecret = "family_secret"
	KeyDeviceID     = "device_id"
	KeyDeviceName   = "device_name"
)

// Store is the polymorphic capability every backend implements. Modeled as
// an interface rather than an inheritance chain, per the
// teacher's duck-typed extractor convention (see ContentExtractor).
type Store interface {
	Store(ctx context.Context, key string, value []byte) error
	Retrieve(ctx context.Context, key string) ([]byte, bool, error)
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// StoreString/RetrieveString are the UTF-8 string conveniences named in §4.2.
func StoreString(ctx context.Context, s Store, key, value string) error {
	return s.Store(ctx, key, []byte(value))
}

func RetrieveString(ctx context.Context, s Store, key string) (string, bool, error) {
	b, ok, err := s.Retrieve(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(b), true, nil
}
