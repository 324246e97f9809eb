// Package cryptoutil implements FamilyVault's §4.3 Crypto primitives:
// random bytes, HKDF-SHA256 key derivation, PIN derivation, UUIDv4
// generation and base64 conveniences. Keeping these in one small package
// means every derived secret in the system (pairing PIN, transport PSK,
// device identity) goes through the same audited code path.
package cryptoutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// RandomBytes returns n cryptographically strong random bytes. A failure
// to read from the OS RNG is treated as fatal: the process cannot make any
// further security guarantees, so callers should propagate it as Internal
// rather than retry.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("cryptoutil: reading random bytes: %w", err)
	}
	return buf, nil
}

// HKDF derives outLen bytes from ikm using HKDF-SHA256 with the given salt
// and info.
func HKDF(ikm, salt, info []byte, outLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("cryptoutil: hkdf expand: %w", err)
	}
	return out, nil
}

const (
	pinSalt = "familyvault-pin"
	pinInfo = "pin-derivation"
)

// PIN derives the 6-digit pairing PIN from the family secret and a
// session nonce per §4.3: 4 bytes via HKDF, interpreted big-endian,
// reduced modulo 10^6, zero-padded to 6 digits.
func PIN(secret, nonce []byte) (string, error) {
	derived, err := HKDF(secret, []byte(pinSalt), append([]byte(pinInfo), nonce...), 4)
	if err != nil {
		return "", err
	}
	v := binary.BigEndian.Uint32(derived) % 1_000_000
	return fmt.Sprintf("%06d", v), nil
}

const (
	pskSalt = "familyvault-psk-v1"
	pskInfo = "tls13-psk"
)

// PSK derives the 32-byte transport pre-shared key from the family
// secret, per §4.9.
func PSK(familySecret []byte) ([]byte, error) {
	return HKDF(familySecret, []byte(pskSalt), []byte(pskInfo), 32)
}

// UUIDv4 returns a random UUID formatted per RFC 4122 (version 4, variant
// 10xx), lowercase 8-4-4-4-12.
func UUIDv4() (string, error) {
	b, err := RandomBytes(16)
	if err != nil {
		return "", err
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10xx
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}

// Base64Encode/Base64Decode are the standard conveniences SecureStorage
// and the pairing QR payload use to move raw bytes through JSON/URLs.
func Base64Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func Base64Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: base64 decode: %w", err)
	}
	return b, nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data, used for
// file checksums (§3 File record, §4.15 Cache integrity).
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}
