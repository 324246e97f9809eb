package cryptoutil_test

import (
	"regexp"
	"testing"

	"github.com/familyvault/familyvault-core/internal/cryptoutil"
)

var pinRe = regexp.MustCompile(`^[0-9]{6}$`)

func TestPINDeterministicAndSixDigits(t *testing.T) {
	secret, _ := cryptoutil.RandomBytes(32)
	nonce, _ := cryptoutil.RandomBytes(16)

	p1, err := cryptoutil.PIN(secret, nonce)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := cryptoutil.PIN(secret, nonce)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Fatalf("PIN not deterministic: %q != %q", p1, p2)
	}
	if !pinRe.MatchString(p1) {
		t.Fatalf("PIN %q does not match ^[0-9]{6}$", p1)
	}
}

func TestPINChangesWithInputs(t *testing.T) {
	secret, _ := cryptoutil.RandomBytes(32)
	nonceA, _ := cryptoutil.RandomBytes(16)
	nonceB, _ := cryptoutil.RandomBytes(16)

	pA, _ := cryptoutil.PIN(secret, nonceA)
	pB, _ := cryptoutil.PIN(secret, nonceB)
	if pA == pB {
		t.Fatalf("expected different PINs for different nonces (got %q twice)", pA)
	}

	secret2, _ := cryptoutil.RandomBytes(32)
	pC, _ := cryptoutil.PIN(secret2, nonceA)
	if pA == pC {
		t.Fatalf("expected different PINs for different secrets (got %q twice)", pA)
	}
}

func TestPSKDeterministicPerSecret(t *testing.T) {
	secretA, _ := cryptoutil.RandomBytes(32)
	secretB, _ := cryptoutil.RandomBytes(32)

	p1, err := cryptoutil.PSK(secretA)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := cryptoutil.PSK(secretA)
	if err != nil {
		t.Fatal(err)
	}
	if string(p1) != string(p2) {
		t.Fatalf("PSK not deterministic for the same secret")
	}
	if len(p1) != 32 {
		t.Fatalf("PSK length = %d, want 32", len(p1))
	}

	p3, _ := cryptoutil.PSK(secretB)
	if string(p1) == string(p3) {
		t.Fatalf("PSK collided across distinct secrets")
	}
}

func TestUUIDv4Layout(t *testing.T) {
	id, err := cryptoutil.UUIDv4()
	if err != nil {
		t.Fatal(err)
	}
	re := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !re.MatchString(id) {
		t.Fatalf("UUID %q does not match RFC4122 v4 layout", id)
	}
}

func TestBase64RoundTrip(t *testing.T) {
	data, _ := cryptoutil.RandomBytes(37)
	enc := cryptoutil.Base64Encode(data)
	dec, err := cryptoutil.Base64Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec) != string(data) {
		t.Fatalf("base64 round trip mismatch")
	}
}

func TestSHA256HexStable(t *testing.T) {
	if got := cryptoutil.SHA256Hex([]byte("hello")); got != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("SHA256Hex(hello) = %s", got)
	}
}
