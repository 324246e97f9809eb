package transport

import (
	"crypto/ed25519"
	"crypto/x509"
	"testing"
)

func TestDeriveKeyIsDeterministic(t *testing.T) {
	psk := []byte("a family secret shared by two devices")

	pub1, _, err := deriveKey(psk, "device-a")
	if err != nil {
		t.Fatal(err)
	}
	pub2, _, err := deriveKey(psk, "device-a")
	if err != nil {
		t.Fatal(err)
	}
	if !pub1.Equal(pub2) {
		t.Fatal("deriveKey is not deterministic for the same (psk, identity)")
	}

	pub3, _, err := deriveKey(psk, "device-b")
	if err != nil {
		t.Fatal(err)
	}
	if pub1.Equal(pub3) {
		t.Fatal("expected different identities to derive different keys")
	}

	otherPSK := []byte("a completely different family secret")
	pub4, _, err := deriveKey(otherPSK, "device-a")
	if err != nil {
		t.Fatal(err)
	}
	if pub1.Equal(pub4) {
		t.Fatal("expected different psks to derive different keys")
	}
}

func TestSelfSignedCertParsesAndMatchesDerivedKey(t *testing.T) {
	psk := []byte("a family secret shared by two devices")

	raw, _, err := selfSignedCert(psk, "device-a")
	if err != nil {
		t.Fatal(err)
	}

	pub, _, err := deriveKey(psk, "device-a")
	if err != nil {
		t.Fatal(err)
	}

	cert, err := x509.ParseCertificate(raw)
	if err != nil {
		t.Fatal(err)
	}
	if cert.Subject.CommonName != "device-a" {
		t.Fatalf("CommonName = %q, want device-a", cert.Subject.CommonName)
	}
	certPub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		t.Fatal("certificate public key is not ed25519")
	}
	if !certPub.Equal(pub) {
		t.Fatal("certificate public key does not match independently-derived key")
	}
}

func TestSelfSignedCertIsFullyDeterministic(t *testing.T) {
	psk := []byte("a family secret shared by two devices")

	raw1, _, err := selfSignedCert(psk, "device-a")
	if err != nil {
		t.Fatal(err)
	}
	raw2, _, err := selfSignedCert(psk, "device-a")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw1) != string(raw2) {
		t.Fatal("expected two independent derivations of the same (psk, identity) to produce byte-identical certificates")
	}
}
