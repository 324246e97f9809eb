package transport

import (
	"crypto/ed25519"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/familyvault/familyvault-core/internal/cryptoutil"
)

const (
	certSalt = "familyvault-tls-cert"
	certInfo = "ed25519-seed"
)

// deriveKey deterministically derives an ed25519 key pair from psk and
// identity: the same (psk, identity) pair always yields the same key,
// which is what lets a verifier recompute a peer's expected public key
// without ever seeing its private key (§4.12's PSK-authenticated
// handshake, implemented over stock TLS 1.3 since Go's crypto/tls has no
// raw PSK ciphersuite — see DESIGN.md).
func deriveKey(psk []byte, identity string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	seed, err := cryptoutil.HKDF(psk, []byte(certSalt), []byte(certInfo+":"+identity), ed25519.SeedSize)
	if err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv, nil
}

// selfSignedCert builds a minimal self-signed certificate binding
// identity to its psk-derived key, serialized for tls.Certificate.
func selfSignedCert(psk []byte, identity string) (rawCert []byte, priv ed25519.PrivateKey, err error) {
	pub, priv, err := deriveKey(psk, identity)
	if err != nil {
		return nil, nil, err
	}

	serial, err := deterministicSerial(psk, identity)
	if err != nil {
		return nil, nil, err
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: identity},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(cryptoRandReader{psk, identity}, tmpl, tmpl, pub, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: create certificate: %w", err)
	}
	return der, priv, nil
}

func deterministicSerial(psk []byte, identity string) (*big.Int, error) {
	b, err := cryptoutil.HKDF(psk, []byte(certSalt), []byte("serial:"+identity), 8)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// cryptoRandReader feeds x509.CreateCertificate's internal randomized
// signing (ed25519 signing is itself deterministic, but the API still
// asks for an io.Reader) with a fixed, psk-derived byte stream so the
// whole certificate is perfectly reproducible between the two peers that
// independently derive "the same" certificate for a given identity.
type cryptoRandReader struct {
	psk      []byte
	identity string
}

func (r cryptoRandReader) Read(p []byte) (int, error) {
	out, err := cryptoutil.HKDF(r.psk, []byte(certSalt), []byte("rand:"+r.identity), len(p))
	if err != nil {
		return 0, err
	}
	copy(p, out)
	return len(p), nil
}
