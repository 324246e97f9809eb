package securestorage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/familyvault/familyvault-core/internal/cryptoutil"
	"github.com/familyvault/familyvault-core/internal/fverrors"
)

// FileBackend is the encrypted-file SecureStorage fallback named in §1 for
// platforms without a native keychain adapter. Values are AES-256-GCM
// sealed under a master key generated on first use and held in a sibling
// file with owner-only permissions; the ciphertext file itself can then be
// copied or backed up without exposing plaintext secrets.
type FileBackend struct {
	mut      sync.Mutex
	dataPath string
	keyPath  string
	gcm      cipher.AEAD
}

// NewFileBackend opens (creating if absent) an encrypted store rooted at
// dir, using "secrets.json.enc" and "secrets.key" inside it.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fverrors.Wrap(fverrors.Io, "securestorage.NewFileBackend/mkdir", err)
	}

	keyPath := filepath.Join(dir, "secrets.key")
	key, err := loadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fverrors.Wrap(fverrors.Internal, "securestorage.NewFileBackend/aes", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fverrors.Wrap(fverrors.Internal, "securestorage.NewFileBackend/gcm", err)
	}

	return &FileBackend{
		dataPath: filepath.Join(dir, "secrets.json.enc"),
		keyPath:  keyPath,
		gcm:      gcm,
	}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil && len(b) == 32 {
		return b, nil
	}
	key, err := cryptoutil.RandomBytes(32)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fverrors.Wrap(fverrors.Io, "securestorage.loadOrCreateKey", err)
	}
	return key, nil
}

func (f *FileBackend) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.dataPath)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fverrors.Wrap(fverrors.Io, "securestorage.load", err)
	}

	nonceSize := f.gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, fverrors.New(fverrors.Io, "securestorage.load", "corrupt secrets file")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := f.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fverrors.Wrap(fverrors.Io, "securestorage.load/decrypt", err)
	}

	m := map[string]string{}
	if len(plain) > 0 {
		if err := json.Unmarshal(plain, &m); err != nil {
			return nil, fverrors.Wrap(fverrors.Io, "securestorage.load/unmarshal", err)
		}
	}
	return m, nil
}

func (f *FileBackend) save(m map[string]string) error {
	plain, err := json.Marshal(m)
	if err != nil {
		return fverrors.Wrap(fverrors.Internal, "securestorage.save/marshal", err)
	}

	nonce, err := cryptoutil.RandomBytes(f.gcm.NonceSize())
	if err != nil {
		return err
	}
	sealed := f.gcm.Seal(nonce, nonce, plain, nil)

	tmp := f.dataPath + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fverrors.Wrap(fverrors.Io, "securestorage.save/write", err)
	}
	if err := os.Rename(tmp, f.dataPath); err != nil {
		return fverrors.Wrap(fverrors.Io, "securestorage.save/rename", err)
	}
	return nil
}

func (f *FileBackend) Store(_ context.Context, key string, value []byte) error {
	f.mut.Lock()
	defer f.mut.Unlock()

	m, err := f.load()
	if err != nil {
		return err
	}
	m[key] = cryptoutil.Base64Encode(value)
	return f.save(m)
}

func (f *FileBackend) Retrieve(_ context.Context, key string) ([]byte, bool, error) {
	f.mut.Lock()
	defer f.mut.Unlock()

	m, err := f.load()
	if err != nil {
		return nil, false, err
	}
	enc, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	b, err := cryptoutil.Base64Decode(enc)
	if err != nil {
		return nil, false, fverrors.Wrap(fverrors.Io, "securestorage.Retrieve", err)
	}
	return b, true, nil
}

func (f *FileBackend) Remove(_ context.Context, key string) error {
	f.mut.Lock()
	defer f.mut.Unlock()

	m, err := f.load()
	if err != nil {
		return err
	}
	delete(m, key)
	return f.save(m)
}

func (f *FileBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := f.Retrieve(ctx, key)
	return ok, err
}
