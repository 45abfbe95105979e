package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/kms-shield/csp-lib/pkg/checksum"
	"github.com/kms-shield/csp-lib/pkg/common/vault"
)

var (
	ErrCorrupted    = errors.New("vault: record corrupted")
	ErrInvalidKeyID = errors.New("vault: invalid key id")
)

const (
	checksumDomain = "vault/record"
	recordKeyInfo  = "csp-lib/vault/record-key"
	recordExt      = ".key"
)

// fileRecord is the on-disk envelope of one vault record. Data holds the
// key material, encrypted when the vault has a master key. Sum is the
// checksum of the plaintext, so both modes get the same integrity check.
type fileRecord struct {
	ID    string `cbor:"id"`
	Nonce []byte `cbor:"nonce,omitempty"`
	Sum   []byte `cbor:"sum"`
	Data  []byte `cbor:"data"`
}

// FileVaultConfig configures a FileVault. An empty MasterKey selects
// plaintext records; any non-empty value is stretched per record with
// HKDF-SHA256.
type FileVaultConfig struct {
	Path      string
	MasterKey []byte
}

// FileVault stores one record per file under its root directory. Writes go
// through an exclusive temp file renamed into place, so records are always
// observed whole. Directories are created 0700 and records 0600.
type FileVault struct {
	lock      sync.RWMutex
	path      string
	masterKey []byte
}

func NewFileVault(cfg FileVaultConfig) *FileVault {
	return &FileVault{
		path:      cfg.Path,
		masterKey: append([]byte(nil), cfg.MasterKey...),
	}
}

// Path returns the directory backing the vault.
func (v *FileVault) Path() string {
	return v.path
}

func validKeyID(keyID string) error {
	if keyID == "" ||
		strings.ContainsAny(keyID, "/\\") ||
		strings.Contains(keyID, "..") ||
		strings.HasPrefix(keyID, ".") {
		return ErrInvalidKeyID
	}
	return nil
}

func (v *FileVault) recordPath(keyID string) string {
	return filepath.Join(v.path, keyID+recordExt)
}

func (v *FileVault) recordCipher(keyID string) (cipher.AEAD, error) {
	kdf := hkdf.New(sha256.New, v.masterKey, []byte(keyID), []byte(recordKeyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.WithMessage(err, "vault: derive record key")
	}
	return chacha20poly1305.New(key)
}

func (v *FileVault) Import(keyID string, key []byte) error {
	if err := validKeyID(keyID); err != nil {
		return err
	}

	v.lock.Lock()
	defer v.lock.Unlock()

	if err := os.MkdirAll(v.path, 0700); err != nil {
		return errors.WithMessage(err, "vault: create store directory")
	}

	rec := fileRecord{
		ID:   keyID,
		Sum:  checksum.Sum(checksumDomain, []byte(keyID), key),
		Data: key,
	}
	if len(v.masterKey) > 0 {
		aead, err := v.recordCipher(keyID)
		if err != nil {
			return err
		}
		nonce := make([]byte, chacha20poly1305.NonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return errors.WithMessage(err, "vault: generate nonce")
		}
		rec.Nonce = nonce
		rec.Data = aead.Seal(nil, nonce, key, []byte(keyID))
	}

	data, err := cbor.Marshal(&rec)
	if err != nil {
		return errors.WithMessage(err, "vault: encode record")
	}

	tmp := filepath.Join(v.path, "."+keyID+"."+uuid.New().String()[:8]+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.WithMessage(err, "vault: create record file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.WithMessage(err, "vault: write record file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.WithMessage(err, "vault: close record file")
	}
	if err := os.Rename(tmp, v.recordPath(keyID)); err != nil {
		os.Remove(tmp)
		return errors.WithMessage(err, "vault: commit record file")
	}
	return nil
}

func (v *FileVault) Get(keyID string) ([]byte, error) {
	if err := validKeyID(keyID); err != nil {
		return nil, err
	}

	v.lock.RLock()
	defer v.lock.RUnlock()

	data, err := os.ReadFile(v.recordPath(keyID))
	if os.IsNotExist(err) {
		return nil, vault.ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.WithMessage(err, "vault: read record file")
	}

	var rec fileRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, errors.WithMessage(ErrCorrupted, err.Error())
	}
	if rec.ID != keyID {
		return nil, errors.WithMessage(ErrCorrupted, "record id mismatch")
	}

	key := rec.Data
	switch {
	case len(v.masterKey) > 0 && len(rec.Nonce) == 0:
		return nil, errors.WithMessage(ErrCorrupted, "record is not encrypted")
	case len(v.masterKey) == 0 && len(rec.Nonce) > 0:
		return nil, errors.WithMessage(ErrCorrupted, "record is encrypted")
	case len(v.masterKey) > 0:
		aead, err := v.recordCipher(keyID)
		if err != nil {
			return nil, err
		}
		key, err = aead.Open(nil, rec.Nonce, rec.Data, []byte(keyID))
		if err != nil {
			return nil, errors.WithMessage(ErrCorrupted, err.Error())
		}
	}

	if !checksum.Verify(checksumDomain, rec.Sum, []byte(keyID), key) {
		return nil, errors.WithMessage(ErrCorrupted, "record checksum mismatch")
	}
	return key, nil
}

func (v *FileVault) Exists(keyID string) (bool, error) {
	if err := validKeyID(keyID); err != nil {
		return false, err
	}

	v.lock.RLock()
	defer v.lock.RUnlock()

	_, err := os.Stat(v.recordPath(keyID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, "vault: stat record file")
	}
	return true, nil
}

func (v *FileVault) Delete(keyID string) error {
	if err := validKeyID(keyID); err != nil {
		return err
	}

	v.lock.Lock()
	defer v.lock.Unlock()

	err := os.Remove(v.recordPath(keyID))
	if err != nil && !os.IsNotExist(err) {
		return errors.WithMessage(err, "vault: remove record file")
	}
	return nil
}
