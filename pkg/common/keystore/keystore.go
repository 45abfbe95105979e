package keystore

import (
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/pkg/common/keyinfo"
)

var (
	// ErrKeyNotFound is returned when no key is stored under the name.
	ErrKeyNotFound = errors.New("keystore: key not found")

	// ErrKeyAlreadyExists is returned by Import without overwrite when the
	// name is taken.
	ErrKeyAlreadyExists = errors.New("keystore: key already exists")
)

// Keystore persists named keys by binding a metadata store to a vault
// holding the encoded key material. A Keystore instance holds the keys of a
// single scope; the caller routes by scope.
type Keystore interface {
	// Import stores encoded key material under info. With overwrite false
	// the import fails when a record with the same name exists; with
	// overwrite true the record is replaced atomically and the displaced
	// material becomes unreachable.
	Import(info *keyinfo.Info, encoded []byte, overwrite bool) error

	Get(name string) (*keyinfo.Info, []byte, error)

	Exists(name string) (bool, error)

	// List returns the metadata of every stored key sorted by name.
	List() ([]*keyinfo.Info, error)

	// Delete removes the named key's material and metadata.
	Delete(name string) error

	WithName(name string) KeyLinkedStore
}

// KeyLinkedStore is a Keystore view bound to a single named key.
type KeyLinkedStore interface {
	Info() (*keyinfo.Info, error)
	Get() (*keyinfo.Info, []byte, error)
	Delete() error
}
