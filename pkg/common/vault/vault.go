package vault

import "github.com/pkg/errors"

// ErrKeyNotFound is returned by Get when no record exists under the key id.
var ErrKeyNotFound = errors.New("vault: key not found")

// Vault stores encoded key material addressed by the record identifier
// assigned at creation.
type Vault interface {
	Import(keyID string, key []byte) error
	Get(keyID string) ([]byte, error)
	Exists(keyID string) (bool, error)
	Delete(keyID string) error
}
