package keyinfo

import (
	"time"

	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/keyspec"
)

// ErrNotFound is returned by Get when no record exists under the name.
var ErrNotFound = errors.New("keyinfo: record not found")

// Info is the stored metadata record of a named key.
//
// UniqueName is the store-assigned identifier of the vault record holding
// the key material; overwriting a key assigns a fresh one, so material
// displaced by an overwrite is unreachable through the store.
type Info struct {
	Name         string
	Scope        keyspec.Scope
	Algorithm    keyspec.Algorithm
	Usage        keyspec.Usage
	ExportPolicy keyspec.ExportPolicy
	SKI          string
	UniqueName   string
	CreatedAt    time.Time
}

// Clone returns an independent copy of the record.
func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Store manages the metadata records of named keys. A Store instance holds
// the records of a single scope; the caller routes by scope.
type Store interface {
	// Import stores info, replacing any record with the same name. The
	// displaced record is returned so the caller can release the vault
	// material it points to.
	Import(info *Info) (*Info, error)

	Get(name string) (*Info, error)

	Exists(name string) (bool, error)

	// List returns all records sorted by name.
	List() ([]*Info, error)

	Delete(name string) error
}
