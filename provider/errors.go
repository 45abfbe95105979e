package provider

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/keyspec"
)

var (
	// ErrExportDenied is returned when a key's export policy forbids
	// handing out its material.
	ErrExportDenied = errors.New("provider: export denied by key policy")

	// ErrVerificationMismatch reports that material imported at creation
	// did not re-export to the same bytes.
	ErrVerificationMismatch = errors.New("provider: imported material did not survive the verification round trip")

	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("provider: handle is closed")
)

// CreateError wraps the cause of a failed key creation. The cause remains
// matchable through errors.Is and errors.As.
type CreateError struct {
	Name  string
	Scope keyspec.Scope
	Err   error
}

func (e *CreateError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("provider: creation of ephemeral %s key failed: %v", e.Scope, e.Err)
	}
	return fmt.Sprintf("provider: creation of key %q (%s) failed: %v", e.Name, e.Scope, e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}
