package accessctl

import (
	"os"

	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/pkg/common/accessctl"
)

// ErrDenyNotSupported is returned for Deny rules: POSIX permission bits
// cannot express deny entries.
var ErrDenyNotSupported = errors.New("accessctl: deny rules are not supported on POSIX")

// PosixController maps rules onto the permission bits of the target path.
// Grant adds the bits for the principal, Revoke removes them. Read on a
// directory includes traversal.
type PosixController struct{}

var _ accessctl.Controller = (*PosixController)(nil)

func NewPosixController() *PosixController {
	return &PosixController{}
}

func (c *PosixController) Grant(path string, p accessctl.Principal, r accessctl.Rights, a accessctl.Access) error {
	if a == accessctl.Deny {
		return ErrDenyNotSupported
	}
	return chmodBits(path, p, r, true)
}

func (c *PosixController) Revoke(path string, p accessctl.Principal, r accessctl.Rights, a accessctl.Access) error {
	if a == accessctl.Deny {
		return ErrDenyNotSupported
	}
	return chmodBits(path, p, r, false)
}

func chmodBits(path string, p accessctl.Principal, r accessctl.Rights, add bool) error {
	fi, err := os.Stat(path)
	if err != nil {
		return errors.WithMessage(err, "accessctl: failed to stat path")
	}
	m := bits(p, r, fi.IsDir())
	mode := fi.Mode().Perm()
	if add {
		mode |= m
	} else {
		mode &^= m
	}
	if err := os.Chmod(path, mode); err != nil {
		return errors.WithMessage(err, "accessctl: failed to change mode")
	}
	return nil
}

func bits(p accessctl.Principal, r accessctl.Rights, dir bool) os.FileMode {
	var m os.FileMode
	if r&accessctl.Read != 0 {
		m |= 0o4
		if dir {
			m |= 0o1
		}
	}
	if r&accessctl.Write != 0 {
		m |= 0o2
	}
	switch p {
	case accessctl.Owner:
		m <<= 6
	case accessctl.Group:
		m <<= 3
	}
	return m
}
