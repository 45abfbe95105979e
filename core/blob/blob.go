// Package blob defines the exchange formats for exported key material.
//
// The fixed-width layouts are canonical: decoding a blob and re-encoding it
// in the same format reproduces the input byte for byte. The generic formats
// are CBOR envelopes wrapping a family blob and are canonical only for blobs
// produced by this package.
package blob

import (
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/keyspec"
)

var (
	// ErrUnsupportedFormat is returned when a format does not match the
	// algorithm family of the key it is used with.
	ErrUnsupportedFormat = errors.New("blob: unsupported key blob format")

	// ErrMalformed is returned when a blob fails structural validation.
	ErrMalformed = errors.New("blob: malformed key blob")
)

// Format names an exchange encoding for key material.
type Format string

const (
	RSAPublic      Format = "RSAPublic"
	RSAPrivate     Format = "RSAPrivate"
	RSAFullPrivate Format = "RSAFullPrivate"
	ECCPublic      Format = "ECCPublic"
	ECCPrivate     Format = "ECCPrivate"
	GenericPublic  Format = "GenericPublic"
	GenericPrivate Format = "GenericPrivate"
)

func (f Format) String() string {
	return string(f)
}

func (f Format) Valid() bool {
	switch f {
	case RSAPublic, RSAPrivate, RSAFullPrivate, ECCPublic, ECCPrivate, GenericPublic, GenericPrivate:
		return true
	}
	return false
}

// Private reports whether the format carries private key material.
func (f Format) Private() bool {
	switch f {
	case RSAPrivate, RSAFullPrivate, ECCPrivate, GenericPrivate:
		return true
	}
	return false
}

// Matches reports whether the format can encode keys of algorithm a.
// The generic formats match every algorithm.
func (f Format) Matches(a keyspec.Algorithm) bool {
	switch f {
	case GenericPublic, GenericPrivate:
		return a.Valid()
	case RSAPublic, RSAPrivate, RSAFullPrivate:
		return a.Family() == keyspec.FamilyRSA
	case ECCPublic, ECCPrivate:
		return a.Family() == keyspec.FamilyECDH
	}
	return false
}

// ParseFormat resolves a format name as spelled by the Format constants.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if !f.Valid() {
		return "", errors.Errorf("blob: unknown format %q", s)
	}
	return f, nil
}

// take copies n bytes from b at offset o. Decoded blobs never alias their
// input.
func take(b []byte, o, n int) []byte {
	out := make([]byte, n)
	copy(out, b[o:o+n])
	return out
}
