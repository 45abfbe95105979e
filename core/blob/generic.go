package blob

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/keyspec"
)

// genericEnvelope carries a family blob together with its algorithm and
// inner format so one opaque encoding can hold any supported key.
type genericEnvelope struct {
	Algorithm string `cbor:"algorithm"`
	Format    string `cbor:"format"`
	Key       []byte `cbor:"key"`
}

// EncodeGeneric wraps an inner family blob in a CBOR generic envelope.
// The privacy of the inner format must agree with f: GenericPrivate wraps
// private layouts, GenericPublic wraps public ones.
func EncodeGeneric(f Format, alg keyspec.Algorithm, inner Format, key []byte) ([]byte, error) {
	if f != GenericPublic && f != GenericPrivate {
		return nil, ErrUnsupportedFormat
	}
	if !alg.Valid() {
		return nil, errors.Errorf("blob: unknown algorithm %q", alg)
	}
	if inner == GenericPublic || inner == GenericPrivate || !inner.Matches(alg) {
		return nil, errors.WithMessagef(ErrUnsupportedFormat, "inner format %s for algorithm %s", inner, alg)
	}
	if inner.Private() != f.Private() {
		return nil, errors.WithMessagef(ErrUnsupportedFormat, "%s cannot wrap %s", f, inner)
	}
	if len(key) == 0 {
		return nil, errors.New("blob: empty inner blob")
	}
	return cbor.Marshal(&genericEnvelope{
		Algorithm: string(alg),
		Format:    string(inner),
		Key:       key,
	})
}

// DecodeGeneric unwraps a generic envelope, returning the algorithm, the
// inner format and the inner family blob.
func DecodeGeneric(f Format, b []byte) (keyspec.Algorithm, Format, []byte, error) {
	if f != GenericPublic && f != GenericPrivate {
		return "", "", nil, ErrUnsupportedFormat
	}
	var env genericEnvelope
	if err := cbor.Unmarshal(b, &env); err != nil {
		return "", "", nil, errors.WithMessage(ErrMalformed, err.Error())
	}
	alg := keyspec.Algorithm(env.Algorithm)
	inner := Format(env.Format)
	if !alg.Valid() {
		return "", "", nil, errors.WithMessagef(ErrMalformed, "unknown algorithm %q", env.Algorithm)
	}
	if inner == GenericPublic || inner == GenericPrivate || !inner.Valid() || !inner.Matches(alg) {
		return "", "", nil, errors.WithMessagef(ErrMalformed, "inner format %q for algorithm %s", env.Format, alg)
	}
	if inner.Private() != f.Private() {
		return "", "", nil, errors.WithMessagef(ErrUnsupportedFormat, "%s cannot wrap %s", f, inner)
	}
	if len(env.Key) == 0 {
		return "", "", nil, errors.WithMessage(ErrMalformed, "empty inner blob")
	}
	return alg, inner, env.Key, nil
}
