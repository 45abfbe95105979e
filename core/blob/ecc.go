package blob

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/keyspec"
)

const (
	magicECCPublic  uint32 = 0x45434B31 // "ECK1"
	magicECCPrivate uint32 = 0x45434B32 // "ECK2"

	eccHeaderLen = 4 + 4 + 4 // magic, curve, field length
)

type curveParams struct {
	id       uint32
	fieldLen int
	hasY     bool
}

var curves = map[keyspec.Algorithm]curveParams{
	keyspec.ECDHP256:      {1, 32, true},
	keyspec.ECDHP384:      {2, 48, true},
	keyspec.ECDHP521:      {3, 66, true},
	keyspec.ECDHX25519:    {4, 32, false},
	keyspec.ECDHSecp256k1: {5, 32, true},
}

func curveByID(id uint32) (keyspec.Algorithm, curveParams, bool) {
	for a, p := range curves {
		if p.id == id {
			return a, p, true
		}
	}
	return "", curveParams{}, false
}

// ECCKey is the decoded field set of the ECC blob layouts.
//
// X and Y hold the affine public coordinates, big-endian and padded to the
// curve's field width; curves without an exchanged Y coordinate (X25519)
// leave Y empty. D holds the private scalar for the private layout.
type ECCKey struct {
	Algorithm keyspec.Algorithm
	X         []byte
	Y         []byte
	D         []byte
}

func eccMagic(f Format) (uint32, bool) {
	switch f {
	case ECCPublic:
		return magicECCPublic, true
	case ECCPrivate:
		return magicECCPrivate, true
	}
	return 0, false
}

func eccBlobLen(f Format, p curveParams) int {
	n := eccHeaderLen + p.fieldLen
	if p.hasY {
		n += p.fieldLen
	}
	if f == ECCPrivate {
		n += p.fieldLen
	}
	return n
}

// EncodeECC serializes k in the given ECC layout.
func EncodeECC(f Format, k *ECCKey) ([]byte, error) {
	magic, ok := eccMagic(f)
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	p, ok := curves[k.Algorithm]
	if !ok {
		return nil, errors.Errorf("blob: %q is not an ECC algorithm", k.Algorithm)
	}
	if len(k.X) != p.fieldLen {
		return nil, errors.Errorf("blob: ECC X has %d bytes, want %d", len(k.X), p.fieldLen)
	}
	wantY := 0
	if p.hasY {
		wantY = p.fieldLen
	}
	if len(k.Y) != wantY {
		return nil, errors.Errorf("blob: ECC Y has %d bytes, want %d", len(k.Y), wantY)
	}
	if f == ECCPrivate && len(k.D) != p.fieldLen {
		return nil, errors.Errorf("blob: ECC D has %d bytes, want %d", len(k.D), p.fieldLen)
	}

	buf := make([]byte, 0, eccBlobLen(f, p))
	buf = binary.BigEndian.AppendUint32(buf, magic)
	buf = binary.BigEndian.AppendUint32(buf, p.id)
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.fieldLen))
	buf = append(buf, k.X...)
	if p.hasY {
		buf = append(buf, k.Y...)
	}
	if f == ECCPrivate {
		buf = append(buf, k.D...)
	}
	return buf, nil
}

// DecodeECC parses b as the given ECC layout. The returned fields do not
// alias b.
func DecodeECC(f Format, b []byte) (*ECCKey, error) {
	magic, ok := eccMagic(f)
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	if len(b) < eccHeaderLen {
		return nil, errors.WithMessage(ErrMalformed, "ECC blob too short")
	}
	if got := binary.BigEndian.Uint32(b); got != magic {
		return nil, errors.WithMessagef(ErrMalformed, "ECC blob magic %08x does not match format %s", got, f)
	}
	alg, p, ok := curveByID(binary.BigEndian.Uint32(b[4:]))
	if !ok {
		return nil, errors.WithMessagef(ErrMalformed, "unknown curve id %d", binary.BigEndian.Uint32(b[4:]))
	}
	if got := int(binary.BigEndian.Uint32(b[8:])); got != p.fieldLen {
		return nil, errors.WithMessagef(ErrMalformed, "field length %d, want %d for %s", got, p.fieldLen, alg)
	}
	if len(b) != eccBlobLen(f, p) {
		return nil, errors.WithMessagef(ErrMalformed, "ECC blob length %d, want %d", len(b), eccBlobLen(f, p))
	}

	k := &ECCKey{Algorithm: alg}
	o := eccHeaderLen
	k.X = take(b, o, p.fieldLen)
	o += p.fieldLen
	if p.hasY {
		k.Y = take(b, o, p.fieldLen)
		o += p.fieldLen
	}
	if f == ECCPrivate {
		k.D = take(b, o, p.fieldLen)
	}
	return k, nil
}
