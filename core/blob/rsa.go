package blob

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	magicRSAPublic      uint32 = 0x52535031 // "RSP1"
	magicRSAPrivate     uint32 = 0x52535032 // "RSP2"
	magicRSAFullPrivate uint32 = 0x52535033 // "RSP3"

	rsaHeaderLen = 4 + 4 + 8 // magic, bits, e
)

// RSAKey is the decoded field set of the RSA blob layouts.
//
// All fields are big-endian with widths fixed by Bits: N and D are
// (Bits+7)/8 bytes, the prime and CRT fields are (Bits/2+7)/8 bytes, E is
// 8 bytes. RSAPublic carries E and N; RSAPrivate adds the factors P and Q
// and deliberately omits the private exponent, which the importer derives;
// RSAFullPrivate carries everything including the CRT values.
type RSAKey struct {
	Bits int
	E    uint64
	N    []byte
	P    []byte
	Q    []byte
	Dp   []byte
	Dq   []byte
	Qinv []byte
	D    []byte
}

// ModulusLen returns the byte width of N and D.
func (k *RSAKey) ModulusLen() int {
	return (k.Bits + 7) / 8
}

// PrimeLen returns the byte width of P, Q and the CRT fields.
func (k *RSAKey) PrimeLen() int {
	return (k.Bits/2 + 7) / 8
}

func rsaMagic(f Format) (uint32, bool) {
	switch f {
	case RSAPublic:
		return magicRSAPublic, true
	case RSAPrivate:
		return magicRSAPrivate, true
	case RSAFullPrivate:
		return magicRSAFullPrivate, true
	}
	return 0, false
}

func rsaBlobLen(f Format, modLen, primeLen int) int {
	n := rsaHeaderLen + modLen
	if f != RSAPublic {
		n += 2 * primeLen
	}
	if f == RSAFullPrivate {
		n += 3*primeLen + modLen
	}
	return n
}

// EncodeRSA serializes k in the given RSA layout.
func EncodeRSA(f Format, k *RSAKey) ([]byte, error) {
	magic, ok := rsaMagic(f)
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	if k.Bits <= 0 || k.Bits%2 != 0 {
		return nil, errors.Errorf("blob: invalid RSA bit length %d", k.Bits)
	}
	modLen, primeLen := k.ModulusLen(), k.PrimeLen()
	fields := [][]byte{k.N}
	fieldLens := []int{modLen}
	if f != RSAPublic {
		fields = append(fields, k.P, k.Q)
		fieldLens = append(fieldLens, primeLen, primeLen)
	}
	if f == RSAFullPrivate {
		fields = append(fields, k.Dp, k.Dq, k.Qinv, k.D)
		fieldLens = append(fieldLens, primeLen, primeLen, primeLen, modLen)
	}
	for i, field := range fields {
		if len(field) != fieldLens[i] {
			return nil, errors.Errorf("blob: RSA field %d has %d bytes, want %d", i, len(field), fieldLens[i])
		}
	}

	buf := make([]byte, 0, rsaBlobLen(f, modLen, primeLen))
	buf = binary.BigEndian.AppendUint32(buf, magic)
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.Bits))
	buf = binary.BigEndian.AppendUint64(buf, k.E)
	for _, field := range fields {
		buf = append(buf, field...)
	}
	return buf, nil
}

// DecodeRSA parses b as the given RSA layout. The returned fields do not
// alias b.
func DecodeRSA(f Format, b []byte) (*RSAKey, error) {
	magic, ok := rsaMagic(f)
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	if len(b) < rsaHeaderLen {
		return nil, errors.WithMessage(ErrMalformed, "RSA blob too short")
	}
	if got := binary.BigEndian.Uint32(b); got != magic {
		return nil, errors.WithMessagef(ErrMalformed, "RSA blob magic %08x does not match format %s", got, f)
	}
	bits := int(binary.BigEndian.Uint32(b[4:]))
	if bits <= 0 || bits%2 != 0 {
		return nil, errors.WithMessagef(ErrMalformed, "invalid RSA bit length %d", bits)
	}
	k := &RSAKey{Bits: bits, E: binary.BigEndian.Uint64(b[8:])}
	modLen, primeLen := k.ModulusLen(), k.PrimeLen()
	if len(b) != rsaBlobLen(f, modLen, primeLen) {
		return nil, errors.WithMessagef(ErrMalformed, "RSA blob length %d, want %d", len(b), rsaBlobLen(f, modLen, primeLen))
	}

	o := rsaHeaderLen
	k.N = take(b, o, modLen)
	o += modLen
	if f != RSAPublic {
		k.P = take(b, o, primeLen)
		o += primeLen
		k.Q = take(b, o, primeLen)
		o += primeLen
	}
	if f == RSAFullPrivate {
		k.Dp = take(b, o, primeLen)
		o += primeLen
		k.Dq = take(b, o, primeLen)
		o += primeLen
		k.Qinv = take(b, o, primeLen)
		o += primeLen
		k.D = take(b, o, modLen)
	}
	return k, nil
}
