// Package checksum computes domain-separated BLAKE3 digests for stored key
// records.
package checksum

import (
	"crypto/subtle"
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Size is the digest length in bytes.
const Size = 32

// Hasher accumulates length-framed, domain-separated writes. Every chunk is
// written as (<domain_size><domain><data_size><data>) so adjacent writes
// cannot collide.
type Hasher struct {
	h *blake3.Hasher
}

// New returns a Hasher seeded with the given domain tag.
func New(domain string) *Hasher {
	h := &Hasher{h: blake3.New()}
	h.writeFramed("CSP-BLAKE", []byte(domain))
	return h
}

// Write adds chunks to the hash state and returns the Hasher for chaining.
func (h *Hasher) Write(chunks ...[]byte) *Hasher {
	for _, c := range chunks {
		h.writeFramed("chunk", c)
	}
	return h
}

func (h *Hasher) writeFramed(domain string, data []byte) {
	var sizeBuf [8]byte

	_, _ = h.h.WriteString("(")
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(len(domain)))
	_, _ = h.h.Write(sizeBuf[:])
	_, _ = h.h.WriteString(domain)
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(len(data)))
	_, _ = h.h.Write(sizeBuf[:])
	_, _ = h.h.Write(data)
	_, _ = h.h.WriteString(")")
}

// Sum returns a Size-byte digest of the current state.
func (h *Hasher) Sum() []byte {
	return h.h.Sum(nil)
}

// Sum computes the digest of data under the given domain tag.
func Sum(domain string, data ...[]byte) []byte {
	return New(domain).Write(data...).Sum()
}

// Verify reports whether sum matches the digest of data under domain.
// The comparison is constant time.
func Verify(domain string, sum []byte, data ...[]byte) bool {
	if len(sum) != Size {
		return false
	}
	return subtle.ConstantTimeCompare(Sum(domain, data...), sum) == 1
}
