package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum("vault-record", []byte("hello"), []byte("world"))
	b := Sum("vault-record", []byte("hello"), []byte("world"))
	assert.Equal(t, a, b)
	assert.Len(t, a, Size)
}

func TestSumDomainSeparation(t *testing.T) {
	a := Sum("vault-record", []byte("hello"))
	b := Sum("info-record", []byte("hello"))
	assert.NotEqual(t, a, b)
}

func TestSumChunkFraming(t *testing.T) {
	// "ab" + "c" must not collide with "a" + "bc".
	a := Sum("d", []byte("ab"), []byte("c"))
	b := Sum("d", []byte("a"), []byte("bc"))
	assert.NotEqual(t, a, b)
}

func TestVerify(t *testing.T) {
	sum := Sum("d", []byte("payload"))
	assert.True(t, Verify("d", sum, []byte("payload")))
	assert.False(t, Verify("d", sum, []byte("tampered")))
	assert.False(t, Verify("other", sum, []byte("payload")))
	assert.False(t, Verify("d", sum[:Size-1], []byte("payload")))
}

func TestHasherChaining(t *testing.T) {
	h := New("d").Write([]byte("one")).Write([]byte("two"))
	assert.Equal(t, Sum("d", []byte("one"), []byte("two")), h.Sum())
}
