package cryptokey

import (
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/blob"
	"github.com/kms-shield/csp-lib/core/keyspec"
)

// ErrUsageNotPermitted is returned when a key is asked to perform an
// operation outside its recorded usage.
var ErrUsageNotPermitted = errors.New("cryptokey: usage not permitted")

// Key is an in-memory key pair held by a cryptosuite.
type Key interface {
	// Bytes returns the store encoding of the key, as consumed by the
	// manager's Load.
	Bytes() ([]byte, error)

	// SKI returns the subject key identifier, the SHA-256 digest of the
	// canonical public blob.
	SKI() []byte

	// Private reports whether the private part is present.
	Private() bool

	Algorithm() keyspec.Algorithm

	Usage() keyspec.Usage

	// Export encodes the key in the given exchange format.
	Export(f blob.Format) ([]byte, error)

	// Close releases the private material. The key is unusable afterwards.
	Close() error
}

// Signer is a Key that produces signatures over digests.
type Signer interface {
	Key
	Sign(digest []byte) ([]byte, error)
}

// Agreer is a Key that computes a shared secret with a peer public key
// supplied as an ECCPublic blob.
type Agreer interface {
	Key
	Agree(peerPublic []byte) ([]byte, error)
}

// GenerateOpts carries the parameters of a key generation request.
type GenerateOpts struct {
	Algorithm keyspec.Algorithm
	Usage     keyspec.Usage

	// RSABits is the modulus size for RSA generation; 0 selects the
	// manager's default.
	RSABits int
}

// KeyManager creates, imports and decodes the keys of one algorithm family.
type KeyManager interface {
	Supports(a keyspec.Algorithm) bool

	Generate(opts GenerateOpts) (Key, error)

	// Import builds a key from exchange material in the given format.
	Import(material []byte, format blob.Format, usage keyspec.Usage) (Key, error)

	// Load rebuilds a key from its store encoding as produced by Bytes.
	Load(encoded []byte) (Key, error)
}
