package rsa

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"

	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/blob"
	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/common/cryptokey"
)

const (
	// DefaultBits is the modulus size used when a generation request does
	// not name one.
	DefaultBits = 2048

	minBits = 1024
	maxBits = 16384
)

type Config struct {
	// Bits replaces DefaultBits for generation requests that leave the
	// size unset.
	Bits int
}

// RSAKeyManagerImpl generates, imports and decodes RSA keys.
type RSAKeyManagerImpl struct {
	bits int
}

var _ cryptokey.KeyManager = (*RSAKeyManagerImpl)(nil)

func NewRSAKeyManager(cfg *Config) *RSAKeyManagerImpl {
	bits := DefaultBits
	if cfg != nil && cfg.Bits != 0 {
		bits = cfg.Bits
	}
	return &RSAKeyManagerImpl{bits: bits}
}

func (mgr *RSAKeyManagerImpl) Supports(a keyspec.Algorithm) bool {
	return a == keyspec.RSA
}

// Generate creates a fresh key pair with the requested modulus size.
func (mgr *RSAKeyManagerImpl) Generate(opts cryptokey.GenerateOpts) (cryptokey.Key, error) {
	if opts.Algorithm != keyspec.RSA {
		return nil, errors.Errorf("rsa: cannot generate %s keys", opts.Algorithm)
	}
	if err := checkUsage(opts.Usage); err != nil {
		return nil, err
	}
	bits := opts.RSABits
	if bits == 0 {
		bits = mgr.bits
	}
	if bits < minBits || bits > maxBits || bits%2 != 0 {
		return nil, errors.Errorf("rsa: invalid modulus size %d", bits)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.WithMessage(err, "rsa: failed to generate key")
	}
	return NewRSAKey(priv, opts.Usage), nil
}

// Import builds a key from exchange material. Compact private blobs carry
// only the factors; the private exponent and the CRT values are derived and
// cross-checked against the blob before the key is accepted.
func (mgr *RSAKeyManagerImpl) Import(material []byte, f blob.Format, usage keyspec.Usage) (cryptokey.Key, error) {
	if err := checkUsage(usage); err != nil {
		return nil, err
	}
	switch f {
	case blob.GenericPublic, blob.GenericPrivate:
		alg, inner, key, err := blob.DecodeGeneric(f, material)
		if err != nil {
			return nil, err
		}
		if alg != keyspec.RSA {
			return nil, errors.WithMessagef(blob.ErrUnsupportedFormat, "rsa: cannot import %s material", alg)
		}
		return mgr.Import(key, inner, usage)
	case blob.RSAPublic:
		bk, err := blob.DecodeRSA(f, material)
		if err != nil {
			return nil, err
		}
		return importPublic(bk, usage)
	case blob.RSAPrivate, blob.RSAFullPrivate:
		bk, err := blob.DecodeRSA(f, material)
		if err != nil {
			return nil, err
		}
		return importPrivate(f, bk, usage)
	default:
		return nil, errors.WithMessagef(blob.ErrUnsupportedFormat, "rsa: cannot import %s", f)
	}
}

// Load rebuilds a key from its store encoding.
func (mgr *RSAKeyManagerImpl) Load(encoded []byte) (cryptokey.Key, error) {
	k, err := fromBytes(encoded)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func importPublic(bk *blob.RSAKey, usage keyspec.Usage) (*RSAKey, error) {
	if err := checkExponent(bk.E); err != nil {
		return nil, err
	}
	n := natFromBytes(bk.N).Big()
	if n.BitLen() == 0 {
		return nil, errors.WithMessage(blob.ErrMalformed, "rsa: zero modulus")
	}
	if n.BitLen() > bk.Bits {
		return nil, errors.WithMessagef(blob.ErrMalformed, "rsa: modulus wider than declared %d bits", bk.Bits)
	}
	pub := &rsa.PublicKey{N: n, E: int(bk.E)}
	return NewRSAPublicKey(pub, bk.Bits, usage), nil
}

func importPrivate(f blob.Format, bk *blob.RSAKey, usage keyspec.Usage) (*RSAKey, error) {
	if err := checkExponent(bk.E); err != nil {
		return nil, err
	}
	p := natFromBytes(bk.P)
	q := natFromBytes(bk.Q)
	derived, err := deriveFromFactors(bk.E, p, q)
	if err != nil {
		return nil, err
	}
	if !natEq(derived.N, natFromBytes(bk.N)) {
		return nil, errors.WithMessage(blob.ErrMalformed, "rsa: modulus does not match factors")
	}
	if f == blob.RSAFullPrivate {
		if !natEq(derived.D, natFromBytes(bk.D)) ||
			!natEq(derived.Dp, natFromBytes(bk.Dp)) ||
			!natEq(derived.Dq, natFromBytes(bk.Dq)) ||
			!natEq(derived.Qinv, natFromBytes(bk.Qinv)) {
			return nil, errors.WithMessage(blob.ErrMalformed, "rsa: private exponents do not match factors")
		}
	}

	n := derived.N.Big()
	if n.BitLen() > bk.Bits {
		return nil, errors.WithMessagef(blob.ErrMalformed, "rsa: modulus wider than declared %d bits", bk.Bits)
	}
	priv := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(bk.E)},
		D:         derived.D.Big(),
		Primes:    []*big.Int{p.Big(), q.Big()},
	}
	if err := priv.Validate(); err != nil {
		return nil, errors.WithMessage(err, "rsa: imported key failed validation")
	}
	priv.Precompute()
	return &RSAKey{priv: priv, pub: &priv.PublicKey, bits: bk.Bits, usage: usage}, nil
}

// checkUsage requires a non-empty usage drawn from the known bits. Which
// operations the bits unlock is enforced per call.
func checkUsage(u keyspec.Usage) error {
	if u == 0 || !keyspec.AllUsages.Permits(u) {
		return errors.Errorf("rsa: invalid usage %s", u)
	}
	return nil
}
