package rsa

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"math"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/blob"
	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/common/cryptokey"
)

// RSAKey is an RSA key pair, or its public half, with a recorded usage.
// The modulus bit length is carried explicitly so exported blobs keep the
// width the key was created or imported with.
type RSAKey struct {
	priv  *rsa.PrivateKey
	pub   *rsa.PublicKey
	bits  int
	usage keyspec.Usage
}

var _ cryptokey.Signer = (*RSAKey)(nil)

type rawRSAKey struct {
	Bits  uint32 `cbor:"bits"`
	Usage uint8  `cbor:"usage"`
	E     uint64 `cbor:"e"`
	N     []byte `cbor:"n"`
	D     []byte `cbor:"d,omitempty"`
	P     []byte `cbor:"p,omitempty"`
	Q     []byte `cbor:"q,omitempty"`
}

// NewRSAKey wraps a freshly generated private key.
func NewRSAKey(priv *rsa.PrivateKey, usage keyspec.Usage) *RSAKey {
	priv.Precompute()
	return &RSAKey{priv: priv, pub: &priv.PublicKey, bits: priv.N.BitLen(), usage: usage}
}

// NewRSAPublicKey wraps public material only. bits fixes the blob width and
// may exceed the bit length of the modulus value.
func NewRSAPublicKey(pub *rsa.PublicKey, bits int, usage keyspec.Usage) *RSAKey {
	return &RSAKey{pub: pub, bits: bits, usage: usage}
}

// Bytes returns the store encoding of the key.
func (k *RSAKey) Bytes() ([]byte, error) {
	if k.pub == nil {
		return nil, errors.New("rsa: key is closed")
	}
	raw := &rawRSAKey{
		Bits:  uint32(k.bits),
		Usage: uint8(k.usage),
		E:     uint64(k.pub.E),
		N:     k.pub.N.Bytes(),
	}
	if k.priv != nil {
		if len(k.priv.Primes) != 2 {
			return nil, errors.New("rsa: multi-prime keys are not supported")
		}
		raw.D = k.priv.D.Bytes()
		raw.P = k.priv.Primes[0].Bytes()
		raw.Q = k.priv.Primes[1].Bytes()
	}
	data, err := cbor.Marshal(raw)
	if err != nil {
		return nil, errors.WithMessage(err, "rsa: failed to encode key")
	}
	return data, nil
}

// fromBytes rebuilds a key from its store encoding.
func fromBytes(data []byte) (*RSAKey, error) {
	var raw rawRSAKey
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, errors.WithMessage(err, "rsa: failed to decode key")
	}
	if raw.Bits == 0 || raw.Bits%2 != 0 {
		return nil, errors.Errorf("rsa: invalid stored bit length %d", raw.Bits)
	}
	if err := checkExponent(raw.E); err != nil {
		return nil, err
	}
	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(raw.N), E: int(raw.E)}
	k := &RSAKey{pub: pub, bits: int(raw.Bits), usage: keyspec.Usage(raw.Usage)}
	if len(raw.D) > 0 {
		k.priv = &rsa.PrivateKey{
			PublicKey: *pub,
			D:         new(big.Int).SetBytes(raw.D),
			Primes: []*big.Int{
				new(big.Int).SetBytes(raw.P),
				new(big.Int).SetBytes(raw.Q),
			},
		}
		k.priv.Precompute()
		k.pub = &k.priv.PublicKey
	}
	return k, nil
}

// SKI returns the SHA-256 digest of the canonical public blob.
func (k *RSAKey) SKI() []byte {
	pb, err := k.publicBlob()
	if err != nil {
		return nil
	}
	ski := sha256.Sum256(pb)
	return ski[:]
}

// Private reports whether the private part is present.
func (k *RSAKey) Private() bool {
	return k.priv != nil
}

func (k *RSAKey) Algorithm() keyspec.Algorithm {
	return keyspec.RSA
}

func (k *RSAKey) Usage() keyspec.Usage {
	return k.usage
}

// Bits returns the modulus bit length the key was created with.
func (k *RSAKey) Bits() int {
	return k.bits
}

// PublicKey returns the public half as a key of its own.
func (k *RSAKey) PublicKey() *RSAKey {
	if k.pub == nil {
		return &RSAKey{bits: k.bits, usage: k.usage}
	}
	pub := *k.pub
	return &RSAKey{pub: &pub, bits: k.bits, usage: k.usage}
}

// Export encodes the key in the given exchange format.
func (k *RSAKey) Export(f blob.Format) ([]byte, error) {
	if k.pub == nil {
		return nil, errors.New("rsa: key is closed")
	}
	switch f {
	case blob.RSAPublic:
		return k.publicBlob()
	case blob.RSAPrivate, blob.RSAFullPrivate:
		bk, err := k.privateFields(f)
		if err != nil {
			return nil, err
		}
		return blob.EncodeRSA(f, bk)
	case blob.GenericPublic:
		inner, err := k.publicBlob()
		if err != nil {
			return nil, err
		}
		return blob.EncodeGeneric(f, keyspec.RSA, blob.RSAPublic, inner)
	case blob.GenericPrivate:
		bk, err := k.privateFields(blob.RSAFullPrivate)
		if err != nil {
			return nil, err
		}
		inner, err := blob.EncodeRSA(blob.RSAFullPrivate, bk)
		if err != nil {
			return nil, err
		}
		return blob.EncodeGeneric(f, keyspec.RSA, blob.RSAFullPrivate, inner)
	default:
		return nil, errors.WithMessagef(blob.ErrUnsupportedFormat, "rsa: cannot export %s", f)
	}
}

func (k *RSAKey) publicBlob() ([]byte, error) {
	if k.pub == nil {
		return nil, errors.New("rsa: key is closed")
	}
	bk := &blob.RSAKey{Bits: k.bits, E: uint64(k.pub.E)}
	var err error
	if bk.N, err = fillField(k.pub.N, bk.ModulusLen()); err != nil {
		return nil, errors.WithMessage(err, "rsa: modulus")
	}
	return blob.EncodeRSA(blob.RSAPublic, bk)
}

func (k *RSAKey) privateFields(f blob.Format) (*blob.RSAKey, error) {
	if k.priv == nil {
		return nil, errors.New("rsa: key holds no private material")
	}
	if len(k.priv.Primes) != 2 {
		return nil, errors.New("rsa: multi-prime keys are not supported")
	}
	bk := &blob.RSAKey{Bits: k.bits, E: uint64(k.pub.E)}
	modLen, primeLen := bk.ModulusLen(), bk.PrimeLen()
	var err error
	if bk.N, err = fillField(k.pub.N, modLen); err != nil {
		return nil, errors.WithMessage(err, "rsa: modulus")
	}
	if bk.P, err = fillField(k.priv.Primes[0], primeLen); err != nil {
		return nil, errors.WithMessage(err, "rsa: prime p")
	}
	if bk.Q, err = fillField(k.priv.Primes[1], primeLen); err != nil {
		return nil, errors.WithMessage(err, "rsa: prime q")
	}
	if f != blob.RSAFullPrivate {
		return bk, nil
	}
	if bk.Dp, err = fillField(k.priv.Precomputed.Dp, primeLen); err != nil {
		return nil, errors.WithMessage(err, "rsa: exponent dp")
	}
	if bk.Dq, err = fillField(k.priv.Precomputed.Dq, primeLen); err != nil {
		return nil, errors.WithMessage(err, "rsa: exponent dq")
	}
	if bk.Qinv, err = fillField(k.priv.Precomputed.Qinv, primeLen); err != nil {
		return nil, errors.WithMessage(err, "rsa: coefficient qinv")
	}
	if bk.D, err = fillField(k.priv.D, modLen); err != nil {
		return nil, errors.WithMessage(err, "rsa: exponent d")
	}
	return bk, nil
}

// Sign produces a PKCS #1 v1.5 signature over a SHA-256 digest.
func (k *RSAKey) Sign(digest []byte) ([]byte, error) {
	if !k.usage.Permits(keyspec.Signing) {
		return nil, errors.WithMessage(cryptokey.ErrUsageNotPermitted, "rsa: sign")
	}
	if k.priv == nil {
		return nil, errors.New("rsa: key holds no private material")
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.priv, crypto.SHA256, digest)
	if err != nil {
		return nil, errors.WithMessage(err, "rsa: failed to sign digest")
	}
	return sig, nil
}

// Close zeroizes and drops the key material. The key is unusable afterwards.
func (k *RSAKey) Close() error {
	if k.priv != nil {
		k.priv.D.SetInt64(0)
		for _, p := range k.priv.Primes {
			p.SetInt64(0)
		}
		k.priv = nil
	}
	k.pub = nil
	return nil
}

// fillField writes v big-endian into exactly width bytes.
func fillField(v *big.Int, width int) ([]byte, error) {
	if v == nil {
		return nil, errors.New("missing field value")
	}
	if v.BitLen() > width*8 {
		return nil, errors.Errorf("value needs %d bits, field holds %d", v.BitLen(), width*8)
	}
	return v.FillBytes(make([]byte, width)), nil
}

// checkExponent bounds the public exponent to the odd values crypto/rsa
// accepts.
func checkExponent(e uint64) error {
	if e < 3 || e > math.MaxInt32 || e%2 == 0 {
		return errors.Errorf("rsa: public exponent %d out of range", e)
	}
	return nil
}
