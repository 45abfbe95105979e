package ecdh

import (
	"crypto/ecdh"
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/blob"
	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/common/cryptokey"
)

// ECDHKey is a key-agreement key pair, or its public half, on one of the
// supported curves. The NIST curves and X25519 ride on crypto/ecdh;
// secp256k1 is carried by dcrec.
type ECDHKey struct {
	alg   keyspec.Algorithm
	usage keyspec.Usage

	priv *ecdh.PrivateKey
	pub  *ecdh.PublicKey

	kPriv *secp256k1.PrivateKey
	kPub  *secp256k1.PublicKey
}

var _ cryptokey.Agreer = (*ECDHKey)(nil)

type rawECDHKey struct {
	Algorithm string `cbor:"algorithm"`
	Usage     uint8  `cbor:"usage"`
	Pub       []byte `cbor:"pub"`
	Priv      []byte `cbor:"priv,omitempty"`
}

// stdCurve maps an algorithm to its crypto/ecdh curve. secp256k1 has no
// entry and is handled by dcrec throughout.
func stdCurve(a keyspec.Algorithm) (ecdh.Curve, bool) {
	switch a {
	case keyspec.ECDHP256:
		return ecdh.P256(), true
	case keyspec.ECDHP384:
		return ecdh.P384(), true
	case keyspec.ECDHP521:
		return ecdh.P521(), true
	case keyspec.ECDHX25519:
		return ecdh.X25519(), true
	}
	return nil, false
}

func newStdKey(alg keyspec.Algorithm, priv *ecdh.PrivateKey, usage keyspec.Usage) *ECDHKey {
	return &ECDHKey{alg: alg, usage: usage, priv: priv, pub: priv.PublicKey()}
}

func newStdPublicKey(alg keyspec.Algorithm, pub *ecdh.PublicKey, usage keyspec.Usage) *ECDHKey {
	return &ECDHKey{alg: alg, usage: usage, pub: pub}
}

func newSecpKey(priv *secp256k1.PrivateKey, usage keyspec.Usage) *ECDHKey {
	return &ECDHKey{alg: keyspec.ECDHSecp256k1, usage: usage, kPriv: priv, kPub: priv.PubKey()}
}

func newSecpPublicKey(pub *secp256k1.PublicKey, usage keyspec.Usage) *ECDHKey {
	return &ECDHKey{alg: keyspec.ECDHSecp256k1, usage: usage, kPub: pub}
}

// Bytes returns the store encoding of the key.
func (k *ECDHKey) Bytes() ([]byte, error) {
	if k.pub == nil && k.kPub == nil {
		return nil, errors.New("ecdh: key is closed")
	}
	raw := &rawECDHKey{
		Algorithm: string(k.alg),
		Usage:     uint8(k.usage),
		Pub:       k.pubBytes(),
	}
	if k.Private() {
		raw.Priv = k.privBytes()
	}
	data, err := cbor.Marshal(raw)
	if err != nil {
		return nil, errors.WithMessage(err, "ecdh: failed to encode key")
	}
	return data, nil
}

// fromBytes rebuilds a key from its store encoding.
func fromBytes(data []byte) (*ECDHKey, error) {
	var raw rawECDHKey
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, errors.WithMessage(err, "ecdh: failed to decode key")
	}
	alg := keyspec.Algorithm(raw.Algorithm)
	if !alg.Valid() || alg.Family() != keyspec.FamilyECDH {
		return nil, errors.Errorf("ecdh: invalid stored algorithm %q", raw.Algorithm)
	}
	usage := keyspec.Usage(raw.Usage)

	if alg == keyspec.ECDHSecp256k1 {
		if len(raw.Priv) > 0 {
			priv, err := secpPrivFromBytes(raw.Priv)
			if err != nil {
				return nil, err
			}
			return newSecpKey(priv, usage), nil
		}
		pub, err := secp256k1.ParsePubKey(raw.Pub)
		if err != nil {
			return nil, errors.WithMessage(err, "ecdh: invalid stored public key")
		}
		return newSecpPublicKey(pub, usage), nil
	}

	curve, _ := stdCurve(alg)
	if len(raw.Priv) > 0 {
		priv, err := curve.NewPrivateKey(raw.Priv)
		if err != nil {
			return nil, errors.WithMessage(err, "ecdh: invalid stored private key")
		}
		return newStdKey(alg, priv, usage), nil
	}
	pub, err := curve.NewPublicKey(raw.Pub)
	if err != nil {
		return nil, errors.WithMessage(err, "ecdh: invalid stored public key")
	}
	return newStdPublicKey(alg, pub, usage), nil
}

// SKI returns the SHA-256 digest of the canonical public blob.
func (k *ECDHKey) SKI() []byte {
	pb, err := k.publicBlob()
	if err != nil {
		return nil
	}
	ski := sha256.Sum256(pb)
	return ski[:]
}

// Private reports whether the private scalar is present.
func (k *ECDHKey) Private() bool {
	return k.priv != nil || k.kPriv != nil
}

func (k *ECDHKey) Algorithm() keyspec.Algorithm {
	return k.alg
}

func (k *ECDHKey) Usage() keyspec.Usage {
	return k.usage
}

// PublicKey returns the public half as a key of its own.
func (k *ECDHKey) PublicKey() *ECDHKey {
	return &ECDHKey{alg: k.alg, usage: k.usage, pub: k.pub, kPub: k.kPub}
}

// Export encodes the key in the given exchange format.
func (k *ECDHKey) Export(f blob.Format) ([]byte, error) {
	if k.pub == nil && k.kPub == nil {
		return nil, errors.New("ecdh: key is closed")
	}
	switch f {
	case blob.ECCPublic:
		return k.publicBlob()
	case blob.ECCPrivate:
		bk, err := k.privateFields()
		if err != nil {
			return nil, err
		}
		return blob.EncodeECC(f, bk)
	case blob.GenericPublic:
		inner, err := k.publicBlob()
		if err != nil {
			return nil, err
		}
		return blob.EncodeGeneric(f, k.alg, blob.ECCPublic, inner)
	case blob.GenericPrivate:
		bk, err := k.privateFields()
		if err != nil {
			return nil, err
		}
		inner, err := blob.EncodeECC(blob.ECCPrivate, bk)
		if err != nil {
			return nil, err
		}
		return blob.EncodeGeneric(f, k.alg, blob.ECCPrivate, inner)
	default:
		return nil, errors.WithMessagef(blob.ErrUnsupportedFormat, "ecdh: cannot export %s", f)
	}
}

func (k *ECDHKey) publicBlob() ([]byte, error) {
	x, y, err := k.coords()
	if err != nil {
		return nil, err
	}
	return blob.EncodeECC(blob.ECCPublic, &blob.ECCKey{Algorithm: k.alg, X: x, Y: y})
}

func (k *ECDHKey) privateFields() (*blob.ECCKey, error) {
	if !k.Private() {
		return nil, errors.New("ecdh: key holds no private material")
	}
	x, y, err := k.coords()
	if err != nil {
		return nil, err
	}
	return &blob.ECCKey{Algorithm: k.alg, X: x, Y: y, D: k.privBytes()}, nil
}

// coords splits the public encoding into the affine coordinates, padded to
// the curve's field width. X25519 exchanges only X.
func (k *ECDHKey) coords() (x, y []byte, err error) {
	if k.pub == nil && k.kPub == nil {
		return nil, nil, errors.New("ecdh: key is closed")
	}
	b := k.pubBytes()
	if k.alg == keyspec.ECDHX25519 {
		return b, nil, nil
	}
	if len(b) < 3 || b[0] != 0x04 || len(b)%2 != 1 {
		return nil, nil, errors.Errorf("ecdh: unexpected point encoding of %d bytes", len(b))
	}
	fieldLen := (len(b) - 1) / 2
	return b[1 : 1+fieldLen], b[1+fieldLen:], nil
}

func (k *ECDHKey) pubBytes() []byte {
	if k.kPub != nil {
		return k.kPub.SerializeUncompressed()
	}
	return k.pub.Bytes()
}

func (k *ECDHKey) privBytes() []byte {
	if k.kPriv != nil {
		return k.kPriv.Serialize()
	}
	return k.priv.Bytes()
}

// Agree computes the shared secret with a peer public key supplied as an
// ECCPublic blob on the same curve. The secret is the affine X coordinate
// of the agreed point, or the raw X25519 output.
func (k *ECDHKey) Agree(peerPublic []byte) ([]byte, error) {
	if !k.usage.Permits(keyspec.KeyAgreement) {
		return nil, errors.WithMessage(cryptokey.ErrUsageNotPermitted, "ecdh: agree")
	}
	if !k.Private() {
		return nil, errors.New("ecdh: key holds no private material")
	}
	bk, err := blob.DecodeECC(blob.ECCPublic, peerPublic)
	if err != nil {
		return nil, err
	}
	if bk.Algorithm != k.alg {
		return nil, errors.WithMessagef(blob.ErrUnsupportedFormat, "ecdh: peer key is %s, want %s", bk.Algorithm, k.alg)
	}

	if k.kPriv != nil {
		peer, err := secp256k1.ParsePubKey(uncompressedPoint(bk))
		if err != nil {
			return nil, errors.WithMessage(err, "ecdh: invalid peer public key")
		}
		return secp256k1.GenerateSharedSecret(k.kPriv, peer), nil
	}

	curve, _ := stdCurve(k.alg)
	enc := bk.X
	if k.alg != keyspec.ECDHX25519 {
		enc = uncompressedPoint(bk)
	}
	peer, err := curve.NewPublicKey(enc)
	if err != nil {
		return nil, errors.WithMessage(err, "ecdh: invalid peer public key")
	}
	shared, err := k.priv.ECDH(peer)
	if err != nil {
		return nil, errors.WithMessage(err, "ecdh: failed to agree")
	}
	return shared, nil
}

// Close zeroizes what the backends allow and drops the key material. The
// key is unusable afterwards.
func (k *ECDHKey) Close() error {
	if k.kPriv != nil {
		k.kPriv.Zero()
		k.kPriv = nil
	}
	k.priv = nil
	k.pub = nil
	k.kPub = nil
	return nil
}

func uncompressedPoint(bk *blob.ECCKey) []byte {
	out := make([]byte, 0, 1+len(bk.X)+len(bk.Y))
	out = append(out, 0x04)
	out = append(out, bk.X...)
	return append(out, bk.Y...)
}

func secpPrivFromBytes(d []byte) (*secp256k1.PrivateKey, error) {
	var s secp256k1.ModNScalar
	overflow := s.SetByteSlice(d)
	if overflow || s.IsZero() {
		return nil, errors.New("ecdh: private scalar out of range")
	}
	priv := secp256k1.NewPrivateKey(&s)
	s.Zero()
	return priv, nil
}
