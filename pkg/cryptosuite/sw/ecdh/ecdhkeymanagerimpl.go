package ecdh

import (
	"crypto/rand"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/blob"
	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/common/cryptokey"
)

// ECDHKeyManagerImpl generates, imports and decodes keys for every
// supported ECDH curve.
type ECDHKeyManagerImpl struct{}

var _ cryptokey.KeyManager = (*ECDHKeyManagerImpl)(nil)

func NewECDHKeyManager() *ECDHKeyManagerImpl {
	return &ECDHKeyManagerImpl{}
}

func (mgr *ECDHKeyManagerImpl) Supports(a keyspec.Algorithm) bool {
	return a.Valid() && a.Family() == keyspec.FamilyECDH
}

// Generate creates a fresh key pair on the requested curve.
func (mgr *ECDHKeyManagerImpl) Generate(opts cryptokey.GenerateOpts) (cryptokey.Key, error) {
	if !mgr.Supports(opts.Algorithm) {
		return nil, errors.Errorf("ecdh: cannot generate %s keys", opts.Algorithm)
	}
	if err := checkUsage(opts.Usage); err != nil {
		return nil, err
	}
	if opts.Algorithm == keyspec.ECDHSecp256k1 {
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, errors.WithMessage(err, "ecdh: failed to generate key")
		}
		return newSecpKey(priv, opts.Usage), nil
	}
	curve, _ := stdCurve(opts.Algorithm)
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.WithMessage(err, "ecdh: failed to generate key")
	}
	return newStdKey(opts.Algorithm, priv, opts.Usage), nil
}

// Import builds a key from exchange material. For private blobs the scalar
// is authoritative: the public point is derived from it, so a blob carrying
// mismatched coordinates imports cleanly but will not re-export to the same
// bytes.
func (mgr *ECDHKeyManagerImpl) Import(material []byte, f blob.Format, usage keyspec.Usage) (cryptokey.Key, error) {
	if err := checkUsage(usage); err != nil {
		return nil, err
	}
	switch f {
	case blob.GenericPublic, blob.GenericPrivate:
		alg, inner, key, err := blob.DecodeGeneric(f, material)
		if err != nil {
			return nil, err
		}
		if alg.Family() != keyspec.FamilyECDH {
			return nil, errors.WithMessagef(blob.ErrUnsupportedFormat, "ecdh: cannot import %s material", alg)
		}
		return mgr.Import(key, inner, usage)
	case blob.ECCPublic:
		bk, err := blob.DecodeECC(f, material)
		if err != nil {
			return nil, err
		}
		return importPublic(bk, usage)
	case blob.ECCPrivate:
		bk, err := blob.DecodeECC(f, material)
		if err != nil {
			return nil, err
		}
		return importPrivate(bk, usage)
	default:
		return nil, errors.WithMessagef(blob.ErrUnsupportedFormat, "ecdh: cannot import %s", f)
	}
}

// Load rebuilds a key from its store encoding.
func (mgr *ECDHKeyManagerImpl) Load(encoded []byte) (cryptokey.Key, error) {
	k, err := fromBytes(encoded)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func importPublic(bk *blob.ECCKey, usage keyspec.Usage) (*ECDHKey, error) {
	if bk.Algorithm == keyspec.ECDHSecp256k1 {
		pub, err := secp256k1.ParsePubKey(uncompressedPoint(bk))
		if err != nil {
			return nil, errors.WithMessage(err, "ecdh: invalid public key")
		}
		return newSecpPublicKey(pub, usage), nil
	}
	curve, _ := stdCurve(bk.Algorithm)
	enc := bk.X
	if bk.Algorithm != keyspec.ECDHX25519 {
		enc = uncompressedPoint(bk)
	}
	pub, err := curve.NewPublicKey(enc)
	if err != nil {
		return nil, errors.WithMessage(err, "ecdh: invalid public key")
	}
	return newStdPublicKey(bk.Algorithm, pub, usage), nil
}

func importPrivate(bk *blob.ECCKey, usage keyspec.Usage) (*ECDHKey, error) {
	if bk.Algorithm == keyspec.ECDHSecp256k1 {
		priv, err := secpPrivFromBytes(bk.D)
		if err != nil {
			return nil, err
		}
		return newSecpKey(priv, usage), nil
	}
	curve, _ := stdCurve(bk.Algorithm)
	priv, err := curve.NewPrivateKey(bk.D)
	if err != nil {
		return nil, errors.WithMessage(err, "ecdh: invalid private scalar")
	}
	return newStdKey(bk.Algorithm, priv, usage), nil
}

// checkUsage requires a non-empty usage drawn from the known bits. Which
// operations the bits unlock is enforced per call.
func checkUsage(u keyspec.Usage) error {
	if u == 0 || !keyspec.AllUsages.Permits(u) {
		return errors.Errorf("ecdh: invalid usage %s", u)
	}
	return nil
}
