package ecdh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kms-shield/csp-lib/core/blob"
	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/common/cryptokey"
)

var testCurves = []struct {
	alg       keyspec.Algorithm
	secretLen int
}{
	{keyspec.ECDHP256, 32},
	{keyspec.ECDHP384, 48},
	{keyspec.ECDHP521, 66},
	{keyspec.ECDHX25519, 32},
	{keyspec.ECDHSecp256k1, 32},
}

func genTestKey(t *testing.T, alg keyspec.Algorithm, usage keyspec.Usage) *ECDHKey {
	t.Helper()
	k, err := NewECDHKeyManager().Generate(cryptokey.GenerateOpts{Algorithm: alg, Usage: usage})
	require.NoError(t, err)
	return k.(*ECDHKey)
}

func TestGenerateAndLoad(t *testing.T) {
	mgr := NewECDHKeyManager()
	for _, tc := range testCurves {
		t.Run(string(tc.alg), func(t *testing.T) {
			k := genTestKey(t, tc.alg, keyspec.KeyAgreement)
			assert.True(t, k.Private())
			assert.Equal(t, tc.alg, k.Algorithm())
			assert.Equal(t, keyspec.KeyAgreement, k.Usage())
			require.Len(t, k.SKI(), 32)

			encoded, err := k.Bytes()
			require.NoError(t, err)
			loaded, err := mgr.Load(encoded)
			require.NoError(t, err)
			assert.True(t, loaded.Private())
			assert.Equal(t, k.SKI(), loaded.SKI())
			assert.Equal(t, keyspec.KeyAgreement, loaded.Usage())
		})
	}
}

func TestAgreeBothDirections(t *testing.T) {
	for _, tc := range testCurves {
		t.Run(string(tc.alg), func(t *testing.T) {
			a := genTestKey(t, tc.alg, keyspec.KeyAgreement)
			b := genTestKey(t, tc.alg, keyspec.KeyAgreement)

			pubA, err := a.Export(blob.ECCPublic)
			require.NoError(t, err)
			pubB, err := b.Export(blob.ECCPublic)
			require.NoError(t, err)

			s1, err := a.Agree(pubB)
			require.NoError(t, err)
			s2, err := b.Agree(pubA)
			require.NoError(t, err)

			assert.Equal(t, s1, s2)
			assert.Len(t, s1, tc.secretLen)
		})
	}
}

func TestAgreeCurveMismatch(t *testing.T) {
	a := genTestKey(t, keyspec.ECDHP256, keyspec.KeyAgreement)
	b := genTestKey(t, keyspec.ECDHP384, keyspec.KeyAgreement)

	pubB, err := b.Export(blob.ECCPublic)
	require.NoError(t, err)
	_, err = a.Agree(pubB)
	assert.ErrorIs(t, err, blob.ErrUnsupportedFormat)
}

func TestAgreeUsageEnforcement(t *testing.T) {
	a := genTestKey(t, keyspec.ECDHP256, keyspec.Signing)
	b := genTestKey(t, keyspec.ECDHP256, keyspec.KeyAgreement)

	pubB, err := b.Export(blob.ECCPublic)
	require.NoError(t, err)
	_, err = a.Agree(pubB)
	assert.ErrorIs(t, err, cryptokey.ErrUsageNotPermitted)
}

func TestExportImportRoundTrip(t *testing.T) {
	mgr := NewECDHKeyManager()
	for _, tc := range testCurves {
		t.Run(string(tc.alg), func(t *testing.T) {
			k := genTestKey(t, tc.alg, keyspec.KeyAgreement)

			m, err := k.Export(blob.ECCPrivate)
			require.NoError(t, err)
			imported, err := mgr.Import(m, blob.ECCPrivate, keyspec.KeyAgreement)
			require.NoError(t, err)
			assert.True(t, imported.Private())
			assert.Equal(t, k.SKI(), imported.SKI())
			again, err := imported.Export(blob.ECCPrivate)
			require.NoError(t, err)
			assert.Equal(t, m, again)

			pm, err := k.Export(blob.ECCPublic)
			require.NoError(t, err)
			pimported, err := mgr.Import(pm, blob.ECCPublic, keyspec.KeyAgreement)
			require.NoError(t, err)
			assert.False(t, pimported.Private())
			pagain, err := pimported.Export(blob.ECCPublic)
			require.NoError(t, err)
			assert.Equal(t, pm, pagain)
		})
	}
}

func TestImportScalarIsAuthoritative(t *testing.T) {
	mgr := NewECDHKeyManager()
	k := genTestKey(t, keyspec.ECDHP256, keyspec.KeyAgreement)

	m, err := k.Export(blob.ECCPrivate)
	require.NoError(t, err)
	bk, err := blob.DecodeECC(blob.ECCPrivate, m)
	require.NoError(t, err)
	bk.X[7] ^= 0x01
	damaged, err := blob.EncodeECC(blob.ECCPrivate, bk)
	require.NoError(t, err)

	// The import accepts the blob; the public point is rebuilt from the
	// scalar, so the re-export matches the original, not the damaged copy.
	imported, err := mgr.Import(damaged, blob.ECCPrivate, keyspec.KeyAgreement)
	require.NoError(t, err)
	again, err := imported.Export(blob.ECCPrivate)
	require.NoError(t, err)
	assert.Equal(t, m, again)
	assert.NotEqual(t, damaged, again)
}

func TestImportGeneric(t *testing.T) {
	mgr := NewECDHKeyManager()
	k := genTestKey(t, keyspec.ECDHSecp256k1, keyspec.KeyAgreement)

	m, err := k.Export(blob.GenericPrivate)
	require.NoError(t, err)
	imported, err := mgr.Import(m, blob.GenericPrivate, keyspec.KeyAgreement)
	require.NoError(t, err)
	assert.Equal(t, keyspec.ECDHSecp256k1, imported.Algorithm())
	assert.Equal(t, k.SKI(), imported.SKI())
}

func TestImportRejectsBadMaterial(t *testing.T) {
	mgr := NewECDHKeyManager()

	zero := make([]byte, 32)
	onCurve := genTestKey(t, keyspec.ECDHP256, keyspec.KeyAgreement)
	bk, err := blob.DecodeECC(blob.ECCPublic, mustExport(t, onCurve, blob.ECCPublic))
	require.NoError(t, err)

	// zero scalar
	bad := &blob.ECCKey{Algorithm: keyspec.ECDHP256, X: bk.X, Y: bk.Y, D: zero}
	m, err := blob.EncodeECC(blob.ECCPrivate, bad)
	require.NoError(t, err)
	_, err = mgr.Import(m, blob.ECCPrivate, keyspec.KeyAgreement)
	assert.Error(t, err)

	// secp256k1 scalar past the group order
	over := make([]byte, 32)
	for i := range over {
		over[i] = 0xFF
	}
	bad = &blob.ECCKey{Algorithm: keyspec.ECDHSecp256k1, X: zero, Y: zero, D: over}
	m, err = blob.EncodeECC(blob.ECCPrivate, bad)
	require.NoError(t, err)
	_, err = mgr.Import(m, blob.ECCPrivate, keyspec.KeyAgreement)
	assert.Error(t, err)

	// point not on P-256
	bad = &blob.ECCKey{Algorithm: keyspec.ECDHP256, X: zero, Y: zero}
	m, err = blob.EncodeECC(blob.ECCPublic, bad)
	require.NoError(t, err)
	_, err = mgr.Import(m, blob.ECCPublic, keyspec.KeyAgreement)
	assert.Error(t, err)
}

func TestGenerateValidation(t *testing.T) {
	mgr := NewECDHKeyManager()

	_, err := mgr.Generate(cryptokey.GenerateOpts{Algorithm: keyspec.RSA, Usage: keyspec.KeyAgreement})
	assert.Error(t, err)

	_, err = mgr.Generate(cryptokey.GenerateOpts{Algorithm: keyspec.ECDHP256})
	assert.Error(t, err)
}

func TestCloseDropsMaterial(t *testing.T) {
	for _, alg := range []keyspec.Algorithm{keyspec.ECDHP256, keyspec.ECDHSecp256k1} {
		t.Run(string(alg), func(t *testing.T) {
			k := genTestKey(t, alg, keyspec.KeyAgreement)
			peer := genTestKey(t, alg, keyspec.KeyAgreement)
			peerPub := mustExport(t, peer, blob.ECCPublic)

			require.NoError(t, k.Close())
			assert.False(t, k.Private())
			assert.Nil(t, k.SKI())
			_, err := k.Bytes()
			assert.Error(t, err)
			_, err = k.Export(blob.ECCPublic)
			assert.Error(t, err)
			_, err = k.Agree(peerPub)
			assert.Error(t, err)
		})
	}
}

func mustExport(t *testing.T, k *ECDHKey, f blob.Format) []byte {
	t.Helper()
	m, err := k.Export(f)
	require.NoError(t, err)
	return m
}
