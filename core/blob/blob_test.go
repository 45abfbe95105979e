package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kms-shield/csp-lib/core/keyspec"
)

func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i)
	}
	return out
}

func testRSAKey(bits int) *RSAKey {
	k := &RSAKey{Bits: bits, E: 65537}
	k.N = pattern(k.ModulusLen(), 0x11)
	k.P = pattern(k.PrimeLen(), 0x22)
	k.Q = pattern(k.PrimeLen(), 0x33)
	k.Dp = pattern(k.PrimeLen(), 0x44)
	k.Dq = pattern(k.PrimeLen(), 0x55)
	k.Qinv = pattern(k.PrimeLen(), 0x66)
	k.D = pattern(k.ModulusLen(), 0x77)
	return k
}

func TestRSARoundTrip(t *testing.T) {
	for _, f := range []Format{RSAPublic, RSAPrivate, RSAFullPrivate} {
		k := testRSAKey(2048)
		b, err := EncodeRSA(f, k)
		require.NoError(t, err, f)

		dec, err := DecodeRSA(f, b)
		require.NoError(t, err, f)
		assert.Equal(t, k.Bits, dec.Bits)
		assert.Equal(t, k.E, dec.E)
		assert.Equal(t, k.N, dec.N)

		re, err := EncodeRSA(f, dec)
		require.NoError(t, err, f)
		assert.Equal(t, b, re, "re-encoding must be canonical")
	}
}

func TestRSAPrivateOmitsExponent(t *testing.T) {
	k := testRSAKey(2048)
	b, err := EncodeRSA(RSAPrivate, k)
	require.NoError(t, err)

	dec, err := DecodeRSA(RSAPrivate, b)
	require.NoError(t, err)
	assert.Equal(t, k.P, dec.P)
	assert.Equal(t, k.Q, dec.Q)
	assert.Nil(t, dec.D)
	assert.Nil(t, dec.Dp)
}

func TestRSADecodeRejectsDamage(t *testing.T) {
	k := testRSAKey(1024)
	b, err := EncodeRSA(RSAFullPrivate, k)
	require.NoError(t, err)

	_, err = DecodeRSA(RSAFullPrivate, b[:len(b)-1])
	assert.ErrorIs(t, err, ErrMalformed)

	bad := append([]byte(nil), b...)
	bad[0] ^= 0xff
	_, err = DecodeRSA(RSAFullPrivate, bad)
	assert.ErrorIs(t, err, ErrMalformed)

	// A private blob is not decodable under the public format.
	_, err = DecodeRSA(RSAPublic, b)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeRSA(ECCPublic, b)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRSAEncodeRejectsBadWidths(t *testing.T) {
	k := testRSAKey(2048)
	k.N = k.N[:len(k.N)-1]
	_, err := EncodeRSA(RSAPublic, k)
	assert.Error(t, err)

	k = testRSAKey(2048)
	k.Bits = 2047
	_, err = EncodeRSA(RSAPublic, k)
	assert.Error(t, err)
}

func TestECCRoundTrip(t *testing.T) {
	for alg, p := range curves {
		k := &ECCKey{Algorithm: alg}
		k.X = pattern(p.fieldLen, 0x0a)
		if p.hasY {
			k.Y = pattern(p.fieldLen, 0x0b)
		}
		k.D = pattern(p.fieldLen, 0x0c)

		for _, f := range []Format{ECCPublic, ECCPrivate} {
			b, err := EncodeECC(f, k)
			require.NoError(t, err, "%s %s", alg, f)

			dec, err := DecodeECC(f, b)
			require.NoError(t, err, "%s %s", alg, f)
			assert.Equal(t, alg, dec.Algorithm)
			assert.Equal(t, k.X, dec.X)

			re, err := EncodeECC(f, dec)
			require.NoError(t, err)
			assert.Equal(t, b, re, "re-encoding must be canonical")
		}
	}
}

func TestECCPublicCarriesNoScalar(t *testing.T) {
	k := &ECCKey{
		Algorithm: keyspec.ECDHP256,
		X:         pattern(32, 0x0a),
		Y:         pattern(32, 0x0b),
		D:         pattern(32, 0x0c),
	}
	b, err := EncodeECC(ECCPublic, k)
	require.NoError(t, err)

	dec, err := DecodeECC(ECCPublic, b)
	require.NoError(t, err)
	assert.Nil(t, dec.D)
}

func TestECCDecodeRejectsDamage(t *testing.T) {
	k := &ECCKey{
		Algorithm: keyspec.ECDHX25519,
		X:         pattern(32, 0x0a),
		D:         pattern(32, 0x0c),
	}
	b, err := EncodeECC(ECCPrivate, k)
	require.NoError(t, err)

	_, err = DecodeECC(ECCPrivate, b[:len(b)-1])
	assert.ErrorIs(t, err, ErrMalformed)

	bad := append([]byte(nil), b...)
	bad[5] = 0x7f // unknown curve id
	_, err = DecodeECC(ECCPrivate, bad)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeECC(RSAPrivate, b)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestECCEncodeRejectsWrongAlgorithm(t *testing.T) {
	k := &ECCKey{Algorithm: keyspec.RSA, X: pattern(32, 0x0a)}
	_, err := EncodeECC(ECCPublic, k)
	assert.Error(t, err)
}

func TestGenericRoundTrip(t *testing.T) {
	inner, err := EncodeECC(ECCPrivate, &ECCKey{
		Algorithm: keyspec.ECDHP256,
		X:         pattern(32, 0x0a),
		Y:         pattern(32, 0x0b),
		D:         pattern(32, 0x0c),
	})
	require.NoError(t, err)

	b, err := EncodeGeneric(GenericPrivate, keyspec.ECDHP256, ECCPrivate, inner)
	require.NoError(t, err)

	alg, f, key, err := DecodeGeneric(GenericPrivate, b)
	require.NoError(t, err)
	assert.Equal(t, keyspec.ECDHP256, alg)
	assert.Equal(t, ECCPrivate, f)
	assert.Equal(t, inner, key)

	re, err := EncodeGeneric(GenericPrivate, alg, f, key)
	require.NoError(t, err)
	assert.Equal(t, b, re, "re-encoding must be canonical")
}

func TestGenericPrivacyMismatch(t *testing.T) {
	inner, err := EncodeECC(ECCPublic, &ECCKey{
		Algorithm: keyspec.ECDHP256,
		X:         pattern(32, 0x0a),
		Y:         pattern(32, 0x0b),
	})
	require.NoError(t, err)

	_, err = EncodeGeneric(GenericPrivate, keyspec.ECDHP256, ECCPublic, inner)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = EncodeGeneric(GenericPublic, keyspec.RSA, ECCPublic, inner)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestGenericDecodeRejectsDamage(t *testing.T) {
	_, _, _, err := DecodeGeneric(GenericPrivate, []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrMalformed)

	_, _, _, err = DecodeGeneric(ECCPrivate, nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormatMatches(t *testing.T) {
	assert.True(t, RSAPublic.Matches(keyspec.RSA))
	assert.False(t, RSAPublic.Matches(keyspec.ECDHP256))
	assert.True(t, ECCPrivate.Matches(keyspec.ECDHSecp256k1))
	assert.False(t, ECCPrivate.Matches(keyspec.RSA))
	assert.True(t, GenericPrivate.Matches(keyspec.RSA))
	assert.True(t, GenericPublic.Matches(keyspec.ECDHX25519))
	assert.False(t, GenericPublic.Matches(keyspec.Algorithm("DSA")))

	assert.True(t, ECCPrivate.Private())
	assert.False(t, ECCPublic.Private())
	assert.True(t, GenericPrivate.Private())
	assert.False(t, RSAPublic.Private())
}
