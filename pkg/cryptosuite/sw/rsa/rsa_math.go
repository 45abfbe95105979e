package rsa

import (
	"github.com/cronokirby/saferith"
	"github.com/pkg/errors"
)

// rsaFactors is the private field set reconstructed from the public
// exponent and the two prime factors:
//
//	d    = e⁻¹ mod φ(n), φ(n) = (p-1)(q-1)
//	dp   = d mod (p-1)
//	dq   = d mod (q-1)
//	qinv = q⁻¹ mod p
type rsaFactors struct {
	N    *saferith.Nat
	D    *saferith.Nat
	Dp   *saferith.Nat
	Dq   *saferith.Nat
	Qinv *saferith.Nat
}

// deriveFromFactors rebuilds the full private field set the way compact
// private blobs carry keys. The arithmetic is constant time in the factor
// sizes; inconsistent inputs are rejected, never returned as garbage.
func deriveFromFactors(e uint64, p, q *saferith.Nat) (*rsaFactors, error) {
	one := new(saferith.Nat).SetUint64(1)

	n := new(saferith.Nat).Mul(p, q, -1)

	pm1 := new(saferith.Nat).Sub(p, one, -1)
	qm1 := new(saferith.Nat).Sub(q, one, -1)
	phi := new(saferith.Nat).Mul(pm1, qm1, -1)
	phiMod := saferith.ModulusFromNat(phi)

	eNat := new(saferith.Nat).SetUint64(e)
	d := new(saferith.Nat).ModInverse(eNat, phiMod)

	// e must be invertible; e⋅d ≡ 1 (mod φ) proves the inverse is real
	check := new(saferith.Nat).ModMul(eNat, d, phiMod)
	if check.Eq(one) != 1 {
		return nil, errors.New("rsa: public exponent is not invertible modulo phi(n)")
	}

	pMod := saferith.ModulusFromNat(p)
	pm1Mod := saferith.ModulusFromNat(pm1)
	qm1Mod := saferith.ModulusFromNat(qm1)

	dp := new(saferith.Nat).Mod(d, pm1Mod)
	dq := new(saferith.Nat).Mod(d, qm1Mod)

	qinv := new(saferith.Nat).ModInverse(q, pMod)
	check = new(saferith.Nat).ModMul(qinv, new(saferith.Nat).Mod(q, pMod), pMod)
	if check.Eq(one) != 1 {
		return nil, errors.New("rsa: prime factors are not coprime")
	}

	return &rsaFactors{N: n, D: d, Dp: dp, Dq: dq, Qinv: qinv}, nil
}

// natFromBytes reads a big-endian field as a Nat.
func natFromBytes(b []byte) *saferith.Nat {
	return new(saferith.Nat).SetBytes(b)
}

// natEq reports whether two Nats hold the same value.
func natEq(x, y *saferith.Nat) bool {
	return x.Eq(y) == 1
}
