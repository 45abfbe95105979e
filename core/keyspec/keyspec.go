// Package keyspec defines the algorithm, scope, usage and export-policy
// identifiers shared by the key stores, the cryptosuites and the provider.
package keyspec

import (
	"fmt"
	"strings"
)

// Algorithm identifies a supported key-pair algorithm. ECDH algorithms
// carry the curve in the identifier.
type Algorithm string

const (
	RSA           Algorithm = "RSA"
	ECDHP256      Algorithm = "ECDH-P256"
	ECDHP384      Algorithm = "ECDH-P384"
	ECDHP521      Algorithm = "ECDH-P521"
	ECDHX25519    Algorithm = "ECDH-X25519"
	ECDHSecp256k1 Algorithm = "ECDH-secp256k1"
)

// Family groups algorithms that share blob layouts and key managers.
type Family string

const (
	FamilyRSA  Family = "RSA"
	FamilyECDH Family = "ECDH"
)

func (a Algorithm) String() string {
	return string(a)
}

func (a Algorithm) Family() Family {
	if a == RSA {
		return FamilyRSA
	}
	return FamilyECDH
}

func (a Algorithm) Valid() bool {
	switch a {
	case RSA, ECDHP256, ECDHP384, ECDHP521, ECDHX25519, ECDHSecp256k1:
		return true
	}
	return false
}

// Algorithms returns every supported algorithm identifier.
func Algorithms() []Algorithm {
	return []Algorithm{RSA, ECDHP256, ECDHP384, ECDHP521, ECDHX25519, ECDHSecp256k1}
}

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range Algorithms() {
		if strings.EqualFold(s, string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("keyspec: unknown algorithm %q", s)
}

// Scope selects the store a named key lives in.
type Scope uint8

const (
	UserKey Scope = iota
	MachineKey
)

func (s Scope) String() string {
	if s == MachineKey {
		return "MachineKey"
	}
	return "UserKey"
}

func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(s) {
	case "machine", "machinekey":
		return MachineKey, nil
	case "user", "userkey":
		return UserKey, nil
	}
	return 0, fmt.Errorf("keyspec: unknown scope %q", s)
}

// Usage is a bit set of operations a key is permitted to perform.
type Usage uint8

const (
	Signing Usage = 1 << iota
	KeyAgreement

	AllUsages = Signing | KeyAgreement
)

// Permits reports whether every bit of req is present in u.
func (u Usage) Permits(req Usage) bool {
	return u&req == req
}

func (u Usage) String() string {
	switch u {
	case Signing:
		return "Signing"
	case KeyAgreement:
		return "KeyAgreement"
	case AllUsages:
		return "AllUsages"
	}
	return fmt.Sprintf("Usage(%d)", uint8(u))
}

func ParseUsage(s string) (Usage, error) {
	switch strings.ToLower(s) {
	case "signing", "sign":
		return Signing, nil
	case "keyagreement", "agreement", "agree":
		return KeyAgreement, nil
	case "allusages", "all":
		return AllUsages, nil
	}
	return 0, fmt.Errorf("keyspec: unknown usage %q", s)
}

// ExportPolicy controls whether private key bytes may leave the store.
type ExportPolicy uint8

const (
	ExportNone ExportPolicy = iota
	AllowPlaintextExport
)

func (p ExportPolicy) String() string {
	if p == AllowPlaintextExport {
		return "AllowPlaintextExport"
	}
	return "None"
}

func ParseExportPolicy(s string) (ExportPolicy, error) {
	switch strings.ToLower(s) {
	case "none":
		return ExportNone, nil
	case "allowplaintextexport", "plaintext":
		return AllowPlaintextExport, nil
	}
	return 0, fmt.Errorf("keyspec: unknown export policy %q", s)
}
