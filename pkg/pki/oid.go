package pki

import "encoding/asn1"

// Algorithm identifies one half of a hybrid keypair.
type Algorithm int

const (
	// Classical is Ed25519 (RFC 8032), signed over a SHA-512 prehash.
	Classical Algorithm = iota
	// PostQuantum is ML-DSA/Dilithium5 (CRYSTALS-Dilithium, NIST level 5).
	PostQuantum
)

func (a Algorithm) String() string {
	switch a {
	case Classical:
		return "classical"
	case PostQuantum:
		return "post-quantum"
	default:
		return "unknown"
	}
}

var (
	// oidEd25519 is the IETF-registered Ed25519 public key/signature OID.
	oidEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}

	// oidDilithium5 is the Dilithium5 OID from the Open Quantum Safe
	// project's IANA private enterprise number branch, matching the value
	// used by the original Keysas implementation.
	oidDilithium5 = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 2, 267, 7, 8, 7}
)

// OIDFor returns the AlgorithmIdentifier OID used to label keys and
// signatures produced by alg.
func OIDFor(alg Algorithm) asn1.ObjectIdentifier {
	switch alg {
	case Classical:
		return oidEd25519
	case PostQuantum:
		return oidDilithium5
	default:
		panic("pki: unknown algorithm")
	}
}

// AlgorithmForOID reverses OIDFor. The second return value is false if oid
// is not one of the two recognized algorithms — per spec, a certificate or
// CSR whose declared OID is outside this set must be rejected without
// attempting verification.
func AlgorithmForOID(oid asn1.ObjectIdentifier) (Algorithm, bool) {
	switch {
	case oid.Equal(oidEd25519):
		return Classical, true
	case oid.Equal(oidDilithium5):
		return PostQuantum, true
	default:
		return 0, false
	}
}
