package pki

import (
	"crypto"
	"crypto/ed25519"
	"crypto/sha512"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/cloudflare/circl/sign/dilithium/mode5"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

// Certificate is the parsed, read-only view of one half of a hybrid
// certificate pair, as consumed by pkg/verify: it never needs the private
// key, only what a relying party can read off the wire.
type Certificate struct {
	// Algorithm is the subjectPublicKeyInfo OID: which half's public key
	// this certificate carries.
	Algorithm Algorithm
	// SignatureAlgorithm is the outer certificate's AlgorithmIdentifier OID:
	// which half's private key actually produced SignatureValue. It always
	// matches Algorithm for certificates issued by issueFromCSR — a
	// classical-signed certificate is never labeled with the PQ OID or
	// vice versa (see issueFromCSR).
	SignatureAlgorithm Algorithm
	Issuer             pkix.Name
	Subject            pkix.Name
	NotBefore          time.Time
	NotAfter           time.Time
	PublicKey          []byte

	tbsRaw    []byte
	signature []byte
}

// ParseCertificate decodes a DER-encoded certificate produced by
// buildAndSignCertificate and validates that its declared public-key and
// signature OIDs are each one of the recognized pair.
func ParseCertificate(der []byte) (*Certificate, error) {
	var cert certificate
	if _, err := asn1.Unmarshal(der, &cert); err != nil {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.ParseCertificate.unmarshal", err)
	}

	alg, ok := AlgorithmForOID(cert.TBSCertificate.PublicKey.Algorithm.Algorithm)
	if !ok {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.ParseCertificate.oid",
			fmt.Errorf("unrecognized public key OID %s", cert.TBSCertificate.PublicKey.Algorithm.Algorithm))
	}
	sigAlg, ok := AlgorithmForOID(cert.SignatureAlgorithm.Algorithm)
	if !ok {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.ParseCertificate.signature_oid",
			fmt.Errorf("unrecognized signature algorithm OID %s", cert.SignatureAlgorithm.Algorithm))
	}

	tbsRaw, err := asn1.Marshal(cert.TBSCertificate)
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.ParseCertificate.remarshal_tbs", err)
	}

	return &Certificate{
		Algorithm:          alg,
		SignatureAlgorithm: sigAlg,
		Issuer:             subjectFromRDN(cert.TBSCertificate.Issuer),
		Subject:            subjectFromRDN(cert.TBSCertificate.Subject),
		NotBefore:          cert.TBSCertificate.Validity.NotBefore,
		NotAfter:           cert.TBSCertificate.Validity.NotAfter,
		PublicKey:          cert.TBSCertificate.PublicKey.PublicKey.RightAlign(),
		tbsRaw:             tbsRaw,
		signature:          cert.SignatureValue.RightAlign(),
	}, nil
}

// VerifySignedBy reports whether c was issued by a CA whose public key is
// issuerPubKey, i.e. whether the CA's signature over c's TBS body verifies.
// It does not check validity period or any chain beyond this one link.
func (c *Certificate) VerifySignedBy(issuerAlgorithm Algorithm, issuerPubKey []byte) (bool, error) {
	return VerifyMessage(issuerAlgorithm, issuerPubKey, c.tbsRaw, c.signature)
}

// VerifyMessage verifies signature over message under pubKey, dispatching on
// alg. It is the static counterpart of HybridSigner.Verify, usable by
// relying parties that hold only a public key, never a private one.
func VerifyMessage(alg Algorithm, pubKey, message, signature []byte) (bool, error) {
	switch alg {
	case Classical:
		if len(pubKey) != ed25519.PublicKeySize {
			return false, kerrors.New(kerrors.InvariantViolation, "pki.VerifyMessage",
				fmt.Errorf("classical public key has wrong length: %d", len(pubKey)))
		}
		h := sha512.Sum512(message)
		err := ed25519.VerifyWithOptions(ed25519.PublicKey(pubKey), h[:], signature, &ed25519.Options{Hash: crypto.SHA512})
		return err == nil, nil
	case PostQuantum:
		var pub mode5.PublicKey
		if err := pub.UnmarshalBinary(pubKey); err != nil {
			return false, kerrors.New(kerrors.InvariantViolation, "pki.VerifyMessage.unpack_public", err)
		}
		return mode5.Verify(&pub, message, signature), nil
	default:
		return false, kerrors.New(kerrors.InvariantViolation, "pki.VerifyMessage", fmt.Errorf("unknown algorithm %v", alg))
	}
}

// Verify reports whether sig is a valid hybrid signature over message under
// kp: both the classical and the post-quantum half must independently
// verify (spec §4.D). A mismatch between the two halves yields (false, nil):
// it is never accepted on a majority basis, and it carries no error.
func (kp *HybridKeyPair) Verify(message []byte, sig *HybridSignature) (bool, error) {
	clOK, err := kp.Classical.Verify(message, sig.Classical)
	if err != nil {
		return false, err
	}
	pqOK, err := kp.PQ.Verify(message, sig.PostQuantum)
	if err != nil {
		return false, err
	}
	return clOK && pqOK, nil
}
