package pki

import (
	"crypto/rand"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

// HybridSignature is a pair of independent signatures over the same
// message, one per algorithm half. Both must verify for the pair to be
// considered valid (spec §3, §4.D).
type HybridSignature struct {
	Classical   []byte
	PostQuantum []byte
}

// HybridKeyPair is the aggregate of spec §3: two independent keypairs, one
// classical and one post-quantum, plus the certificates issued over each.
// Both halves are always present together; there is no valid partially
// populated state.
type HybridKeyPair struct {
	Classical HybridSigner
	PQ        HybridSigner

	// Name is this keypair's own subject identity. It is the empty RDN for
	// a self-signed root (spec §4.B) and the subject passed to GenerateLeaf
	// otherwise; GenerateLeaf uses a CA's Name as the issuer of certs it signs.
	Name pkix.Name

	ClassicalCert []byte // DER
	PQCert        []byte // DER
}

// GenerateRoot creates a fresh hybrid keypair and a pair of self-signed root
// certificates: serial 1, empty issuer/subject RDN sequences, no
// extensions, per the minimal root profile of spec §4.B.
func GenerateRoot(fields CertificateFields) (*HybridKeyPair, error) {
	fields, err := fields.Normalize()
	if err != nil {
		return nil, err
	}

	cl, err := newClassicalSigner()
	if err != nil {
		return nil, err
	}
	pq, err := newPQSigner()
	if err != nil {
		return nil, err
	}

	kp := &HybridKeyPair{Classical: cl, PQ: pq}

	notBefore := time.Now()
	notAfter := notBefore.AddDate(0, 0, fields.ValidityDays)

	clDER, err := buildAndSignCertificate(cl, big.NewInt(1), emptyName, emptyName, cl.Algorithm(), cl.PublicKeyBytes(), notBefore, notAfter, nil)
	if err != nil {
		return nil, err
	}
	pqDER, err := buildAndSignCertificate(pq, big.NewInt(1), emptyName, emptyName, pq.Algorithm(), pq.PublicKeyBytes(), notBefore, notAfter, nil)
	if err != nil {
		return nil, err
	}

	kp.ClassicalCert = clDER
	kp.PQCert = pqDER
	return kp, nil
}

// emptyName is the canonical empty RDN sequence used for self-signed roots.
var emptyName = pkix.Name{}

// GenerateLeaf issues a leaf keypair+certificate pair signed by ca. subject
// becomes the new keypair's own Name; ca.Name becomes the issuer of both
// certificates. The CSR round-trip of spec §4.B is performed internally:
// each half builds and self-signs a CSR, which the CA then validates
// (algorithm binding rule) and re-issues a certificate from.
func GenerateLeaf(ca *HybridKeyPair, subject pkix.Name, fields CertificateFields) (*HybridKeyPair, error) {
	fields, err := fields.Normalize()
	if err != nil {
		return nil, err
	}
	if ca.Classical == nil || ca.PQ == nil {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.GenerateLeaf", fmt.Errorf("ca keypair is missing a half"))
	}

	cl, err := newClassicalSigner()
	if err != nil {
		return nil, err
	}
	pq, err := newPQSigner()
	if err != nil {
		return nil, err
	}

	clCSR, err := cl.GenerateCSR(subject)
	if err != nil {
		return nil, err
	}
	pqCSR, err := pq.GenerateCSR(subject)
	if err != nil {
		return nil, err
	}

	notBefore := time.Now()
	notAfter := notBefore.AddDate(0, 0, fields.ValidityDays)

	clCert, err := issueFromCSR(ca, clCSR, ca.Name, notBefore, notAfter)
	if err != nil {
		return nil, err
	}
	pqCert, err := issueFromCSR(ca, pqCSR, ca.Name, notBefore, notAfter)
	if err != nil {
		return nil, err
	}

	return &HybridKeyPair{
		Classical:     cl,
		PQ:            pq,
		Name:          subject,
		ClassicalCert: clCert,
		PQCert:        pqCert,
	}, nil
}

// issueFromCSR validates a CSR's algorithm binding (spec §4.B: cross-issuance
// between a classical CA and a PQ leaf, or vice versa, is rejected) and
// issues a certificate signed by the matching CA half. The
// signature_algorithm.oid of the emitted certificate is always the OID of
// the key that produced the outer signature — the original implementation's
// bug of labeling a classical-signed certificate with the PQ OID is not
// reproduced (see DESIGN.md / SPEC_FULL.md).
func issueFromCSR(ca *HybridKeyPair, csrDER []byte, issuer pkix.Name, notBefore, notAfter time.Time) ([]byte, error) {
	csr, alg, err := parseCSR(csrDER)
	if err != nil {
		return nil, err
	}

	var signer HybridSigner
	switch alg {
	case Classical:
		signer = ca.Classical
	case PostQuantum:
		signer = ca.PQ
	}
	if signer == nil || signer.Algorithm() != alg {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.issueFromCSR",
			fmt.Errorf("CA has no matching key for algorithm %s", alg))
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.issueFromCSR.serial", err)
	}

	pub := csr.Info.PublicKey.PublicKey.RightAlign()

	csrTBS, err := asn1.Marshal(csr.Info)
	if err != nil {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.issueFromCSR.csr_tbs", err)
	}
	ok, err := VerifyMessage(alg, pub, csrTBS, csr.Signature.RightAlign())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, kerrors.New(kerrors.CryptoReject, "pki.issueFromCSR.csr_signature",
			fmt.Errorf("CSR self-signature does not verify"))
	}

	return buildAndSignCertificate(signer, serial, issuer, subjectFromRDN(csr.Info.Subject), alg, pub, notBefore, notAfter, mustLeafExtensions())
}

func mustLeafExtensions() []pkix.Extension {
	ext, err := leafExtensions()
	if err != nil {
		panic(fmt.Sprintf("pki: building fixed leaf extension template failed: %v", err))
	}
	return ext
}

// subjectFromRDN decodes a raw encoded RDN sequence into the pkix.Name that
// buildAndSignCertificate accepts. Attributes that pkix.Name has no field
// for are not carried over when the name is re-encoded, and a value that
// does not decode yields an empty Name.
func subjectFromRDN(raw asn1.RawValue) pkix.Name {
	var rdn pkix.RDNSequence
	if _, err := asn1.Unmarshal(raw.FullBytes, &rdn); err != nil {
		return pkix.Name{}
	}
	var name pkix.Name
	name.FillFromRDNSequence(&rdn)
	return name
}

// buildAndSignCertificate constructs and signs one half of a hybrid
// certificate pair under the fixed TBS template of spec §4.B.
func buildAndSignCertificate(signer HybridSigner, serial *big.Int, issuer, subject pkix.Name, pubAlg Algorithm, pubKey []byte, notBefore, notAfter time.Time, extensions []pkix.Extension) ([]byte, error) {
	issuerRDN, err := asn1.Marshal(issuer.ToRDNSequence())
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.buildAndSignCertificate.issuer", err)
	}
	subjectRDN, err := asn1.Marshal(subject.ToRDNSequence())
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.buildAndSignCertificate.subject", err)
	}

	tbs := tbsCertificate{
		Version:            2, // v3
		SerialNumber:        serial,
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: OIDFor(signer.Algorithm())},
		Issuer:             asn1.RawValue{FullBytes: issuerRDN},
		Validity:           validity{NotBefore: notBefore, NotAfter: notAfter},
		Subject:            asn1.RawValue{FullBytes: subjectRDN},
		PublicKey: subjectPublicKeyInfo{
			Algorithm: pkix.AlgorithmIdentifier{Algorithm: OIDFor(pubAlg)},
			PublicKey: asn1.BitString{Bytes: pubKey, BitLength: len(pubKey) * 8},
		},
		Extensions: extensions,
	}

	tbsDER, err := asn1.Marshal(tbs)
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.buildAndSignCertificate.tbs", err)
	}

	sig, err := signer.Sign(tbsDER)
	if err != nil {
		return nil, err
	}

	certDER, err := asn1.Marshal(certificate{
		TBSCertificate:     tbs,
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: OIDFor(signer.Algorithm())},
		SignatureValue:     asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
	})
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.buildAndSignCertificate.marshal", err)
	}
	return certDER, nil
}

// Sign produces a hybrid signature over message: an independent signature
// from each half. Both are required to verify for the pair to be accepted
// (spec §4.D).
func (kp *HybridKeyPair) Sign(message []byte) (*HybridSignature, error) {
	if kp.Classical == nil || kp.PQ == nil {
		return nil, kerrors.New(kerrors.InvariantViolation, "HybridKeyPair.Sign", fmt.Errorf("keypair is missing a half"))
	}
	cl, err := kp.Classical.Sign(message)
	if err != nil {
		return nil, err
	}
	pq, err := kp.PQ.Sign(message)
	if err != nil {
		return nil, err
	}
	return &HybridSignature{Classical: cl, PostQuantum: pq}, nil
}

// Save persists both key halves and both certificates under dir, using the
// sibling-file naming convention of spec §6:
// <name>-priv-cl.p8 / <name>-priv-pq.p8, <name>-cert-cl.pem / <name>-cert-pq.pem.
func (kp *HybridKeyPair) Save(dir, name, password string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return kerrors.New(kerrors.IoFatal, "HybridKeyPair.Save.mkdir", err)
	}
	if err := kp.Classical.Save(filepath.Join(dir, name+"-priv-cl.p8"), password); err != nil {
		return err
	}
	if err := kp.PQ.Save(filepath.Join(dir, name+"-priv-pq.p8"), password); err != nil {
		return err
	}
	if err := writePEMCert(filepath.Join(dir, name+"-cert-cl.pem"), kp.ClassicalCert); err != nil {
		return err
	}
	if err := writePEMCert(filepath.Join(dir, name+"-cert-pq.pem"), kp.PQCert); err != nil {
		return err
	}
	return nil
}

// LoadHybridKeyPair loads both halves of a previously saved keypair.
// Loading one sibling file without the other is a fatal asymmetry (spec
// §3 Invariants): both files are required to exist.
func LoadHybridKeyPair(dir, name, password string) (*HybridKeyPair, error) {
	clPath := filepath.Join(dir, name+"-priv-cl.p8")
	pqPath := filepath.Join(dir, name+"-priv-pq.p8")

	clExists := fileExists(clPath)
	pqExists := fileExists(pqPath)
	if clExists != pqExists {
		return nil, kerrors.New(kerrors.InvariantViolation, "LoadHybridKeyPair",
			fmt.Errorf("keypair %q has only one half on disk (classical present=%v, pq present=%v)", name, clExists, pqExists))
	}
	if !clExists {
		return nil, kerrors.New(kerrors.IoFatal, "LoadHybridKeyPair", fmt.Errorf("keypair %q not found in %s", name, dir))
	}

	cl, err := loadClassicalSigner(clPath, password)
	if err != nil {
		return nil, err
	}
	pq, err := loadPQSigner(pqPath, password)
	if err != nil {
		return nil, err
	}

	kp := &HybridKeyPair{Classical: cl, PQ: pq}

	clCertPath := filepath.Join(dir, name+"-cert-cl.pem")
	pqCertPath := filepath.Join(dir, name+"-cert-pq.pem")
	if fileExists(clCertPath) {
		if kp.ClassicalCert, err = readPEMCert(clCertPath); err != nil {
			return nil, err
		}
	}
	if fileExists(pqCertPath) {
		if kp.PQCert, err = readPEMCert(pqCertPath); err != nil {
			return nil, err
		}
	}
	return kp, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
