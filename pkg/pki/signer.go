package pki

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode5"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

// HybridSigner is the uniform interface the design notes (spec §9) call for:
// one implementation per algorithm half, dispatched by OID rather than by a
// type switch at every call site. HybridKeyPair composes exactly two of
// these (see keypair.go).
type HybridSigner interface {
	Algorithm() Algorithm
	PublicKeyBytes() []byte

	// Save persists the keypair to path, encrypted under password.
	Save(path string, password string) error
	// Sign signs message per the algorithm's own domain separation
	// (SHA-512 prehash for classical, raw message for PQ).
	Sign(message []byte) ([]byte, error)
	// Verify reports whether signature is a valid signature of message
	// under this signer's public key.
	Verify(message, signature []byte) (bool, error)
	// GenerateCSR builds a self-signed CertificationRequest carrying this
	// signer's public key, signed with its own private key.
	GenerateCSR(subject pkix.Name) ([]byte, error)
}

// classicalSigner is the Ed25519 half of a hybrid keypair.
type classicalSigner struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// newClassicalSigner generates a fresh Ed25519 keypair.
func newClassicalSigner() (*classicalSigner, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.newClassicalSigner", err)
	}
	return &classicalSigner{priv: priv, pub: pub}, nil
}

func loadClassicalSigner(path, password string) (*classicalSigner, error) {
	priv, pub, err := loadKeyFile(path, Classical, password, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	// The private key on disk is the 32-byte seed; the embedded public key,
	// when present, is trusted as-is, otherwise it is cheaply re-derived.
	var pub2 ed25519.PublicKey
	if len(pub) == ed25519.PublicKeySize {
		pub2 = pub
	} else {
		pub2 = ed25519.NewKeyFromSeed(priv).Public().(ed25519.PublicKey)
	}
	return &classicalSigner{priv: ed25519.NewKeyFromSeed(priv), pub: pub2}, nil
}

func (s *classicalSigner) Algorithm() Algorithm   { return Classical }
func (s *classicalSigner) PublicKeyBytes() []byte { return append([]byte{}, s.pub...) }

func (s *classicalSigner) Save(path, password string) error {
	// Store only the 32-byte seed, matching "classical: exactly 32 bytes".
	seed := s.priv.Seed()
	return saveKeyFile(path, Classical, seed, s.pub, password)
}

func (s *classicalSigner) Sign(message []byte) ([]byte, error) {
	h := sha512.Sum512(message)
	sig, err := s.priv.Sign(rand.Reader, h[:], &ed25519.Options{Hash: crypto.SHA512})
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "classicalSigner.Sign", err)
	}
	return sig, nil
}

func (s *classicalSigner) Verify(message, signature []byte) (bool, error) {
	h := sha512.Sum512(message)
	err := ed25519.VerifyWithOptions(s.pub, h[:], signature, &ed25519.Options{Hash: crypto.SHA512})
	return err == nil, nil
}

func (s *classicalSigner) GenerateCSR(subject pkix.Name) ([]byte, error) {
	return buildCSR(subject, Classical, s.pub, s.Sign)
}

// pqSigner is the ML-DSA/Dilithium5 half of a hybrid keypair.
type pqSigner struct {
	priv mode5.PrivateKey
	pub  mode5.PublicKey
}

func newPQSigner() (*pqSigner, error) {
	pub, priv, err := mode5.GenerateKey(rand.Reader)
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.newPQSigner", err)
	}
	return &pqSigner{priv: *priv, pub: *pub}, nil
}

func loadPQSigner(path, password string) (*pqSigner, error) {
	privBytes, pubBytes, err := loadKeyFile(path, PostQuantum, password, mode5.PrivateKeySize)
	if err != nil {
		return nil, err
	}
	var priv mode5.PrivateKey
	if err := priv.UnmarshalBinary(privBytes); err != nil {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.loadPQSigner.unpack_private", err)
	}
	var pub mode5.PublicKey
	if err := pub.UnmarshalBinary(pubBytes); err != nil {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.loadPQSigner.unpack_public", err)
	}
	return &pqSigner{priv: priv, pub: pub}, nil
}

func (s *pqSigner) Algorithm() Algorithm { return PostQuantum }

func (s *pqSigner) PublicKeyBytes() []byte {
	b, _ := s.pub.MarshalBinary()
	return b
}

func (s *pqSigner) privateKeyBytes() []byte {
	b, _ := s.priv.MarshalBinary()
	return b
}

func (s *pqSigner) Save(path, password string) error {
	return saveKeyFile(path, PostQuantum, s.privateKeyBytes(), s.PublicKeyBytes(), password)
}

func (s *pqSigner) Sign(message []byte) ([]byte, error) {
	sig := make([]byte, mode5.SignatureSize)
	mode5.SignTo(&s.priv, message, sig)
	return sig, nil
}

func (s *pqSigner) Verify(message, signature []byte) (bool, error) {
	return mode5.Verify(&s.pub, message, signature), nil
}

func (s *pqSigner) GenerateCSR(subject pkix.Name) ([]byte, error) {
	return buildCSR(subject, PostQuantum, s.PublicKeyBytes(), s.Sign)
}

// signFunc abstracts over classicalSigner.Sign / pqSigner.Sign so buildCSR
// can stay algorithm-agnostic.
type signFunc func(message []byte) ([]byte, error)

func buildCSR(subject pkix.Name, alg Algorithm, pubKey []byte, sign signFunc) ([]byte, error) {
	rdn, err := asn1.Marshal(subject.ToRDNSequence())
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.buildCSR.subject", err)
	}

	info := certReqInfo{
		Version: 0,
		Subject: asn1.RawValue{FullBytes: rdn},
		PublicKey: subjectPublicKeyInfo{
			Algorithm: pkix.AlgorithmIdentifier{Algorithm: OIDFor(alg)},
			PublicKey: asn1.BitString{Bytes: pubKey, BitLength: len(pubKey) * 8},
		},
		Attributes: asn1.RawValue{FullBytes: []byte{0xA0, 0x00}}, // empty SET
	}

	tbs, err := asn1.Marshal(info)
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.buildCSR.tbs", err)
	}

	sig, err := sign(tbs)
	if err != nil {
		return nil, err
	}

	der, err := asn1.Marshal(certReq{
		Info:               info,
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: OIDFor(alg)},
		Signature:          asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
	})
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.buildCSR.marshal", err)
	}

	// Defensive re-parse: a malformed template here means every downstream
	// verification would fail silently instead of loudly at build time.
	var check certReq
	if _, err := asn1.Unmarshal(der, &check); err != nil {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.buildCSR.selfcheck", err)
	}

	return der, nil
}

// parseCSR parses a DER-encoded CSR and validates that its declared
// algorithm OID is one of the recognized pair (spec §4.B algorithm binding
// rule). Signature verification is the caller's responsibility (the CA
// needs to know the algorithm before it knows which Verify to call).
func parseCSR(der []byte) (*certReq, Algorithm, error) {
	var csr certReq
	if _, err := asn1.Unmarshal(der, &csr); err != nil {
		return nil, 0, kerrors.New(kerrors.BadInput, "pki.parseCSR.unmarshal", err)
	}
	alg, ok := AlgorithmForOID(csr.Info.PublicKey.Algorithm.Algorithm)
	if !ok {
		return nil, 0, kerrors.New(kerrors.InvariantViolation, "pki.parseCSR.oid",
			fmt.Errorf("unrecognized public key OID %s", csr.Info.PublicKey.Algorithm.Algorithm))
	}
	return &csr, alg, nil
}
