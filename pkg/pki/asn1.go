package pki

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"
)

// subjectPublicKeyInfo mirrors x509.SubjectPublicKeyInfo, but since Go's
// standard library does not recognize the hybrid scheme's OIDs, the
// certificate profile of spec §4.B is hand-rolled over encoding/asn1 rather
// than built with crypto/x509's template-based API.
type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

type validity struct {
	NotBefore time.Time
	NotAfter  time.Time
}

// tbsCertificate is the "to be signed" body. Non-root certificates carry
// BasicConstraints(cA=false) and KeyUsage(digitalSignature) as raw
// extensions; root certificates carry none, per the minimal profile of
// spec §4.B.
type tbsCertificate struct {
	Version            int `asn1:"explicit,tag:0"`
	SerialNumber       *big.Int
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Issuer             asn1.RawValue
	Validity           validity
	Subject            asn1.RawValue
	PublicKey          subjectPublicKeyInfo
	Extensions         []pkix.Extension `asn1:"optional,explicit,tag:3"`
}

// certificate is the outer envelope: TBS body, the AlgorithmIdentifier of
// the key that actually produced Signature, and the signature itself.
type certificate struct {
	TBSCertificate     tbsCertificate
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

type certReqInfo struct {
	Version    int
	Subject    asn1.RawValue
	PublicKey  subjectPublicKeyInfo
	Attributes asn1.RawValue `asn1:"optional,tag:0"`
}

type certReq struct {
	Info               certReqInfo
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          asn1.BitString
}

// basicConstraintsCA=false / keyUsage(digitalSignature) OIDs, RFC 5280.
var (
	oidExtBasicConstraints = asn1.ObjectIdentifier{2, 5, 29, 19}
	oidExtKeyUsage         = asn1.ObjectIdentifier{2, 5, 29, 15}
)

type basicConstraints struct {
	IsCA bool `asn1:"optional"`
}

func leafExtensions() ([]pkix.Extension, error) {
	bc, err := asn1.Marshal(basicConstraints{IsCA: false})
	if err != nil {
		return nil, err
	}
	// KeyUsage is a BIT STRING; bit 0 (digitalSignature) set, per RFC 5280
	// §4.2.1.3 bit-numbering (leftmost bit of the first byte).
	ku, err := asn1.Marshal(asn1.BitString{Bytes: []byte{0x80}, BitLength: 1})
	if err != nil {
		return nil, err
	}
	return []pkix.Extension{
		{Id: oidExtBasicConstraints, Critical: true, Value: bc},
		{Id: oidExtKeyUsage, Critical: true, Value: ku},
	}, nil
}
