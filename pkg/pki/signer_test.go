package pki

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassicalSignerSignVerifyRoundTrip(t *testing.T) {
	s, err := newClassicalSigner()
	require.NoError(t, err)

	msg := []byte("usb-in/vendor/model/rev/serial")
	sig, err := s.Sign(msg)
	require.NoError(t, err)

	ok, err := s.Verify(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Verify([]byte("tampered"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClassicalSignerSaveLoadRoundTrip(t *testing.T) {
	s, err := newClassicalSigner()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "k.p8")
	require.NoError(t, s.Save(path, "pw"))

	loaded, err := loadClassicalSigner(path, "pw")
	require.NoError(t, err)
	require.Equal(t, s.PublicKeyBytes(), loaded.PublicKeyBytes())

	msg := []byte("hello")
	sig, err := s.Sign(msg)
	require.NoError(t, err)
	ok, err := loaded.Verify(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPQSignerSignVerifyRoundTrip(t *testing.T) {
	s, err := newPQSigner()
	require.NoError(t, err)

	msg := []byte("usb-out/vendor/model/rev/serial")
	sig, err := s.Sign(msg)
	require.NoError(t, err)

	ok, err := s.Verify(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Verify([]byte("tampered"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPQSignerSaveLoadRoundTrip(t *testing.T) {
	s, err := newPQSigner()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "k.p8")
	require.NoError(t, s.Save(path, "pw"))

	loaded, err := loadPQSigner(path, "pw")
	require.NoError(t, err)
	require.Equal(t, s.PublicKeyBytes(), loaded.PublicKeyBytes())
}

func TestBuildAndParseCSRRoundTrip(t *testing.T) {
	s, err := newClassicalSigner()
	require.NoError(t, err)

	subject := pkix.Name{CommonName: "usb-signing"}
	der, err := s.GenerateCSR(subject)
	require.NoError(t, err)

	csr, alg, err := parseCSR(der)
	require.NoError(t, err)
	require.Equal(t, Classical, alg)
	require.NotNil(t, csr)
}

func TestParseCSRRejectsUnrecognizedOID(t *testing.T) {
	unknown := asn1.ObjectIdentifier{1, 2, 3, 4}
	der, err := asn1.Marshal(certReq{
		Info: certReqInfo{
			Subject: asn1.RawValue{FullBytes: []byte{0x30, 0x00}},
			PublicKey: subjectPublicKeyInfo{
				Algorithm: pkix.AlgorithmIdentifier{Algorithm: unknown},
				PublicKey: asn1.BitString{Bytes: []byte{0x01}, BitLength: 8},
			},
			Attributes: asn1.RawValue{FullBytes: []byte{0xA0, 0x00}},
		},
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: unknown},
		Signature:          asn1.BitString{Bytes: []byte{0x01}, BitLength: 8},
	})
	require.NoError(t, err)

	_, _, err = parseCSR(der)
	require.Error(t, err)
}
