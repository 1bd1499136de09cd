package pki

import (
	"crypto/x509/pkix"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func validFields() CertificateFields {
	return CertificateFields{OrgName: "Keysas", OrgUnit: "Station", Country: "FR", ValidityDays: 365}
}

func TestGenerateRootProducesVerifiableSelfSignedCerts(t *testing.T) {
	root, err := GenerateRoot(validFields())
	require.NoError(t, err)
	require.NotEmpty(t, root.ClassicalCert)
	require.NotEmpty(t, root.PQCert)

	clCert, err := ParseCertificate(root.ClassicalCert)
	require.NoError(t, err)
	ok, err := clCert.VerifySignedBy(Classical, root.Classical.PublicKeyBytes())
	require.NoError(t, err)
	require.True(t, ok)

	pqCert, err := ParseCertificate(root.PQCert)
	require.NoError(t, err)
	ok, err = pqCert.VerifySignedBy(PostQuantum, root.PQ.PublicKeyBytes())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGenerateRootCertsCarryMatchingAlgorithmOIDs(t *testing.T) {
	root, err := GenerateRoot(validFields())
	require.NoError(t, err)

	clCert, err := ParseCertificate(root.ClassicalCert)
	require.NoError(t, err)
	require.Equal(t, Classical, clCert.Algorithm)
	require.Equal(t, Classical, clCert.SignatureAlgorithm)

	pqCert, err := ParseCertificate(root.PQCert)
	require.NoError(t, err)
	require.Equal(t, PostQuantum, pqCert.Algorithm)
	require.Equal(t, PostQuantum, pqCert.SignatureAlgorithm)
}

func TestGenerateRootRejectsShortCountry(t *testing.T) {
	fields := validFields()
	fields.Country = "F"
	_, err := GenerateRoot(fields)
	require.Error(t, err)
}

func TestGenerateLeafIsSignedByRoot(t *testing.T) {
	root, err := GenerateRoot(validFields())
	require.NoError(t, err)

	leaf, err := GenerateLeaf(root, pkix.Name{CommonName: "usb-signing"}, validFields())
	require.NoError(t, err)

	clCert, err := ParseCertificate(leaf.ClassicalCert)
	require.NoError(t, err)
	ok, err := clCert.VerifySignedBy(Classical, root.Classical.PublicKeyBytes())
	require.NoError(t, err)
	require.True(t, ok)

	pqCert, err := ParseCertificate(leaf.PQCert)
	require.NoError(t, err)
	ok, err = pqCert.VerifySignedBy(PostQuantum, root.PQ.PublicKeyBytes())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGenerateLeafCertsCarryMatchingAlgorithmOIDs(t *testing.T) {
	root, err := GenerateRoot(validFields())
	require.NoError(t, err)

	leaf, err := GenerateLeaf(root, pkix.Name{CommonName: "usb-signing"}, validFields())
	require.NoError(t, err)

	clCert, err := ParseCertificate(leaf.ClassicalCert)
	require.NoError(t, err)
	require.Equal(t, Classical, clCert.Algorithm)
	require.Equal(t, Classical, clCert.SignatureAlgorithm)

	pqCert, err := ParseCertificate(leaf.PQCert)
	require.NoError(t, err)
	require.Equal(t, PostQuantum, pqCert.Algorithm)
	require.Equal(t, PostQuantum, pqCert.SignatureAlgorithm)
}

func TestHybridKeyPairSignVerifyRoundTrip(t *testing.T) {
	root, err := GenerateRoot(validFields())
	require.NoError(t, err)

	msg := []byte("vendor/model/rev/serial/out")
	sig, err := root.Sign(msg)
	require.NoError(t, err)

	ok, err := root.Verify(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)

	sig.Classical[0] ^= 0xFF
	ok, err = root.Verify(msg, sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHybridKeyPairSaveLoadRoundTrip(t *testing.T) {
	root, err := GenerateRoot(validFields())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, root.Save(dir, "usb-ca", "sekret"))

	loaded, err := LoadHybridKeyPair(dir, "usb-ca", "sekret")
	require.NoError(t, err)
	require.Equal(t, root.Classical.PublicKeyBytes(), loaded.Classical.PublicKeyBytes())
	require.Equal(t, root.PQ.PublicKeyBytes(), loaded.PQ.PublicKeyBytes())
	require.Equal(t, root.ClassicalCert, loaded.ClassicalCert)
	require.Equal(t, root.PQCert, loaded.PQCert)
}

func TestLoadHybridKeyPairRejectsAsymmetricHalves(t *testing.T) {
	root, err := GenerateRoot(validFields())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, root.Save(dir, "usb-ca", "sekret"))

	require.NoError(t, os.Remove(dir+"/usb-ca-priv-pq.p8"))

	_, err = LoadHybridKeyPair(dir, "usb-ca", "sekret")
	require.Error(t, err)
}
