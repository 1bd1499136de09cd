package verify

import (
	"crypto/x509/pkix"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keysas-fr/keysas-io/pkg/devsig"
	"github.com/keysas-fr/keysas-io/pkg/pki"
)

type fakeDevice struct{ data []byte }

func newFakeDevice(size int) *fakeDevice { return &fakeDevice{data: make([]byte, size)} }

func (d *fakeDevice) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, d.data[off:]), nil
}

func (d *fakeDevice) WriteAt(p []byte, off int64) (int, error) {
	return copy(d.data[off:], p), nil
}

func provisionCA(t *testing.T) (*pki.HybridKeyPair, *CACertificates) {
	t.Helper()

	root, err := pki.GenerateRoot(pki.CertificateFields{OrgName: "Keysas", OrgUnit: "USB", Country: "FR", ValidityDays: 3650})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, root.Save(dir, "usb-ca", "pw"))

	ca, err := LoadCACertificates(filepath.Join(dir, "usb-ca-cert-cl.pem"), filepath.Join(dir, "usb-ca-cert-pq.pem"))
	require.NoError(t, err)
	return root, ca
}

func TestVerifyProvisionThenVerifySucceeds(t *testing.T) {
	root, ca := provisionCA(t)
	leaf, err := pki.GenerateLeaf(root, pkix.Name{CommonName: "usb-signing"}, pki.CertificateFields{OrgName: "Keysas", OrgUnit: "USB", Country: "FR", ValidityDays: 365})
	require.NoError(t, err)

	identity := DeviceIdentity{VendorID: "abcd", ModelID: "1234", Revision: "0100", Serial: "S01"}
	sig, err := leaf.Sign(identity.CanonicalMessage("out"))
	require.NoError(t, err)

	dev := newFakeDevice(16 * 1024)
	require.NoError(t, devsig.WriteTo(dev, sig.Classical, sig.PostQuantum))

	ok, err := Verify(ca, identity, dev)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyTamperedHalfFlipsVerdict(t *testing.T) {
	root, ca := provisionCA(t)
	leaf, err := pki.GenerateLeaf(root, pkix.Name{CommonName: "usb-signing"}, pki.CertificateFields{OrgName: "Keysas", OrgUnit: "USB", Country: "FR", ValidityDays: 365})
	require.NoError(t, err)

	identity := DeviceIdentity{VendorID: "abcd", ModelID: "1234", Revision: "0100", Serial: "S01"}
	sig, err := leaf.Sign(identity.CanonicalMessage("out"))
	require.NoError(t, err)
	sig.PostQuantum[0] ^= 0xFF

	dev := newFakeDevice(16 * 1024)
	require.NoError(t, devsig.WriteTo(dev, sig.Classical, sig.PostQuantum))

	ok, err := Verify(ca, identity, dev)
	require.False(t, ok)
	require.Error(t, err)
}

func TestVerifyWrongIdentityFails(t *testing.T) {
	root, ca := provisionCA(t)
	leaf, err := pki.GenerateLeaf(root, pkix.Name{CommonName: "usb-signing"}, pki.CertificateFields{OrgName: "Keysas", OrgUnit: "USB", Country: "FR", ValidityDays: 365})
	require.NoError(t, err)

	signed := DeviceIdentity{VendorID: "abcd", ModelID: "1234", Revision: "0100", Serial: "S01"}
	sig, err := leaf.Sign(signed.CanonicalMessage("out"))
	require.NoError(t, err)

	dev := newFakeDevice(16 * 1024)
	require.NoError(t, devsig.WriteTo(dev, sig.Classical, sig.PostQuantum))

	presented := signed
	presented.Serial = "S02"

	ok, err := Verify(ca, presented, dev)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyOversizeLengthFailsClosed(t *testing.T) {
	_, ca := provisionCA(t)

	dev := newFakeDevice(16 * 1024)
	// length field at offset 512 left as 9000 (> MaxPayloadLength)
	dev.data[512] = 0
	dev.data[513] = 0
	dev.data[514] = 0x23
	dev.data[515] = 0x28 // 9000

	ok, err := Verify(ca, DeviceIdentity{VendorID: "abcd", ModelID: "1234", Revision: "0100", Serial: "S01"}, dev)
	require.NoError(t, err)
	require.False(t, ok)
}
