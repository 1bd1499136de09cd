package usbctl

import (
	"context"
	"crypto/x509/pkix"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keysas-fr/keysas-io/pkg/devsig"
	"github.com/keysas-fr/keysas-io/pkg/pki"
	"github.com/keysas-fr/keysas-io/pkg/verify"
)

// fakeEventSource replays a fixed slice of events then blocks until ctx is
// canceled, standing in for the netlink-backed source in tests.
type fakeEventSource struct {
	events []RawEvent
	i      int
}

func (s *fakeEventSource) Next(ctx context.Context) (RawEvent, error) {
	if s.i < len(s.events) {
		ev := s.events[s.i]
		s.i++
		return ev, nil
	}
	<-ctx.Done()
	return RawEvent{}, ctx.Err()
}

func (s *fakeEventSource) Close() error { return nil }

func provisionTestCA(t *testing.T) (*pki.HybridKeyPair, *verify.CACertificates) {
	t.Helper()
	root, err := pki.GenerateRoot(pki.CertificateFields{OrgName: "Keysas", OrgUnit: "USB", Country: "FR", ValidityDays: 3650})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, root.Save(dir, "usb-ca", "pw"))
	ca, err := verify.LoadCACertificates(filepath.Join(dir, "usb-ca-cert-cl.pem"), filepath.Join(dir, "usb-ca-cert-pq.pem"))
	require.NoError(t, err)
	return root, ca
}

func writeSignedDisk(t *testing.T, leaf *pki.HybridKeyPair, identity verify.DeviceIdentity) string {
	t.Helper()
	sig, err := leaf.Sign(identity.CanonicalMessage("out"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "disk")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(16*1024))
	require.NoError(t, devsig.WriteTo(f, sig.Classical, sig.PostQuantum))
	return path
}

func addEvent(devName string, props map[string]string) RawEvent {
	all := map[string]string{"DEVTYPE": "partition", "DEVNAME": devName}
	for k, v := range props {
		all[k] = v
	}
	return RawEvent{Action: "add", Properties: all}
}

func TestControllerDispatchesSignedDeviceToEgress(t *testing.T) {
	root, ca := provisionTestCA(t)
	leaf, err := pki.GenerateLeaf(root, pkix.Name{CommonName: "usb-signing"}, pki.CertificateFields{OrgName: "Keysas", OrgUnit: "USB", Country: "FR", ValidityDays: 365})
	require.NoError(t, err)

	identity := verify.DeviceIdentity{VendorID: "abcd", ModelID: "1234", Revision: "0100", Serial: "S01"}
	diskFile := writeSignedDisk(t, leaf, identity)

	sasOut := t.TempDir()
	ctrl := NewController(Config{CA: ca, SasIn: t.TempDir(), SasOut: sasOut})

	ev := addEvent(diskFile+"1", map[string]string{
		"ID_VENDOR_ID": identity.VendorID, "ID_MODEL_ID": identity.ModelID,
		"ID_REVISION": identity.Revision, "ID_SERIAL": identity.Serial,
	})
	ctrl.handle(ev)

	require.True(t, ctrl.sets.contains(ctrl.sets.out, "abcd/1234/0100"))
	require.False(t, ctrl.sets.contains(ctrl.sets.in, "abcd/1234/0100"))
}

func TestControllerDispatchesUnsignedDeviceToIngress(t *testing.T) {
	_, ca := provisionTestCA(t)

	path := filepath.Join(t.TempDir(), "disk")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(16*1024))
	f.Close()

	ctrl := NewController(Config{CA: ca, SasIn: t.TempDir(), SasOut: t.TempDir()})
	ev := addEvent(path+"1", map[string]string{
		"ID_VENDOR_ID": "dead", "ID_MODEL_ID": "beef", "ID_REVISION": "0001", "ID_SERIAL": "X1",
	})
	ctrl.handle(ev)

	require.True(t, ctrl.sets.contains(ctrl.sets.in, "dead/beef/0001"))
}

func TestControllerSkipsMalformedEventWithoutCrashing(t *testing.T) {
	_, ca := provisionTestCA(t)
	ctrl := NewController(Config{CA: ca, SasIn: t.TempDir(), SasOut: t.TempDir()})

	ev := RawEvent{Action: "add", Properties: map[string]string{"DEVTYPE": "partition", "DEVNAME": "/dev/sdz1"}}
	require.NotPanics(t, func() { ctrl.handle(ev) })

	require.Empty(t, ctrl.sets.snapshot(YubikeyStatus{}).USBIn)
}

func TestControllerRemoveResetsAllSetsOnMalformedIdentity(t *testing.T) {
	_, ca := provisionTestCA(t)
	ctrl := NewController(Config{CA: ca, SasIn: t.TempDir(), SasOut: t.TempDir()})
	ctrl.sets.in["a/b/c"] = struct{}{}
	ctrl.sets.out["d/e/f"] = struct{}{}

	ctrl.handle(RawEvent{Action: "remove", Properties: map[string]string{}})

	snap := ctrl.sets.snapshot(YubikeyStatus{})
	require.Empty(t, snap.USBIn)
	require.Empty(t, snap.USBOut)
}

func TestControllerRemoveClearsOnlyMatchingProduct(t *testing.T) {
	_, ca := provisionTestCA(t)
	ctrl := NewController(Config{CA: ca, SasIn: t.TempDir(), SasOut: t.TempDir()})
	ctrl.sets.in["a/b/c"] = struct{}{}
	ctrl.sets.out["d/e/f"] = struct{}{}

	ctrl.handle(RawEvent{Action: "remove", Properties: map[string]string{
		"ID_VENDOR_ID": "a", "ID_MODEL_ID": "b", "ID_REVISION": "c",
		"ID_SERIAL": "S01", "DEVNAME": "/dev/sda1",
	}})

	require.False(t, ctrl.sets.contains(ctrl.sets.in, "a/b/c"))
	require.True(t, ctrl.sets.contains(ctrl.sets.out, "d/e/f"))
}

func TestControllerRunStopsOnContextCancel(t *testing.T) {
	_, ca := provisionTestCA(t)
	ctrl := NewController(Config{CA: ca, SasIn: t.TempDir(), SasOut: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ctrl.Run(ctx, &fakeEventSource{})
	require.NoError(t, err)
}
