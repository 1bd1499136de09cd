package usbctl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskPathStripsTrailingDigits(t *testing.T) {
	require.Equal(t, "/dev/sdb", diskPath("/dev/sdb1"))
	require.Equal(t, "/dev/sdb", diskPath("/dev/sdb12"))
	require.Equal(t, "/dev/sdb", diskPath("/dev/sdb"))
}

func TestExtractIdentityMissingProperty(t *testing.T) {
	ev := RawEvent{Properties: map[string]string{
		"ID_VENDOR_ID": "abcd", "ID_MODEL_ID": "1234",
	}}
	_, _, err := extractIdentity(ev)
	require.Error(t, err)
}

func TestExtractIdentitySuccess(t *testing.T) {
	ev := RawEvent{Properties: map[string]string{
		"ID_VENDOR_ID": "abcd", "ID_MODEL_ID": "1234", "ID_REVISION": "0100",
		"DEVNAME": "/dev/sdb1", "ID_SERIAL": "S01",
	}}
	id, devName, err := extractIdentity(ev)
	require.NoError(t, err)
	require.Equal(t, "/dev/sdb1", devName)
	require.Equal(t, "abcd/1234/0100", product(id))
}
