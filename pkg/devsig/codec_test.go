package devsig

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDevice is a minimal io.ReaderAt/io.WriterAt backed by an in-memory
// byte slice, standing in for a raw block device / sparse file in tests.
type fakeDevice struct {
	data []byte
}

func newFakeDevice(size int) *fakeDevice {
	return &fakeDevice{data: make([]byte, size)}
}

func (d *fakeDevice) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, d.data[off:]), nil
}

func (d *fakeDevice) WriteAt(p []byte, off int64) (int, error) {
	return copy(d.data[off:], p), nil
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cl := []byte("a classical signature of some length")
	pq := make([]byte, 4595) // dilithium5-sized
	for i := range pq {
		pq[i] = byte(i)
	}

	dev := newFakeDevice(16 * 1024)
	require.NoError(t, WriteTo(dev, cl, pq))

	gotCl, gotPQ, err := Decode(dev)
	require.NoError(t, err)
	require.Equal(t, cl, gotCl)
	require.Equal(t, pq, gotPQ)
}

func TestDecodeRejectsOversizeLength(t *testing.T) {
	dev := newFakeDevice(16 * 1024)
	binary.BigEndian.PutUint32(dev.data[BlobOffset:], 9000)

	_, _, err := Decode(dev)
	require.Error(t, err)
}

func TestDecodeRejectsZeroLength(t *testing.T) {
	dev := newFakeDevice(16 * 1024)
	binary.BigEndian.PutUint32(dev.data[BlobOffset:], 0)

	_, _, err := Decode(dev)
	require.Error(t, err)
}

func TestDecodeRejectsMissingSeparator(t *testing.T) {
	dev := newFakeDevice(16 * 1024)
	payload := []byte("nobarhere")
	binary.BigEndian.PutUint32(dev.data[BlobOffset:], uint32(len(payload)))
	copy(dev.data[PayloadOffset:], payload)

	_, _, err := Decode(dev)
	require.Error(t, err)
}

func TestDecodeRejectsInvalidBase64(t *testing.T) {
	dev := newFakeDevice(16 * 1024)
	payload := []byte("not-valid-base64!!!|also-not-valid!!!")
	binary.BigEndian.PutUint32(dev.data[BlobOffset:], uint32(len(payload)))
	copy(dev.data[PayloadOffset:], payload)

	_, _, err := Decode(dev)
	require.Error(t, err)
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	huge := make([]byte, MaxPayloadLength*2)
	_, err := Encode(huge, huge)
	require.Error(t, err)
}
