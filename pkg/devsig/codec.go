package devsig

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

const (
	// BlobOffset is where the 4-byte length prefix begins on the raw device.
	BlobOffset = 512
	// PayloadOffset is where the ASCII payload begins.
	PayloadOffset = BlobOffset + 4
	// MaxPayloadLength is the hard upper bound on the payload length, per
	// spec §4.C (the reserved region ends at offset 8192).
	MaxPayloadLength = 7684

	separator = '|'
)

// Decode reads the device signature blob from r, which must address offset
// 0 of the raw device (seeking/positioning is the caller's responsibility;
// Decode always reads at absolute offsets BlobOffset/PayloadOffset via
// io.ReaderAt so it never depends on the handle's current position).
//
// Any malformed encoding — an out-of-range length, invalid UTF-8, a missing
// separator, or invalid base64 on either half — is reported as an error;
// callers in the non-fatal path (the verifier, §4.D) treat any error as
// "unsigned" rather than propagating it.
func Decode(r io.ReaderAt) (classical, pq []byte, err error) {
	var lenBuf [4]byte
	if _, err := r.ReadAt(lenBuf[:], BlobOffset); err != nil {
		return nil, nil, kerrors.New(kerrors.BadInput, "devsig.Decode.read_length", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 || length > MaxPayloadLength {
		return nil, nil, kerrors.New(kerrors.BadInput, "devsig.Decode.length",
			fmt.Errorf("length %d out of range [1, %d]", length, MaxPayloadLength))
	}

	payload := make([]byte, length)
	if _, err := r.ReadAt(payload, PayloadOffset); err != nil {
		return nil, nil, kerrors.New(kerrors.BadInput, "devsig.Decode.read_payload", err)
	}
	if !utf8.Valid(payload) {
		return nil, nil, kerrors.New(kerrors.BadInput, "devsig.Decode.utf8", fmt.Errorf("payload is not valid UTF-8"))
	}

	parts := bytes.SplitN(payload, []byte{separator}, 2)
	if len(parts) != 2 {
		return nil, nil, kerrors.New(kerrors.BadInput, "devsig.Decode.split", fmt.Errorf("missing '|' separator"))
	}

	classical, err = base64.StdEncoding.DecodeString(string(parts[0]))
	if err != nil {
		return nil, nil, kerrors.New(kerrors.BadInput, "devsig.Decode.base64_classical", err)
	}
	pq, err = base64.StdEncoding.DecodeString(string(parts[1]))
	if err != nil {
		return nil, nil, kerrors.New(kerrors.BadInput, "devsig.Decode.base64_pq", err)
	}
	return classical, pq, nil
}

// Encode builds the on-disk blob (4-byte big-endian length followed by the
// ASCII payload) for classical and pq signature bytes, ready to be written
// at BlobOffset. It is the symmetric inverse of Decode, used by the
// provisioning tool.
func Encode(classical, pq []byte) ([]byte, error) {
	payload := base64.StdEncoding.EncodeToString(classical) + string(separator) + base64.StdEncoding.EncodeToString(pq)
	if len(payload) == 0 || len(payload) > MaxPayloadLength {
		return nil, kerrors.New(kerrors.BadInput, "devsig.Encode",
			fmt.Errorf("encoded payload length %d out of range [1, %d]", len(payload), MaxPayloadLength))
	}

	blob := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(blob[:4], uint32(len(payload)))
	copy(blob[4:], payload)
	return blob, nil
}

// WriteTo encodes classical and pq and writes the resulting blob at
// BlobOffset in w.
func WriteTo(w io.WriterAt, classical, pq []byte) error {
	blob, err := Encode(classical, pq)
	if err != nil {
		return err
	}
	if _, err := w.WriteAt(blob, BlobOffset); err != nil {
		return kerrors.New(kerrors.IoFatal, "devsig.WriteTo", err)
	}
	return nil
}
