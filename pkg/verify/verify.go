package verify

import (
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/keysas-fr/keysas-io/pkg/devsig"
	"github.com/keysas-fr/keysas-io/pkg/kerrors"
	"github.com/keysas-fr/keysas-io/pkg/pki"
)

func pemToDER(raw []byte) ([]byte, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	return block.Bytes, nil
}

// ErrHybridMismatch distinguishes "one half verified, the other didn't"
// from a plain verification failure, per spec §4.D step 4.
var ErrHybridMismatch = errors.New("one signature half verified, the other did not")

// DeviceIdentity is the udev-derived identity bound into the canonical
// signed message (spec §4.D, §4.F).
type DeviceIdentity struct {
	VendorID string
	ModelID  string
	Revision string
	Serial   string
}

// CanonicalMessage builds the UTF-8 message the device signature is bound
// to. direction is "in" or "out"; §4.D always verifies against "out" since
// the signature authorizes egress from the secure enclave.
func (id DeviceIdentity) CanonicalMessage(direction string) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s/%s/%s", id.VendorID, id.ModelID, id.Revision, id.Serial, direction))
}

// CACertificates holds the two parsed CA certificates used as trust roots
// for device signature verification.
type CACertificates struct {
	Classical *pki.Certificate
	PQ        *pki.Certificate
}

// LoadCACertificates parses the two PEM-wrapped CA certificates at
// clPath/pqPath. Either failing to parse is a ConfigFatal error (spec §4.D
// step 1): an unparseable trust root is not a per-device problem, it is a
// daemon misconfiguration.
func LoadCACertificates(clPath, pqPath string) (*CACertificates, error) {
	clDER, err := readPEM(clPath)
	if err != nil {
		return nil, kerrors.New(kerrors.ConfigFatal, "verify.LoadCACertificates.read_classical", err)
	}
	pqDER, err := readPEM(pqPath)
	if err != nil {
		return nil, kerrors.New(kerrors.ConfigFatal, "verify.LoadCACertificates.read_pq", err)
	}

	clCert, err := pki.ParseCertificate(clDER)
	if err != nil {
		return nil, kerrors.New(kerrors.ConfigFatal, "verify.LoadCACertificates.parse_classical", err)
	}
	if clCert.Algorithm != pki.Classical {
		return nil, kerrors.New(kerrors.ConfigFatal, "verify.LoadCACertificates.parse_classical",
			fmt.Errorf("%s is not a classical certificate", clPath))
	}

	pqCert, err := pki.ParseCertificate(pqDER)
	if err != nil {
		return nil, kerrors.New(kerrors.ConfigFatal, "verify.LoadCACertificates.parse_pq", err)
	}
	if pqCert.Algorithm != pki.PostQuantum {
		return nil, kerrors.New(kerrors.ConfigFatal, "verify.LoadCACertificates.parse_pq",
			fmt.Errorf("%s is not a post-quantum certificate", pqPath))
	}

	return &CACertificates{Classical: clCert, PQ: pqCert}, nil
}

func readPEM(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return pemToDER(raw)
}

// Verify implements spec §4.D end to end: decode the device's signature
// blob from dev and check it against identity's canonical "/out" message
// under ca's two public keys.
//
// A decode failure (malformed blob) is non-fatal: it is reported as
// (false, nil), matching "treat as unsigned" rather than propagating an
// error. A parse success with exactly one half verifying is reported as
// (false, ErrHybridMismatch-wrapped error); any other failure mode returns
// (false, nil) as well, since from the caller's perspective an unsigned and
// a mis-signed device are both simply "not authorized".
func Verify(ca *CACertificates, identity DeviceIdentity, dev io.ReaderAt) (bool, error) {
	message := identity.CanonicalMessage("out")

	clSig, pqSig, err := devsig.Decode(dev)
	if err != nil {
		return false, nil
	}

	clOK, err := pki.VerifyMessage(pki.Classical, ca.Classical.PublicKey, message, clSig)
	if err != nil {
		return false, nil
	}
	pqOK, err := pki.VerifyMessage(pki.PostQuantum, ca.PQ.PublicKey, message, pqSig)
	if err != nil {
		return false, nil
	}

	if clOK && pqOK {
		return true, nil
	}
	if clOK != pqOK {
		return false, kerrors.New(kerrors.CryptoReject, "verify.Verify", ErrHybridMismatch)
	}
	return false, nil
}
