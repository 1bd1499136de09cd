package pki

import (
	"encoding/pem"
	"fmt"
	"os"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

const pemCertificateBlockType = "CERTIFICATE"

func writePEMCert(path string, der []byte) error {
	block := &pem.Block{Type: pemCertificateBlockType, Bytes: der}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o644); err != nil {
		return kerrors.New(kerrors.IoFatal, "pki.writePEMCert", err)
	}
	return nil
}

func readPEMCert(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "pki.readPEMCert.read", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, kerrors.New(kerrors.InvariantViolation, "pki.readPEMCert.decode",
			fmt.Errorf("%s does not contain a PEM block", path))
	}
	return block.Bytes, nil
}
