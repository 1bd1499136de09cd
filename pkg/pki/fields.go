package pki

import (
	"fmt"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

// CertificateFields is the uniform input to both root and leaf issuance
// (spec §3). Country is canonicalized to exactly two characters: longer
// values are truncated, shorter values are a hard validation failure.
type CertificateFields struct {
	OrgName      string
	OrgUnit      string
	Country      string
	ValidityDays int
}

// Normalize validates and canonicalizes f, returning a copy with Country
// truncated to two characters.
func (f CertificateFields) Normalize() (CertificateFields, error) {
	if len(f.Country) < 2 {
		return CertificateFields{}, kerrors.New(kerrors.BadInput, "CertificateFields.Normalize",
			fmt.Errorf("country code %q is shorter than 2 characters", f.Country))
	}
	if f.ValidityDays < 0 {
		return CertificateFields{}, kerrors.New(kerrors.BadInput, "CertificateFields.Normalize",
			fmt.Errorf("validity_days must be non-negative, got %d", f.ValidityDays))
	}
	f.Country = f.Country[:2]
	return f, nil
}
