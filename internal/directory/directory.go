// Package directory abstracts the PKD directory from which trust anchors and
// revocation lists are resolved by distinguished name. The verification
// pipeline only requires this read-only contract, not the transport behind it.
package directory

import (
	"context"
	"crypto/x509"
	"errors"
)

// ErrNotFound indicates the directory holds no object for the given DN.
var ErrNotFound = errors.New("directory object not found")

// Directory resolves CSCA certificates and CRLs by distinguished name.
// Both lookups are synchronous, read-only and must honor ctx deadlines.
type Directory interface {
	// FindCSCABySubjectDN returns the CSCA whose subject DN matches dn.
	FindCSCABySubjectDN(ctx context.Context, dn string) (*x509.Certificate, error)

	// FindCRLByIssuerDN returns the CRL issued under dn.
	FindCRLByIssuerDN(ctx context.Context, dn string) (*x509.RevocationList, error)
}
