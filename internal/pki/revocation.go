package pki

import (
	"errors"
	"fmt"
	"time"
)

// CrlStatus enumerates the outcomes of a revocation check.
type CrlStatus string

const (
	CrlStatusValid       CrlStatus = "VALID"
	CrlStatusRevoked     CrlStatus = "REVOKED"
	CrlStatusUnavailable CrlStatus = "CRL_UNAVAILABLE"
	CrlStatusExpired     CrlStatus = "CRL_EXPIRED"
	CrlStatusInvalid     CrlStatus = "CRL_INVALID"
)

// RevocationReason is an RFC 5280 CRLReason code (0-10).
type RevocationReason int

const (
	ReasonUnspecified          RevocationReason = 0
	ReasonKeyCompromise        RevocationReason = 1
	ReasonCACompromise         RevocationReason = 2
	ReasonAffiliationChanged   RevocationReason = 3
	ReasonSuperseded           RevocationReason = 4
	ReasonCessationOfOperation RevocationReason = 5
	ReasonCertificateHold      RevocationReason = 6
	// Value 7 is not used by RFC 5280.
	ReasonRemoveFromCRL      RevocationReason = 8
	ReasonPrivilegeWithdrawn RevocationReason = 9
	ReasonAACompromise       RevocationReason = 10
)

// ErrInvalidRevocationReason indicates a reason code outside 0-10.
var ErrInvalidRevocationReason = errors.New("invalid revocation reason: must be between 0 and 10")

// ParseRevocationReason validates an RFC 5280 reason code.
func ParseRevocationReason(code int) (RevocationReason, error) {
	if code < 0 || code > 10 {
		return 0, fmt.Errorf("%w (got %d)", ErrInvalidRevocationReason, code)
	}
	return RevocationReason(code), nil
}

var reasonTexts = map[RevocationReason]string{
	ReasonUnspecified:          "Unspecified",
	ReasonKeyCompromise:        "Key Compromise",
	ReasonCACompromise:         "CA Compromise",
	ReasonAffiliationChanged:   "Affiliation Changed",
	ReasonSuperseded:           "Superseded",
	ReasonCessationOfOperation: "Cessation Of Operation",
	ReasonCertificateHold:      "Certificate Hold",
	ReasonRemoveFromCRL:        "Remove From CRL",
	ReasonPrivilegeWithdrawn:   "Privilege Withdrawn",
	ReasonAACompromise:         "AA Compromise",
}

// String returns the RFC 5280 reason text, or "Unknown" for codes outside
// the standard range.
func (r RevocationReason) String() string {
	if text, ok := reasonTexts[r]; ok {
		return text
	}
	return "Unknown"
}

// CrlCheckResult is the outcome of checking one certificate against a CRL.
//
// Invariants:
//   - RevocationDate and RevocationReason are populated if and only if
//     Status is REVOKED
type CrlCheckResult struct {
	status         CrlStatus
	message        string
	revocationDate time.Time
	reason         RevocationReason
}

// Construction errors for CrlCheckResult.
var (
	ErrRevocationDateRequired = errors.New("revocation date required for a REVOKED result")
	ErrRevocationOnNonRevoked = errors.New("revocation details are only valid on a REVOKED result")
)

// CrlValid reports a certificate absent from the revoked-entry list.
func CrlValid() CrlCheckResult {
	return CrlCheckResult{status: CrlStatusValid, message: "certificate is not revoked"}
}

// CrlRevoked reports a revoked certificate. The date is mandatory; the
// reason defaults to Unspecified when the CRL entry carries none.
func CrlRevoked(date time.Time, reason RevocationReason) (CrlCheckResult, error) {
	if date.IsZero() {
		return CrlCheckResult{}, ErrRevocationDateRequired
	}
	if _, err := ParseRevocationReason(int(reason)); err != nil {
		return CrlCheckResult{}, err
	}
	return CrlCheckResult{
		status:         CrlStatusRevoked,
		message:        fmt.Sprintf("certificate revoked at %s: %s", date.UTC().Format(time.RFC3339), reason),
		revocationDate: date,
		reason:         reason,
	}, nil
}

// CrlUnavailable reports that no CRL could be resolved for the issuer.
func CrlUnavailable(message string) CrlCheckResult {
	return CrlCheckResult{status: CrlStatusUnavailable, message: message}
}

// CrlExpired reports a CRL outside its thisUpdate/nextUpdate window.
func CrlExpired(message string) CrlCheckResult {
	return CrlCheckResult{status: CrlStatusExpired, message: message}
}

// CrlInvalid reports a structurally broken CRL (bad signature, wrong issuer).
func CrlInvalid(message string) CrlCheckResult {
	return CrlCheckResult{status: CrlStatusInvalid, message: message}
}

// Status returns the revocation check status.
func (r CrlCheckResult) Status() CrlStatus {
	return r.status
}

// Message returns the human-readable explanation of the result.
func (r CrlCheckResult) Message() string {
	return r.message
}

// RevocationDate returns the revocation time. Only set for REVOKED results.
func (r CrlCheckResult) RevocationDate() time.Time {
	return r.revocationDate
}

// Reason returns the RFC 5280 reason code. Only meaningful for REVOKED results.
func (r CrlCheckResult) Reason() RevocationReason {
	return r.reason
}

// IsRevoked reports whether the certificate appeared in the revoked list.
func (r CrlCheckResult) IsRevoked() bool {
	return r.status == CrlStatusRevoked
}

// IsValid reports whether the certificate passed the revocation check.
func (r CrlCheckResult) IsValid() bool {
	return r.status == CrlStatusValid
}

// IsZero returns true if this is the zero value (uninitialized).
func (r CrlCheckResult) IsZero() bool {
	return r.status == ""
}
