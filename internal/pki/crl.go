package pki

import (
	"crypto/x509"
	"fmt"
	"math/big"
	"time"
)

// oidCRLReasonCode is the RFC 5280 CRL-entry reasonCode extension (2.5.29.21).
var oidCRLReasonCode = []int{2, 5, 29, 21}

// CRLVerifier checks a certificate's revocation status against a CRL.
type CRLVerifier struct{}

func NewCRLVerifier() *CRLVerifier {
	return &CRLVerifier{}
}

// VerifyCertificate runs the revocation check pipeline at the given reference
// time. The steps short-circuit: a CRL whose signature does not verify with
// the issuer's public key is CRL_INVALID, a CRL outside its update window is
// CRL_EXPIRED, and only then is the revoked-entry list consulted. A serial
// number absent from the list is VALID.
func (v *CRLVerifier) VerifyCertificate(cert *x509.Certificate, crl *x509.RevocationList, issuer *x509.Certificate, now time.Time) CrlCheckResult {
	if crl == nil {
		return CrlUnavailable("no CRL available for issuer")
	}

	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return CrlInvalid(fmt.Sprintf("CRL signature does not verify with issuer public key: %v", err))
	}

	if now.Before(crl.ThisUpdate) {
		return CrlExpired(fmt.Sprintf("CRL is not yet valid: thisUpdate %s is after check time %s",
			crl.ThisUpdate.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339)))
	}
	if !now.Before(crl.NextUpdate) {
		return CrlExpired(fmt.Sprintf("CRL has expired: nextUpdate %s is not after check time %s",
			crl.NextUpdate.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339)))
	}

	entry, found := findRevokedEntry(crl, cert.SerialNumber)
	if !found {
		return CrlValid()
	}

	// A malformed reason extension must not mask the revocation itself;
	// it degrades to Unspecified.
	reason := extractReasonCode(entry)
	result, err := CrlRevoked(entry.RevocationTime, reason)
	if err != nil {
		result, _ = CrlRevoked(entry.RevocationTime, ReasonUnspecified)
	}
	return result
}

func findRevokedEntry(crl *x509.RevocationList, serial *big.Int) (x509.RevocationListEntry, bool) {
	for _, entry := range crl.RevokedCertificateEntries {
		if entry.SerialNumber != nil && entry.SerialNumber.Cmp(serial) == 0 {
			return entry, true
		}
	}
	return x509.RevocationListEntry{}, false
}

// extractReasonCode reads the reasonCode entry extension (2.5.29.21). The
// wire form is a DER OCTET STRING wrapping an ENUMERATED value; some
// producers emit the bare ENUMERATED, so the outer wrapper is optional here.
// Absent or malformed bytes yield Unspecified.
func extractReasonCode(entry x509.RevocationListEntry) RevocationReason {
	for _, ext := range entry.Extensions {
		if !ext.Id.Equal(oidCRLReasonCode) {
			continue
		}
		if code, ok := decodeReasonValue(ext.Value); ok {
			if reason, err := ParseRevocationReason(code); err == nil {
				return reason
			}
		}
		return ReasonUnspecified
	}
	return ReasonUnspecified
}

// decodeReasonValue unwraps tag/length by hand rather than through
// encoding/asn1 so that truncated or over-long values degrade instead of
// failing the revocation check.
func decodeReasonValue(raw []byte) (int, bool) {
	const (
		tagOctetString = 0x04
		tagEnumerated  = 0x0A
	)
	// Optional outer OCTET STRING.
	if len(raw) >= 2 && raw[0] == tagOctetString {
		length := int(raw[1])
		if length > len(raw)-2 {
			return 0, false
		}
		raw = raw[2 : 2+length]
	}
	// Inner ENUMERATED with a single content byte.
	if len(raw) != 3 || raw[0] != tagEnumerated || raw[1] != 0x01 {
		return 0, false
	}
	return int(raw[2]), true
}
