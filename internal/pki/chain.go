package pki

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"time"
)

// FailureKind classifies a chain validation failure. Constraint violations
// (missing extensions, wrong flags) are never conflated with signature or
// validity failures so the audit trail stays precise.
type FailureKind string

const (
	FailureConstraint FailureKind = "constraint_violation"
	FailureSignature  FailureKind = "signature_invalid"
	FailureValidity   FailureKind = "validity_window"
	FailureNameChain  FailureKind = "name_chaining"
)

// CheckFailure is a single failed sub-check.
type CheckFailure struct {
	Kind    FailureKind
	Message string
}

func (f CheckFailure) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ChainResult accumulates the failures of every sub-check that was run.
// Every sub-check runs even after a failure so the full picture is recorded.
type ChainResult struct {
	Failures []CheckFailure
}

// Valid reports whether no sub-check failed.
func (r ChainResult) Valid() bool {
	return len(r.Failures) == 0
}

// Merge appends the failures of other into r.
func (r *ChainResult) Merge(other ChainResult) {
	r.Failures = append(r.Failures, other.Failures...)
}

func (r *ChainResult) fail(kind FailureKind, format string, args ...any) {
	r.Failures = append(r.Failures, CheckFailure{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// ChainValidator validates CSCA certificates and CSCA->DSC issuance
// relationships per ICAO 9303 Part 12. Revocation is out of scope here and
// owned by CRLVerifier.
type ChainValidator struct{}

func NewChainValidator() *ChainValidator {
	return &ChainValidator{}
}

// ValidateCSCA checks that cert is a well-formed country root at the given
// reference time: self-signed, CA=true, keyCertSign and cRLSign set, own
// signature verifiable with its own public key, validity window covering now.
func (v *ChainValidator) ValidateCSCA(cert *x509.Certificate, now time.Time) ChainResult {
	var result ChainResult

	if !bytes.Equal(cert.RawSubject, cert.RawIssuer) {
		result.fail(FailureNameChain, "CSCA subject %q does not equal its issuer %q", cert.Subject, cert.Issuer)
	}
	if !cert.IsCA {
		result.fail(FailureConstraint, "CSCA basic constraints do not assert CA")
	}
	if cert.KeyUsage&x509.KeyUsageCertSign == 0 {
		result.fail(FailureConstraint, "CSCA key usage is missing keyCertSign")
	}
	if cert.KeyUsage&x509.KeyUsageCRLSign == 0 {
		result.fail(FailureConstraint, "CSCA key usage is missing cRLSign")
	}
	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		result.fail(FailureSignature, "CSCA self-signature does not verify: %v", err)
	}
	result.Merge(v.checkValidityWindow("CSCA", cert, now))

	return result
}

// ValidateDSC checks that dsc was issued and signed by csca and is usable for
// document signing at the given reference time.
func (v *ChainValidator) ValidateDSC(dsc, csca *x509.Certificate, now time.Time) ChainResult {
	result := v.ValidateIssuerRelationship(dsc, csca)

	if dsc.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		result.fail(FailureConstraint, "DSC key usage is missing digitalSignature")
	}
	result.Merge(v.checkValidityWindow("DSC", dsc, now))

	return result
}

// ValidateIssuerRelationship checks the DSC's issuer DN against the CSCA's
// subject DN and verifies the DSC signature with the CSCA public key.
func (v *ChainValidator) ValidateIssuerRelationship(dsc, csca *x509.Certificate) ChainResult {
	var result ChainResult

	if !bytes.Equal(dsc.RawIssuer, csca.RawSubject) {
		result.fail(FailureNameChain, "DSC issuer %q does not equal CSCA subject %q", dsc.Issuer, csca.Subject)
	}
	if err := csca.CheckSignature(dsc.SignatureAlgorithm, dsc.RawTBSCertificate, dsc.Signature); err != nil {
		result.fail(FailureSignature, "DSC signature does not verify with CSCA public key: %v", err)
	}

	return result
}

// ValidateChain validates an ordered chain. The first element must be the
// CSCA; each following certificate must be issued by its predecessor.
func (v *ChainValidator) ValidateChain(chain []*x509.Certificate, now time.Time) ChainResult {
	var result ChainResult
	if len(chain) == 0 {
		result.fail(FailureConstraint, "chain is empty")
		return result
	}

	result.Merge(v.ValidateCSCA(chain[0], now))
	for i := 1; i < len(chain); i++ {
		result.Merge(v.ValidateDSC(chain[i], chain[i-1], now))
	}
	return result
}

func (v *ChainValidator) checkValidityWindow(label string, cert *x509.Certificate, now time.Time) ChainResult {
	var result ChainResult
	if now.Before(cert.NotBefore) {
		result.fail(FailureValidity, "%s is not yet valid: notBefore %s is after check time %s",
			label, cert.NotBefore.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		result.fail(FailureValidity, "%s has expired: notAfter %s is before check time %s",
			label, cert.NotAfter.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}
	return result
}
