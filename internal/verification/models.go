// Package verification owns the Passive Authentication session aggregate:
// the security object, its data groups, the verification result and the
// append-only audit log, plus the orchestrating service that sequences
// trust-chain, revocation, signature and hash checks.
package verification

import (
	"errors"
	"fmt"

	"veripass/internal/pki"
)

// Status is the terminal verdict of a verification session. VALID means
// every check passed; INVALID means at least one check found the document
// untrustworthy; ERROR means the pipeline itself failed, which must never be
// mistaken for a forged document.
type Status string

const (
	StatusValid   Status = "VALID"
	StatusInvalid Status = "INVALID"
	StatusError   Status = "ERROR"
)

// Severity grades a verification finding.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Finding is one error or warning discovered during verification.
type Finding struct {
	Code     string
	Message  string
	Severity Severity
}

// Finding codes.
const (
	CodeCSCANotFound         = "csca_not_found"
	CodeChainInvalid         = "certificate_chain_invalid"
	CodeDSCRevoked           = "dsc_revoked"
	CodeCRLUnavailable       = "crl_unavailable"
	CodeCRLExpired           = "crl_expired"
	CodeCRLInvalid           = "crl_invalid"
	CodeSignatureInvalid     = "sod_signature_invalid"
	CodeUnsupportedAlgorithm = "unsupported_hash_algorithm"
	CodeHashMismatch         = "data_group_hash_mismatch"
	CodeHashTableMissing     = "data_group_not_in_sod"
	CodeInternal             = "internal_error"
)

// Result is the list of findings recorded on a completed session.
type Result struct {
	findings []Finding
}

// NewResult builds a Result from findings.
func NewResult(findings ...Finding) Result {
	return Result{findings: append([]Finding(nil), findings...)}
}

// Findings returns a copy of all findings.
func (r Result) Findings() []Finding {
	return append([]Finding(nil), r.findings...)
}

// Critical returns only the critical-severity findings.
func (r Result) Critical() []Finding {
	var critical []Finding
	for _, f := range r.findings {
		if f.Severity == SeverityCritical {
			critical = append(critical, f)
		}
	}
	return critical
}

// HasFindings reports whether any error or warning was recorded.
func (r Result) HasFindings() bool {
	return len(r.findings) > 0
}

// ICAO tag bytes a security object may start with.
const (
	derSequenceTag    = 0x30
	sodApplicationTag = 0x77
)

// SecurityObjectDocument is the raw EF.SOD with the algorithm names filled in
// once during processing.
//
// Invariants:
//   - Non-empty; first byte is a DER SEQUENCE tag (0x30) or the ICAO EF.SOD
//     application tag (0x77)
//   - Algorithm fields are write-once
type SecurityObjectDocument struct {
	raw                []byte
	hashAlgorithm      pki.HashAlgorithm
	signatureAlgorithm string
}

// Construction and mutation errors.
var (
	ErrEmptySOD            = errors.New("security object is empty")
	ErrInvalidSODFormat    = errors.New("security object must begin with a DER SEQUENCE tag or the ICAO EF.SOD application tag")
	ErrAlgorithmAlreadySet = errors.New("security object algorithm is write-once")
)

// NewSecurityObjectDocument validates the raw bytes at construction, before
// any parsing or network activity.
func NewSecurityObjectDocument(raw []byte) (*SecurityObjectDocument, error) {
	if len(raw) == 0 {
		return nil, ErrEmptySOD
	}
	if raw[0] != derSequenceTag && raw[0] != sodApplicationTag {
		return nil, fmt.Errorf("%w (first byte 0x%02x)", ErrInvalidSODFormat, raw[0])
	}
	return &SecurityObjectDocument{raw: append([]byte(nil), raw...)}, nil
}

// Raw returns the encoded security object bytes.
func (d *SecurityObjectDocument) Raw() []byte {
	return d.raw
}

// HashAlgorithm returns the declared digest algorithm, zero until processed.
func (d *SecurityObjectDocument) HashAlgorithm() pki.HashAlgorithm {
	return d.hashAlgorithm
}

// SignatureAlgorithm returns the signature algorithm name, "" until processed.
func (d *SecurityObjectDocument) SignatureAlgorithm() string {
	return d.signatureAlgorithm
}

// SetHashAlgorithm records the declared digest algorithm exactly once.
func (d *SecurityObjectDocument) SetHashAlgorithm(alg pki.HashAlgorithm) error {
	if !d.hashAlgorithm.IsZero() {
		return ErrAlgorithmAlreadySet
	}
	d.hashAlgorithm = alg
	return nil
}

// SetSignatureAlgorithm records the signature algorithm name exactly once.
func (d *SecurityObjectDocument) SetSignatureAlgorithm(name string) error {
	if d.signatureAlgorithm != "" {
		return ErrAlgorithmAlreadySet
	}
	d.signatureAlgorithm = name
	return nil
}

// DataGroup is one of the up-to-16 data payloads on the document chip,
// together with the hash the issuing authority signed for it and the hash
// recomputed from the supplied content.
type DataGroup struct {
	number       int
	content      []byte
	expectedHash pki.DataGroupHash
	actualHash   pki.DataGroupHash
	valid        bool
	hashMismatch bool
	checked      bool
}

// DataGroup construction and mutation errors.
var (
	ErrInvalidDataGroupNumber = errors.New("data group number must be between 1 and 16")
	ErrEmptyDataGroup         = errors.New("data group content is empty")
	ErrDataGroupChecked       = errors.New("data group outcome is write-once")
)

// NewDataGroup creates a data group with its content.
func NewDataGroup(number int, content []byte) (*DataGroup, error) {
	if number < 1 || number > 16 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidDataGroupNumber, number)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w (DG%d)", ErrEmptyDataGroup, number)
	}
	return &DataGroup{number: number, content: append([]byte(nil), content...)}, nil
}

// NewDataGroupWithExpectedHash creates a data group that already carries the
// hash published in the SOD's table.
func NewDataGroupWithExpectedHash(number int, content []byte, expected pki.DataGroupHash) (*DataGroup, error) {
	group, err := NewDataGroup(number, content)
	if err != nil {
		return nil, err
	}
	group.expectedHash = expected
	return group, nil
}

// Number returns the data group number (1-16).
func (g *DataGroup) Number() int { return g.number }

// Content returns the raw payload bytes.
func (g *DataGroup) Content() []byte { return g.content }

// ExpectedHash returns the hash published in the SOD, zero until recorded.
func (g *DataGroup) ExpectedHash() pki.DataGroupHash { return g.expectedHash }

// ActualHash returns the hash recomputed from content, zero until computed.
func (g *DataGroup) ActualHash() pki.DataGroupHash { return g.actualHash }

// Valid reports whether the recomputed hash matched the published one.
func (g *DataGroup) Valid() bool { return g.valid }

// HashMismatchDetected reports a recomputed hash differing from the
// published one.
func (g *DataGroup) HashMismatchDetected() bool { return g.hashMismatch }

// Checked reports whether the verification outcome has been recorded.
func (g *DataGroup) Checked() bool { return g.checked }

// ComputeHash recomputes the content hash with the given algorithm.
func (g *DataGroup) ComputeHash(alg pki.HashAlgorithm) (pki.DataGroupHash, error) {
	return pki.CalculateDataGroupHash(g.content, alg)
}

// recordOutcome sets the verification outcome exactly once. Only the session
// that owns this group may call it (via Session.recordDataGroupOutcome).
func (g *DataGroup) recordOutcome(expected, actual pki.DataGroupHash) error {
	if g.checked {
		return fmt.Errorf("%w (DG%d)", ErrDataGroupChecked, g.number)
	}
	g.expectedHash = expected
	g.actualHash = actual
	g.valid = !expected.IsZero() && expected.Equal(actual)
	g.hashMismatch = !g.valid
	g.checked = true
	return nil
}

// RequestMetadata captures who asked for the verification. Immutable after
// creation.
type RequestMetadata struct {
	ClientIP    string
	UserAgent   string
	RequesterID string
}
