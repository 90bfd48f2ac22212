// Package sod defines the port through which the verification pipeline reads
// and verifies a document security object (EF.SOD). Low-level CMS/ASN.1
// decoding is delegated to a backend implementation; the domain never depends
// on a specific cryptography library.
package sod

import (
	"crypto"
	"crypto/x509"
	"errors"
	"math/big"

	"veripass/internal/pki"
)

// DSCInfo identifies the Document Signer Certificate embedded in a SOD.
type DSCInfo struct {
	SubjectDN    string
	SerialNumber *big.Int
}

// Verifier decodes and verifies a security object. Implementations must be
// safe for concurrent use; every method takes the raw SOD bytes so no parse
// state is shared between sessions.
type Verifier interface {
	// ParseDataGroupHashes returns the SOD's published hash table keyed by
	// data group number.
	ParseDataGroupHashes(sod []byte) (map[int]pki.DataGroupHash, error)

	// VerifySignature verifies the SOD signature with the DSC public key.
	// A nil error means the signature is valid.
	VerifySignature(sod []byte, dscPublicKey crypto.PublicKey) error

	// ExtractHashAlgorithm returns the digest algorithm the SOD declares for
	// its data group hashes.
	ExtractHashAlgorithm(sod []byte) (pki.HashAlgorithm, error)

	// ExtractSignatureAlgorithm returns the name of the SOD signature
	// algorithm (e.g. "SHA256withECDSA").
	ExtractSignatureAlgorithm(sod []byte) (string, error)

	// ExtractDSCInfo returns the subject DN and serial of the embedded DSC.
	ExtractDSCInfo(sod []byte) (DSCInfo, error)

	// ExtractDSCCertificate returns the DSC pulled from the CMS certificate
	// set embedded in the SOD. No directory lookup is involved.
	ExtractDSCCertificate(sod []byte) (*x509.Certificate, error)
}

// Errors shared by Verifier implementations.
var (
	ErrMalformedSOD       = errors.New("malformed security object")
	ErrNoSignerInfo       = errors.New("security object carries no signer info")
	ErrNoEmbeddedDSC      = errors.New("security object carries no document signer certificate")
	ErrSignatureInvalid   = errors.New("security object signature does not verify")
	ErrPublicKeyMismatch  = errors.New("supplied public key does not match the embedded signer certificate")
	ErrUnknownContentType = errors.New("security object eContent is not an LDS security object")
)
