// Package cms implements the sod.Verifier port on top of the mdean75/cms
// CMS SignedData implementation. The ICAO LDSSecurityObject carried as
// eContent is decoded here with encoding/asn1; everything at the CMS layer
// (SignerInfo, signed attributes, signature verification) is the library's.
package cms

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"io"

	mcms "github.com/mdean75/cms"

	"veripass/internal/pki"
	"veripass/internal/sod"
)

// sodApplicationTag is the ICAO Doc 9303 EF.SOD application wrapper ([APPLICATION 23]).
const sodApplicationTag = 0x77

// ldsSecurityObject is the ASN.1 structure carried as SignedData eContent
// (ICAO Doc 9303 Part 10).
type ldsSecurityObject struct {
	Version             int
	HashAlgorithm       pkix.AlgorithmIdentifier
	DataGroupHashValues []dataGroupHashEntry
}

type dataGroupHashEntry struct {
	DataGroupNumber    int
	DataGroupHashValue []byte
}

var digestOIDNames = map[string]pki.HashAlgorithm{
	"2.16.840.1.101.3.4.2.1": pki.SHA256,
	"2.16.840.1.101.3.4.2.2": pki.SHA384,
	"2.16.840.1.101.3.4.2.3": pki.SHA512,
}

var signatureOIDNames = map[string]string{
	"1.2.840.113549.1.1.1":  "RSA",
	"1.2.840.113549.1.1.10": "RSASSA-PSS",
	"1.2.840.113549.1.1.11": "SHA256withRSA",
	"1.2.840.113549.1.1.12": "SHA384withRSA",
	"1.2.840.113549.1.1.13": "SHA512withRSA",
	"1.2.840.10045.4.3.2":   "SHA256withECDSA",
	"1.2.840.10045.4.3.3":   "SHA384withECDSA",
	"1.2.840.10045.4.3.4":   "SHA512withECDSA",
	"1.3.101.112":           "Ed25519",
}

// Backend is a stateless sod.Verifier. Safe for concurrent use.
type Backend struct{}

func New() *Backend {
	return &Backend{}
}

var _ sod.Verifier = (*Backend)(nil)

func (b *Backend) ParseDataGroupHashes(raw []byte) (map[int]pki.DataGroupHash, error) {
	lds, err := b.parseLDS(raw)
	if err != nil {
		return nil, err
	}
	hashes := make(map[int]pki.DataGroupHash, len(lds.DataGroupHashValues))
	for _, entry := range lds.DataGroupHashValues {
		value, err := pki.DataGroupHashFromBytes(entry.DataGroupHashValue)
		if err != nil {
			return nil, fmt.Errorf("data group %d: %w", entry.DataGroupNumber, err)
		}
		hashes[entry.DataGroupNumber] = value
	}
	return hashes, nil
}

func (b *Backend) VerifySignature(raw []byte, dscPublicKey crypto.PublicKey) error {
	parsed, err := b.parse(raw)
	if err != nil {
		return err
	}
	cert, err := embeddedDSC(parsed)
	if err != nil {
		return err
	}

	// The caller resolved the DSC independently; refuse to report a valid
	// signature when its key is not the embedded signer's key.
	type keyEqualer interface{ Equal(crypto.PublicKey) bool }
	if eq, ok := cert.PublicKey.(keyEqualer); !ok || !eq.Equal(dscPublicKey) {
		return sod.ErrPublicKeyMismatch
	}

	// Chain validation is owned by the trust-chain validator, not the CMS layer.
	if err := parsed.Verify(mcms.WithNoChainValidation()); err != nil {
		return fmt.Errorf("%w: %v", sod.ErrSignatureInvalid, err)
	}
	return nil
}

func (b *Backend) ExtractHashAlgorithm(raw []byte) (pki.HashAlgorithm, error) {
	lds, err := b.parseLDS(raw)
	if err != nil {
		return "", err
	}
	alg, ok := digestOIDNames[lds.HashAlgorithm.Algorithm.String()]
	if !ok {
		return "", fmt.Errorf("%w: digest OID %s", pki.ErrUnsupportedAlgorithm, lds.HashAlgorithm.Algorithm)
	}
	return alg, nil
}

func (b *Backend) ExtractSignatureAlgorithm(raw []byte) (string, error) {
	parsed, err := b.parse(raw)
	if err != nil {
		return "", err
	}
	signers := parsed.Signers()
	if len(signers) == 0 {
		return "", sod.ErrNoSignerInfo
	}
	oid := signers[0].SignatureAlgorithm.Algorithm.String()
	if name, ok := signatureOIDNames[oid]; ok {
		return name, nil
	}
	return oid, nil
}

func (b *Backend) ExtractDSCInfo(raw []byte) (sod.DSCInfo, error) {
	cert, err := b.ExtractDSCCertificate(raw)
	if err != nil {
		return sod.DSCInfo{}, err
	}
	return sod.DSCInfo{
		SubjectDN:    cert.Subject.String(),
		SerialNumber: cert.SerialNumber,
	}, nil
}

func (b *Backend) ExtractDSCCertificate(raw []byte) (*x509.Certificate, error) {
	parsed, err := b.parse(raw)
	if err != nil {
		return nil, err
	}
	return embeddedDSC(parsed)
}

func (b *Backend) parse(raw []byte) (*mcms.ParsedSignedData, error) {
	inner, err := unwrapApplicationTag(raw)
	if err != nil {
		return nil, err
	}
	parsed, err := mcms.ParseSignedData(bytes.NewReader(inner))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sod.ErrMalformedSOD, err)
	}
	return parsed, nil
}

func (b *Backend) parseLDS(raw []byte) (*ldsSecurityObject, error) {
	parsed, err := b.parse(raw)
	if err != nil {
		return nil, err
	}
	content, err := parsed.Content()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sod.ErrMalformedSOD, err)
	}
	contentBytes, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sod.ErrMalformedSOD, err)
	}

	var lds ldsSecurityObject
	rest, err := asn1.Unmarshal(contentBytes, &lds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sod.ErrUnknownContentType, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: trailing bytes after LDS security object", sod.ErrUnknownContentType)
	}
	return &lds, nil
}

// embeddedDSC returns the signer certificate matched from the CMS certificate
// set. The first SignerInfo's certificate wins; a SOD has exactly one signer.
func embeddedDSC(parsed *mcms.ParsedSignedData) (*x509.Certificate, error) {
	signers := parsed.Signers()
	if len(signers) == 0 {
		return nil, sod.ErrNoSignerInfo
	}
	if signers[0].Certificate != nil {
		return signers[0].Certificate, nil
	}
	// Fall back to the raw certificate set when SID matching failed.
	if certs := parsed.Certificates(); len(certs) > 0 {
		return certs[0], nil
	}
	return nil, sod.ErrNoEmbeddedDSC
}

// unwrapApplicationTag strips the ICAO EF.SOD [APPLICATION 23] wrapper when
// present, returning the CMS ContentInfo bytes. A bare SEQUENCE passes
// through untouched.
func unwrapApplicationTag(raw []byte) ([]byte, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", sod.ErrMalformedSOD, len(raw))
	}
	if raw[0] != sodApplicationTag {
		return raw, nil
	}

	// DER length octets: short form, or long form with a length-of-length byte.
	lengthByte := raw[1]
	offset := 2
	length := int(lengthByte)
	if lengthByte&0x80 != 0 {
		numBytes := int(lengthByte & 0x7F)
		if numBytes == 0 || numBytes > 4 || len(raw) < 2+numBytes {
			return nil, fmt.Errorf("%w: bad application tag length", sod.ErrMalformedSOD)
		}
		length = 0
		for _, b := range raw[2 : 2+numBytes] {
			length = length<<8 | int(b)
		}
		offset = 2 + numBytes
	}
	if len(raw) < offset+length {
		return nil, fmt.Errorf("%w: truncated application tag content", sod.ErrMalformedSOD)
	}
	return raw[offset : offset+length], nil
}
