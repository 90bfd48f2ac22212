package testutil

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	mcms "github.com/mdean75/cms"
	"github.com/stretchr/testify/require"
)

// CertAuthority bundles a certificate with its private key.
type CertAuthority struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// CertSpec overrides fixture certificate defaults. Zero values fall back to a
// one-year validity window around now and a random serial.
type CertSpec struct {
	CommonName   string
	Country      string
	NotBefore    time.Time
	NotAfter     time.Time
	SerialNumber *big.Int
}

func (spec *CertSpec) applyDefaults(defaultCN string) {
	if spec.CommonName == "" {
		spec.CommonName = defaultCN
	}
	if spec.Country == "" {
		spec.Country = "UT"
	}
	if spec.NotBefore.IsZero() {
		spec.NotBefore = time.Now().Add(-time.Hour)
	}
	if spec.NotAfter.IsZero() {
		spec.NotAfter = time.Now().Add(365 * 24 * time.Hour)
	}
	if spec.SerialNumber == nil {
		spec.SerialNumber, _ = rand.Int(rand.Reader, big.NewInt(1<<62))
	}
}

// NewCSCA generates a self-signed country signing CA.
func NewCSCA(t *testing.T, spec CertSpec) CertAuthority {
	t.Helper()
	spec.applyDefaults("Test CSCA")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: spec.SerialNumber,
		Subject: pkix.Name{
			CommonName: spec.CommonName,
			Country:    []string{spec.Country},
		},
		NotBefore:             spec.NotBefore,
		NotAfter:              spec.NotAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return CertAuthority{Cert: cert, Key: key}
}

// NewDSC generates a document signer certificate issued by the given CSCA.
func NewDSC(t *testing.T, csca CertAuthority, spec CertSpec) CertAuthority {
	t.Helper()
	spec.applyDefaults("Test DSC")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: spec.SerialNumber,
		Subject: pkix.Name{
			CommonName: spec.CommonName,
			Country:    []string{spec.Country},
		},
		NotBefore: spec.NotBefore,
		NotAfter:  spec.NotAfter,
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, csca.Cert, &key.PublicKey, csca.Key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return CertAuthority{Cert: cert, Key: key}
}

// RevokedEntry describes one revoked certificate for NewCRL.
type RevokedEntry struct {
	SerialNumber   *big.Int
	RevocationTime time.Time
	ReasonCode     int
}

// NewCRL builds a CRL signed by the given CSCA.
func NewCRL(t *testing.T, csca CertAuthority, thisUpdate, nextUpdate time.Time, entries ...RevokedEntry) *x509.RevocationList {
	t.Helper()

	revoked := make([]x509.RevocationListEntry, 0, len(entries))
	for _, entry := range entries {
		revocationTime := entry.RevocationTime
		if revocationTime.IsZero() {
			revocationTime = thisUpdate
		}
		revoked = append(revoked, x509.RevocationListEntry{
			SerialNumber:   entry.SerialNumber,
			RevocationTime: revocationTime,
			ReasonCode:     entry.ReasonCode,
		})
	}

	template := &x509.RevocationList{
		Number:                    big.NewInt(1),
		ThisUpdate:                thisUpdate,
		NextUpdate:                nextUpdate,
		RevokedCertificateEntries: revoked,
	}
	der, err := x509.CreateRevocationList(rand.Reader, template, csca.Cert, csca.Key)
	require.NoError(t, err)
	crl, err := x509.ParseRevocationList(der)
	require.NoError(t, err)
	return crl
}

// ldsSecurityObject mirrors the ICAO Doc 9303 Part 10 eContent structure.
type ldsSecurityObject struct {
	Version             int
	HashAlgorithm       pkix.AlgorithmIdentifier
	DataGroupHashValues []dataGroupHashEntry
}

type dataGroupHashEntry struct {
	DataGroupNumber    int
	DataGroupHashValue []byte
}

var digestOIDs = map[string]asn1.ObjectIdentifier{
	"SHA-256": {2, 16, 840, 1, 101, 3, 4, 2, 1},
	"SHA-384": {2, 16, 840, 1, 101, 3, 4, 2, 2},
	"SHA-512": {2, 16, 840, 1, 101, 3, 4, 2, 3},
}

// icaoLDSSecurityObjectOID is the eContentType of a security object.
var icaoLDSSecurityObjectOID = asn1.ObjectIdentifier{2, 23, 136, 1, 1, 1}

// HashContent digests content with the named algorithm (SHA-256, SHA-384,
// SHA-512).
func HashContent(t *testing.T, algorithm string, content []byte) []byte {
	t.Helper()
	switch algorithm {
	case "SHA-256":
		sum := sha256.Sum256(content)
		return sum[:]
	case "SHA-384":
		sum := sha512.Sum384(content)
		return sum[:]
	case "SHA-512":
		sum := sha512.Sum512(content)
		return sum[:]
	default:
		t.Fatalf("unsupported digest algorithm %q", algorithm)
		return nil
	}
}

// NewSOD builds a CMS SignedData security object signed by the DSC, carrying
// the given data group hashes. The algorithm names the LDS digest (SHA-256,
// SHA-384, SHA-512).
func NewSOD(t *testing.T, dsc CertAuthority, algorithm string, hashes map[int][]byte) []byte {
	t.Helper()

	oid, ok := digestOIDs[algorithm]
	require.True(t, ok, "unsupported digest algorithm %q", algorithm)

	lds := ldsSecurityObject{
		Version:       0,
		HashAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oid},
	}
	for number, value := range hashes {
		lds.DataGroupHashValues = append(lds.DataGroupHashValues, dataGroupHashEntry{
			DataGroupNumber:    number,
			DataGroupHashValue: value,
		})
	}
	ldsDER, err := asn1.Marshal(lds)
	require.NoError(t, err)

	signed, err := mcms.NewSigner().
		WithCertificate(dsc.Cert).
		WithPrivateKey(dsc.Key).
		WithHash(crypto.SHA256).
		WithContentType(icaoLDSSecurityObjectOID).
		Sign(bytes.NewReader(ldsDER))
	require.NoError(t, err)
	return signed
}

// WrapApplicationTag wraps DER content in the EF.SOD [APPLICATION 23] tag the
// way the chip returns it.
func WrapApplicationTag(t *testing.T, content []byte) []byte {
	t.Helper()

	length := len(content)
	var header []byte
	switch {
	case length < 0x80:
		header = []byte{0x77, byte(length)}
	case length <= 0xFF:
		header = []byte{0x77, 0x81, byte(length)}
	default:
		header = []byte{0x77, 0x82, byte(length >> 8), byte(length)}
	}
	return append(header, content...)
}
