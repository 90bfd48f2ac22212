package cms

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"

	"veripass/internal/pki"
	"veripass/internal/sod"
	"veripass/pkg/testutil"
)

type BackendSuite struct {
	suite.Suite
	backend *Backend
	csca    testutil.CertAuthority
	dsc     testutil.CertAuthority
	dg1     []byte
	dg2     []byte
	raw     []byte
}

func TestBackendSuite(t *testing.T) {
	suite.Run(t, new(BackendSuite))
}

func (s *BackendSuite) SetupTest() {
	s.backend = New()
	s.csca = testutil.NewCSCA(s.T(), testutil.CertSpec{CommonName: "CSCA Utopia"})
	s.dsc = testutil.NewDSC(s.T(), s.csca, testutil.CertSpec{CommonName: "DSC Utopia 001"})
	s.dg1 = []byte("P<UTODOE<<JOHN<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<")
	s.dg2 = []byte{0x75, 0x82, 0x01, 0x00}
	s.raw = testutil.NewSOD(s.T(), s.dsc, "SHA-256", map[int][]byte{
		1: testutil.HashContent(s.T(), "SHA-256", s.dg1),
		2: testutil.HashContent(s.T(), "SHA-256", s.dg2),
	})
}

func (s *BackendSuite) TestParseDataGroupHashes() {
	s.Run("returns every entry keyed by data group number", func() {
		hashes, err := s.backend.ParseDataGroupHashes(s.raw)
		s.Require().NoError(err)
		s.Len(hashes, 2)

		expected, err := pki.CalculateDataGroupHash(s.dg1, pki.SHA256)
		s.Require().NoError(err)
		s.True(hashes[1].Equal(expected))
	})

	s.Run("accepts the EF.SOD application wrapper", func() {
		wrapped := testutil.WrapApplicationTag(s.T(), s.raw)
		hashes, err := s.backend.ParseDataGroupHashes(wrapped)
		s.Require().NoError(err)
		s.Len(hashes, 2)
	})

	s.Run("rejects garbage", func() {
		_, err := s.backend.ParseDataGroupHashes([]byte{0x30, 0x03, 0x01, 0x02, 0x03})
		s.Require().ErrorIs(err, sod.ErrMalformedSOD)
	})

	s.Run("rejects truncated input", func() {
		_, err := s.backend.ParseDataGroupHashes([]byte{0x77})
		s.Require().ErrorIs(err, sod.ErrMalformedSOD)
	})
}

func (s *BackendSuite) TestExtractAlgorithms() {
	alg, err := s.backend.ExtractHashAlgorithm(s.raw)
	s.Require().NoError(err)
	s.Equal(pki.SHA256, alg)

	sigAlg, err := s.backend.ExtractSignatureAlgorithm(s.raw)
	s.Require().NoError(err)
	s.Equal("SHA256withECDSA", sigAlg)
}

func (s *BackendSuite) TestExtractDSC() {
	info, err := s.backend.ExtractDSCInfo(s.raw)
	s.Require().NoError(err)
	s.Contains(info.SubjectDN, "DSC Utopia 001")
	s.Zero(info.SerialNumber.Cmp(s.dsc.Cert.SerialNumber))

	cert, err := s.backend.ExtractDSCCertificate(s.raw)
	s.Require().NoError(err)
	s.Equal(s.dsc.Cert.Raw, cert.Raw)
}

func (s *BackendSuite) TestVerifySignature() {
	s.Run("valid signature with the embedded signer's key", func() {
		s.Require().NoError(s.backend.VerifySignature(s.raw, s.dsc.Cert.PublicKey))
	})

	s.Run("valid through the application wrapper", func() {
		wrapped := testutil.WrapApplicationTag(s.T(), s.raw)
		s.Require().NoError(s.backend.VerifySignature(wrapped, s.dsc.Cert.PublicKey))
	})

	s.Run("resolved key differing from the embedded signer is rejected", func() {
		other := testutil.NewDSC(s.T(), s.csca, testutil.CertSpec{CommonName: "DSC Utopia 002"})
		err := s.backend.VerifySignature(s.raw, other.Cert.PublicKey)
		s.Require().ErrorIs(err, sod.ErrPublicKeyMismatch)
	})

	s.Run("tampered content fails signature verification", func() {
		target := testutil.HashContent(s.T(), "SHA-256", s.dg1)
		idx := bytes.Index(s.raw, target)
		s.Require().GreaterOrEqual(idx, 0, "hash value not found in DER")

		tampered := bytes.Clone(s.raw)
		tampered[idx] ^= 0xFF
		err := s.backend.VerifySignature(tampered, s.dsc.Cert.PublicKey)
		s.Require().ErrorIs(err, sod.ErrSignatureInvalid)
	})
}
