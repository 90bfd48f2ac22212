package pki

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veripass/pkg/testutil"
)

type CRLVerifierSuite struct {
	suite.Suite
	verifier *CRLVerifier
	now      time.Time
	csca     testutil.CertAuthority
	dsc      testutil.CertAuthority
}

func TestCRLVerifierSuite(t *testing.T) {
	suite.Run(t, new(CRLVerifierSuite))
}

func (s *CRLVerifierSuite) SetupTest() {
	s.verifier = NewCRLVerifier()
	s.now = time.Now()
	s.csca = testutil.NewCSCA(s.T(), testutil.CertSpec{CommonName: "CSCA Utopia"})
	s.dsc = testutil.NewDSC(s.T(), s.csca, testutil.CertSpec{CommonName: "DSC Utopia 001"})
}

func (s *CRLVerifierSuite) freshWindow() (time.Time, time.Time) {
	return s.now.Add(-time.Hour), s.now.Add(24 * time.Hour)
}

func (s *CRLVerifierSuite) TestVerifyCertificate() {
	s.Run("missing CRL is unavailable", func() {
		result := s.verifier.VerifyCertificate(s.dsc.Cert, nil, s.csca.Cert, s.now)
		s.Equal(CrlStatusUnavailable, result.Status())
	})

	s.Run("serial absent from the list is valid", func() {
		thisUpdate, nextUpdate := s.freshWindow()
		crl := testutil.NewCRL(s.T(), s.csca, thisUpdate, nextUpdate)
		result := s.verifier.VerifyCertificate(s.dsc.Cert, crl, s.csca.Cert, s.now)
		s.Equal(CrlStatusValid, result.Status())
		s.True(result.IsValid())
	})

	s.Run("listed serial is revoked with date and reason", func() {
		thisUpdate, nextUpdate := s.freshWindow()
		revokedAt := s.now.Add(-30 * time.Minute).Truncate(time.Second)
		crl := testutil.NewCRL(s.T(), s.csca, thisUpdate, nextUpdate, testutil.RevokedEntry{
			SerialNumber:   s.dsc.Cert.SerialNumber,
			RevocationTime: revokedAt,
			ReasonCode:     int(ReasonKeyCompromise),
		})
		result := s.verifier.VerifyCertificate(s.dsc.Cert, crl, s.csca.Cert, s.now)
		s.Require().Equal(CrlStatusRevoked, result.Status())
		s.Equal(ReasonKeyCompromise, result.Reason())
		s.False(result.RevocationDate().IsZero())
	})

	s.Run("entry without reason extension degrades to unspecified", func() {
		thisUpdate, nextUpdate := s.freshWindow()
		crl := testutil.NewCRL(s.T(), s.csca, thisUpdate, nextUpdate, testutil.RevokedEntry{
			SerialNumber: s.dsc.Cert.SerialNumber,
		})
		result := s.verifier.VerifyCertificate(s.dsc.Cert, crl, s.csca.Cert, s.now)
		s.Require().Equal(CrlStatusRevoked, result.Status())
		s.Equal(ReasonUnspecified, result.Reason())
	})

	s.Run("expired CRL wins over a listed serial", func() {
		crl := testutil.NewCRL(s.T(), s.csca, s.now.Add(-48*time.Hour), s.now.Add(-24*time.Hour), testutil.RevokedEntry{
			SerialNumber: s.dsc.Cert.SerialNumber,
			ReasonCode:   int(ReasonKeyCompromise),
		})
		result := s.verifier.VerifyCertificate(s.dsc.Cert, crl, s.csca.Cert, s.now)
		s.Equal(CrlStatusExpired, result.Status())
		s.False(result.IsRevoked())
	})

	s.Run("CRL not yet in its window is expired", func() {
		crl := testutil.NewCRL(s.T(), s.csca, s.now.Add(24*time.Hour), s.now.Add(48*time.Hour))
		result := s.verifier.VerifyCertificate(s.dsc.Cert, crl, s.csca.Cert, s.now)
		s.Equal(CrlStatusExpired, result.Status())
	})

	s.Run("CRL signed by another issuer is invalid", func() {
		other := testutil.NewCSCA(s.T(), testutil.CertSpec{CommonName: "CSCA Ruritania"})
		thisUpdate, nextUpdate := s.freshWindow()
		crl := testutil.NewCRL(s.T(), other, thisUpdate, nextUpdate)
		result := s.verifier.VerifyCertificate(s.dsc.Cert, crl, s.csca.Cert, s.now)
		s.Equal(CrlStatusInvalid, result.Status())
	})

	s.Run("signature check runs before the window check", func() {
		other := testutil.NewCSCA(s.T(), testutil.CertSpec{CommonName: "CSCA Ruritania"})
		crl := testutil.NewCRL(s.T(), other, s.now.Add(-48*time.Hour), s.now.Add(-24*time.Hour))
		result := s.verifier.VerifyCertificate(s.dsc.Cert, crl, s.csca.Cert, s.now)
		s.Equal(CrlStatusInvalid, result.Status())
	})
}

func (s *CRLVerifierSuite) TestDecodeReasonValue() {
	s.Run("bare enumerated", func() {
		code, ok := decodeReasonValue([]byte{0x0A, 0x01, 0x01})
		s.True(ok)
		s.Equal(1, code)
	})

	s.Run("octet string wrapped enumerated", func() {
		code, ok := decodeReasonValue([]byte{0x04, 0x03, 0x0A, 0x01, 0x05})
		s.True(ok)
		s.Equal(5, code)
	})

	s.Run("malformed bytes are rejected", func() {
		for _, raw := range [][]byte{
			nil,
			{0x0A},
			{0x0A, 0x02, 0x00, 0x01},
			{0x04, 0x10, 0x0A},
			{0x02, 0x01, 0x01},
		} {
			_, ok := decodeReasonValue(raw)
			s.False(ok, "raw %x", raw)
		}
	})
}
