package pki

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type RevocationResultSuite struct {
	suite.Suite
}

func TestRevocationResultSuite(t *testing.T) {
	suite.Run(t, new(RevocationResultSuite))
}

func (s *RevocationResultSuite) TestParseRevocationReason() {
	s.Run("accepts codes 0 through 10", func() {
		for code := 0; code <= 10; code++ {
			reason, err := ParseRevocationReason(code)
			s.Require().NoError(err)
			s.Equal(RevocationReason(code), reason)
		}
	})

	s.Run("rejects codes outside the range", func() {
		for _, code := range []int{-1, 11, 255} {
			_, err := ParseRevocationReason(code)
			s.Require().ErrorIs(err, ErrInvalidRevocationReason, "code %d", code)
		}
	})

	s.Run("maps codes to RFC 5280 text", func() {
		s.Equal("Key Compromise", ReasonKeyCompromise.String())
		s.Equal("CA Compromise", ReasonCACompromise.String())
		s.Equal("Certificate Hold", ReasonCertificateHold.String())
		s.Equal("Unspecified", ReasonUnspecified.String())
		s.Equal("Unknown", RevocationReason(7).String())
	})
}

func (s *RevocationResultSuite) TestCrlRevoked() {
	revokedAt := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	s.Run("requires a revocation date", func() {
		_, err := CrlRevoked(time.Time{}, ReasonKeyCompromise)
		s.Require().ErrorIs(err, ErrRevocationDateRequired)
	})

	s.Run("rejects invalid reason codes", func() {
		_, err := CrlRevoked(revokedAt, RevocationReason(42))
		s.Require().ErrorIs(err, ErrInvalidRevocationReason)
	})

	s.Run("carries date and reason", func() {
		result, err := CrlRevoked(revokedAt, ReasonKeyCompromise)
		s.Require().NoError(err)
		s.Equal(CrlStatusRevoked, result.Status())
		s.True(result.IsRevoked())
		s.False(result.IsValid())
		s.Equal(revokedAt, result.RevocationDate())
		s.Equal(ReasonKeyCompromise, result.Reason())
		s.Contains(result.Message(), "Key Compromise")
	})
}

func (s *RevocationResultSuite) TestNonRevokedResults() {
	s.Run("valid result", func() {
		result := CrlValid()
		s.True(result.IsValid())
		s.False(result.IsRevoked())
		s.True(result.RevocationDate().IsZero())
	})

	s.Run("unavailable, expired and invalid carry their message", func() {
		cases := map[CrlStatus]CrlCheckResult{
			CrlStatusUnavailable: CrlUnavailable("no CRL for issuer"),
			CrlStatusExpired:     CrlExpired("next update has passed"),
			CrlStatusInvalid:     CrlInvalid("signature check failed"),
		}
		for status, result := range cases {
			s.Equal(status, result.Status())
			s.False(result.IsValid())
			s.False(result.IsRevoked())
			s.NotEmpty(result.Message())
		}
	})

	s.Run("zero value is detectable", func() {
		s.True(CrlCheckResult{}.IsZero())
		s.False(CrlValid().IsZero())
	})
}
