package verification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"veripass/internal/pki"
)

type ModelsSuite struct {
	suite.Suite
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsSuite))
}

func (s *ModelsSuite) TestNewSecurityObjectDocument() {
	s.Run("accepts a DER SEQUENCE", func() {
		doc, err := NewSecurityObjectDocument([]byte{0x30, 0x03, 0x01, 0x02, 0x03})
		s.Require().NoError(err)
		s.Equal(byte(0x30), doc.Raw()[0])
	})

	s.Run("accepts the ICAO application tag", func() {
		doc, err := NewSecurityObjectDocument([]byte{0x77, 0x03, 0x01, 0x02, 0x03})
		s.Require().NoError(err)
		s.Equal(byte(0x77), doc.Raw()[0])
	})

	s.Run("rejects empty input", func() {
		_, err := NewSecurityObjectDocument(nil)
		s.Require().ErrorIs(err, ErrEmptySOD)
	})

	s.Run("rejects other leading tags", func() {
		_, err := NewSecurityObjectDocument([]byte{0x02, 0x01, 0x01})
		s.Require().ErrorIs(err, ErrInvalidSODFormat)
	})

	s.Run("copies the input bytes", func() {
		raw := []byte{0x30, 0x01, 0x00}
		doc, err := NewSecurityObjectDocument(raw)
		s.Require().NoError(err)
		raw[0] = 0x00
		s.Equal(byte(0x30), doc.Raw()[0])
	})
}

func (s *ModelsSuite) TestAlgorithmsAreWriteOnce() {
	doc, err := NewSecurityObjectDocument([]byte{0x30, 0x01, 0x00})
	s.Require().NoError(err)

	s.Require().NoError(doc.SetHashAlgorithm(pki.SHA256))
	s.Equal(pki.SHA256, doc.HashAlgorithm())
	s.Require().ErrorIs(doc.SetHashAlgorithm(pki.SHA512), ErrAlgorithmAlreadySet)
	s.Equal(pki.SHA256, doc.HashAlgorithm())

	s.Require().NoError(doc.SetSignatureAlgorithm("SHA256withECDSA"))
	s.Require().ErrorIs(doc.SetSignatureAlgorithm("SHA512withRSA"), ErrAlgorithmAlreadySet)
	s.Equal("SHA256withECDSA", doc.SignatureAlgorithm())
}

func (s *ModelsSuite) TestNewDataGroup() {
	s.Run("accepts numbers 1 through 16", func() {
		for number := 1; number <= 16; number++ {
			group, err := NewDataGroup(number, []byte("content"))
			s.Require().NoError(err)
			s.Equal(number, group.Number())
		}
	})

	s.Run("rejects numbers outside the range", func() {
		for _, number := range []int{0, -1, 17, 100} {
			_, err := NewDataGroup(number, []byte("content"))
			s.Require().ErrorIs(err, ErrInvalidDataGroupNumber, "number %d", number)
		}
	})

	s.Run("rejects empty content", func() {
		_, err := NewDataGroup(1, nil)
		s.Require().ErrorIs(err, ErrEmptyDataGroup)
	})

	s.Run("starts unchecked", func() {
		group, err := NewDataGroup(1, []byte("content"))
		s.Require().NoError(err)
		s.False(group.Checked())
		s.False(group.Valid())
		s.True(group.ExpectedHash().IsZero())
		s.True(group.ActualHash().IsZero())
	})
}

func (s *ModelsSuite) TestComputeHash() {
	group, err := NewDataGroup(1, []byte("content"))
	s.Require().NoError(err)

	first, err := group.ComputeHash(pki.SHA256)
	s.Require().NoError(err)
	second, err := group.ComputeHash(pki.SHA256)
	s.Require().NoError(err)
	s.True(first.Equal(second))

	_, err = group.ComputeHash(pki.HashAlgorithm("MD5"))
	s.Require().ErrorIs(err, pki.ErrUnsupportedAlgorithm)
}

func (s *ModelsSuite) TestResult() {
	critical := Finding{Code: CodeSignatureInvalid, Message: "bad", Severity: SeverityCritical}
	warning := Finding{Code: CodeCRLExpired, Message: "stale", Severity: SeverityWarning}

	s.Run("empty result has no findings", func() {
		s.False(NewResult().HasFindings())
		s.Empty(NewResult().Critical())
	})

	s.Run("critical filters by severity", func() {
		result := NewResult(critical, warning)
		s.True(result.HasFindings())
		s.Len(result.Findings(), 2)
		s.Equal([]Finding{critical}, result.Critical())
	})

	s.Run("findings are copied out", func() {
		result := NewResult(critical)
		out := result.Findings()
		out[0].Code = "mutated"
		s.Equal(critical.Code, result.Findings()[0].Code)
	})
}

func (s *ModelsSuite) TestMustDataGroupHashHelpers() {
	value := strings.Repeat("ab", 32)
	h := pki.MustDataGroupHash(value)
	s.Equal(value, h.String())
}
