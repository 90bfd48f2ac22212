package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veripass/internal/pki"
	"veripass/internal/verification"
	id "veripass/pkg/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
}

func (s *MemoryStoreSuite) newCompletedSession() *verification.Session {
	doc, err := verification.NewSecurityObjectDocument([]byte{0x30, 0x01, 0x00})
	s.Require().NoError(err)
	s.Require().NoError(doc.SetHashAlgorithm(pki.SHA256))
	s.Require().NoError(doc.SetSignatureAlgorithm("SHA256withECDSA"))

	group, err := verification.NewDataGroup(1, []byte("content"))
	s.Require().NoError(err)

	session, err := verification.NewSession(doc, []*verification.DataGroup{group},
		verification.RequestMetadata{ClientIP: "203.0.113.7", UserAgent: "reader/1.0", RequesterID: "border-control-7"})
	s.Require().NoError(err)

	now := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	session.MarkStarted(now)
	session.AppendAudit(verification.AuditStarted(verification.StepVerificationStarted, now, "passive authentication started"))
	session.AppendAudit(verification.AuditCompleted(verification.StepCertificateChain, now.Add(time.Millisecond), "certificate chain validated", time.Millisecond))

	finding := verification.Finding{
		Code:     verification.CodeCRLExpired,
		Message:  "CRL has expired",
		Severity: verification.SeverityCritical,
	}
	s.Require().NoError(session.RecordResult(verification.StatusInvalid,
		verification.NewResult(finding), now.Add(120*time.Millisecond)))
	return session
}

func (s *MemoryStoreSuite) TestSaveAndFindByID() {
	session := s.newCompletedSession()
	s.Require().NoError(s.store.Save(s.ctx, session))

	loaded, err := s.store.FindByID(s.ctx, session.ID())
	s.Require().NoError(err)

	s.Equal(session.ID(), loaded.ID())
	s.Equal(verification.StatusInvalid, loaded.Status())
	s.True(loaded.Completed())
	s.Equal(session.StartedAt(), loaded.StartedAt())
	s.Equal(session.CompletedAt(), loaded.CompletedAt())
	s.Equal(session.ProcessingDuration(), loaded.ProcessingDuration())
	s.Equal(session.Metadata(), loaded.Metadata())
	s.Equal("SHA-256", loaded.SecurityObject().HashAlgorithm().String())
	s.Equal("SHA256withECDSA", loaded.SecurityObject().SignatureAlgorithm())
	s.Equal(session.Result().Findings(), loaded.Result().Findings())

	s.Require().Len(loaded.DataGroups(), 1)
	s.Equal(1, loaded.DataGroups()[0].Number())

	log := loaded.AuditLog()
	s.Require().Len(log, 2)
	s.Equal(verification.StepVerificationStarted, log[0].Step)
	took, set := log[1].ExecutionTime()
	s.True(set)
	s.Equal(time.Millisecond, took)
}

func (s *MemoryStoreSuite) TestFindUnknownSession() {
	_, err := s.store.FindByID(s.ctx, id.NewSessionID())
	s.Require().ErrorIs(err, verification.ErrSessionNotFound)
}

func (s *MemoryStoreSuite) TestSaveIsSnapshotIsolated() {
	session := s.newCompletedSession()
	s.Require().NoError(s.store.Save(s.ctx, session))

	// Mutations after saving must not leak into the stored snapshot.
	session.AppendAudit(verification.AuditStarted(verification.StepDataGroupHash, time.Now(), "late entry"))

	loaded, err := s.store.FindByID(s.ctx, session.ID())
	s.Require().NoError(err)
	s.Len(loaded.AuditLog(), 2)
}

func (s *MemoryStoreSuite) TestClear() {
	session := s.newCompletedSession()
	s.Require().NoError(s.store.Save(s.ctx, session))
	s.store.Clear()
	_, err := s.store.FindByID(s.ctx, session.ID())
	s.Require().ErrorIs(err, verification.ErrSessionNotFound)
}
