package verification

import (
	"time"

	"veripass/internal/pki"
	id "veripass/pkg/domain"
)

// Snapshot is the persistence representation of a session. Stores serialize
// and rehydrate through it so the aggregate's invariants stay enforced by
// unexported fields everywhere else.
type Snapshot struct {
	ID                 id.SessionID
	SOD                []byte
	HashAlgorithm      string
	SignatureAlgorithm string
	DataGroups         []DataGroupSnapshot
	Metadata           RequestMetadata
	Started            bool
	StartedAt          time.Time
	Completed          bool
	CompletedAt        time.Time
	Duration           time.Duration
	Status             Status
	Findings           []Finding
	AuditLog           []AuditEntrySnapshot
}

// DataGroupSnapshot mirrors DataGroup for persistence.
type DataGroupSnapshot struct {
	Number       int
	Content      []byte
	ExpectedHash string
	ActualHash   string
	Valid        bool
	HashMismatch bool
	Checked      bool
}

// AuditEntrySnapshot mirrors AuditLogEntry for persistence.
type AuditEntrySnapshot struct {
	Step             AuditStep
	Status           StepStatus
	Timestamp        time.Time
	Level            AuditLevel
	Message          string
	Details          string
	ExecutionTime    time.Duration
	ExecutionTimeSet bool
}

// Snapshot captures the session's full state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:                 s.id,
		SOD:                s.sod.Raw(),
		HashAlgorithm:      s.sod.HashAlgorithm().String(),
		SignatureAlgorithm: s.sod.SignatureAlgorithm(),
		Metadata:           s.metadata,
		Started:            s.started,
		StartedAt:          s.startedAt,
		Completed:          s.completed,
		CompletedAt:        s.completedAt,
		Duration:           s.duration,
		Status:             s.status,
		Findings:           s.result.Findings(),
	}
	for _, g := range s.groups {
		snap.DataGroups = append(snap.DataGroups, DataGroupSnapshot{
			Number:       g.number,
			Content:      g.content,
			ExpectedHash: g.expectedHash.String(),
			ActualHash:   g.actualHash.String(),
			Valid:        g.valid,
			HashMismatch: g.hashMismatch,
			Checked:      g.checked,
		})
	}
	for _, e := range s.auditLog {
		took, set := e.ExecutionTime()
		snap.AuditLog = append(snap.AuditLog, AuditEntrySnapshot{
			Step:             e.Step,
			Status:           e.Status,
			Timestamp:        e.Timestamp,
			Level:            e.Level,
			Message:          e.Message,
			Details:          e.Details,
			ExecutionTime:    took,
			ExecutionTimeSet: set,
		})
	}
	return snap
}

// FromSnapshot rehydrates a session from its persisted state. Hash values in
// the snapshot are trusted as previously validated.
func FromSnapshot(snap Snapshot) *Session {
	sod := &SecurityObjectDocument{raw: snap.SOD, signatureAlgorithm: snap.SignatureAlgorithm}
	if snap.HashAlgorithm != "" {
		sod.hashAlgorithm = pki.HashAlgorithm(snap.HashAlgorithm)
	}

	session := &Session{
		id:          snap.ID,
		sod:         sod,
		metadata:    snap.Metadata,
		started:     snap.Started,
		startedAt:   snap.StartedAt,
		completed:   snap.Completed,
		completedAt: snap.CompletedAt,
		duration:    snap.Duration,
		status:      snap.Status,
		result:      NewResult(snap.Findings...),
	}
	for _, g := range snap.DataGroups {
		group := &DataGroup{
			number:       g.Number,
			content:      g.Content,
			valid:        g.Valid,
			hashMismatch: g.HashMismatch,
			checked:      g.Checked,
		}
		if g.ExpectedHash != "" {
			group.expectedHash = pki.MustDataGroupHash(g.ExpectedHash)
		}
		if g.ActualHash != "" {
			group.actualHash = pki.MustDataGroupHash(g.ActualHash)
		}
		session.groups = append(session.groups, group)
	}
	for _, e := range snap.AuditLog {
		entry := AuditLogEntry{
			Step:      e.Step,
			Status:    e.Status,
			Timestamp: e.Timestamp,
			Level:     e.Level,
			Message:   e.Message,
			Details:   e.Details,
		}
		entry.executionTime = e.ExecutionTime
		entry.executionTimeSet = e.ExecutionTimeSet
		session.auditLog = append(session.auditLog, entry)
	}
	return session
}
