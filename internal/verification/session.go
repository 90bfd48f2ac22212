package verification

import (
	"errors"
	"fmt"
	"time"

	"veripass/internal/pki"
	id "veripass/pkg/domain"
)

// Session aggregate errors.
var (
	ErrNoDataGroups       = errors.New("a session requires at least one data group")
	ErrTooManyDataGroups  = errors.New("a session holds at most 16 data groups")
	ErrDuplicateDataGroup = errors.New("duplicate data group number")
	ErrSessionCompleted   = errors.New("session already completed")
	ErrUnknownDataGroup   = errors.New("data group not part of this session")
)

// Session is the aggregate root for one verification request. It owns the
// security object, the supplied data groups, the audit trail and the final
// verdict. Sessions share no state with one another; all writes go through
// the aggregate so terminal fields stay write-once.
//
// Lifecycle: created (optimistically VALID) -> started -> completed
// (VALID | INVALID | ERROR), terminal.
type Session struct {
	id       id.SessionID
	sod      *SecurityObjectDocument
	groups   []*DataGroup
	metadata RequestMetadata

	startedAt   time.Time
	started     bool
	completedAt time.Time
	completed   bool
	duration    time.Duration

	status   Status
	result   Result
	auditLog []AuditLogEntry
}

// NewSession creates a session over a security object and 1-16 data groups
// with unique numbers. Metadata is captured once and immutable afterwards.
func NewSession(sod *SecurityObjectDocument, groups []*DataGroup, metadata RequestMetadata) (*Session, error) {
	if sod == nil {
		return nil, ErrEmptySOD
	}
	if len(groups) == 0 {
		return nil, ErrNoDataGroups
	}
	if len(groups) > 16 {
		return nil, fmt.Errorf("%w (got %d)", ErrTooManyDataGroups, len(groups))
	}
	seen := make(map[int]bool, len(groups))
	for _, g := range groups {
		if seen[g.Number()] {
			return nil, fmt.Errorf("%w: DG%d", ErrDuplicateDataGroup, g.Number())
		}
		seen[g.Number()] = true
	}
	return &Session{
		id:       id.NewSessionID(),
		sod:      sod,
		groups:   append([]*DataGroup(nil), groups...),
		metadata: metadata,
		status:   StatusValid, // optimistic until a result is recorded
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() id.SessionID { return s.id }

// SecurityObject returns the session's security object.
func (s *Session) SecurityObject() *SecurityObjectDocument { return s.sod }

// Metadata returns the request metadata captured at creation.
func (s *Session) Metadata() RequestMetadata { return s.metadata }

// DataGroups returns the session's data groups in supplied order.
func (s *Session) DataGroups() []*DataGroup {
	return append([]*DataGroup(nil), s.groups...)
}

// AddDataGroup appends a further data group. A duplicate number is rejected
// and leaves the existing list unchanged.
func (s *Session) AddDataGroup(group *DataGroup) error {
	if s.completed {
		return ErrSessionCompleted
	}
	if len(s.groups) >= 16 {
		return ErrTooManyDataGroups
	}
	for _, g := range s.groups {
		if g.Number() == group.Number() {
			return fmt.Errorf("%w: DG%d", ErrDuplicateDataGroup, group.Number())
		}
	}
	s.groups = append(s.groups, group)
	return nil
}

// MarkStarted records the verification start time. Idempotent: a second call
// is a no-op.
func (s *Session) MarkStarted(now time.Time) {
	if s.started {
		return
	}
	s.started = true
	s.startedAt = now
}

// RecordResult sets the terminal status, findings, completion time and
// processing duration exactly once. A second terminal transition is a
// programming error and returns ErrSessionCompleted rather than silently
// overwriting the verdict.
func (s *Session) RecordResult(status Status, result Result, now time.Time) error {
	if s.completed {
		return ErrSessionCompleted
	}
	switch status {
	case StatusValid, StatusInvalid, StatusError:
	default:
		return fmt.Errorf("invalid session status %q", status)
	}
	if now.Before(s.startedAt) {
		now = s.startedAt
	}
	s.status = status
	s.result = result
	s.completedAt = now
	s.duration = now.Sub(s.startedAt)
	s.completed = true
	return nil
}

// recordDataGroupOutcome writes a data group's check outcome through the
// aggregate so the write-once guard cannot be bypassed.
func (s *Session) recordDataGroupOutcome(number int, expected, actual pki.DataGroupHash) error {
	for _, g := range s.groups {
		if g.Number() == number {
			return g.recordOutcome(expected, actual)
		}
	}
	return fmt.Errorf("%w: DG%d", ErrUnknownDataGroup, number)
}

// AppendAudit appends an entry to the session's audit trail.
func (s *Session) AppendAudit(entry AuditLogEntry) {
	s.auditLog = append(s.auditLog, entry)
}

// AuditLog returns the audit trail in append order.
func (s *Session) AuditLog() []AuditLogEntry {
	return append([]AuditLogEntry(nil), s.auditLog...)
}

// Status returns the session verdict (optimistic VALID until completed).
func (s *Session) Status() Status { return s.status }

// Result returns the recorded findings.
func (s *Session) Result() Result { return s.result }

// Started reports whether verification has begun.
func (s *Session) Started() bool { return s.started }

// Completed reports whether a terminal result has been recorded.
func (s *Session) Completed() bool { return s.completed }

// StartedAt returns the verification start time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// CompletedAt returns the completion time, zero until completed.
func (s *Session) CompletedAt() time.Time { return s.completedAt }

// IsValid reports a VALID verdict on a completed session.
func (s *Session) IsValid() bool { return s.completed && s.status == StatusValid }

// IsInvalid reports an INVALID verdict.
func (s *Session) IsInvalid() bool { return s.status == StatusInvalid }

// IsError reports an ERROR verdict.
func (s *Session) IsError() bool { return s.status == StatusError }

// AllDataGroupsValid reports whether every data group hash-matched the SOD.
func (s *Session) AllDataGroupsValid() bool {
	for _, g := range s.groups {
		if !g.Valid() {
			return false
		}
	}
	return true
}

// ValidDataGroupCount counts groups whose hash matched.
func (s *Session) ValidDataGroupCount() int {
	count := 0
	for _, g := range s.groups {
		if g.Valid() {
			count++
		}
	}
	return count
}

// InvalidDataGroupCount counts groups whose hash did not match.
func (s *Session) InvalidDataGroupCount() int {
	return len(s.groups) - s.ValidDataGroupCount()
}

// CriticalFindings returns the critical-severity subset of the result.
func (s *Session) CriticalFindings() []Finding {
	return s.result.Critical()
}

// ProcessingDuration returns how long verification took.
func (s *Session) ProcessingDuration() time.Duration { return s.duration }

// ProcessingDurationMillis returns the duration in whole milliseconds.
func (s *Session) ProcessingDurationMillis() int64 { return s.duration.Milliseconds() }

// ProcessingDurationSeconds returns the duration in seconds.
func (s *Session) ProcessingDurationSeconds() float64 { return s.duration.Seconds() }
