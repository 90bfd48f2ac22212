package verification

import (
	"errors"
	"time"
)

// AuditStep names a pipeline step in the audit trail.
type AuditStep string

const (
	StepVerificationStarted   AuditStep = "VERIFICATION_STARTED"
	StepCertificateChain      AuditStep = "CERTIFICATE_CHAIN"
	StepSODSignature          AuditStep = "SOD_SIGNATURE"
	StepDataGroupHash         AuditStep = "DATA_GROUP_HASH"
	StepVerificationCompleted AuditStep = "VERIFICATION_COMPLETED"
)

// StepStatus is the state a step transition reports.
type StepStatus string

const (
	StepStarted    StepStatus = "STARTED"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
	StepFailed     StepStatus = "FAILED"
)

// AuditLevel is the log level attached to an audit entry.
type AuditLevel string

const (
	AuditInfo  AuditLevel = "INFO"
	AuditWarn  AuditLevel = "WARN"
	AuditError AuditLevel = "ERROR"
)

// ErrExecutionTimeSet guards the single permitted execution-time backfill.
var ErrExecutionTimeSet = errors.New("audit entry execution time is write-once")

// AuditLogEntry is one append-only record of a step transition. Entries are
// constructed through the named factories below and never edited afterwards,
// except for a single execution-time backfill on the same entry.
type AuditLogEntry struct {
	Step      AuditStep
	Status    StepStatus
	Timestamp time.Time
	Level     AuditLevel
	Message   string
	Details   string

	executionTime    time.Duration
	executionTimeSet bool
}

// AuditStarted records a step beginning.
func AuditStarted(step AuditStep, at time.Time, message string) AuditLogEntry {
	return AuditLogEntry{Step: step, Status: StepStarted, Timestamp: at, Level: AuditInfo, Message: message}
}

// AuditInProgress records intermediate progress within a step.
func AuditInProgress(step AuditStep, at time.Time, message string) AuditLogEntry {
	return AuditLogEntry{Step: step, Status: StepInProgress, Timestamp: at, Level: AuditInfo, Message: message}
}

// AuditCompleted records a step finishing successfully with its elapsed time.
func AuditCompleted(step AuditStep, at time.Time, message string, took time.Duration) AuditLogEntry {
	entry := AuditLogEntry{Step: step, Status: StepCompleted, Timestamp: at, Level: AuditInfo, Message: message}
	entry.executionTime = took
	entry.executionTimeSet = true
	return entry
}

// AuditFailed records a step failing, with optional details and elapsed time.
func AuditFailed(step AuditStep, at time.Time, message, details string, took time.Duration) AuditLogEntry {
	entry := AuditLogEntry{Step: step, Status: StepFailed, Timestamp: at, Level: AuditError, Message: message, Details: details}
	entry.executionTime = took
	entry.executionTimeSet = true
	return entry
}

// ExecutionTime returns the recorded elapsed time and whether it was set.
func (e AuditLogEntry) ExecutionTime() (time.Duration, bool) {
	return e.executionTime, e.executionTimeSet
}

// BackfillExecutionTime sets the elapsed time on an entry created without
// one. Permitted exactly once.
func (e *AuditLogEntry) BackfillExecutionTime(took time.Duration) error {
	if e.executionTimeSet {
		return ErrExecutionTimeSet
	}
	e.executionTime = took
	e.executionTimeSet = true
	return nil
}
