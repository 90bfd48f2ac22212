package handler

import (
	"time"

	"veripass/internal/verification"
)

// SessionResponse is the wire representation of a verification session.
type SessionResponse struct {
	ID                 string              `json:"id"`
	Status             string              `json:"status"`
	HashAlgorithm      string              `json:"hash_algorithm,omitempty"`
	SignatureAlgorithm string              `json:"signature_algorithm,omitempty"`
	DataGroups         []DataGroupResponse `json:"data_groups"`
	Findings           []FindingResponse   `json:"findings,omitempty"`
	StartedAt          *time.Time          `json:"started_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	DurationMillis     int64               `json:"duration_ms"`
}

// DataGroupResponse summarizes one data group's hash comparison.
type DataGroupResponse struct {
	Number       int    `json:"number"`
	Checked      bool   `json:"checked"`
	Valid        bool   `json:"valid"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	ActualHash   string `json:"actual_hash,omitempty"`
}

// FindingResponse is one validation finding.
type FindingResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// AuditEntryResponse is one audit log entry.
type AuditEntryResponse struct {
	Step            string    `json:"step"`
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Level           string    `json:"level"`
	Message         string    `json:"message"`
	Details         string    `json:"details,omitempty"`
	ExecutionTimeMs *int64    `json:"execution_time_ms,omitempty"`
}

// FromSession converts a session aggregate into its wire form.
func FromSession(session *verification.Session) SessionResponse {
	resp := SessionResponse{
		ID:                 session.ID().String(),
		Status:             string(session.Status()),
		SignatureAlgorithm: session.SecurityObject().SignatureAlgorithm(),
		DurationMillis:     session.ProcessingDurationMillis(),
	}
	if !session.SecurityObject().HashAlgorithm().IsZero() {
		resp.HashAlgorithm = session.SecurityObject().HashAlgorithm().String()
	}
	if startedAt := session.StartedAt(); !startedAt.IsZero() {
		resp.StartedAt = &startedAt
	}
	if completedAt := session.CompletedAt(); !completedAt.IsZero() {
		resp.CompletedAt = &completedAt
	}
	for _, group := range session.DataGroups() {
		groupResp := DataGroupResponse{
			Number:  group.Number(),
			Checked: group.Checked(),
			Valid:   group.Valid(),
		}
		if !group.ExpectedHash().IsZero() {
			groupResp.ExpectedHash = group.ExpectedHash().String()
		}
		if !group.ActualHash().IsZero() {
			groupResp.ActualHash = group.ActualHash().String()
		}
		resp.DataGroups = append(resp.DataGroups, groupResp)
	}
	for _, finding := range session.Result().Findings() {
		resp.Findings = append(resp.Findings, FindingResponse{
			Code:     finding.Code,
			Message:  finding.Message,
			Severity: string(finding.Severity),
		})
	}
	return resp
}

// FromAuditLog converts a session's audit trail into its wire form.
func FromAuditLog(entries []verification.AuditLogEntry) []AuditEntryResponse {
	responses := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp := AuditEntryResponse{
			Step:      string(entry.Step),
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp,
			Level:     string(entry.Level),
			Message:   entry.Message,
			Details:   entry.Details,
		}
		if took, set := entry.ExecutionTime(); set {
			ms := took.Milliseconds()
			resp.ExecutionTimeMs = &ms
		}
		responses = append(responses, resp)
	}
	return responses
}
