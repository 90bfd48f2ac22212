package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"veripass/internal/verification"
	id "veripass/pkg/domain"
)

// PostgresStore persists verification sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertSessionSQL = `
INSERT INTO verification_sessions (
	id, sod, hash_algorithm, signature_algorithm, metadata,
	started, started_at, completed, completed_at, duration_ms,
	status, findings, data_groups, audit_log
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
	hash_algorithm = EXCLUDED.hash_algorithm,
	signature_algorithm = EXCLUDED.signature_algorithm,
	started = EXCLUDED.started,
	started_at = EXCLUDED.started_at,
	completed = EXCLUDED.completed,
	completed_at = EXCLUDED.completed_at,
	duration_ms = EXCLUDED.duration_ms,
	status = EXCLUDED.status,
	findings = EXCLUDED.findings,
	data_groups = EXCLUDED.data_groups,
	audit_log = EXCLUDED.audit_log`

const getSessionSQL = `
SELECT id, sod, hash_algorithm, signature_algorithm, metadata,
	started, started_at, completed, completed_at, duration_ms,
	status, findings, data_groups, audit_log
FROM verification_sessions
WHERE id = $1`

func (s *PostgresStore) Save(ctx context.Context, session *verification.Session) error {
	snap := session.Snapshot()

	metadata, err := json.Marshal(snap.Metadata)
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}
	findings, err := json.Marshal(snap.Findings)
	if err != nil {
		return fmt.Errorf("marshal session findings: %w", err)
	}
	dataGroups, err := json.Marshal(snap.DataGroups)
	if err != nil {
		return fmt.Errorf("marshal session data groups: %w", err)
	}
	auditLog, err := json.Marshal(snap.AuditLog)
	if err != nil {
		return fmt.Errorf("marshal session audit log: %w", err)
	}

	_, err = s.db.ExecContext(ctx, upsertSessionSQL,
		snap.ID.String(),
		snap.SOD,
		snap.HashAlgorithm,
		snap.SignatureAlgorithm,
		metadata,
		snap.Started,
		nullTime(snap.StartedAt),
		snap.Completed,
		nullTime(snap.CompletedAt),
		snap.Duration.Milliseconds(),
		string(snap.Status),
		findings,
		dataGroups,
		auditLog,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*verification.Session, error) {
	row := s.db.QueryRowContext(ctx, getSessionSQL, sessionID.String())

	var (
		rawID         string
		snap          verification.Snapshot
		startedAt     sql.NullTime
		completedAt   sql.NullTime
		durationMs    int64
		status        string
		rawMetadata   []byte
		rawFindings   []byte
		rawDataGroups []byte
		rawAuditLog   []byte
	)
	err := row.Scan(
		&rawID,
		&snap.SOD,
		&snap.HashAlgorithm,
		&snap.SignatureAlgorithm,
		&rawMetadata,
		&snap.Started,
		&startedAt,
		&snap.Completed,
		&completedAt,
		&durationMs,
		&status,
		&rawFindings,
		&rawDataGroups,
		&rawAuditLog,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, verification.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}

	snap.ID, err = id.ParseSessionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse stored session id: %w", err)
	}
	if startedAt.Valid {
		snap.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		snap.CompletedAt = completedAt.Time
	}
	snap.Duration = time.Duration(durationMs) * time.Millisecond
	snap.Status = verification.Status(status)

	if err := json.Unmarshal(rawMetadata, &snap.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal session metadata: %w", err)
	}
	if len(rawFindings) > 0 {
		if err := json.Unmarshal(rawFindings, &snap.Findings); err != nil {
			return nil, fmt.Errorf("unmarshal session findings: %w", err)
		}
	}
	if len(rawDataGroups) > 0 {
		if err := json.Unmarshal(rawDataGroups, &snap.DataGroups); err != nil {
			return nil, fmt.Errorf("unmarshal session data groups: %w", err)
		}
	}
	if len(rawAuditLog) > 0 {
		if err := json.Unmarshal(rawAuditLog, &snap.AuditLog); err != nil {
			return nil, fmt.Errorf("unmarshal session audit log: %w", err)
		}
	}
	return verification.FromSnapshot(snap), nil
}

func nullTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}
