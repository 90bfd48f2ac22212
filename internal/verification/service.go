package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"veripass/internal/directory"
	"veripass/internal/pki"
	"veripass/internal/sod"
	"veripass/internal/verification/metrics"
	"veripass/pkg/requestcontext"
)

const (
	defaultLookupTimeout = 5 * time.Second
	defaultHashWorkers   = 4
)

// Service orchestrates one Passive Authentication run per session: it
// extracts the DSC from the SOD, resolves the CSCA and CRL through the
// directory, validates the trust chain, checks revocation, verifies the SOD
// signature and compares every data group hash. Infrastructure failures are
// contained at this boundary and become session status ERROR; they are never
// reported as INVALID.
type Service struct {
	directory directory.Directory
	sodPort   sod.Verifier
	chain     *pki.ChainValidator
	crl       *pki.CRLVerifier
	store     SessionStore
	logger    *slog.Logger
	metrics   *metrics.Metrics

	lookupTimeout time.Duration
	hashWorkers   int
}

// Option configures the Service.
type Option func(*Service)

// WithLookupTimeout bounds each directory lookup. Default 5s.
func WithLookupTimeout(d time.Duration) Option {
	return func(s *Service) { s.lookupTimeout = d }
}

// WithHashWorkers caps the parallelism of data-group hashing. Default 4.
func WithHashWorkers(n int) Option {
	return func(s *Service) { s.hashWorkers = n }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs the orchestrator with its collaborators.
func NewService(dir directory.Directory, sodPort sod.Verifier, store SessionStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		directory:     dir,
		sodPort:       sodPort,
		chain:         pki.NewChainValidator(),
		crl:           pki.NewCRLVerifier(),
		store:         store,
		logger:        logger,
		lookupTimeout: defaultLookupTimeout,
		hashWorkers:   defaultHashWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DataGroupInput is one supplied data group payload.
type DataGroupInput struct {
	Number  int
	Content []byte
}

// VerifyRequest carries the raw inputs of one verification request.
type VerifyRequest struct {
	SOD        []byte
	DataGroups []DataGroupInput
	Metadata   RequestMetadata
}

// Verify runs the full pipeline and returns the completed session. A non-nil
// error is only returned for malformed input rejected at construction,
// before any network activity; once a session exists, every failure mode is
// captured on the session itself.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*Session, error) {
	sodDoc, err := NewSecurityObjectDocument(req.SOD)
	if err != nil {
		return nil, err
	}
	groups := make([]*DataGroup, 0, len(req.DataGroups))
	for _, input := range req.DataGroups {
		group, err := NewDataGroup(input.Number, input.Content)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	session, err := NewSession(sodDoc, groups, req.Metadata)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s.run(ctx, session)
	s.metrics.ObserveVerifyLatency(time.Since(start))
	s.metrics.IncrementOutcome(string(session.Status()))
	s.metrics.AddHashMismatches(session.InvalidDataGroupCount())

	if s.store != nil {
		if err := s.store.Save(ctx, session); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist verification session",
				"session_id", session.ID(),
				"error", err,
			)
		}
	}
	return session, nil
}

// errPipeline marks an infrastructure failure that aborts the pipeline with
// session status ERROR.
type errPipeline struct {
	step AuditStep
	err  error
}

func (e errPipeline) Error() string { return fmt.Sprintf("%s: %v", e.step, e.err) }

// run executes the pipeline and records the terminal result. It is the
// single recovery boundary: a panic anywhere below becomes status ERROR with
// a FAILED audit entry, never an escaped exception.
func (s *Service) run(ctx context.Context, session *Session) {
	now := requestcontext.Now(ctx)
	session.MarkStarted(now)
	session.AppendAudit(AuditStarted(StepVerificationStarted, now, "passive authentication started"))

	var findings []Finding
	failed := func(err error) {
		var pe errPipeline
		details := err.Error()
		step := StepVerificationCompleted
		if errors.As(err, &pe) {
			step = pe.step
			details = pe.err.Error()
		}
		s.logger.ErrorContext(ctx, "verification pipeline failed",
			"session_id", session.ID(),
			"step", string(step),
			"error", err,
		)
		findings = append(findings, Finding{Code: CodeInternal, Message: details, Severity: SeverityCritical})
		session.AppendAudit(AuditFailed(step, requestcontext.Now(ctx), "verification aborted", details, 0))
		s.complete(ctx, session, StatusError, findings)
	}

	p := &pipeline{svc: s, session: session}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errPipeline{step: StepVerificationCompleted, err: fmt.Errorf("panic: %v", r)}
			}
		}()

		if err := p.certificateChain(ctx); err != nil {
			return err
		}
		if err := p.sodSignature(ctx); err != nil {
			return err
		}
		return p.dataGroupHashes(ctx)
	}()
	findings = p.findings
	if err != nil {
		failed(err)
		return
	}

	status := StatusValid
	if len(findings) > 0 {
		status = StatusInvalid
	}
	s.complete(ctx, session, status, findings)
}

func (s *Service) complete(ctx context.Context, session *Session, status Status, findings []Finding) {
	now := requestcontext.Now(ctx)
	if err := session.RecordResult(status, NewResult(findings...), now); err != nil {
		s.logger.ErrorContext(ctx, "could not record verification result",
			"session_id", session.ID(),
			"error", err,
		)
		return
	}
	message := fmt.Sprintf("verification completed with status %s (%d findings)", status, len(findings))
	session.AppendAudit(AuditCompleted(StepVerificationCompleted, now, message, session.ProcessingDuration()))
	s.logger.InfoContext(ctx, "verification completed",
		"session_id", session.ID(),
		"status", string(status),
		"findings", len(findings),
		"duration_ms", session.ProcessingDurationMillis(),
	)
}
