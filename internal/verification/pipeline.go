package verification

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"veripass/internal/directory"
	"veripass/internal/pki"
	"veripass/internal/sod"
	"veripass/pkg/requestcontext"
)

// pipeline carries the per-session state handed from one step to the next:
// the DSC extracted from the SOD, the CSCA resolved from the directory and
// the findings accumulated so far. Expected validation failures become
// findings and the pipeline continues, so the audit trail names everything
// wrong with a document, not just the first thing; only infrastructure
// failures abort.
type pipeline struct {
	svc      *Service
	session  *Session
	dsc      *x509.Certificate
	csca     *x509.Certificate
	findings []Finding
}

func (p *pipeline) addFinding(code, message string, severity Severity) {
	p.findings = append(p.findings, Finding{Code: code, Message: message, Severity: severity})
}

// certificateChain extracts the DSC embedded in the SOD, resolves the CSCA
// by the DSC's issuer DN, validates CSCA and issuance relationship, then
// checks the DSC against the CSCA's CRL.
func (p *pipeline) certificateChain(ctx context.Context) error {
	start := time.Now()
	now := requestcontext.Now(ctx)
	session := p.session
	session.AppendAudit(AuditStarted(StepCertificateChain, now, "certificate chain validation started"))

	raw := session.SecurityObject().Raw()

	dsc, err := p.svc.sodPort.ExtractDSCCertificate(raw)
	if err != nil {
		return p.stepFailed(ctx, StepCertificateChain, start, fmt.Errorf("extract DSC from SOD: %w", err))
	}
	p.dsc = dsc
	session.AppendAudit(AuditInProgress(StepCertificateChain, requestcontext.Now(ctx),
		fmt.Sprintf("DSC extracted: subject=%q serial=%s", dsc.Subject, dsc.SerialNumber)))

	csca, err := p.svc.lookupCSCA(ctx, dsc.Issuer.String())
	switch {
	case errors.Is(err, directory.ErrNotFound):
		p.addFinding(CodeCSCANotFound,
			fmt.Sprintf("no CSCA found for issuer DN %q", dsc.Issuer), SeverityCritical)
		p.stepCompleted(ctx, StepCertificateChain, start, "chain validation completed: CSCA unresolved")
		return nil
	case err != nil:
		return p.stepFailed(ctx, StepCertificateChain, start, fmt.Errorf("resolve CSCA: %w", err))
	}
	p.csca = csca

	chainResult := p.svc.chain.ValidateCSCA(csca, now)
	chainResult.Merge(p.svc.chain.ValidateDSC(dsc, csca, now))
	for _, failure := range chainResult.Failures {
		p.addFinding(CodeChainInvalid, failure.String(), SeverityCritical)
	}

	p.checkRevocation(ctx, now)
	if err := ctx.Err(); err != nil {
		return p.stepFailed(ctx, StepCertificateChain, start, err)
	}

	message := "certificate chain validated"
	if !chainResult.Valid() {
		message = fmt.Sprintf("certificate chain invalid (%d failures)", len(chainResult.Failures))
	}
	p.stepCompleted(ctx, StepCertificateChain, start, message)
	return nil
}

// checkRevocation resolves the CSCA's CRL and maps the CrlCheckResult onto
// findings. An unresolvable CRL is fail-closed: without proof of
// non-revocation the document is INVALID, not VALID.
func (p *pipeline) checkRevocation(ctx context.Context, now time.Time) {
	crl, err := p.svc.lookupCRL(ctx, p.csca.Subject.String())
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		// Transport failure resolving the CRL surfaces as CRL_UNAVAILABLE
		// with the cause preserved in the finding, per fail-closed policy.
		p.addFinding(CodeCRLUnavailable, fmt.Sprintf("CRL lookup failed: %v", err), SeverityCritical)
		return
	}

	result := p.svc.crl.VerifyCertificate(p.dsc, crl, p.csca, now)
	switch result.Status() {
	case pki.CrlStatusValid:
	case pki.CrlStatusRevoked:
		p.addFinding(CodeDSCRevoked, result.Message(), SeverityCritical)
	case pki.CrlStatusUnavailable:
		p.addFinding(CodeCRLUnavailable, result.Message(), SeverityCritical)
	case pki.CrlStatusExpired:
		p.addFinding(CodeCRLExpired, result.Message(), SeverityCritical)
	case pki.CrlStatusInvalid:
		p.addFinding(CodeCRLInvalid, result.Message(), SeverityCritical)
	}
	p.session.AppendAudit(AuditInProgress(StepCertificateChain, requestcontext.Now(ctx),
		fmt.Sprintf("revocation check: %s", result.Status())))
}

// sodSignature records the SOD's declared algorithms and verifies its
// signature with the DSC public key.
func (p *pipeline) sodSignature(ctx context.Context) error {
	start := time.Now()
	session := p.session
	session.AppendAudit(AuditStarted(StepSODSignature, requestcontext.Now(ctx), "security object signature check started"))

	raw := session.SecurityObject().Raw()

	hashAlg, err := p.svc.sodPort.ExtractHashAlgorithm(raw)
	switch {
	case errors.Is(err, pki.ErrUnsupportedAlgorithm):
		p.addFinding(CodeUnsupportedAlgorithm, err.Error(), SeverityCritical)
	case err != nil:
		return p.stepFailed(ctx, StepSODSignature, start, fmt.Errorf("extract hash algorithm: %w", err))
	default:
		if err := session.SecurityObject().SetHashAlgorithm(hashAlg); err != nil {
			return p.stepFailed(ctx, StepSODSignature, start, err)
		}
	}

	sigAlg, err := p.svc.sodPort.ExtractSignatureAlgorithm(raw)
	if err != nil {
		return p.stepFailed(ctx, StepSODSignature, start, fmt.Errorf("extract signature algorithm: %w", err))
	}
	if err := session.SecurityObject().SetSignatureAlgorithm(sigAlg); err != nil {
		return p.stepFailed(ctx, StepSODSignature, start, err)
	}

	if err := p.svc.sodPort.VerifySignature(raw, p.dsc.PublicKey); err != nil {
		if errors.Is(err, sod.ErrSignatureInvalid) || errors.Is(err, sod.ErrPublicKeyMismatch) {
			p.addFinding(CodeSignatureInvalid, err.Error(), SeverityCritical)
			p.stepCompleted(ctx, StepSODSignature, start, "security object signature invalid")
			return nil
		}
		return p.stepFailed(ctx, StepSODSignature, start, fmt.Errorf("verify SOD signature: %w", err))
	}

	p.stepCompleted(ctx, StepSODSignature, start,
		fmt.Sprintf("security object signature valid (%s, %s)", hashAlg, sigAlg))
	return nil
}

// dataGroupHashes recomputes every supplied data group's hash with the SOD's
// declared algorithm and compares it to the published table. Hashing runs on
// parallel workers; outcomes merge into the session only after all groups
// complete, so a fast mismatch never hides a slower one.
func (p *pipeline) dataGroupHashes(ctx context.Context) error {
	start := time.Now()
	session := p.session
	session.AppendAudit(AuditStarted(StepDataGroupHash, requestcontext.Now(ctx),
		fmt.Sprintf("hash check started for %d data groups", len(session.DataGroups()))))

	table, err := p.svc.sodPort.ParseDataGroupHashes(session.SecurityObject().Raw())
	if err != nil {
		return p.stepFailed(ctx, StepDataGroupHash, start, fmt.Errorf("parse SOD hash table: %w", err))
	}
	hashAlg := session.SecurityObject().HashAlgorithm()
	if hashAlg.IsZero() {
		// Unsupported algorithm was already recorded as a finding; the hash
		// comparison cannot run without it.
		p.stepCompleted(ctx, StepDataGroupHash, start, "hash check skipped: no usable digest algorithm")
		return nil
	}

	type outcome struct {
		number   int
		expected pki.DataGroupHash
		actual   pki.DataGroupHash
	}

	groups := session.DataGroups()
	outcomes := make([]outcome, 0, len(groups))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.svc.hashWorkers)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			actual, err := group.ComputeHash(hashAlg)
			if err != nil {
				return fmt.Errorf("hash DG%d: %w", group.Number(), err)
			}
			mu.Lock()
			outcomes = append(outcomes, outcome{number: group.Number(), expected: table[group.Number()], actual: actual})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return p.stepFailed(ctx, StepDataGroupHash, start, err)
	}

	// Single-writer merge: only the session mutates its data groups.
	for _, o := range outcomes {
		if err := session.recordDataGroupOutcome(o.number, o.expected, o.actual); err != nil {
			return p.stepFailed(ctx, StepDataGroupHash, start, err)
		}
		switch {
		case o.expected.IsZero():
			p.addFinding(CodeHashTableMissing,
				fmt.Sprintf("DG%d is not present in the SOD hash table", o.number), SeverityCritical)
		case !o.expected.Equal(o.actual):
			p.addFinding(CodeHashMismatch,
				fmt.Sprintf("DG%d hash mismatch: expected %s, computed %s", o.number, o.expected, o.actual), SeverityCritical)
		}
	}

	p.stepCompleted(ctx, StepDataGroupHash, start,
		fmt.Sprintf("hash check completed: %d valid, %d invalid",
			session.ValidDataGroupCount(), session.InvalidDataGroupCount()))
	return nil
}

func (p *pipeline) stepCompleted(ctx context.Context, step AuditStep, start time.Time, message string) {
	took := time.Since(start)
	p.svc.metrics.ObserveStepLatency(string(step), took)
	p.session.AppendAudit(AuditCompleted(step, requestcontext.Now(ctx), message, took))
}

func (p *pipeline) stepFailed(ctx context.Context, step AuditStep, start time.Time, err error) error {
	p.svc.metrics.ObserveStepLatency(string(step), time.Since(start))
	return errPipeline{step: step, err: err}
}

// lookupCSCA resolves the trust anchor under a bounded timeout.
func (s *Service) lookupCSCA(ctx context.Context, dn string) (*x509.Certificate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	return s.directory.FindCSCABySubjectDN(ctx, dn)
}

// lookupCRL resolves the issuer CRL under a bounded timeout.
func (s *Service) lookupCRL(ctx context.Context, dn string) (*x509.RevocationList, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	return s.directory.FindCRLByIssuerDN(ctx, dn)
}
