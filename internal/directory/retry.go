package directory

import (
	"context"
	"crypto/x509"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying wraps a Directory with bounded exponential-backoff retries.
// Directory lookups are the only network-bound operations in the pipeline and
// the only ones eligible for retry; ErrNotFound and context cancellation are
// definitive and returned immediately.
type Retrying struct {
	next        Directory
	maxAttempts uint64
	interval    time.Duration
}

func NewRetrying(next Directory, maxAttempts uint64, initialInterval time.Duration) *Retrying {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	return &Retrying{next: next, maxAttempts: maxAttempts, interval: initialInterval}
}

func (r *Retrying) FindCSCABySubjectDN(ctx context.Context, dn string) (*x509.Certificate, error) {
	return retryLookup(ctx, r, func() (*x509.Certificate, error) {
		return r.next.FindCSCABySubjectDN(ctx, dn)
	})
}

func (r *Retrying) FindCRLByIssuerDN(ctx context.Context, dn string) (*x509.RevocationList, error) {
	return retryLookup(ctx, r, func() (*x509.RevocationList, error) {
		return r.next.FindCRLByIssuerDN(ctx, dn)
	})
}

func retryLookup[T any](ctx context.Context, r *Retrying, lookup func() (T, error)) (T, error) {
	operation := func() (T, error) {
		value, err := lookup()
		if err != nil {
			if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
				return value, backoff.Permanent(err)
			}
			return value, err
		}
		return value, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.interval

	return backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, r.maxAttempts-1), ctx))
}
