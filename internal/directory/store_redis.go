package directory

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a read-through cache over another Directory. DER payloads are
// cached under DN-derived keys with a bounded TTL; a cached CRL never
// outlives its nextUpdate, so a stale list cannot mask a fresh revocation.
type RedisCache struct {
	client *redis.Client
	next   Directory
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, next Directory, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, next: next, ttl: ttl}
}

func cscaKey(dn string) string { return "pkd:csca:" + dn }
func crlKey(dn string) string  { return "pkd:crl:" + dn }

func (c *RedisCache) FindCSCABySubjectDN(ctx context.Context, dn string) (*x509.Certificate, error) {
	if der, err := c.client.Get(ctx, cscaKey(dn)).Bytes(); err == nil {
		if cert, parseErr := x509.ParseCertificate(der); parseErr == nil {
			return cert, nil
		}
		// Unparseable cache entry: drop it and fall through to the source.
		c.client.Del(ctx, cscaKey(dn))
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("csca cache read: %w", err)
	}

	cert, err := c.next.FindCSCABySubjectDN(ctx, dn)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, cscaKey(dn), cert.Raw, c.ttl).Err(); err != nil {
		return nil, fmt.Errorf("csca cache write: %w", err)
	}
	return cert, nil
}

func (c *RedisCache) FindCRLByIssuerDN(ctx context.Context, dn string) (*x509.RevocationList, error) {
	if der, err := c.client.Get(ctx, crlKey(dn)).Bytes(); err == nil {
		if crl, parseErr := x509.ParseRevocationList(der); parseErr == nil {
			return crl, nil
		}
		c.client.Del(ctx, crlKey(dn))
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("crl cache read: %w", err)
	}

	crl, err := c.next.FindCRLByIssuerDN(ctx, dn)
	if err != nil {
		return nil, err
	}
	ttl := c.ttl
	if untilNextUpdate := time.Until(crl.NextUpdate); untilNextUpdate < ttl {
		ttl = untilNextUpdate
	}
	if ttl > 0 {
		if err := c.client.Set(ctx, crlKey(dn), crl.Raw, ttl).Err(); err != nil {
			return nil, fmt.Errorf("crl cache write: %w", err)
		}
	}
	return crl, nil
}
