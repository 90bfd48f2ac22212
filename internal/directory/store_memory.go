package directory

import (
	"context"
	"crypto/x509"
	"sync"
)

// MemoryDirectory is an in-memory master list keyed by distinguished name.
// It backs tests and standalone deployments where the PKD content is loaded
// at startup.
type MemoryDirectory struct {
	mu    sync.RWMutex
	cscas map[string]*x509.Certificate
	crls  map[string]*x509.RevocationList
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		cscas: make(map[string]*x509.Certificate),
		crls:  make(map[string]*x509.RevocationList),
	}
}

// PutCSCA registers a trust anchor under its subject DN.
func (d *MemoryDirectory) PutCSCA(cert *x509.Certificate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cscas[cert.Subject.String()] = cert
}

// PutCRL registers a CRL under its issuer DN.
func (d *MemoryDirectory) PutCRL(crl *x509.RevocationList) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.crls[crl.Issuer.String()] = crl
}

func (d *MemoryDirectory) FindCSCABySubjectDN(_ context.Context, dn string) (*x509.Certificate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cert, ok := d.cscas[dn]
	if !ok {
		return nil, ErrNotFound
	}
	return cert, nil
}

func (d *MemoryDirectory) FindCRLByIssuerDN(_ context.Context, dn string) (*x509.RevocationList, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	crl, ok := d.crls[dn]
	if !ok {
		return nil, ErrNotFound
	}
	return crl, nil
}
