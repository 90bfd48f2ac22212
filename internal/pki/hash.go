// Package pki provides the domain primitives and validators for ICAO 9303
// Passive Authentication: data-group hash values, trust-chain validation,
// and CRL-based revocation checking.
//
// Domain Purity: validators never call time.Now() directly; the check time
// is always supplied by the caller (see requestcontext.Now).
package pki

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

// HashAlgorithm names a digest algorithm accepted for data-group hashing.
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "SHA-256"
	SHA384 HashAlgorithm = "SHA-384"
	SHA512 HashAlgorithm = "SHA-512"
)

// ErrUnsupportedAlgorithm indicates a digest algorithm outside the SHA-2
// family accepted for security objects.
var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

// ParseHashAlgorithm validates an algorithm name.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	switch HashAlgorithm(name) {
	case SHA256, SHA384, SHA512:
		return HashAlgorithm(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// Size returns the digest length in bytes.
func (a HashAlgorithm) Size() int {
	switch a {
	case SHA256:
		return sha256.Size
	case SHA384:
		return sha512.Size384
	case SHA512:
		return sha512.Size
	}
	return 0
}

func (a HashAlgorithm) String() string {
	return string(a)
}

// IsZero returns true if this is the zero value (uninitialized).
func (a HashAlgorithm) IsZero() bool {
	return a == ""
}

func (a HashAlgorithm) newHash() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	}
	return nil
}

// DataGroupHash is a lowercase hex digest of one data group. The hex length
// encodes the algorithm: 64 characters for SHA-256, 96 for SHA-384 and 128
// for SHA-512. Equality is byte-exact.
//
// Invariants:
//   - Non-empty, valid hex
//   - Length is exactly 64, 96 or 128 characters
type DataGroupHash struct {
	value string
}

// ErrInvalidHashFormat indicates the hex value failed validation.
var ErrInvalidHashFormat = errors.New("invalid data group hash: must be 64, 96 or 128 hex characters")

// ParseDataGroupHash creates a validated DataGroupHash from a hex string.
func ParseDataGroupHash(value string) (DataGroupHash, error) {
	switch len(value) {
	case 2 * sha256.Size, 2 * sha512.Size384, 2 * sha512.Size:
	default:
		return DataGroupHash{}, fmt.Errorf("%w (got %d)", ErrInvalidHashFormat, len(value))
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return DataGroupHash{}, fmt.Errorf("%w: %v", ErrInvalidHashFormat, err)
	}
	return DataGroupHash{value: hex.EncodeToString(raw)}, nil
}

// DataGroupHashFromBytes creates a DataGroupHash from a raw digest.
func DataGroupHashFromBytes(digest []byte) (DataGroupHash, error) {
	return ParseDataGroupHash(hex.EncodeToString(digest))
}

// CalculateDataGroupHash hashes content with the named algorithm. Hashing is
// deterministic: identical content and algorithm yield identical values.
func CalculateDataGroupHash(content []byte, alg HashAlgorithm) (DataGroupHash, error) {
	h := alg.newHash()
	if h == nil {
		return DataGroupHash{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	h.Write(content)
	return DataGroupHash{value: hex.EncodeToString(h.Sum(nil))}, nil
}

// MustDataGroupHash creates a DataGroupHash, panicking if invalid.
// Use only in tests or when the value is known to be valid.
func MustDataGroupHash(value string) DataGroupHash {
	h, err := ParseDataGroupHash(value)
	if err != nil {
		panic(err)
	}
	return h
}

// Algorithm returns the digest algorithm implied by the hex length.
func (h DataGroupHash) Algorithm() HashAlgorithm {
	switch len(h.value) {
	case 2 * sha256.Size:
		return SHA256
	case 2 * sha512.Size384:
		return SHA384
	case 2 * sha512.Size:
		return SHA512
	}
	return ""
}

// Equal reports byte-exact equality with other.
func (h DataGroupHash) Equal(other DataGroupHash) bool {
	return h.value == other.value
}

// String returns the lowercase hex value.
func (h DataGroupHash) String() string {
	return h.value
}

// IsZero returns true if this is the zero value (uninitialized).
func (h DataGroupHash) IsZero() bool {
	return h.value == ""
}
