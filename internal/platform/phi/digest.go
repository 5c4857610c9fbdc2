// Package phi protects sensitive identifiers such as national identification
// numbers. Two one-way transforms are provided:
//
//   - a salted bcrypt digest used for storage at rest. Equal inputs produce
//     different digests, so the value cannot be searched for; it can only be
//     checked against a candidate with Verify.
//   - a keyed HMAC-SHA256 lookup digest. It is deterministic so it can back a
//     unique index and resolve an identifier in O(log n) instead of verifying
//     every stored digest.
//
// The lookup digest is a deliberate security/performance tradeoff. National
// identifiers have little entropy, so anyone who holds both the database and
// the lookup key can enumerate candidates offline. The key must live outside
// the database and be rotated like any other secret; without it the lookup
// column is as opaque as the salted digest.
package phi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/carelink/carelink/internal/platform/apperr"
)

const (
	minIdentifierLen = 6
	maxIdentifierLen = 32
)

// ErrLookupDisabled is returned by LookupDigest when no lookup key is set.
var ErrLookupDisabled = errors.New("phi: identifier lookup key not configured")

// Normalize strips separators from a raw identifier and rejects values that
// cannot be a national identification number. The error never contains the
// input.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("-", "", " ", "").Replace(s)
	if s == "" {
		return "", apperr.Validation("national_id is required")
	}
	if len(s) < minIdentifierLen || len(s) > maxIdentifierLen {
		return "", apperr.Validation("national_id must be %d-%d characters", minIdentifierLen, maxIdentifierLen)
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return "", apperr.Validation("national_id contains invalid characters")
		}
	}
	return strings.ToUpper(s), nil
}

// Digester computes salted digests and keyed lookup digests of identifiers.
type Digester struct {
	cost      int
	lookupKey []byte
}

// NewDigester creates a Digester with the given bcrypt cost. lookupKey may be
// nil, in which case LookupDigest returns ErrLookupDisabled.
func NewDigester(cost int, lookupKey []byte) (*Digester, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("phi digester: bcrypt cost %d out of range", cost)
	}
	if lookupKey != nil && len(lookupKey) != 32 {
		return nil, fmt.Errorf("phi digester: lookup key must be 32 bytes, got %d", len(lookupKey))
	}
	return &Digester{cost: cost, lookupKey: lookupKey}, nil
}

// Digest returns the salted one-way digest of raw.
func (d *Digester) Digest(raw string) (string, error) {
	norm, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	out, err := bcrypt.GenerateFromPassword([]byte(norm), d.cost)
	if err != nil {
		return "", fmt.Errorf("phi digest: %w", err)
	}
	return string(out), nil
}

// Verify reports whether raw matches stored. Malformed input never matches.
func (d *Digester) Verify(raw, stored string) bool {
	if stored == "" {
		return false
	}
	norm, err := Normalize(raw)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(norm)) == nil
}

// LookupEnabled reports whether a lookup key is configured.
func (d *Digester) LookupEnabled() bool {
	return len(d.lookupKey) > 0
}

// LookupDigest returns the hex HMAC-SHA256 of the normalised identifier.
func (d *Digester) LookupDigest(raw string) (string, error) {
	if !d.LookupEnabled() {
		return "", ErrLookupDisabled
	}
	norm, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, d.lookupKey)
	mac.Write([]byte(norm))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
