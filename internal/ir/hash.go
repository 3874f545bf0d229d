package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainMessage = "deferplan/message/v1"
	DomainPlan    = "deferplan/plan/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MessageDigest computes the content-addressed digest of one message.
func MessageDigest(m Message) (string, error) {
	canonical, err := MarshalCanonical(m.Value())
	if err != nil {
		return "", fmt.Errorf("MessageDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMessage, canonical), nil
}

// PlanDigest computes the content-addressed digest of a plan record.
// The owner is excluded: the same traced body held by two peers hashes
// identically once its peer references agree.
func PlanDigest(r PlanRecord) (string, error) {
	body := r.Value()
	delete(body, "owner")
	canonical, err := MarshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("PlanDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}

// MustMessageDigest is like MessageDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMessageDigest(m Message) string {
	d, err := MessageDigest(m)
	if err != nil {
		panic(err)
	}
	return d
}
