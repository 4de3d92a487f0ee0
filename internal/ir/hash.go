package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Domain prefixes for fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainIntent   = "semlayer/intent/v1"
	DomainQuestion = "semlayer/question/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical JSON form of v under domain.
// Equal values always produce equal fingerprints regardless of map order.
func Fingerprint(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// QuestionFingerprint keys a natural-language question for caching.
// Surrounding whitespace and letter case do not change the key.
func QuestionFingerprint(question string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	// Strings never fail canonical marshaling.
	fp, _ := Fingerprint(DomainQuestion, IRString(normalized))
	return fp
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(domain string, v IRValue) string {
	fp, err := Fingerprint(domain, v)
	if err != nil {
		panic(err)
	}
	return fp
}
