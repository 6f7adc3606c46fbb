package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSketch  = "sketchsync/sketch/v1"
	DomainCommand = "sketchsync/command/v1"
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

// Fingerprint computes the content hash of a sketch. The sketch is
// normalized first, so two sketches that differ only in collection order or
// nil-vs-empty collections share a fingerprint.
func Fingerprint(s Sketch) (string, error) {
	canonical, err := MarshalCanonical(Normalize(s))
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSketch, canonical), nil
}

// CommandDigest computes the content hash of a command envelope. The journal
// stores it next to each command so that replays can detect edited logs.
func CommandDigest(cmd Command) (string, error) {
	env, err := EncodeCommand(cmd)
	if err != nil {
		return "", err
	}
	canonical, err := MarshalCanonical(env)
	if err != nil {
		return "", fmt.Errorf("CommandDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCommand, canonical), nil
}
