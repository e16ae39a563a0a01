// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization for deterministic hashing of ledger payloads and plans.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// v is first marshalled with encoding/json (so struct tags apply), then
// transformed: object keys sorted by UTF-16 code units, numbers in ES6 form,
// no insignificant whitespace, no HTML escaping.
func JCS(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}

	out, err := jcs.Transform(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return out, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// ShortHash is CanonicalHash truncated to n hex characters.
func ShortHash(v interface{}, n int) (string, error) {
	h, err := CanonicalHash(v)
	if err != nil {
		return "", err
	}
	if n > 0 && n < len(h) {
		return h[:n], nil
	}
	return h, nil
}

// HashBytes computes the SHA-256 hash of raw bytes as hex.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeText returns s in Unicode NFC so that visually identical drafts
// hash identically.
func NormalizeText(s string) string {
	return norm.NFC.String(s)
}

// HashText returns the SHA-256 hex digest of the NFC form of s.
func HashText(s string) string {
	return HashBytes([]byte(NormalizeText(s)))
}
