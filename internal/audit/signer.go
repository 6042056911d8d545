package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// devSigningKey chains entries when no key is configured. Such a log is
// tamper-evident only against accidental edits.
const devSigningKey = "kasa-development-audit-key-do-not-use-in-production"

// Signer creates and verifies HMAC-SHA256 signatures over audit entries.
type Signer struct {
	key []byte
	dev bool
}

// NewSigner creates a signer. The key must be at least 32 raw bytes, or 64+
// hex characters decoding to at least 32 bytes.
func NewSigner(key string) (*Signer, error) {
	b, err := resolveSigningKey(key)
	if err != nil {
		return nil, err
	}
	return &Signer{key: b}, nil
}

// DevSigner returns a signer using the built-in development key.
func DevSigner() *Signer {
	return &Signer{key: []byte(devSigningKey), dev: true}
}

// Development reports whether s uses the built-in development key.
func (s *Signer) Development() bool { return s.dev }

func resolveSigningKey(key string) ([]byte, error) {
	if len(key) >= 64 && len(key)%2 == 0 && isHex(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("audit: signing key hex decode: %w", err)
		}
		if len(decoded) < 32 {
			return nil, fmt.Errorf("audit: signing key hex must decode to at least 32 bytes (got %d)", len(decoded))
		}
		return decoded, nil
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("audit: signing key must be at least 32 bytes (got %d)", len(key))
	}
	return []byte(key), nil
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// Sign returns "hmac-sha256:<hex>" for data.
func (s *Signer) Sign(data []byte) string {
	h := hmac.New(sha256.New, s.key)
	_, _ = h.Write(data)
	return "hmac-sha256:" + hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature is valid for data.
func (s *Signer) Verify(data []byte, signature string) bool {
	return hmac.Equal([]byte(s.Sign(data)), []byte(signature))
}
