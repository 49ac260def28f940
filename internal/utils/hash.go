package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short, stable digest of a secret for log lines.
func Fingerprint(secret string) string {
	if secret == "" {
		return "-"
	}
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}
