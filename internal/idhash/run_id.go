// Package idhash derives deterministic record identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(wallet|started_at_unix_nano|signature_count)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(wallet string, startedAt time.Time, signatureCount int) string {
	data := fmt.Sprintf("%s|%d|%d", wallet, startedAt.UnixNano(), signatureCount)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
