package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Attack categories, in detection priority order for the classifier.
const (
	AttackSQLInjection     = "sql_injection"
	AttackCrossSiteScript  = "cross_site_script"
	AttackPathTraversal    = "path_traversal"
	AttackCommandInjection = "command_injection"
	AttackMalformedInput   = "malformed_input"
	AttackScanner          = "scanner"
	AttackVolumetric       = "volumetric"
)

// AttackAttempt is an immutable fact, distinct from SecurityEvent: it carries
// the full offending payload plus a digest of it for detecting exact repeats.
type AttackAttempt struct {
	ID             uuid.UUID `json:"id"`
	IPAddress      string    `json:"ip_address"`
	Category       string    `json:"category"`
	Severity       string    `json:"severity"`
	Payload        string    `json:"payload"`
	PayloadDigest  string    `json:"payload_digest"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	TriggeredBlock bool      `json:"triggered_block"`
	CreatedAt      time.Time `json:"created_at"`
}

// DigestPayload returns the hex SHA-256 of an attack payload.
func DigestPayload(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
