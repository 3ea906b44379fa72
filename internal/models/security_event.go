package models

import (
	"time"

	"github.com/google/uuid"
)

// Security event categories
const (
	EventFailedLogin      = "failed_login"
	EventInvalidToken     = "invalid_token"
	EventExpiredToken     = "expired_token"
	EventQuotaExceeded    = "quota_exceeded"
	EventSuspiciousAddr   = "suspicious_address"
	EventAnomalousPattern = "anomalous_pattern"
	EventMultiTokenAbuse  = "multi_token_abuse"
)

// Severities, shared by SecurityEvent and AttackAttempt
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SecurityEvent is an immutable, write-once fact. Operators may later annotate
// it with a resolved flag and investigator reference; the original fields are
// never changed.
type SecurityEvent struct {
	ID           uuid.UUID  `json:"id"`
	IPAddress    string     `json:"ip_address"`
	AccountID    *string    `json:"account_id,omitempty"`
	TokenID      *string    `json:"token_id,omitempty"`
	Category     string     `json:"category"`
	Severity     string     `json:"severity"`
	Endpoint     string     `json:"endpoint"`
	Fragment     string     `json:"fragment"` // truncated offending payload, never a full credential
	Resolved     bool       `json:"resolved"`
	ResolvedBy   *string    `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ValidEventCategory reports whether c is a known security event category.
func ValidEventCategory(c string) bool {
	switch c {
	case EventFailedLogin, EventInvalidToken, EventExpiredToken, EventQuotaExceeded,
		EventSuspiciousAddr, EventAnomalousPattern, EventMultiTokenAbuse:
		return true
	}
	return false
}
