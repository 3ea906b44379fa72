package models

import "time"

// Block kinds
const (
	BlockKindTemporary = "temporary"
	BlockKindPermanent = "permanent"
	BlockKindEscalated = "escalated"
)

// Who imposed a block
const (
	BlockedByAutomatic = "automatic_system"
	BlockedByOperator  = "manual_operator"
)

// BlockedAddress is one row per network address ever blocked. Re-blocking the
// same address extends the existing row rather than inserting a duplicate;
// rows are retained forever for repeat-offender history.
type BlockedAddress struct {
	IPAddress       string     `json:"ip_address"`
	Reason          string     `json:"reason"`
	Kind            string     `json:"kind"`
	BlockedUntil    *time.Time `json:"blocked_until,omitempty"` // nil for permanent
	FailedAttempts  int        `json:"failed_attempts"`
	FirstIncidentAt time.Time  `json:"first_incident_at"`
	LastAttemptAt   time.Time  `json:"last_attempt_at"`
	BlockedBy       string     `json:"blocked_by"`
	TimesBlocked    int        `json:"times_blocked"`
	AppealRequested bool       `json:"appeal_requested"`
	AppealNote      *string    `json:"appeal_note,omitempty"`
}

// IsActive reports whether the block currently denies traffic.
func (b *BlockedAddress) IsActive(now time.Time) bool {
	if b.Kind == BlockKindPermanent {
		return true
	}
	return b.BlockedUntil != nil && b.BlockedUntil.After(now)
}

// BlockStatus is the read-path answer from the block registry.
type BlockStatus struct {
	Blocked bool       `json:"blocked"`
	Reason  string     `json:"reason,omitempty"`
	Until   *time.Time `json:"until,omitempty"` // nil means permanent when Blocked
}
