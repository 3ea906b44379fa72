package models

import "time"

// Token lifecycle states. Tokens are never deleted, only transitioned.
const (
	TokenStatusActive    = "active"
	TokenStatusExpired   = "expired"
	TokenStatusRevoked   = "revoked"
	TokenStatusSuspended = "suspended"
)

// Default and allowed bounds for the per-token daily ceiling.
const (
	DefaultDailyCeiling = 1000
	MinDailyCeiling     = 1
	MaxDailyCeiling     = 10000
)

// APIToken represents one issued credential. Only the SHA-256 digest of the
// secret is ever stored; the plaintext exists once, at issuance.
type APIToken struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	SecretDigest  string     `json:"-"` // never exposed
	DisplayPrefix string     `json:"display_prefix"`
	Name          string     `json:"name"`
	DailyCeiling  int        `json:"daily_ceiling"`
	UsageToday    int        `json:"usage_today"`
	UsageDay      time.Time  `json:"-"` // accounting day the counter belongs to (UTC date)
	TotalUsage    int64      `json:"total_usage"`
	Status        string     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP    *string    `json:"last_used_ip,omitempty"`
	LastUsedAgent *string    `json:"last_used_agent,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IssuedToken is the response shape at creation time; PlainSecret is shown
// exactly once and never persisted.
type IssuedToken struct {
	PlainSecret string    `json:"token"`
	Token       *APIToken `json:"api_token"`
}

// IsExpired reports whether the token is past its absolute expiry instant.
func (t *APIToken) IsExpired() bool {
	return t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt)
}

// IsActive reports whether the token may authenticate right now.
func (t *APIToken) IsActive() bool {
	return t.Status == TokenStatusActive && !t.IsExpired()
}

// UsageFor returns today's consumed count for the given accounting day.
// A counter carried over from a previous day reads as zero.
func (t *APIToken) UsageFor(day time.Time) int {
	if !t.UsageDay.Equal(day) {
		return 0
	}
	return t.UsageToday
}

// ResolvedToken is what successful authentication hands to the rest of the
// pipeline: the token plus its owner's identity.
type ResolvedToken struct {
	Token       *APIToken
	AccountID   string
	AccountRole string
}

// AccountingDay truncates t to the UTC calendar day used for quota accounting.
func AccountingDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
