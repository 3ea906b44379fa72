package models

import "time"

// UsageCounter is one row per (account, accounting day). Created lazily on the
// first request of the day. Invariant: Succeeded+Failed <= Total.
type UsageCounter struct {
	AccountID     string    `json:"account_id"`
	Day           time.Time `json:"day"`
	Total         int       `json:"total"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	LatencyMillis int64     `json:"latency_ms"`
	QuotaOverflow int       `json:"quota_overflow"`
}

// Admission is the successful outcome of AdmitAndCharge.
type Admission struct {
	Ceiling int `json:"ceiling"`
	Used    int `json:"used"` // count after this request's charge
}

// QuotaState accompanies ErrQuotaExceeded so callers can implement backoff.
type QuotaState struct {
	Ceiling int `json:"ceiling"`
	Used    int `json:"used"`
}
