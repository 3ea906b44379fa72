package models

import "errors"

// Sentinel errors for terminal gateway decisions. The first six are expected,
// client-attributable outcomes and always map to a structured HTTP response;
// ErrInternalFailure is fail-closed for the authentication/quota path.
var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrInvalidCredential   = errors.New("invalid or revoked credential")
	ErrExpiredCredential   = errors.New("expired credential")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrAddressBlocked      = errors.New("address blocked")
	ErrAttackDetected      = errors.New("attack detected")
	ErrInternalFailure     = errors.New("internal failure")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// Storage-level sentinels
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource already exists")
	ErrBadRequest = errors.New("bad request")
	ErrForbidden  = errors.New("forbidden")
)
