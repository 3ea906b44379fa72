package logger

import "strings"

// TruncateCredential reduces a credential to a short non-reconstructible
// prefix suitable for audit records. Never returns more than 8 characters.
func TruncateCredential(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= 8 {
		return credential[:1] + "..."
	}
	return credential[:8] + "..."
}

// SanitizeQueryString reports whether a raw query string contains sensitive
// parameters and should be redacted wholesale from request logs.
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password",
		"token",
		"secret",
		"api_key",
		"apikey",
		"auth",
		"credential",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
