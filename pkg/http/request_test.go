package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIPDirect(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.5:1234"

	ip := ExtractClientIP(req, &IPConfig{})
	assert.Equal(t, "203.0.113.5", ip)
}

func TestExtractClientIPIgnoresForgedHeaderFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")

	// A direct client cannot dodge an address block by forging headers.
	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})
	assert.Equal(t, "203.0.113.5", ip)
}

func TestExtractClientIPHonorsTrustedProxy(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.1.2.3")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})
	assert.Equal(t, "198.51.100.7", ip)
}

func TestExtractClientIPRealIPFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("X-Real-IP", "198.51.100.9")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})
	assert.Equal(t, "198.51.100.9", ip)
}

func TestExtractClientIPNilConfig(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")

	ip := ExtractClientIP(req, nil)
	assert.Equal(t, "203.0.113.5", ip)
}
