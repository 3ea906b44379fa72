package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hmarchena/gatewarden/internal/config"
	"github.com/hmarchena/gatewarden/internal/middleware"
	pkghttp "github.com/hmarchena/gatewarden/pkg/http"
)

// Hop-by-hop headers are never forwarded in either direction.
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailers", "Transfer-Encoding", "Upgrade",
}

// QueryHandler forwards admitted requests to the protected upstream. It only
// ever sees requests that survived all four gateway stages.
type QueryHandler struct {
	upstream config.UpstreamConfig
	client   *http.Client
	logger   *slog.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(upstream config.UpstreamConfig, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		upstream: upstream,
		client:   &http.Client{Timeout: upstream.Timeout},
		logger:   logger,
	}
}

// Forward proxies the request to the upstream service. Upstream timeouts and
// connection failures map to 502, distinct from the gateway's own 500s.
func (h *QueryHandler) Forward(w http.ResponseWriter, r *http.Request) {
	admission := middleware.AdmissionFromContext(r.Context())
	if admission == nil {
		pkghttp.WriteInternalError(w, "request could not be processed")
		return
	}

	target := strings.TrimRight(h.upstream.BaseURL, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		pkghttp.WriteInternalError(w, "request could not be processed")
		return
	}

	copyHeaders(upstreamReq.Header, r.Header)
	for _, hdr := range hopHeaders {
		upstreamReq.Header.Del(hdr)
	}
	// The bearer token is the gateway's concern, not the upstream's.
	upstreamReq.Header.Del("Authorization")
	upstreamReq.Header.Set("X-Forwarded-For", admission.ClientIP)
	upstreamReq.Header.Set("X-Account-ID", admission.Resolved.AccountID)

	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing useful to write.
			return
		}
		h.logger.Error("upstream request failed",
			slog.String("target", h.upstream.BaseURL),
			slog.Any("error", err))
		pkghttp.WriteUpstreamError(w, "upstream service unavailable")
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	for _, hdr := range hopHeaders {
		w.Header().Del(hdr)
	}
	w.Header().Set("X-Quota-Limit", strconv.Itoa(admission.Admission.Ceiling))
	w.Header().Set("X-Quota-Used", strconv.Itoa(admission.Admission.Used))
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn("upstream response copy interrupted", slog.Any("error", err))
	}
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
