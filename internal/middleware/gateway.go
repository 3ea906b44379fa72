package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/hmarchena/gatewarden/internal/services"
	pkghttp "github.com/hmarchena/gatewarden/pkg/http"
)

const maxScanBody = 1 << 20 // payload bytes considered by the classifier

type contextKey string

// AdmissionContextKey carries the pipeline's outcome to downstream handlers.
const AdmissionContextKey contextKey = "admission"

// AdmissionResult is what the gateway hands to the protected handler once all
// four stages have passed.
type AdmissionResult struct {
	Resolved  *models.ResolvedToken
	Admission *models.Admission
	ClientIP  string
}

// Gateway is the request-admission pipeline: block check, threat scan, token
// authentication, quota admission — strictly in that order, any stage may
// terminate the request. Audit writes never block the pipeline.
type Gateway struct {
	blocklist     *services.BlocklistService
	classifier    *services.ThreatClassifier
	authenticator *services.AuthenticatorService
	quota         *services.QuotaService
	audit         *services.AuditService
	ipConfig      *pkghttp.IPConfig
	logger        *slog.Logger
}

// NewGateway creates the admission pipeline middleware.
func NewGateway(
	blocklist *services.BlocklistService,
	classifier *services.ThreatClassifier,
	authenticator *services.AuthenticatorService,
	quota *services.QuotaService,
	audit *services.AuditService,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		blocklist:     blocklist,
		classifier:    classifier,
		authenticator: authenticator,
		quota:         quota,
		audit:         audit,
		ipConfig:      ipConfig,
		logger:        logger,
	}
}

// Admit wraps a handler with the full pipeline.
func (g *Gateway) Admit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := pkghttp.ExtractClientIP(r, g.ipConfig)

		// Stage 1: block registry. A blocked address never reaches the
		// classifier, regardless of payload validity.
		status, err := g.blocklist.IsBlocked(r.Context(), clientIP)
		if err != nil {
			// Fail closed: deny on internal error rather than silently admit.
			pkghttp.WriteInternalError(w, "request could not be processed")
			return
		}
		if status.Blocked {
			g.audit.Record(&models.SecurityEvent{
				IPAddress: clientIP,
				Category:  models.EventSuspiciousAddr,
				Severity:  models.SeverityMedium,
				Endpoint:  r.URL.Path,
			})
			pkghttp.WriteForbidden(w, "access denied")
			return
		}

		// Stage 2: threat scan over body + query + path. The body is
		// buffered and restored so the downstream handler still sees it.
		payload, err := readAndRestoreBody(r)
		if err != nil {
			pkghttp.WriteBadRequest(w, "malformed request")
			return
		}

		detection := g.classifier.Scan(payload+" "+r.URL.RawQuery, r.URL.Path)
		if detection.Matched {
			attempt := &models.AttackAttempt{
				IPAddress:     clientIP,
				Category:      detection.Category,
				Severity:      detection.Severity,
				Payload:       payload,
				PayloadDigest: models.DigestPayload(payload),
				Endpoint:      r.URL.Path,
				Method:        r.Method,
			}
			// Recorded before the response goes out; the block decision
			// rides on this same write path, detached from the client
			// connection so hanging up cannot cancel it.
			if _, err := g.blocklist.RegisterAttack(context.WithoutCancel(r.Context()), attempt); err != nil {
				g.logger.Error("attack registration failed", slog.Any("error", err))
			}
			g.audit.Record(&models.SecurityEvent{
				IPAddress: clientIP,
				Category:  models.EventAnomalousPattern,
				Severity:  detection.Severity,
				Endpoint:  r.URL.Path,
				Fragment:  truncatePayload(payload),
			})
			// Generic response: never reveal what matched.
			pkghttp.WriteBadRequest(w, "malformed request")
			return
		}

		// Stage 3: token authentication.
		meta := services.RequestMeta{
			IPAddress: clientIP,
			Endpoint:  r.URL.Path,
			UserAgent: r.UserAgent(),
		}
		resolved, err := g.authenticator.Authenticate(r.Context(), bearerToken(r), meta)
		if err != nil {
			g.respondAuthError(w, err)
			return
		}

		// Stage 4: quota admission. The charge is detached from the client
		// connection: once issued it completes even if the caller hangs up.
		admission, err := g.quota.AdmitAndCharge(context.WithoutCancel(r.Context()), resolved, meta)
		if err != nil {
			g.respondQuotaError(w, err)
			return
		}

		result := &AdmissionResult{Resolved: resolved, Admission: admission, ClientIP: clientIP}
		ctx := context.WithValue(r.Context(), AdmissionContextKey, result)

		wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		g.quota.RecordOutcome(context.WithoutCancel(r.Context()), resolved.AccountID,
			wrapped.Status() < http.StatusInternalServerError, time.Since(start))
	})
}

func (g *Gateway) respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrMissingCredential):
		pkghttp.WriteUnauthorized(w, "credential required")
	case errors.Is(err, models.ErrInvalidCredential):
		pkghttp.WriteUnauthorized(w, "invalid or revoked credential")
	case errors.Is(err, models.ErrExpiredCredential):
		pkghttp.WriteUnauthorized(w, "expired credential")
	default:
		pkghttp.WriteInternalError(w, "request could not be processed")
	}
}

func (g *Gateway) respondQuotaError(w http.ResponseWriter, err error) {
	var qe *services.QuotaError
	if errors.As(err, &qe) {
		pkghttp.WriteTooManyRequests(w, "daily quota exceeded", qe.State)
		return
	}
	pkghttp.WriteInternalError(w, "request could not be processed")
}

// AdmissionFromContext extracts the pipeline result injected by Admit.
func AdmissionFromContext(ctx context.Context) *AdmissionResult {
	result, ok := ctx.Value(AdmissionContextKey).(*AdmissionResult)
	if !ok {
		return nil
	}
	return result
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func readAndRestoreBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScanBody))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return string(body), nil
}

func truncatePayload(payload string) string {
	const maxFragment = 200
	if len(payload) > maxFragment {
		return payload[:maxFragment]
	}
	return payload
}
