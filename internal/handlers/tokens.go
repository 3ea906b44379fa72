package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hmarchena/gatewarden/internal/auth"
	"github.com/hmarchena/gatewarden/internal/models"
	pkghttp "github.com/hmarchena/gatewarden/pkg/http"
)

// IssuerService defines the token-lifecycle operations the handler needs.
type IssuerService interface {
	Issue(ctx context.Context, accountID, name string, ceiling int, expiresAt *time.Time) (*models.IssuedToken, error)
	List(ctx context.Context, accountID string, limit, offset int) ([]*models.APIToken, error)
	Revoke(ctx context.Context, accountID, tokenID string) error
}

// TokenHandler serves the owner-facing token management endpoints.
type TokenHandler struct {
	issuer IssuerService
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(issuer IssuerService) *TokenHandler {
	return &TokenHandler{issuer: issuer}
}

// IssueTokenRequest is the DTO for POST /v1/tokens.
type IssueTokenRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=255"`
	DailyCeiling int     `json:"daily_ceiling" validate:"omitempty,min=1,max=10000"`
	ExpiresAt    *string `json:"expires_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// Issue creates a new token for the authenticated owner. The plaintext secret
// appears in this response only.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			pkghttp.WriteBadRequest(w, "expires_at must be RFC3339")
			return
		}
		expiresAt = &t
	}

	issued, err := h.issuer.Issue(r.Context(), claims.AccountID, req.Name, req.DailyCeiling, expiresAt)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "invalid token parameters")
			return
		}
		pkghttp.WriteInternalError(w, "failed to issue token")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, issued)
}

// List returns the authenticated owner's tokens. Digests and secrets are
// never included.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tokens, err := h.issuer.List(r.Context(), claims.AccountID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list tokens")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
		"count":  len(tokens),
	})
}

// Revoke transitions one of the owner's tokens to revoked.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	tokenID := chi.URLParam(r, "id")
	if tokenID == "" {
		pkghttp.WriteBadRequest(w, "token id required")
		return
	}

	err := h.issuer.Revoke(r.Context(), claims.AccountID, tokenID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "token not found")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "not the token owner")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "token is not active")
	default:
		pkghttp.WriteInternalError(w, "failed to revoke token")
	}
}
