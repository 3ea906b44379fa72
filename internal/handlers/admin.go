package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hmarchena/gatewarden/internal/auth"
	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/hmarchena/gatewarden/internal/repositories"
	"github.com/hmarchena/gatewarden/internal/services"
	pkghttp "github.com/hmarchena/gatewarden/pkg/http"
)

// AdminHandler serves the operator endpoints: manual blocks and the audit
// trail. All routes require the admin role.
type AdminHandler struct {
	blocklist *services.BlocklistService
	events    repositories.EventRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(blocklist *services.BlocklistService, events repositories.EventRepository) *AdminHandler {
	return &AdminHandler{blocklist: blocklist, events: events}
}

// CreateBlockRequest is the DTO for POST /admin/blocks.
type CreateBlockRequest struct {
	IPAddress string  `json:"ip_address" validate:"required,ip"`
	Reason    string  `json:"reason" validate:"required,min=1,max=500"`
	Kind      string  `json:"kind" validate:"required,oneof=temporary permanent escalated"`
	Until     *string `json:"until,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// CreateBlock imposes a manual block. Re-blocking an already-blocked address
// extends the one existing row.
func (h *AdminHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var until *time.Time
	if req.Until != nil {
		t, err := time.Parse(time.RFC3339, *req.Until)
		if err != nil {
			pkghttp.WriteBadRequest(w, "until must be RFC3339")
			return
		}
		until = &t
	}

	block, err := h.blocklist.BlockManually(r.Context(), req.IPAddress, req.Reason, req.Kind, until)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "invalid block parameters")
			return
		}
		pkghttp.WriteInternalError(w, "failed to create block")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, block)
}

// ListBlocks returns block registry rows, most recently attacked first.
func (h *AdminHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	blocks, err := h.blocklist.ListBlocks(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list blocks")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"blocks": blocks, "count": len(blocks)})
}

// ListEvents returns security events, newest first.
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	events, err := h.events.ListEvents(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list events")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events, "count": len(events)})
}

// ListAttacks returns attack attempts, newest first.
func (h *AdminHandler) ListAttacks(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	attacks, err := h.events.ListAttacks(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list attacks")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"attacks": attacks, "count": len(attacks)})
}

// ResolveEvent annotates a security event with the investigating operator.
// The original fact fields are immutable; only the annotation is written.
func (h *AdminHandler) ResolveEvent(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid event id")
		return
	}

	if err := h.events.ResolveEvent(r.Context(), id, claims.AccountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "event not found")
			return
		}
		pkghttp.WriteInternalError(w, "failed to resolve event")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
