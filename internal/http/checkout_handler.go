package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CheckoutSessions interface {
	PrepareCheckoutData(ctx context.Context, userID string, selectedIDs []string) (*service.PreparedCheckout, error)
	GetCheckoutSession(ctx context.Context, userID, sessionID string) (*service.SessionView, error)
	CompleteCheckoutSession(ctx context.Context, userID, sessionID string) (*domain.CheckoutSession, error)
	ClearCheckoutSession(ctx context.Context, userID, sessionID string) error
}

type CheckoutHandler struct {
	responder
	sessions CheckoutSessions
	timeout  time.Duration
}

func NewCheckoutHandler(sessions CheckoutSessions, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{
		responder: responder{logger: logger},
		sessions:  sessions,
		timeout:   timeout,
	}
}

type CreateSessionRequestDTO struct {
	ProductIDs []string `json:"product_ids"`
}

type CompleteSessionResponseDTO struct {
	SessionID string              `json:"session_id"`
	State     domain.SessionState `json:"state"`
}

// POST /api/v1/checkout/sessions
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateSessionRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	prepared, err := h.sessions.PrepareCheckoutData(ctx, getUserIDFromContext(r.Context()), req.ProductIDs)
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, prepared)
}

// GET /api/v1/checkout/sessions/{session_id}
func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.sessions.GetCheckoutSession(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "session_id"))
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// POST /api/v1/checkout/sessions/{session_id}/complete
func (h *CheckoutHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, err := h.sessions.CompleteCheckoutSession(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "session_id"))
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, CompleteSessionResponseDTO{
		SessionID: session.ID,
		State:     domain.SessionStateCompleted,
	})
}

// DELETE /api/v1/checkout/sessions/{session_id}
func (h *CheckoutHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.sessions.ClearCheckoutSession(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "session_id")); err != nil {
		h.respondCartError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
