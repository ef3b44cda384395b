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

// CartStore is the cart part of the service layer the handlers call.
type CartStore interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Count(ctx context.Context, userID string) (int, error)
	AddOrUpdate(ctx context.Context, userID, productID string, delta int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	Remove(ctx context.Context, userID string, productIDs ...string) (*domain.Cart, error)
	SetSelection(ctx context.Context, userID, productID string, selected bool) (*domain.Cart, error)
	SelectAll(ctx context.Context, userID string, selected bool) (*domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type CartValidator interface {
	Validate(ctx context.Context, userID string, productIDs ...string) (*domain.ValidationResult, error)
}

type CartViewer interface {
	ViewCart(ctx context.Context, userID string) (*service.CartView, error)
}

type Recoverer interface {
	AutoFixStock(ctx context.Context, userID, productID string) (*service.Outcome, error)
	ResetCorruptedCart(ctx context.Context, userID string) (*service.Outcome, error)
}

type CartHandler struct {
	responder
	store     CartStore
	validator CartValidator
	viewer    CartViewer
	recovery  Recoverer
	timeout   time.Duration
}

func NewCartHandler(store CartStore, validator CartValidator, viewer CartViewer, recovery Recoverer, timeout time.Duration, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		responder: responder{logger: logger},
		store:     store,
		validator: validator,
		viewer:    viewer,
		recovery:  recovery,
		timeout:   timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SelectionRequestDTO struct {
	Selected *bool `json:"selected"`
}

type RecoverRequestDTO struct {
	ProductID string `json:"product_id"`
}

type CartItemDTO struct {
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Selected   bool      `json:"selected"`
	SelectedAt time.Time `json:"selected_at"`
}

type CartResponseDTO struct {
	UserID        string        `json:"user_id"`
	Items         []CartItemDTO `json:"items"`
	TotalQuantity int           `json:"total_quantity"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type CountResponseDTO struct {
	Count int `json:"count"`
}

func toCartResponse(cart *domain.Cart) CartResponseDTO {
	items := make([]CartItemDTO, 0, len(cart.Items))
	for _, item := range cart.Ordered() {
		items = append(items, CartItemDTO{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			Selected:   cart.Selections[item.ProductID],
			SelectedAt: item.SelectedAt,
		})
	}
	return CartResponseDTO{
		UserID:        cart.UserID,
		Items:         items,
		TotalQuantity: cart.TotalQuantity(),
		UpdatedAt:     cart.UpdatedAt,
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.viewer.ViewCart(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// GET /api/v1/cart/count
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	count, err := h.store.Count(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, CountResponseDTO{Count: count})
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.store.AddOrUpdate(ctx, getUserIDFromContext(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toCartResponse(cart))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.store.UpdateQuantity(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "product_id"), req.Quantity)
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartResponse(cart))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.store.Remove(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "product_id"))
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartResponse(cart))
}

// PUT /api/v1/cart/items/{product_id}/selection
func (h *CartHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	selected, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}

	cart, err := h.store.SetSelection(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "product_id"), selected)
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartResponse(cart))
}

// PUT /api/v1/cart/selection
func (h *CartHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	selected, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}

	cart, err := h.store.SelectAll(ctx, getUserIDFromContext(r.Context()), selected)
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toCartResponse(cart))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if err := h.store.Clear(ctx, userID); err != nil {
		h.respondCartError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/cart/validate
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.validator.Validate(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// POST /api/v1/cart/recover
func (h *CartHandler) Recover(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RecoverRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	userID := getUserIDFromContext(r.Context())
	var (
		outcome *service.Outcome
		err     error
	)
	if req.ProductID != "" {
		outcome, err = h.recovery.AutoFixStock(ctx, userID, req.ProductID)
	} else {
		outcome, err = h.recovery.ResetCorruptedCart(ctx, userID)
	}
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, outcome)
}

func (h *CartHandler) decodeSelection(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req SelectionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false, false
	}
	if req.Selected == nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "selected is required")
		return false, false
	}
	return *req.Selected, true
}
