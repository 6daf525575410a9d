package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/marketcart/internal/cart"
	"github.com/fjod/marketcart/internal/catalog"
	"github.com/fjod/marketcart/internal/domain"
	"github.com/fjod/marketcart/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	registry *cart.Registry
	products catalog.Source
	timeout  time.Duration
	maxBody  int64
}

func NewCartHandler(registry *cart.Registry, products catalog.Source, timeout time.Duration, maxBody int64) *CartHandler {
	return &CartHandler{
		registry: registry,
		products: products,
		timeout:  timeout,
		maxBody:  maxBody,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartResponse struct {
	Lines         domain.Cart           `json:"lines"`
	Total         decimal.Decimal       `json:"total"`
	Count         int                   `json:"count"`
	Notifications []notify.Notification `json:"notifications"`
}

func cartResponse(ctx context.Context, m *cart.Manager) CartResponse {
	return CartResponse{
		Lines:         m.Cart(),
		Total:         m.CartTotal(),
		Count:         m.CartCount(),
		Notifications: notifications(ctx),
	}
}

// sessionManager returns the manager for the request's session. A session
// whose state could not be read is refused rather than served empty, so a
// write cannot clobber the stored state.
func sessionManager(w http.ResponseWriter, r *http.Request, registry *cart.Registry) (*cart.Manager, bool) {
	session := getSession(r.Context())
	if session == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing "+SessionHeader+" header")
		return nil, false
	}

	m := registry.Manager(r.Context(), session)
	if m.LoadErr() != nil {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "session state could not be loaded")
		return nil, false
	}
	return m, true
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(r.Context(), m))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	product, err := h.products.Get(ctx, req.ProductID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if product.Status != "active" {
		respondError(w, http.StatusConflict, "product_unavailable", "product is no longer available")
		return
	}

	if err := m.AddToCart(ctx, product.Descriptor()); err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, cartResponse(ctx, m))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	// quantity below 1 removes the line
	if err := m.UpdateQuantity(ctx, chi.URLParam(r, "product_id"), *req.Quantity); err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(ctx, m))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}

	if err := m.RemoveFromCart(ctx, chi.URLParam(r, "product_id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(ctx, m))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}

	if err := m.ClearCart(ctx); err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(ctx, m))
}

// ResetSession deletes the session's persisted cart and wishlist.
func (h *CartHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.registry.Reset(ctx, getSession(ctx)); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
