package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/marketcart/internal/cart"
	"github.com/fjod/marketcart/internal/domain"
	"github.com/fjod/marketcart/internal/notify"
	"github.com/go-chi/chi/v5"
)

type WishlistHandler struct {
	registry *cart.Registry
	timeout  time.Duration
}

func NewWishlistHandler(registry *cart.Registry, timeout time.Duration) *WishlistHandler {
	return &WishlistHandler{
		registry: registry,
		timeout:  timeout,
	}
}

type WishlistResponse struct {
	ProductIDs    domain.Wishlist       `json:"product_ids"`
	Notifications []notify.Notification `json:"notifications"`
}

type InWishlistResponse struct {
	ProductID  string `json:"product_id"`
	InWishlist bool   `json:"in_wishlist"`
}

func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, WishlistResponse{
		ProductIDs:    m.Wishlist(),
		Notifications: notifications(r.Context()),
	})
}

func (h *WishlistHandler) Has(w http.ResponseWriter, r *http.Request) {
	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "product_id")
	respondJSON(w, http.StatusOK, InWishlistResponse{
		ProductID:  productID,
		InWishlist: m.IsInWishlist(productID),
	})
}

func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}

	if err := m.AddToWishlist(ctx, chi.URLParam(r, "product_id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, WishlistResponse{
		ProductIDs:    m.Wishlist(),
		Notifications: notifications(ctx),
	})
}

func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}

	if err := m.RemoveFromWishlist(ctx, chi.URLParam(r, "product_id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, WishlistResponse{
		ProductIDs:    m.Wishlist(),
		Notifications: notifications(ctx),
	})
}
