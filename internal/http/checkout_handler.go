package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/marketcart/internal/cart"
	"github.com/fjod/marketcart/internal/checkout"
	"github.com/fjod/marketcart/internal/notify"
)

type CheckoutHandler struct {
	registry *cart.Registry
	checkout *checkout.Service
	timeout  time.Duration
	maxBody  int64
}

func NewCheckoutHandler(registry *cart.Registry, svc *checkout.Service, timeout time.Duration, maxBody int64) *CheckoutHandler {
	return &CheckoutHandler{
		registry: registry,
		checkout: svc,
		timeout:  timeout,
		maxBody:  maxBody,
	}
}

type TransactionRequestDTO struct {
	TransactionID string `json:"transaction_id"`
}

type ShareResponse struct {
	*checkout.Share
	Notifications []notify.Notification `json:"notifications"`
}

type CompleteResponse struct {
	Proof         *checkout.PaymentProof `json:"proof"`
	Notifications []notify.Notification  `json:"notifications"`
}

// errorWithNotifications carries the notifications raised by a rejected
// checkout step, so the client can still show them.
type errorWithNotifications struct {
	ErrorResponse
	Notifications []notify.Notification `json:"notifications"`
}

func (h *CheckoutHandler) Summary(w http.ResponseWriter, r *http.Request) {
	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}

	summary, err := h.checkout.Summary(m)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *CheckoutHandler) Share(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}

	var req TransactionRequestDTO
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}

	share, err := h.checkout.ShareLink(ctx, m, req.TransactionID)
	if err != nil {
		h.rejected(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ShareResponse{
		Share:         share,
		Notifications: notifications(ctx),
	})
}

func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := sessionManager(w, r, h.registry)
	if !ok {
		return
	}

	var req TransactionRequestDTO
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}

	proof, err := h.checkout.Complete(ctx, getSession(ctx), m, req.TransactionID)
	if err != nil {
		h.rejected(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, CompleteResponse{
		Proof:         proof,
		Notifications: notifications(ctx),
	})
}

func (h *CheckoutHandler) rejected(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, checkout.ErrTransactionIDRequired) {
		respondJSON(w, http.StatusBadRequest, errorWithNotifications{
			ErrorResponse: ErrorResponse{
				Error: err.Error(),
				Code:  "transaction_id_required",
			},
			Notifications: notifications(r.Context()),
		})
		return
	}
	handleServiceError(w, r, err)
}
