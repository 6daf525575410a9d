package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/marketcart/internal/catalog"
	"github.com/go-chi/chi/v5"
)

const defaultFeaturedLimit = 8

type ProductHandler struct {
	products catalog.Source
	timeout  time.Duration
}

func NewProductHandler(products catalog.Source, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
	}
}

type ProductsResponse struct {
	Products []*catalog.Product `json:"products"`
}

type CategoriesResponse struct {
	Categories []catalog.Category `json:"categories"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	products, err := h.products.Search(ctx, catalog.Query{
		Text:     q.Get("q"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, productsResponse(products))
}

func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := defaultFeaturedLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 50 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	products, err := h.products.Featured(ctx, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, productsResponse(products))
}

// Get returns one product and counts the view.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	product, err := h.products.Get(ctx, productID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.products.RecordView(ctx, productID); err != nil {
		slog.WarnContext(ctx, "failed to record product view", "product_id", productID, "error", err)
	}

	respondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.products.Categories(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if categories == nil {
		categories = []catalog.Category{}
	}

	respondJSON(w, http.StatusOK, &CategoriesResponse{Categories: categories})
}

func productsResponse(products []*catalog.Product) *ProductsResponse {
	if products == nil {
		products = []*catalog.Product{}
	}
	return &ProductsResponse{Products: products}
}
