package http

import (
	"net/http"
	"time"

	"github.com/fjod/marketcart/internal/cart"
	"github.com/fjod/marketcart/internal/catalog"
	"github.com/fjod/marketcart/internal/checkout"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Registry           *cart.Registry
	Products           catalog.Source
	Checkout           *checkout.Service
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	ServiceName        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Registry, cfg.Products, cfg.RequestTimeout, cfg.MaxRequestBodySize)
	wishlistHandler := NewWishlistHandler(cfg.Registry, cfg.RequestTimeout)
	productHandler := NewProductHandler(cfg.Products, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Registry, cfg.Checkout, cfg.RequestTimeout, cfg.MaxRequestBodySize)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": cfg.Registry.Len(),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", productHandler.Categories)
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/featured", productHandler.Featured)
			r.Get("/{product_id}", productHandler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware)

			r.Delete("/session", cartHandler.ResetSession)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistHandler.List)
				r.Get("/{product_id}", wishlistHandler.Has)
				r.Put("/{product_id}", wishlistHandler.Add)
				r.Delete("/{product_id}", wishlistHandler.Remove)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandler.Summary)
				r.Post("/share", checkoutHandler.Share)
				r.Post("/complete", checkoutHandler.Complete)
			})
		})
	})

	name := cfg.ServiceName
	if name == "" {
		name = "cart-service"
	}
	return otelhttp.NewHandler(r, name)
}
