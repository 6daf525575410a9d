package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/marketcart/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// Seller is the public profile of a product's owner.
type Seller struct {
	Username   string  `json:"username"`
	AvatarURL  string  `json:"avatar_url,omitempty"`
	Rating     float64 `json:"rating"`
	IsVerified bool    `json:"is_verified"`
}

// Product mirrors the upstream product schema.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	Category    string          `json:"category"`
	SellerID    string          `json:"seller_id"`
	ViewCount   int             `json:"view_count"`
	IsFeatured  bool            `json:"is_featured"`
	Condition   string          `json:"condition,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	Seller      Seller          `json:"seller"`
}

// Descriptor narrows the product to what a cart line needs.
func (p Product) Descriptor() domain.ProductDescriptor {
	return domain.ProductDescriptor{
		ID:       p.ID,
		Title:    p.Title,
		Price:    p.Price,
		ImageRef: p.ImageURL,
		SellerID: p.SellerID,
	}
}

type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortPopular   = "popular"
)

// Query filters a product search. Empty Text matches every active product;
// empty or "all" Category disables the category filter.
type Query struct {
	Text     string
	Category string
	Sort     string
}

// Source is the upstream product source the storefront reads from.
type Source interface {
	Get(ctx context.Context, id string) (*Product, error)
	Featured(ctx context.Context, limit int) ([]*Product, error)
	Search(ctx context.Context, q Query) ([]*Product, error)
	Categories(ctx context.Context) ([]Category, error)
	RecordView(ctx context.Context, id string) error
}
