package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fjod/marketcart/internal/domain"
	"github.com/fjod/marketcart/internal/notify"
	"github.com/fjod/marketcart/internal/storage"
	"github.com/shopspring/decimal"
)

// Manager owns one client's cart and wishlist. It is the only writer of the
// cart and wishlist keys in its store, and every mutation is written through
// before the call returns.
//
// State transitions cannot fail. A mutating method returns an error only
// when the durable write fails; the in-memory state is then left as it was
// before the call and no notification is sent.
type Manager struct {
	mu       sync.Mutex
	store    storage.Store
	notifier notify.Notifier
	logger   *slog.Logger

	cart     domain.Cart
	wishlist domain.Wishlist
	loadErr  error
}

type Option func(*Manager)

func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager loads the persisted cart and wishlist from store. Missing or
// unreadable state yields empty collections.
func NewManager(ctx context.Context, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		notifier: notify.Discard,
		logger:   slog.Default(),
		cart:     domain.Cart{},
		wishlist: domain.Wishlist{},
	}
	for _, opt := range opts {
		opt(m)
	}

	var lines domain.Cart
	if m.load(ctx, storage.KeyCart, &lines) {
		m.cart = lines.Normalize()
	}
	var ids domain.Wishlist
	if m.load(ctx, storage.KeyWishlist, &ids) {
		m.wishlist = ids.Normalize()
	}
	return m
}

func (m *Manager) load(ctx context.Context, key string, dst any) bool {
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		m.logger.WarnContext(ctx, "failed to read stored state, starting empty", "key", key, "error", err)
		m.loadErr = errors.Join(m.loadErr, err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		m.logger.WarnContext(ctx, "discarding unparsable stored state", "key", key, "error", err)
		return false
	}
	return true
}

// LoadErr reports the storage read failures hit while loading, if any.
// Parse failures are not included.
func (m *Manager) LoadErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

func (m *Manager) AddToCart(ctx context.Context, p domain.ProductDescriptor) error {
	m.mu.Lock()
	next, change := addLine(m.cart, p)
	err := m.commitCart(ctx, next)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if change == ChangeIncremented {
		m.notify(ctx, "Updated cart", fmt.Sprintf("%s quantity updated", p.Title))
	} else {
		m.notify(ctx, "Added to cart", fmt.Sprintf("%s has been added to your cart", p.Title))
	}
	return nil
}

// RemoveFromCart notifies even when no line matched.
func (m *Manager) RemoveFromCart(ctx context.Context, productID string) error {
	m.mu.Lock()
	next, _ := removeLine(m.cart, productID)
	err := m.commitCart(ctx, next)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.notify(ctx, "Removed from cart", "Item has been removed from your cart")
	return nil
}

// UpdateQuantity sets a line's quantity. A quantity below one removes the
// line; an unknown product id is a no-op.
func (m *Manager) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return m.RemoveFromCart(ctx, productID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next, _ := setQuantity(m.cart, productID, quantity)
	return m.commitCart(ctx, next)
}

func (m *Manager) ClearCart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, _ := clearLines(m.cart)
	return m.commitCart(ctx, next)
}

// CheckoutCart passes the current lines to submit and clears the cart once
// submit succeeds. The cart stays locked throughout, so the cleared lines
// are exactly the submitted ones. When submit fails the cart is kept.
func (m *Manager) CheckoutCart(ctx context.Context, submit func(domain.Cart) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := submit(m.cart.Clone()); err != nil {
		return err
	}
	next, _ := clearLines(m.cart)
	if err := m.commitCart(ctx, next); err != nil {
		return fmt.Errorf("clear cart after checkout: %w", err)
	}
	return nil
}

// AddToWishlist notifies only when the id was not already saved.
func (m *Manager) AddToWishlist(ctx context.Context, productID string) error {
	m.mu.Lock()
	next, change := addWish(m.wishlist, productID)
	err := m.commitWishlist(ctx, next)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if change == ChangeAdded {
		m.notify(ctx, "Added to wishlist", "Product has been added to your wishlist")
	}
	return nil
}

// RemoveFromWishlist notifies even when the id was not saved.
func (m *Manager) RemoveFromWishlist(ctx context.Context, productID string) error {
	m.mu.Lock()
	next, _ := removeWish(m.wishlist, productID)
	err := m.commitWishlist(ctx, next)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.notify(ctx, "Removed from wishlist", "Product has been removed from your wishlist")
	return nil
}

func (m *Manager) IsInWishlist(productID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wishlist.Contains(productID)
}

// Cart returns a copy of the cart lines.
func (m *Manager) Cart() domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Clone()
}

// Wishlist returns a copy of the saved product ids.
func (m *Manager) Wishlist() domain.Wishlist {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wishlist.Clone()
}

func (m *Manager) CartTotal() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Total()
}

func (m *Manager) CartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Count()
}

// reset deletes both persisted collections and empties them in memory.
func (m *Manager) reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, storage.KeyCart); err != nil {
		return fmt.Errorf("reset cart: %w", err)
	}
	m.cart = domain.Cart{}
	if err := m.store.Delete(ctx, storage.KeyWishlist); err != nil {
		return fmt.Errorf("reset wishlist: %w", err)
	}
	m.wishlist = domain.Wishlist{}
	return nil
}

func deleteState(ctx context.Context, store storage.Store) error {
	for _, key := range []string{storage.KeyCart, storage.KeyWishlist} {
		if err := store.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
	}
	return nil
}

// commitCart and commitWishlist must be called with m.mu held.
func (m *Manager) commitCart(ctx context.Context, next domain.Cart) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := m.store.Put(ctx, storage.KeyCart, data); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	m.cart = next
	return nil
}

func (m *Manager) commitWishlist(ctx context.Context, next domain.Wishlist) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode wishlist: %w", err)
	}
	if err := m.store.Put(ctx, storage.KeyWishlist, data); err != nil {
		return fmt.Errorf("persist wishlist: %w", err)
	}
	m.wishlist = next
	return nil
}

func (m *Manager) notify(ctx context.Context, title, description string) {
	m.notifier.Notify(ctx, notify.Notification{
		Title:       title,
		Description: description,
		Variant:     notify.VariantDefault,
	})
}
