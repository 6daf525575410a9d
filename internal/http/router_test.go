package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fjod/marketcart/internal/cart"
	"github.com/fjod/marketcart/internal/catalog"
	"github.com/fjod/marketcart/internal/checkout"
	"github.com/fjod/marketcart/internal/notify"
	"github.com/fjod/marketcart/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mu     sync.Mutex
	proofs []*checkout.PaymentProof
}

func (p *mockPublisher) Publish(_ context.Context, proof *checkout.PaymentProof) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.proofs = append(p.proofs, proof)
	return nil
}

// brokenStore fails reads and/or writes on demand.
type brokenStore struct {
	storage.Store
	failGet bool
	failPut bool
}

func (s *brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failGet {
		return nil, errors.New("connection refused")
	}
	return s.Store.Get(ctx, key)
}

func (s *brokenStore) Put(ctx context.Context, key string, value []byte) error {
	if s.failPut {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, key, value)
}

func setupCatalog(t *testing.T) *catalog.SQLiteCatalog {
	t.Helper()
	c, err := catalog.NewSQLiteCatalog(":memory:")
	require.NoError(t, err)
	require.NoError(t, c.RunMigrations())
	t.Cleanup(func() { c.Close() })
	return c
}

func setupRouter(t *testing.T, store storage.Store) (http.Handler, *mockPublisher) {
	t.Helper()
	pub := &mockPublisher{}
	registry := cart.NewRegistry(store, cart.WithNotifier(notify.Context))
	return NewRouter(RouterConfig{
		Registry:           registry,
		Products:           setupCatalog(t),
		Checkout:           checkout.NewService(pub, notify.Context, "shop@upi"),
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}), pub
}

func do(t *testing.T, h http.Handler, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	if session != "" {
		request.Header.Set(SessionHeader, session)
	}
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, request)
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&out), recorder.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())

	recorder := do(t, h, "GET", "/health", "", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))
}

func TestCart_RequiresSession(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())

	recorder := do(t, h, "GET", "/api/v1/cart", "", nil)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	response := decode[ErrorResponse](t, recorder)
	assert.Equal(t, "unauthorized", response.Code)
}

func TestCart_AddItem(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())

	recorder := do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1001"})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	response := decode[CartResponse](t, recorder)
	require.Len(t, response.Lines, 1)
	assert.Equal(t, "Wireless Headphones", response.Lines[0].Title)
	assert.Equal(t, "seller-bolt", response.Lines[0].SellerID)
	assert.Equal(t, "59.99", response.Total.String())
	assert.Equal(t, 1, response.Count)
	require.Len(t, response.Notifications, 1)
	assert.Equal(t, "Added to cart", response.Notifications[0].Title)
	assert.Equal(t, "Wireless Headphones has been added to your cart", response.Notifications[0].Description)

	recorder = do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1001"})
	response = decode[CartResponse](t, recorder)
	require.Len(t, response.Lines, 1)
	assert.Equal(t, 2, response.Lines[0].Quantity)
	assert.Equal(t, "119.98", response.Total.String())
	assert.Equal(t, "Updated cart", response.Notifications[0].Title)
}

func TestCart_AddItemErrors(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"unknown product", AddItemRequestDTO{ProductID: "prod-404"}, http.StatusNotFound, "product_not_found"},
		{"inactive product", AddItemRequestDTO{ProductID: "prod-1006"}, http.StatusConflict, "product_unavailable"},
		{"blank product id", AddItemRequestDTO{ProductID: "  "}, http.StatusBadRequest, "invalid_product_id"},
		{"invalid json", "not an object", http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := do(t, h, "POST", "/api/v1/cart/items", "s1", tt.body)
			assert.Equal(t, tt.wantCode, recorder.Code)
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, recorder).Code)
		})
	}
}

func TestCart_UpdateQuantityAndRemove(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())
	do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1002"})
	do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1005"})

	three := 3
	recorder := do(t, h, "PUT", "/api/v1/cart/items/prod-1002", "s1", UpdateQuantityRequestDTO{Quantity: &three})
	require.Equal(t, http.StatusOK, recorder.Code)
	response := decode[CartResponse](t, recorder)
	assert.Equal(t, "55.5", response.Total.String())
	assert.Equal(t, 4, response.Count)

	zero := 0
	recorder = do(t, h, "PUT", "/api/v1/cart/items/prod-1005", "s1", UpdateQuantityRequestDTO{Quantity: &zero})
	response = decode[CartResponse](t, recorder)
	require.Len(t, response.Lines, 1)
	assert.Equal(t, "prod-1002", response.Lines[0].ProductID)
	assert.Equal(t, "Removed from cart", response.Notifications[0].Title)

	recorder = do(t, h, "PUT", "/api/v1/cart/items/prod-1002", "s1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = do(t, h, "DELETE", "/api/v1/cart/items/prod-1002", "s1", nil)
	response = decode[CartResponse](t, recorder)
	assert.Empty(t, response.Lines)
	assert.True(t, response.Total.IsZero())
}

func TestCart_RemoveAbsentItemStillNotifies(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())

	recorder := do(t, h, "DELETE", "/api/v1/cart/items/prod-1001", "s1", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	response := decode[CartResponse](t, recorder)
	assert.Empty(t, response.Lines)
	require.Len(t, response.Notifications, 1)
	assert.Equal(t, "Removed from cart", response.Notifications[0].Title)
}

func TestCart_ClearAndSessionIsolation(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())
	do(t, h, "POST", "/api/v1/cart/items", "alice", AddItemRequestDTO{ProductID: "prod-1003"})
	do(t, h, "POST", "/api/v1/cart/items", "bob", AddItemRequestDTO{ProductID: "prod-1004"})

	recorder := do(t, h, "DELETE", "/api/v1/cart", "alice", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decode[CartResponse](t, recorder).Lines)

	recorder = do(t, h, "GET", "/api/v1/cart", "bob", nil)
	response := decode[CartResponse](t, recorder)
	require.Len(t, response.Lines, 1)
	assert.Equal(t, "prod-1004", response.Lines[0].ProductID)
	assert.Empty(t, response.Notifications)
}

func TestCart_WriteFailure(t *testing.T) {
	store := &brokenStore{Store: storage.NewMemoryStore()}
	h, _ := setupRouter(t, store)
	do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1001"})

	store.failPut = true
	recorder := do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1002"})
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "internal_error", decode[ErrorResponse](t, recorder).Code)

	store.failPut = false
	recorder = do(t, h, "GET", "/api/v1/cart", "s1", nil)
	response := decode[CartResponse](t, recorder)
	require.Len(t, response.Lines, 1)
	assert.Equal(t, "prod-1001", response.Lines[0].ProductID)
}

func TestCart_LoadFailureRefusesSession(t *testing.T) {
	store := &brokenStore{Store: storage.NewMemoryStore(), failGet: true}
	h, _ := setupRouter(t, store)

	recorder := do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1001"})
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Equal(t, "storage_unavailable", decode[ErrorResponse](t, recorder).Code)

	store.failGet = false
	recorder = do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1001"})
	assert.Equal(t, http.StatusCreated, recorder.Code)
}

func TestWishlist(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())

	recorder := do(t, h, "PUT", "/api/v1/wishlist/prod-1003", "s1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	response := decode[WishlistResponse](t, recorder)
	assert.Equal(t, []string{"prod-1003"}, []string(response.ProductIDs))
	require.Len(t, response.Notifications, 1)
	assert.Equal(t, "Added to wishlist", response.Notifications[0].Title)

	// adding again is silent
	recorder = do(t, h, "PUT", "/api/v1/wishlist/prod-1003", "s1", nil)
	response = decode[WishlistResponse](t, recorder)
	assert.Len(t, response.ProductIDs, 1)
	assert.Empty(t, response.Notifications)

	recorder = do(t, h, "GET", "/api/v1/wishlist/prod-1003", "s1", nil)
	assert.True(t, decode[InWishlistResponse](t, recorder).InWishlist)

	recorder = do(t, h, "DELETE", "/api/v1/wishlist/prod-1003", "s1", nil)
	response = decode[WishlistResponse](t, recorder)
	assert.Empty(t, response.ProductIDs)
	assert.Equal(t, "Removed from wishlist", response.Notifications[0].Title)

	recorder = do(t, h, "GET", "/api/v1/wishlist/prod-1003", "s1", nil)
	assert.False(t, decode[InWishlistResponse](t, recorder).InWishlist)

	recorder = do(t, h, "GET", "/api/v1/wishlist", "s1", nil)
	assert.Empty(t, decode[WishlistResponse](t, recorder).ProductIDs)
}

func TestProducts_Search(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())

	recorder := do(t, h, "GET", "/api/v1/products?category=home&sort=price-low", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	response := decode[ProductsResponse](t, recorder)
	require.Len(t, response.Products, 2)
	assert.Equal(t, "prod-1005", response.Products[0].ID)
	assert.Equal(t, "prod-1002", response.Products[1].ID)

	recorder = do(t, h, "GET", "/api/v1/products?q=nothing-matches-this", "", nil)
	assert.Empty(t, decode[ProductsResponse](t, recorder).Products)
}

func TestProducts_FeaturedAndCategories(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())

	recorder := do(t, h, "GET", "/api/v1/products/featured?limit=2", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decode[ProductsResponse](t, recorder).Products, 2)

	recorder = do(t, h, "GET", "/api/v1/products/featured?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = do(t, h, "GET", "/api/v1/categories", "", nil)
	assert.Len(t, decode[CategoriesResponse](t, recorder).Categories, 3)
}

func TestProducts_GetRecordsView(t *testing.T) {
	h, _ := setupRouter(t, storage.NewMemoryStore())

	first := decode[catalog.Product](t, do(t, h, "GET", "/api/v1/products/prod-1005", "", nil))
	second := decode[catalog.Product](t, do(t, h, "GET", "/api/v1/products/prod-1005", "", nil))
	assert.Equal(t, first.ViewCount+1, second.ViewCount)

	recorder := do(t, h, "GET", "/api/v1/products/prod-404", "", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCheckout_Flow(t *testing.T) {
	h, pub := setupRouter(t, storage.NewMemoryStore())

	recorder := do(t, h, "GET", "/api/v1/checkout", "s1", nil)
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "empty_cart", decode[ErrorResponse](t, recorder).Code)

	do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1003"})

	recorder = do(t, h, "GET", "/api/v1/checkout", "s1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	summary := decode[checkout.Summary](t, recorder)
	assert.Equal(t, "35", summary.Total.String())
	assert.Equal(t, "shop@upi", summary.PayeeUPI)

	recorder = do(t, h, "POST", "/api/v1/checkout/share", "s1", TransactionRequestDTO{})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	rejected := decode[errorWithNotifications](t, recorder)
	assert.Equal(t, "transaction_id_required", rejected.Code)
	require.Len(t, rejected.Notifications, 1)
	assert.Equal(t, notify.VariantDestructive, rejected.Notifications[0].Variant)

	recorder = do(t, h, "POST", "/api/v1/checkout/share", "s1", TransactionRequestDTO{TransactionID: "TX42"})
	require.Equal(t, http.StatusOK, recorder.Code)
	share := decode[ShareResponse](t, recorder)
	assert.Contains(t, share.Message, "Order Total: $35.00")
	assert.Contains(t, share.URL, "https://wa.me/?text=")

	recorder = do(t, h, "POST", "/api/v1/checkout/complete", "s1", TransactionRequestDTO{TransactionID: "TX42"})
	require.Equal(t, http.StatusCreated, recorder.Code)
	completed := decode[CompleteResponse](t, recorder)
	assert.Equal(t, "s1", completed.Proof.Namespace)
	assert.Equal(t, "TX42", completed.Proof.TransactionID)
	require.Len(t, pub.proofs, 1)

	recorder = do(t, h, "GET", "/api/v1/cart", "s1", nil)
	assert.Empty(t, decode[CartResponse](t, recorder).Lines)
}

func TestSession_Reset(t *testing.T) {
	store := storage.NewMemoryStore()
	h, _ := setupRouter(t, store)
	do(t, h, "POST", "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: "prod-1001"})
	do(t, h, "PUT", "/api/v1/wishlist/prod-1002", "s1", nil)

	recorder := do(t, h, "DELETE", "/api/v1/session", "s1", nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	_, err := store.Get(context.Background(), "cart:s1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	recorder = do(t, h, "GET", "/api/v1/cart", "s1", nil)
	assert.Empty(t, decode[CartResponse](t, recorder).Lines)

	recorder = do(t, h, "GET", "/health", "", nil)
	health := decode[map[string]any](t, recorder)
	assert.Equal(t, float64(1), health["sessions"])
}
