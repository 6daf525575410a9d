package storage

import (
	"context"
	"errors"
	"fmt"
)

// Keys owned by the cart manager. No other component writes them.
const (
	KeyCart     = "cart"
	KeyWishlist = "wishlist"
)

var ErrNotFound = errors.New("key not found")

// Store is the durable key-value storage behind a cart manager.
// Consumers define this interface, not the backend implementations.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Scoped confines a Store to one client instance. Keys are rewritten as
// "<key>:<namespace>", so the cart of session 42 lives at "cart:42".
func Scoped(store Store, namespace string) Store {
	return scopedStore{store: store, namespace: namespace}
}

type scopedStore struct {
	store     Store
	namespace string
}

func (s scopedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.store.Get(ctx, s.key(key))
}

func (s scopedStore) Put(ctx context.Context, key string, value []byte) error {
	return s.store.Put(ctx, s.key(key), value)
}

func (s scopedStore) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.key(key))
}

func (s scopedStore) key(key string) string {
	return fmt.Sprintf("%s:%s", key, s.namespace)
}
