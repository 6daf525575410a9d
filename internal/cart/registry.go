package cart

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/marketcart/internal/storage"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CacheConfig bounds the managers a Registry keeps in memory. Evicted
// managers are reloaded from the store on next use. Size has to exceed the
// number of sessions that can be active within one request timeout, so a
// manager is never evicted while a request still mutates it.
type CacheConfig struct {
	Size    int
	IdleTTL time.Duration
}

var DefaultCacheConfig = CacheConfig{
	Size:    10000,
	IdleTTL: 30 * time.Minute,
}

// Registry hands out one Manager per client namespace over a shared store.
type Registry struct {
	store       storage.Store
	opts        []Option
	loadTimeout time.Duration

	cache *expirable.LRU[string, *Manager]
	sfg   singleflight.Group // collapses concurrent first loads of a namespace

	// mu orders cache inserts against Reset. generation changes on every
	// Reset, so a load that started before one is not cached.
	mu         sync.Mutex
	generation uint64
}

func NewRegistry(store storage.Store, opts ...Option) *Registry {
	return NewRegistryWithCache(store, DefaultCacheConfig, opts...)
}

func NewRegistryWithCache(store storage.Store, cfg CacheConfig, opts ...Option) *Registry {
	return &Registry{
		store:       store,
		opts:        opts,
		loadTimeout: 5 * time.Second,
		cache:       expirable.NewLRU[string, *Manager](cfg.Size, nil, cfg.IdleTTL),
	}
}

// Manager returns the manager for namespace, loading it on first use.
// A manager whose load hit a storage error is served but not kept, so the
// next call retries the load.
func (r *Registry) Manager(ctx context.Context, namespace string) *Manager {
	if m, ok := r.touch(namespace); ok {
		return m
	}

	v, _, _ := r.sfg.Do(namespace, func() (interface{}, error) {
		for {
			r.mu.Lock()
			if existing, ok := r.cache.Get(namespace); ok {
				r.mu.Unlock()
				return existing, nil
			}
			gen := r.generation
			r.mu.Unlock()

			loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
			created := NewManager(loadCtx, storage.Scoped(r.store, namespace), r.opts...)
			cancel()
			if created.LoadErr() != nil {
				return created, nil
			}

			r.mu.Lock()
			if gen == r.generation {
				r.cache.Add(namespace, created)
				r.mu.Unlock()
				return created, nil
			}
			r.mu.Unlock()
			// a Reset ran while loading; what was read may be gone
		}
	})

	return v.(*Manager)
}

// touch returns a cached manager and restarts its idle timer.
func (r *Registry) touch(namespace string) (*Manager, bool) {
	m, ok := r.cache.Get(namespace)
	if ok {
		r.cache.Add(namespace, m)
	}
	return m, ok
}

// Reset deletes the persisted cart and wishlist of namespace. A cached
// manager is emptied in place, so requests already holding it keep agreeing
// with the store.
func (r *Registry) Reset(ctx context.Context, namespace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++

	if m, ok := r.cache.Peek(namespace); ok {
		return m.reset(ctx)
	}
	return deleteState(ctx, storage.Scoped(r.store, namespace))
}

// Forget drops the cached manager for namespace. Its persisted state is kept.
func (r *Registry) Forget(namespace string) {
	r.cache.Remove(namespace)
}

func (r *Registry) Len() int {
	return r.cache.Len()
}
