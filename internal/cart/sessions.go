package cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type sessionEntry struct {
	store    *Store
	lastSeen time.Time
}

// Catalog supplies current product data. Ids it does not know are left out of the result.
type Catalog interface {
	Products(ctx context.Context, ids []string) ([]Product, error)
}

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

// WithCatalog re-prices carts from c whenever they are loaded from storage.
func WithCatalog(c Catalog) SessionsOption {
	return func(s *Sessions) { s.catalog = c }
}

// Sessions hands out one Store per shopper session, rehydrating it from storage
// on first access.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	factory StorageFactory
	catalog Catalog
	log     *zap.Logger
	sfg     singleflight.Group // one rehydration per session at a time
	now     func() time.Time
}

// NewSessions builds an empty registry. Stores are created on first access.
func NewSessions(factory StorageFactory, log *zap.Logger, opts ...SessionsOption) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sessions{
		entries: make(map[string]*sessionEntry),
		factory: factory,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the store of sessionID, creating it if needed.
func (s *Sessions) Get(ctx context.Context, sessionID string) *Store {
	if store := s.lookup(sessionID); store != nil {
		return store
	}

	v, _, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if store := s.lookup(sessionID); store != nil {
			return store, nil
		}

		log := s.log.With(zap.String("session_id", sessionID))
		store := NewStore(ctx, s.factory(sessionID), log)
		s.reprice(ctx, store, log)

		s.mu.Lock()
		s.entries[sessionID] = &sessionEntry{store: store, lastSeen: s.now()}
		s.mu.Unlock()

		return store, nil
	})

	return v.(*Store)
}

// Source returns a view of sessionID's cart that resolves the live store on every
// call, so it stays valid across Prune.
func (s *Sessions) Source(sessionID string) *SessionCart {
	return &SessionCart{sessions: s, id: sessionID}
}

// reprice refreshes rehydrated lines with the catalog's current name and price.
func (s *Sessions) reprice(ctx context.Context, store *Store, log *zap.Logger) {
	if s.catalog == nil {
		return
	}
	snap := store.Snapshot()
	if snap.IsEmpty() {
		return
	}

	ids := make([]string, len(snap.Items))
	for i, item := range snap.Items {
		ids[i] = item.Product.ID
	}

	products, err := s.catalog.Products(ctx, ids)
	if err != nil {
		log.Warn("cart reprice failed, keeping stored prices", zap.Error(err))
		return
	}
	for _, p := range products {
		store.UpdateProduct(ctx, p)
	}
}

// Len reports the number of stores held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Held reports whether sessionID has a store in memory.
func (s *Sessions) Held(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[sessionID]
	return ok
}

// Each calls fn for every store held in memory. fn runs without the registry lock.
func (s *Sessions) Each(fn func(sessionID string, store *Store)) {
	s.mu.Lock()
	stores := make(map[string]*Store, len(s.entries))
	for id, entry := range s.entries {
		stores[id] = entry.store
	}
	s.mu.Unlock()

	for id, store := range stores {
		fn(id, store)
	}
}

// Prune drops stores idle for longer than maxIdle unless keep reports the session
// as in use. Dropped stores are rehydrated from storage on their next access.
func (s *Sessions) Prune(maxIdle time.Duration, keep func(sessionID string) bool) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, entry := range s.entries {
		if entry.lastSeen.After(cutoff) {
			continue
		}
		if keep != nil && keep(id) {
			continue
		}
		delete(s.entries, id)
		pruned++
	}
	return pruned
}

func (s *Sessions) lookup(sessionID string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sessionID]
	if !ok {
		return nil
	}
	entry.lastSeen = s.now()
	return entry.store
}

// SessionCart is the cart of one session as seen from outside the registry.
type SessionCart struct {
	sessions *Sessions
	id       string
}

func (c *SessionCart) store(ctx context.Context) *Store {
	return c.sessions.Get(ctx, c.id)
}

// Snapshot returns the live cart's snapshot.
func (c *SessionCart) Snapshot() Snapshot {
	return c.store(context.Background()).Snapshot()
}

// Clear empties the live cart.
func (c *SessionCart) Clear(ctx context.Context) {
	c.store(ctx).Clear(ctx)
}

// Deduct lowers the live cart's lines, see Store.Deduct.
func (c *SessionCart) Deduct(ctx context.Context, quantities map[string]int) {
	c.store(ctx).Deduct(ctx, quantities)
}
