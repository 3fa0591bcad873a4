package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Store owns the in-progress cart of one shopper. Every mutation is persisted and
// then announced to subscribers before the call returns.
//
// Subscribers may read the store from their callback but must not mutate it.
type Store struct {
	writeMu sync.Mutex // serializes mutate, persist, notify
	mu      sync.RWMutex
	cart    *Cart

	storage Storage
	log     *zap.Logger

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// NewStore builds a store and rehydrates it from storage. A missing or unreadable
// persisted cart yields an empty one.
func NewStore(ctx context.Context, storage Storage, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Store{
		cart:        &Cart{},
		storage:     storage,
		log:         log,
		subscribers: make(map[int]func(Snapshot)),
	}

	loaded, err := storage.Load(ctx)
	switch {
	case err != nil:
		log.Warn("cart load failed, starting empty", zap.Error(err))
	case loaded != nil:
		s.cart = sanitize(loaded)
	}

	return s
}

// AddItem appends the product or, when already present, increments its quantity.
func (s *Store) AddItem(ctx context.Context, product Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mutate(ctx, func(c *Cart) bool {
		if i := c.indexOf(product.ID); i >= 0 {
			c.Items[i] = newLineItem(product, c.Items[i].Quantity+quantity)
			return true
		}
		c.Items = append(c.Items, newLineItem(product, quantity))
		return true
	})
	return nil
}

// RemoveItem deletes the line for productID. Absent ids are ignored.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	s.mutate(ctx, func(c *Cart) bool {
		i := c.indexOf(productID)
		if i < 0 {
			return false
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	})
}

// UpdateQuantity sets the quantity of productID. A quantity of zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(ctx, productID)
		return
	}

	s.mutate(ctx, func(c *Cart) bool {
		i := c.indexOf(productID)
		if i < 0 {
			return false
		}
		c.Items[i] = newLineItem(c.Items[i].Product, quantity)
		return true
	})
}

// UpdateProduct refreshes the stored product data (name, price) of a line already in
// the cart and recomputes its amount. Products not in the cart are ignored.
func (s *Store) UpdateProduct(ctx context.Context, product Product) {
	s.mutate(ctx, func(c *Cart) bool {
		i := c.indexOf(product.ID)
		if i < 0 {
			return false
		}
		current := c.Items[i]
		if current.Product.Name == product.Name && current.Product.Price.Equal(product.Price) {
			return false
		}
		c.Items[i] = newLineItem(product, current.Quantity)
		return true
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func(c *Cart) bool {
		c.Items = nil
		return true
	})
}

// Deduct lowers each listed line by the given quantity and drops lines that reach zero.
// Lines not in the cart are ignored.
func (s *Store) Deduct(ctx context.Context, quantities map[string]int) {
	s.mutate(ctx, func(c *Cart) bool {
		changed := false
		kept := c.Items[:0]
		for _, item := range c.Items {
			n, ok := quantities[item.Product.ID]
			if !ok || n <= 0 {
				kept = append(kept, item)
				continue
			}
			changed = true
			if left := item.Quantity - n; left > 0 {
				kept = append(kept, newLineItem(item.Product, left))
			}
		}
		c.Items = kept
		return changed
	})
}

// Snapshot returns a detached copy of the cart and its totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.cart)
}

// Subscribe registers fn to receive the new snapshot after every mutation.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) mutate(ctx context.Context, fn func(c *Cart) bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next := s.cart.clone()
	if !fn(next) {
		s.mu.Unlock()
		return
	}
	s.cart = next
	snap := snapshotOf(next)
	s.mu.Unlock()

	if err := s.storage.Save(ctx, next.clone()); err != nil {
		s.log.Error("cart persist failed, keeping in-memory state", zap.Error(err))
	}

	s.notify(snap)
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// sanitize drops persisted lines that would break cart invariants: non-positive
// quantities and duplicate product ids. Amounts are recomputed from price.
func sanitize(c *Cart) *Cart {
	out := &Cart{}
	for _, item := range c.Items {
		if item.Quantity < 1 || item.Product.ID == "" {
			continue
		}
		if i := out.indexOf(item.Product.ID); i >= 0 {
			out.Items[i] = newLineItem(out.Items[i].Product, out.Items[i].Quantity+item.Quantity)
			continue
		}
		out.Items = append(out.Items, newLineItem(item.Product, item.Quantity))
	}
	return out
}
