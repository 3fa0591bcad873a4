package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// KeyPrefix namespaces persisted carts.
const KeyPrefix = "floral-cart"

// StorageKey returns the persistence key for a shopper session.
func StorageKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", KeyPrefix, sessionID)
}

// Storage persists a single cart. Load returns (nil, nil) when nothing is stored.
type Storage interface {
	Load(ctx context.Context) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
}

// StorageFactory binds a Storage to a shopper session.
type StorageFactory func(sessionID string) Storage

func encode(c *Cart) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Cart, error) {
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

// MemoryStorage keeps the serialized cart in process memory.
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte

	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(_ context.Context) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return decode(m.data)
}

func (m *MemoryStorage) Save(_ context.Context, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	data, err := encode(c)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

// Raw returns the serialized cart, or nil.
func (m *MemoryStorage) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}
