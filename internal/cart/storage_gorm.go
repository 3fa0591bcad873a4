package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/flowerhaven/internal/models"
)

// DBStorage keeps a cart in the cart_records table, one row per key.
type DBStorage struct {
	db  *gorm.DB
	key string
}

func NewDBStorage(db *gorm.DB, key string) *DBStorage {
	return &DBStorage{db: db, key: key}
}

// DBFactory returns a StorageFactory producing session-scoped DBStorage.
func DBFactory(db *gorm.DB) StorageFactory {
	return func(sessionID string) Storage {
		return NewDBStorage(db, StorageKey(sessionID))
	}
}

func (d *DBStorage) Load(ctx context.Context) (*Cart, error) {
	var record models.CartRecord
	err := d.db.WithContext(ctx).First(&record, "storage_key = ?", d.key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart record: %w", err)
	}
	return decode([]byte(record.Payload))
}

func (d *DBStorage) Save(ctx context.Context, c *Cart) error {
	data, err := encode(c)
	if err != nil {
		return err
	}

	record := models.CartRecord{Key: d.key, Payload: string(data)}
	if err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error; err != nil {
		return fmt.Errorf("save cart record: %w", err)
	}
	return nil
}
