package models

import "time"

// CartRecord persists one serialized shopper cart under its storage key.
type CartRecord struct {
	Key       string    `gorm:"column:storage_key;primaryKey;size:128" json:"key"`
	Payload   string    `gorm:"type:text" json:"payload"`
	UpdatedAt time.Time `json:"updated_at"`
}
