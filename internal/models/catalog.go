package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups bouquets, plants and add-ons on the storefront.
type Category struct {
	BaseModel
	Name         string         `gorm:"not null" json:"name"`
	Description  string         `json:"description"`
	ImageURL     []string       `gorm:"type:text;serializer:json" json:"image_url"`
	ProductCount int64          `gorm:"-" json:"product_count"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Products     []Product      `json:"products,omitempty"`
}

// Product is a sellable catalog entry. Add-ons and message cards are products too.
type Product struct {
	BaseModel
	Name          string          `gorm:"not null" json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CategoryID    *uuid.UUID      `gorm:"type:uuid;index" json:"category_id"`
	Category      *Category       `json:"category_data,omitempty"`
	ImageURL      []string        `gorm:"type:text;serializer:json" json:"image_url"`
	StockQuantity int64           `json:"stock_quantity"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}
