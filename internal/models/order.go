package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order status values.
const (
	OrderStatusActive    = "active"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is the persisted record of a confirmed checkout.
type Order struct {
	BaseModel
	OrderNumber     string          `gorm:"uniqueIndex" json:"order_number"`
	UserName        string          `json:"user_name"`
	UserPhoneNumber string          `json:"user_phone_number"`
	UserEmail       string          `json:"user_email"`
	ShippingAddress string          `json:"shipping_address"`
	Location        string          `json:"location"`
	DeliveryDate    string          `gorm:"size:10" json:"delivery_date"`
	TimeSlot        string          `json:"time_slot"`
	PaymentMethod   string          `json:"payment_method"`
	Frequency       string          `json:"frequency,omitempty"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2)" json:"total_amount"`
	PaymentStatus   bool            `json:"payment_status"`
	Status          string          `gorm:"index" json:"status"`
	Reference       string          `gorm:"size:100;uniqueIndex" json:"reference"`
	PlacedAt        time.Time       `json:"placed_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem is one purchased line of an order.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID   string          `gorm:"size:64;index" json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
}
