package checkout

import (
	"encoding/json"
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/example/flowerhaven/internal/cart"
)

// Initial order status values carried by every payload.
const (
	OrderStatusActive = "active"
)

// Customer identifies who placed the order.
type Customer struct {
	FullName string `json:"user_name"`
	Phone    string `json:"user_phone_number"`
	Email    string `json:"user_email,omitempty"`
}

// Delivery describes where and when the order is delivered.
type Delivery struct {
	Address  string `json:"shipping_address"`
	Location string `json:"location"`
	Date     string `json:"delivery_date"`
	TimeSlot string `json:"time_slot"`
}

// PayloadItem is one ordered line.
type PayloadItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

// OrderPayload is the immutable record of a paid checkout, handed to order storage.
// It has no setters; build a new one instead of changing it.
type OrderPayload struct {
	w payloadWire
}

type payloadWire struct {
	Customer
	Delivery
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"oneof=one-time subscription"`
	Frequency     Frequency       `json:"frequency,omitempty"`
	Items         []PayloadItem   `json:"items" validate:"required,min=1,dive"`
	Total         decimal.Decimal `json:"total_amount"`
	Reference     string          `json:"reference" validate:"required"`
	Status        string          `json:"status"`
	PaymentStatus bool            `json:"payment_status"`
}

// payloadStructValidation verifies every line is positive and the total equals the
// sum of line amounts.
func payloadStructValidation(sl validatorv10.StructLevel) {
	p := sl.Current().Interface().(payloadWire)

	sum := decimal.Zero
	for i, item := range p.Items {
		if item.ProductID == "" || item.Quantity < 1 || item.Amount.IsNegative() {
			sl.ReportError(p.Items, fmt.Sprintf("items[%d]", i), "Items", "valid_line", "")
		}
		sum = sum.Add(item.Amount)
	}
	if !sum.Equal(p.Total) {
		sl.ReportError(p.Total, "total_amount", "Total", "total_match_items",
			fmt.Sprintf("items sum %s != total %s", sum, p.Total))
	}
}

// BuildPayload assembles the order from the checkout details, the cart as captured at
// submit time and the gateway reference.
func BuildPayload(v *validatorv10.Validate, details Details, snap cart.Snapshot, reference string) (*OrderPayload, error) {
	d := details.normalized()

	items := make([]PayloadItem, 0, len(snap.Items))
	for _, li := range snap.Items {
		items = append(items, PayloadItem{
			ProductID:   li.Product.ID,
			ProductName: li.Product.Name,
			Quantity:    li.Quantity,
			Amount:      li.Amount,
		})
	}

	w := payloadWire{
		Customer: Customer{FullName: d.FullName, Phone: d.Phone, Email: d.Email},
		Delivery: Delivery{
			Address:  d.Address,
			Location: d.Location,
			Date:     d.DeliveryDate,
			TimeSlot: d.TimeSlot,
		},
		PaymentMethod: d.PaymentMethod,
		Frequency:     d.Frequency,
		Items:         items,
		Total:         snap.Total,
		Reference:     reference,
		Status:        OrderStatusActive,
		PaymentStatus: true,
	}

	if err := v.Struct(w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrderPayload, err)
	}

	return &OrderPayload{w: w}, nil
}

func (p *OrderPayload) Customer() Customer           { return p.w.Customer }
func (p *OrderPayload) Delivery() Delivery           { return p.w.Delivery }
func (p *OrderPayload) PaymentMethod() PaymentMethod { return p.w.PaymentMethod }
func (p *OrderPayload) Frequency() Frequency         { return p.w.Frequency }
func (p *OrderPayload) Total() decimal.Decimal       { return p.w.Total }
func (p *OrderPayload) Reference() string            { return p.w.Reference }
func (p *OrderPayload) Status() string               { return p.w.Status }
func (p *OrderPayload) PaymentStatus() bool          { return p.w.PaymentStatus }

// Items returns a copy of the ordered lines.
func (p *OrderPayload) Items() []PayloadItem {
	items := make([]PayloadItem, len(p.w.Items))
	copy(items, p.w.Items)
	return items
}

func (p *OrderPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.w)
}
