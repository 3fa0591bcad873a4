package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/flowerhaven/internal/checkout"
	"github.com/example/flowerhaven/internal/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrTotalMismatch = errors.New("order total does not equal the sum of its items")
	ErrInvalidStatus = errors.New("invalid order status")
)

var validStatuses = map[string]bool{
	models.OrderStatusActive:    true,
	models.OrderStatusDelivered: true,
	models.OrderStatusCancelled: true,
}

// Repository persists orders with gorm.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ checkout.OrderService = (*Repository)(nil)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// CreateOrder stores a paid order and its items in one transaction. Submitting the same
// payment reference twice returns the order stored the first time.
func (r *Repository) CreateOrder(ctx context.Context, payload *checkout.OrderPayload) (*checkout.OrderRecord, error) {
	items := payload.Items()

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount)
	}
	if !sum.Equal(payload.Total()) {
		return nil, fmt.Errorf("%w: items %s, total %s", ErrTotalMismatch, sum, payload.Total())
	}

	var order models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Items").First(&order, "reference = ?", payload.Reference()).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		customer := payload.Customer()
		delivery := payload.Delivery()
		order = models.Order{
			OrderNumber:     r.generateOrderNumber(),
			UserName:        customer.FullName,
			UserPhoneNumber: customer.Phone,
			UserEmail:       customer.Email,
			ShippingAddress: delivery.Address,
			Location:        delivery.Location,
			DeliveryDate:    delivery.Date,
			TimeSlot:        delivery.TimeSlot,
			PaymentMethod:   string(payload.PaymentMethod()),
			Frequency:       string(payload.Frequency()),
			TotalAmount:     payload.Total(),
			PaymentStatus:   payload.PaymentStatus(),
			Status:          payload.Status(),
			Reference:       payload.Reference(),
			PlacedAt:        r.now(),
		}
		for _, item := range items {
			order.Items = append(order.Items, models.OrderItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				Amount:      item.Amount,
			})
		}

		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return toRecord(&order), nil
}

func toRecord(order *models.Order) *checkout.OrderRecord {
	return &checkout.OrderRecord{
		ID:          order.ID.String(),
		OrderNumber: order.OrderNumber,
		Total:       order.TotalAmount,
		Reference:   order.Reference,
		PlacedAt:    order.PlacedAt,
	}
}

// Filter narrows GetOrders.
type Filter struct {
	Search        string
	Status        string
	PaymentStatus *bool
	Limit         int
	Offset        int
}

// GetOrders returns a page of orders, newest first, and the number of matching orders.
func (r *Repository) GetOrders(ctx context.Context, f Filter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})

	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(user_name) LIKE ? OR LOWER(user_email) LIKE ? OR user_phone_number LIKE ? OR LOWER(order_number) LIKE ? OR LOWER(reference) LIKE ?",
			like, like, like, like, like,
		)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *f.PaymentStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(limit).Offset(f.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Update carries the admin-editable order fields. Nil fields are left unchanged.
type Update struct {
	Status        *string `json:"status"`
	PaymentStatus *bool   `json:"payment_status"`
}

func (r *Repository) UpdateOrder(ctx context.Context, id uuid.UUID, u Update) (*models.Order, error) {
	updates := map[string]any{}
	if u.Status != nil {
		if !validStatuses[*u.Status] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *u.Status)
		}
		updates["status"] = *u.Status
	}
	if u.PaymentStatus != nil {
		updates["payment_status"] = *u.PaymentStatus
	}

	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrOrderNotFound
		}
	}

	return r.GetOrderByID(ctx, id)
}

func (r *Repository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Stats summarizes orders for the admin dashboard.
type Stats struct {
	TotalOrders     int64           `json:"total_orders"`
	ActiveOrders    int64           `json:"active_orders"`
	DeliveredOrders int64           `json:"delivered_orders"`
	Revenue         decimal.Decimal `json:"revenue"`
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	db := r.db.WithContext(ctx)
	var s Stats

	if err := db.Model(&models.Order{}).Count(&s.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Where("status = ?", models.OrderStatusActive).Count(&s.ActiveOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Where("status = ?", models.OrderStatusDelivered).Count(&s.DeliveredOrders).Error; err != nil {
		return nil, err
	}

	row := db.Model(&models.Order{}).
		Where("payment_status = ? AND status <> ?", true, models.OrderStatusCancelled).
		Select("COALESCE(SUM(total_amount), 0)").Row()
	if err := row.Scan(&s.Revenue); err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *Repository) generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("FH-%s-%s", r.now().Format("060102"), suffix)
}
