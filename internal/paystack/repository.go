package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/example/flowerhaven/internal/models"
)

// EventChargeSuccess is the webhook event sent when a charge completes.
const EventChargeSuccess = "charge.success"

var ErrPaymentNotFound = errors.New("paystack payment not found")

// Repository stores payment sessions and webhook events.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreatePayment(ctx context.Context, email string, amount int64, reference string) error {
	payment := models.PaystackPayment{
		Email:     email,
		Amount:    amount,
		Reference: reference,
		Status:    StatusPending,
	}
	if err := r.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return fmt.Errorf("create paystack payment: %w", err)
	}
	return nil
}

func (r *Repository) GetPaymentByReference(ctx context.Context, reference string) (*models.PaystackPayment, error) {
	var payment models.PaystackPayment
	if err := r.db.WithContext(ctx).First(&payment, "reference = ?", reference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get paystack payment: %w", err)
	}
	return &payment, nil
}

func (r *Repository) UpdatePaymentStatus(ctx context.Context, reference, status string) error {
	return updateStatus(r.db.WithContext(ctx), reference, status)
}

func updateStatus(tx *gorm.DB, reference, status string) error {
	res := tx.Model(&models.PaystackPayment{}).
		Where("reference = ?", reference).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update paystack payment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// ListPayments returns a page of payments, newest first, optionally filtered by status.
func (r *Repository) ListPayments(ctx context.Context, status string, limit, offset int) ([]models.PaystackPayment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaystackPayment{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count paystack payments: %w", err)
	}

	var payments []models.PaystackPayment
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("list paystack payments: %w", err)
	}
	return payments, total, nil
}

// ListEvents returns a page of webhook events, newest first, optionally filtered by event name.
func (r *Repository) ListEvents(ctx context.Context, event string, limit, offset int) ([]models.PaystackEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaystackEvent{})
	if event != "" {
		query = query.Where("event = ?", event)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count paystack events: %w", err)
	}

	var events []models.PaystackEvent
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("list paystack events: %w", err)
	}
	return events, total, nil
}

// RecordEvent stores a webhook event. A charge.success event also marks its payment
// as successful; an unknown reference is stored but not treated as an error.
func (r *Repository) RecordEvent(ctx context.Context, event string, data json.RawMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.PaystackEvent{Event: event, Data: string(data)}).Error; err != nil {
			return fmt.Errorf("log paystack event: %w", err)
		}

		if event != EventChargeSuccess {
			return nil
		}

		var charge struct {
			Reference string `json:"reference"`
		}
		if err := json.Unmarshal(data, &charge); err != nil || charge.Reference == "" {
			return nil
		}

		err := updateStatus(tx, charge.Reference, StatusSuccess)
		if errors.Is(err, ErrPaymentNotFound) {
			return nil
		}
		return err
	})
}
