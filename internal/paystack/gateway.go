package paystack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/flowerhaven/internal/checkout"
)

var (
	ErrPaymentDeclined = errors.New("payment was not completed")
	ErrAmountMismatch  = errors.New("paid amount does not match the order total")
)

var hundred = decimal.NewFromInt(100)

// ToMinor converts an amount in naira to kobo.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts kobo to naira.
func FromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// Gateway adapts the Paystack client to checkout. Every opened payment is recorded so
// webhooks and admins can follow it.
type Gateway struct {
	client       *Client
	repo         *Repository
	log          *zap.Logger
	pollInterval time.Duration
}

var _ checkout.Gateway = (*Gateway)(nil)

func NewGateway(client *Client, repo *Repository, pollInterval time.Duration, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &Gateway{client: client, repo: repo, log: log, pollInterval: pollInterval}
}

func (g *Gateway) InitializePayment(ctx context.Context, email string, amount decimal.Decimal) (*checkout.PaymentSession, error) {
	minor := ToMinor(amount)
	if minor <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}

	init, err := g.client.Initialize(ctx, email, minor)
	if err != nil {
		return nil, err
	}

	if g.repo != nil {
		if err := g.repo.CreatePayment(ctx, email, minor, init.Reference); err != nil {
			g.log.Error("failed to record paystack payment",
				zap.String("reference", init.Reference), zap.Error(err))
		}
	}

	return &checkout.PaymentSession{
		AccessCode:       init.AccessCode,
		Reference:        init.Reference,
		AuthorizationURL: init.AuthorizationURL,
		Email:            email,
		Amount:           amount,
	}, nil
}

// AwaitPayment polls the verify endpoint until the transaction settles. It returns an
// error only when the outcome is still unknown, for example when ctx expires.
func (g *Gateway) AwaitPayment(ctx context.Context, session *checkout.PaymentSession) (checkout.PaymentResult, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		result, settled, err := g.Check(ctx, session)
		if err != nil {
			g.log.Warn("paystack verify failed, retrying",
				zap.String("reference", session.Reference), zap.Error(err))
		}
		if settled {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return checkout.PaymentResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check verifies the transaction once. settled is false while it is still pending or abandoned.
func (g *Gateway) Check(ctx context.Context, session *checkout.PaymentSession) (result checkout.PaymentResult, settled bool, err error) {
	tx, err := g.client.Verify(ctx, session.Reference)
	if err != nil {
		return checkout.PaymentResult{}, false, err
	}

	switch tx.Status {
	case StatusSuccess:
		if expected := ToMinor(session.Amount); tx.Amount != expected {
			g.record(ctx, session.Reference, StatusFailed)
			return checkout.PaymentResult{
				Reference: session.Reference,
				Err:       fmt.Errorf("%w: expected %d, got %d", ErrAmountMismatch, expected, tx.Amount),
			}, true, nil
		}
		g.record(ctx, session.Reference, StatusSuccess)
		return checkout.PaymentResult{Reference: session.Reference}, true, nil

	case StatusAbandoned:
		// Paystack reports a checkout the shopper has not completed yet as abandoned; it can still succeed.
		return checkout.PaymentResult{}, false, nil

	case StatusFailed, StatusReversed:
		g.record(ctx, session.Reference, tx.Status)
		reason := tx.GatewayResponse
		if reason == "" {
			reason = tx.Status
		}
		return checkout.PaymentResult{
			Reference: session.Reference,
			Err:       fmt.Errorf("%w: %s", ErrPaymentDeclined, reason),
		}, true, nil
	}

	return checkout.PaymentResult{}, false, nil
}

func (g *Gateway) record(ctx context.Context, reference, status string) {
	if g.repo == nil {
		return
	}
	if err := g.repo.UpdatePaymentStatus(ctx, reference, status); err != nil && !errors.Is(err, ErrPaymentNotFound) {
		g.log.Warn("failed to update paystack payment status",
			zap.String("reference", reference), zap.String("status", status), zap.Error(err))
	}
}
