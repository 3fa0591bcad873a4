package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/flowerhaven/internal/paystack"
	"github.com/example/flowerhaven/internal/utils"
)

// PaystackHandler serves the Paystack webhook and payment lookups.
type PaystackHandler struct {
	gateway *paystack.Gateway
	repo    *paystack.Repository
	log     *zap.Logger
}

func NewPaystackHandler(gateway *paystack.Gateway, repo *paystack.Repository, log *zap.Logger) *PaystackHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaystackHandler{gateway: gateway, repo: repo, log: log}
}

type initializePaymentRequest struct {
	Email  string          `json:"email" validate:"required,email"`
	Amount decimal.Decimal `json:"amount"`
}

// Initialize opens a payment outside the cart checkout, e.g. for a custom arrangement quote.
func (h *PaystackHandler) Initialize(c *fiber.Ctx) error {
	var req initializePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if !req.Amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be greater than zero")
	}

	session, err := h.gateway.InitializePayment(c.UserContext(), req.Email, req.Amount)
	if err != nil {
		h.log.Warn("paystack initialize failed", zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, "failed to initialize payment")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"access_code":       session.AccessCode,
			"reference":         session.Reference,
			"authorization_url": session.AuthorizationURL,
		},
	})
}

type webhookRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Webhook logs a signed Paystack event. Signature checking happens in middleware.
func (h *PaystackHandler) Webhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Event == "" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid webhook payload")
	}
	if len(req.Data) == 0 {
		req.Data = json.RawMessage("null")
	}

	if err := h.repo.RecordEvent(c.UserContext(), req.Event, req.Data); err != nil {
		h.log.Error("failed to record paystack event", zap.String("event", req.Event), zap.Error(err))
		return err
	}

	h.log.Info("paystack event recorded", zap.String("event", req.Event))
	return c.JSON(fiber.Map{"success": true, "message": "event logged"})
}

// GetPayment returns a payment by reference.
func (h *PaystackHandler) GetPayment(c *fiber.Ctx) error {
	payment, err := h.repo.GetPaymentByReference(c.UserContext(), c.Params("reference"))
	if err != nil {
		if errors.Is(err, paystack.ErrPaymentNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "payment not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"payment":      payment,
			"amount_major": paystack.FromMinor(payment.Amount),
		},
	})
}

// ListPayments returns payments, optionally filtered by status.
func (h *PaystackHandler) ListPayments(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	payments, total, err := h.repo.ListPayments(c.UserContext(), c.Query("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return paginated(c, payments, pg.Page, pg.Limit, total)
}

// ListEvents returns webhook events, optionally filtered by event name.
func (h *PaystackHandler) ListEvents(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	events, total, err := h.repo.ListEvents(c.UserContext(), c.Query("event"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return paginated(c, events, pg.Page, pg.Limit, total)
}
