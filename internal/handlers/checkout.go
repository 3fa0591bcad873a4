package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/flowerhaven/internal/cart"
	"github.com/example/flowerhaven/internal/checkout"
	"github.com/example/flowerhaven/internal/middleware"
	"github.com/example/flowerhaven/internal/services"
)

// PaymentVerifier asks the payment provider for the outcome of a session once.
type PaymentVerifier interface {
	Check(ctx context.Context, session *checkout.PaymentSession) (checkout.PaymentResult, bool, error)
}

// CheckoutHandler drives the shopper's checkout.
type CheckoutHandler struct {
	sessions  *cart.Sessions
	checkouts *checkout.Registry
	verifier  PaymentVerifier
	telegram  *services.TelegramService
	log       *zap.Logger
}

// NewCheckoutHandler constructs CheckoutHandler. telegram may be nil.
func NewCheckoutHandler(sessions *cart.Sessions, checkouts *checkout.Registry, verifier PaymentVerifier, telegram *services.TelegramService, log *zap.Logger) *CheckoutHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutHandler{
		sessions:  sessions,
		checkouts: checkouts,
		verifier:  verifier,
		telegram:  telegram,
		log:       log,
	}
}

type confirmRequest struct {
	Reference string `json:"reference" validate:"required,max=100"`
}

func (h *CheckoutHandler) session(c *fiber.Ctx) (*checkout.Session, error) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "missing shopper session")
	}
	// The source resolves the live store on each use, so pruning the cart never strands checkout.
	return h.checkouts.Get(sessionID, h.sessions.Source(sessionID)), nil
}

// TimeSlots lists the delivery windows.
func (h *CheckoutHandler) TimeSlots(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": checkout.TimeSlotList()})
}

// Status reports where the shopper's checkout stands and hands over pending notifications.
func (h *CheckoutHandler) Status(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": h.view(s)})
}

func (h *CheckoutHandler) view(s *checkout.Session) fiber.Map {
	notifications := s.Inbox.Drain()
	if notifications == nil {
		notifications = []checkout.Notification{}
	}
	return fiber.Map{
		"state":         s.State(),
		"reference":     s.Reference(),
		"payment":       s.Session(),
		"order":         s.Record(),
		"notifications": notifications,
	}
}

// Submit validates the form and opens a payment for the cart total.
func (h *CheckoutHandler) Submit(c *fiber.Ctx) error {
	var details checkout.Details
	if err := c.BodyParser(&details); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	s, err := h.session(c)
	if err != nil {
		return err
	}

	payment, err := s.Submit(c.UserContext(), details)
	if err != nil {
		return h.fail(c, s, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": payment})
}

// Confirm is called when the shopper returns from the payment page. The outcome is taken
// from the provider, never from the request.
func (h *CheckoutHandler) Confirm(c *fiber.Ctx) error {
	var req confirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	s, err := h.session(c)
	if err != nil {
		return err
	}

	payment := s.Session()
	if s.State() != checkout.StateAwaitingPaymentConfirmation || payment == nil {
		return h.fail(c, s, checkout.ErrIllegalTransition)
	}
	if payment.Reference != req.Reference {
		return h.fail(c, s, checkout.ErrReferenceMismatch)
	}

	result, settled, err := h.verifier.Check(c.UserContext(), payment)
	if err != nil {
		h.log.Warn("payment verification failed", zap.String("reference", req.Reference), zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, "could not verify payment, try again shortly")
	}
	if !settled {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "data": h.view(s)})
	}

	record, err := s.Confirm(c.UserContext(), result)
	if err != nil {
		return h.fail(c, s, err)
	}

	h.announce(s.Payload(), record)
	return c.JSON(fiber.Map{"success": true, "data": h.view(s)})
}

// Retry resubmits a paid order that could not be recorded.
func (h *CheckoutHandler) Retry(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	record, err := s.RetrySubmission(c.UserContext())
	if err != nil {
		return h.fail(c, s, err)
	}

	h.announce(s.Payload(), record)
	return c.JSON(fiber.Map{"success": true, "data": h.view(s)})
}

// Abandon drops an unpaid checkout.
func (h *CheckoutHandler) Abandon(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	if err := s.Abandon(); err != nil {
		return h.fail(c, s, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": h.view(s)})
}

func (h *CheckoutHandler) announce(payload *checkout.OrderPayload, record *checkout.OrderRecord) {
	if h.telegram == nil || payload == nil || record == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.telegram.NotifyNewOrder(ctx, payload, record); err != nil {
			h.log.Warn("telegram notification failed", zap.String("order_id", record.ID), zap.Error(err))
		}
	}()
}

// fail maps checkout errors onto responses the storefront can act on.
func (h *CheckoutHandler) fail(c *fiber.Ctx, s *checkout.Session, err error) error {
	var (
		validation *checkout.ValidationError
		recon      *checkout.ReconciliationError
	)

	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"error":   checkout.ErrValidation.Error(),
			"fields":  validation.Fields,
		})
	case errors.As(err, &recon):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success":   false,
			"error":     checkout.ErrOrderNotRecorded.Error(),
			"reference": recon.Reference,
			"data":      h.view(s),
		})
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrReferenceMismatch):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrPaymentFailed):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"success": false,
			"error":   checkout.ErrPaymentFailed.Error(),
			"data":    h.view(s),
		})
	case errors.Is(err, checkout.ErrGatewayInit):
		return fiber.NewError(fiber.StatusBadGateway, checkout.ErrGatewayInit.Error())
	case errors.Is(err, checkout.ErrIllegalTransition),
		errors.Is(err, checkout.ErrReconciliationOpen),
		errors.Is(err, checkout.ErrPaymentCaptured),
		errors.Is(err, checkout.ErrAbandoned):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}
