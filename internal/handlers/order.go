package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/flowerhaven/internal/orders"
	"github.com/example/flowerhaven/internal/utils"
)

// OrderHandler manages order endpoints for admins.
type OrderHandler struct {
	orders *orders.Repository
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(repo *orders.Repository) *OrderHandler {
	return &OrderHandler{orders: repo}
}

// ListOrders returns orders with optional search, status and payment filters.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := orders.Filter{
		Search: c.Query("search"),
		Status: c.Query("status"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if v := c.Query("payment_status"); v != "" {
		paid, err := strconv.ParseBool(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payment_status")
		}
		filter.PaymentStatus = &paid
	}

	list, total, err := h.orders.GetOrders(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return paginated(c, list, pg.Page, pg.Limit, total)
}

// GetOrder returns a single order.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.GetOrderByID(c.UserContext(), id)
	if err != nil {
		return orderError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// UpdateOrder changes the status or payment status of an order.
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req orders.Update
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.UpdateOrder(c.UserContext(), id, req)
	if err != nil {
		return orderError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// DeleteOrder soft-deletes an order.
func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.orders.DeleteOrder(c.UserContext(), id); err != nil {
		return orderError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func orderError(err error) error {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	case errors.Is(err, orders.ErrInvalidStatus):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}
