package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/flowerhaven/internal/cart"
	"github.com/example/flowerhaven/internal/checkout"
	"github.com/example/flowerhaven/internal/models"
	"github.com/example/flowerhaven/internal/orders"
	"github.com/example/flowerhaven/internal/paystack"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db        *gorm.DB
	orders    *orders.Repository
	sessions  *cart.Sessions
	checkouts *checkout.Registry
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, repo *orders.Repository, sessions *cart.Sessions, checkouts *checkout.Registry) *AdminHandler {
	return &AdminHandler{db: db, orders: repo, sessions: sessions, checkouts: checkouts}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.orders.Stats(c.UserContext())
	if err != nil {
		return err
	}

	var totalProducts int64
	if err := h.db.Model(&models.Product{}).Count(&totalProducts).Error; err != nil {
		return err
	}

	var outOfStock int64
	if err := h.db.Model(&models.Product{}).Where("stock_quantity <= 0").Count(&outOfStock).Error; err != nil {
		return err
	}

	var totalCategories int64
	if err := h.db.Model(&models.Category{}).Count(&totalCategories).Error; err != nil {
		return err
	}

	// Payments Paystack captured for which no order exists need a human.
	var unreconciled int64
	if err := h.db.Model(&models.PaystackPayment{}).
		Where("status = ?", paystack.StatusSuccess).
		Where("reference NOT IN (?)", h.db.Unscoped().Model(&models.Order{}).Select("reference")).
		Count(&unreconciled).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_orders":          stats.TotalOrders,
			"active_orders":         stats.ActiveOrders,
			"delivered_orders":      stats.DeliveredOrders,
			"total_revenue":         stats.Revenue,
			"total_products":        totalProducts,
			"out_of_stock_products": outOfStock,
			"total_categories":      totalCategories,
			"unreconciled_payments": unreconciled,
			"carts_in_memory":       h.sessions.Len(),
		},
	})
}

// RecentOrders returns the most recent 5 orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	list, _, err := h.orders.GetOrders(c.UserContext(), orders.Filter{Limit: 5})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    list,
	})
}

// StuckCheckouts lists paid checkouts whose order could not be recorded.
func (h *AdminHandler) StuckCheckouts(c *fiber.Ctx) error {
	list := h.checkouts.Reconciliations()
	if list == nil {
		list = []checkout.Reconciliation{}
	}
	return c.JSON(fiber.Map{"success": true, "data": list})
}

// ResolveCheckout closes a reconciliation once staff settled it by hand.
func (h *AdminHandler) ResolveCheckout(c *fiber.Ctx) error {
	s, ok := h.checkouts.Lookup(c.Params("sessionId"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "checkout not found")
	}
	if err := s.Resolve(); err != nil {
		if errors.Is(err, checkout.ErrIllegalTransition) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"state": s.State(), "reference": s.Reference()}})
}
