package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/flowerhaven/internal/cart"
	"github.com/example/flowerhaven/internal/middleware"
	"github.com/example/flowerhaven/internal/models"
)

// CartHandler exposes the shopper's cart.
type CartHandler struct {
	db       *gorm.DB
	sessions *cart.Sessions
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(db *gorm.DB, sessions *cart.Sessions) *CartHandler {
	return &CartHandler{db: db, sessions: sessions}
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1,lte=999"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=999"`
}

func (h *CartHandler) store(c *fiber.Ctx) (*cart.Store, error) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "missing shopper session")
	}
	return h.sessions.Get(c.UserContext(), sessionID), nil
}

func cartResponse(c *fiber.Ctx, snap cart.Snapshot) error {
	return c.JSON(fiber.Map{"success": true, "data": snap})
}

// GetCart returns the current cart.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	store, err := h.store(c)
	if err != nil {
		return err
	}
	return cartResponse(c, store.Snapshot())
}

// AddItem adds a catalog product to the cart. Quantity defaults to one.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req addItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", uuid.MustParse(req.ProductID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}
	if product.StockQuantity <= 0 {
		return fiber.NewError(fiber.StatusConflict, "product is out of stock")
	}

	store, err := h.store(c)
	if err != nil {
		return err
	}

	if err := store.AddItem(c.UserContext(), toCartProduct(&product), req.Quantity); err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	return cartResponse(c, store.Snapshot())
}

// UpdateItem sets the quantity of a line. Zero removes it.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	var req updateItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	store, err := h.store(c)
	if err != nil {
		return err
	}

	store.UpdateQuantity(c.UserContext(), c.Params("productId"), req.Quantity)
	return cartResponse(c, store.Snapshot())
}

// RemoveItem drops a line from the cart.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	store, err := h.store(c)
	if err != nil {
		return err
	}

	store.RemoveItem(c.UserContext(), c.Params("productId"))
	return cartResponse(c, store.Snapshot())
}

// ClearCart empties the cart.
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	store, err := h.store(c)
	if err != nil {
		return err
	}

	store.Clear(c.UserContext())
	return cartResponse(c, store.Snapshot())
}
