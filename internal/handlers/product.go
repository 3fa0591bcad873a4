package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/flowerhaven/internal/cart"
	"github.com/example/flowerhaven/internal/models"
	"github.com/example/flowerhaven/internal/utils"
)

// ProductHandler manages product CRUD.
type ProductHandler struct {
	db       *gorm.DB
	sessions *cart.Sessions
}

// NewProductHandler constructs ProductHandler. Price changes are pushed into the carts
// held by sessions; sessions may be nil.
func NewProductHandler(db *gorm.DB, sessions *cart.Sessions) *ProductHandler {
	return &ProductHandler{db: db, sessions: sessions}
}

type productRequest struct {
	Name          string          `json:"name" validate:"required,max=160"`
	Description   string          `json:"description" validate:"max=4000"`
	Price         decimal.Decimal `json:"price"`
	CategoryID    string          `json:"category_id" validate:"omitempty,uuid"`
	ImageURL      []string        `json:"image_url" validate:"dive,url"`
	StockQuantity int64           `json:"stock_quantity" validate:"gte=0"`
}

// ListProducts returns paginated products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{})

	if v := c.Query("category_id"); v != "" {
		var ids []uuid.UUID
		for _, part := range strings.Split(v, ",") {
			if id, err := uuid.Parse(strings.TrimSpace(part)); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			query = query.Where("category_id IN ?", ids)
		}
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", q, q)
	}

	if minPrice := c.Query("min_price"); minPrice != "" {
		if val, err := decimal.NewFromString(minPrice); err == nil {
			query = query.Where("price >= ?", val)
		}
	}

	if maxPrice := c.Query("max_price"); maxPrice != "" {
		if val, err := decimal.NewFromString(maxPrice); err == nil {
			query = query.Where("price <= ?", val)
		}
	}

	if c.Query("in_stock") == "true" {
		query = query.Where("stock_quantity > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Category").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("created_at desc").
		Find(&products).Error; err != nil {
		return err
	}

	return paginated(c, products, pg.Page, pg.Limit, total)
}

// GetProduct loads a product with its category.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	product, err := h.find(id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

func (h *ProductHandler) find(id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := h.db.Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

// CreateProduct handles product creation.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var product models.Product
	if err := h.apply(&product, req); err != nil {
		return err
	}

	if err := h.db.Create(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct replaces the editable fields of a product.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	product, err := h.find(id)
	if err != nil {
		return err
	}

	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.apply(product, req); err != nil {
		return err
	}
	product.Category = nil

	if err := h.db.Save(product).Error; err != nil {
		return err
	}

	h.refreshCarts(c, product)

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct soft-deletes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	res := h.db.Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "product not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProductHandler) apply(product *models.Product, req productRequest) error {
	if !req.Price.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "price must be greater than zero")
	}

	product.Name = strings.TrimSpace(req.Name)
	product.Description = req.Description
	product.Price = req.Price.Round(2)
	product.ImageURL = req.ImageURL
	product.StockQuantity = req.StockQuantity
	product.CategoryID = nil

	if req.CategoryID != "" {
		id := uuid.MustParse(req.CategoryID)
		var count int64
		if err := h.db.Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "category does not exist")
		}
		product.CategoryID = &id
	}
	return nil
}

// refreshCarts pushes the new name and price into every cart held in memory.
func (h *ProductHandler) refreshCarts(c *fiber.Ctx, product *models.Product) {
	if h.sessions == nil {
		return
	}
	h.sessions.Each(func(_ string, store *cart.Store) {
		store.UpdateProduct(c.UserContext(), toCartProduct(product))
	})
}

func toCartProduct(p *models.Product) cart.Product {
	return cart.Product{ID: p.ID.String(), Name: p.Name, Price: p.Price}
}

// ProductCatalog serves current product data to carts loaded back from storage.
type ProductCatalog struct {
	db *gorm.DB
}

// NewProductCatalog constructs ProductCatalog.
func NewProductCatalog(db *gorm.DB) *ProductCatalog {
	return &ProductCatalog{db: db}
}

// Products returns the products among ids that still exist. Malformed ids are skipped.
func (p *ProductCatalog) Products(ctx context.Context, ids []string) ([]cart.Product, error) {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			parsed = append(parsed, u)
		}
	}
	if len(parsed) == 0 {
		return nil, nil
	}

	var products []models.Product
	if err := p.db.WithContext(ctx).Where("id IN ?", parsed).Find(&products).Error; err != nil {
		return nil, err
	}

	out := make([]cart.Product, 0, len(products))
	for i := range products {
		out = append(out, toCartProduct(&products[i]))
	}
	return out, nil
}
