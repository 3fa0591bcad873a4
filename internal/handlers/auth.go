package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/flowerhaven/internal/config"
	"github.com/example/flowerhaven/internal/middleware"
	"github.com/example/flowerhaven/internal/models"
	"github.com/example/flowerhaven/internal/utils"
)

// AuthHandler bundles dependencies for admin authentication endpoints.
type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an admin.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var admin models.Admin
	if err := h.db.Where("phone = ?", strings.TrimSpace(req.Phone)).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(admin.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, admin.ID, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    admin,
		"token":   token,
	})
}

// Me returns the authenticated admin.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	adminID, ok := middleware.GetCurrentAdminID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var admin models.Admin
	if err := h.db.First(&admin, "id = ?", adminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": admin})
}

// SeedAdmin creates the configured admin account when it does not exist yet.
func SeedAdmin(db *gorm.DB, phone, password string) (bool, error) {
	if phone == "" || password == "" {
		return false, nil
	}

	var count int64
	if err := db.Model(&models.Admin{}).Where("phone = ?", phone).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}

	admin := models.Admin{Phone: phone, DisplayName: "Administrator", PasswordHash: hash}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}
