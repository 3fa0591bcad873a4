package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/flowerhaven/internal/cart"
	"github.com/example/flowerhaven/internal/checkout"
	"github.com/example/flowerhaven/internal/config"
	"github.com/example/flowerhaven/internal/handlers"
	"github.com/example/flowerhaven/internal/middleware"
	"github.com/example/flowerhaven/internal/orders"
	"github.com/example/flowerhaven/internal/paystack"
	"github.com/example/flowerhaven/internal/services"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Sessions  *cart.Sessions
	Checkouts *checkout.Registry
	Orders    *orders.Repository
	Payments  *paystack.Repository
	Gateway   *paystack.Gateway
	Telegram  *services.TelegramService
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Deps) {
	cfg := deps.Config

	authHandler := handlers.NewAuthHandler(deps.DB, cfg)
	catalogHandler := handlers.NewCatalogHandler(deps.DB)
	productHandler := handlers.NewProductHandler(deps.DB, deps.Sessions)
	cartHandler := handlers.NewCartHandler(deps.DB, deps.Sessions)
	checkoutHandler := handlers.NewCheckoutHandler(deps.Sessions, deps.Checkouts, deps.Gateway, deps.Telegram, deps.Log)
	orderHandler := handlers.NewOrderHandler(deps.Orders)
	adminHandler := handlers.NewAdminHandler(deps.DB, deps.Orders, deps.Sessions, deps.Checkouts)
	paystackHandler := handlers.NewPaystackHandler(deps.Gateway, deps.Payments, deps.Log)

	api := app.Group("/api")
	admin := middleware.AuthMiddleware(cfg)
	session := middleware.SessionMiddleware(cfg.CartTTL, !cfg.IsDevelopment())

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", admin, authHandler.Me)

	// Catalog routes
	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id", catalogHandler.GetCategory)
	categories.Post("/", admin, catalogHandler.CreateCategory)
	categories.Put("/:id", admin, catalogHandler.UpdateCategory)
	categories.Delete("/:id", admin, catalogHandler.DeleteCategory)

	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)
	products.Post("/", admin, productHandler.CreateProduct)
	products.Put("/:id", admin, productHandler.UpdateProduct)
	products.Delete("/:id", admin, productHandler.DeleteProduct)

	// Shopper routes
	cartGroup := api.Group("/cart", session)
	cartGroup.Get("/", cartHandler.GetCart)
	cartGroup.Delete("/", cartHandler.ClearCart)
	cartGroup.Post("/items", cartHandler.AddItem)
	cartGroup.Patch("/items/:productId", cartHandler.UpdateItem)
	cartGroup.Delete("/items/:productId", cartHandler.RemoveItem)

	checkoutGroup := api.Group("/checkout", session)
	checkoutGroup.Get("/", checkoutHandler.Status)
	checkoutGroup.Get("/time-slots", checkoutHandler.TimeSlots)
	checkoutGroup.Post("/", checkoutHandler.Submit)
	checkoutGroup.Post("/confirm", checkoutHandler.Confirm)
	checkoutGroup.Post("/retry", checkoutHandler.Retry)
	checkoutGroup.Post("/abandon", checkoutHandler.Abandon)

	// Paystack routes
	pay := api.Group("/paystack")
	pay.Post("/initialize", paystackHandler.Initialize)
	pay.Post("/webhook", middleware.PaystackSignatureMiddleware(cfg.PaystackSecretKey), paystackHandler.Webhook)
	pay.Get("/payments/:reference", paystackHandler.GetPayment)
	pay.Get("/payments", admin, paystackHandler.ListPayments)
	pay.Get("/events", admin, paystackHandler.ListEvents)

	// Admin routes
	orderGroup := api.Group("/orders", admin)
	orderGroup.Get("/", orderHandler.ListOrders)
	orderGroup.Get("/:id", orderHandler.GetOrder)
	orderGroup.Patch("/:id", orderHandler.UpdateOrder)
	orderGroup.Delete("/:id", orderHandler.DeleteOrder)

	dashboard := api.Group("/dashboard", admin)
	dashboard.Get("/", adminHandler.DashboardStats)
	dashboard.Get("/recent-orders", adminHandler.RecentOrders)
	dashboard.Get("/checkouts", adminHandler.StuckCheckouts)
	dashboard.Post("/checkouts/:sessionId/resolve", adminHandler.ResolveCheckout)
}

// ErrorHandler renders every error as the JSON envelope the storefront expects.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{"success": false, "error": message})
	}
}
