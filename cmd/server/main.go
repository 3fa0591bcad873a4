package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/flowerhaven/internal/cart"
	"github.com/example/flowerhaven/internal/checkout"
	"github.com/example/flowerhaven/internal/config"
	"github.com/example/flowerhaven/internal/database"
	"github.com/example/flowerhaven/internal/handlers"
	"github.com/example/flowerhaven/internal/logging"
	"github.com/example/flowerhaven/internal/orders"
	"github.com/example/flowerhaven/internal/paystack"
	"github.com/example/flowerhaven/internal/routes"
	"github.com/example/flowerhaven/internal/services"
)

const (
	pruneInterval = 10 * time.Minute
	sessionIdle   = 2 * time.Hour
)

func main() {
	cfg := config.Load()

	zl, err := logging.New(cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	db, err := database.Connect(cfg.DatabaseURL, cfg.IsDevelopment(), zl)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}

	if created, err := handlers.SeedAdmin(db, cfg.AdminPhone, cfg.AdminPassword); err != nil {
		zl.Fatal("seed admin", zap.Error(err))
	} else if created {
		zl.Info("admin account created", zap.String("phone", cfg.AdminPhone))
	}

	factory, closeStorage := cartStorage(cfg, db, zl)
	defer closeStorage()
	sessions := cart.NewSessions(factory, zl.Named("cart"), cart.WithCatalog(handlers.NewProductCatalog(db)))

	payments := paystack.NewRepository(db)
	client := paystack.NewClient(paystack.Config{
		SecretKey:   cfg.PaystackSecretKey,
		BaseURL:     cfg.PaystackBaseURL,
		CallbackURL: cfg.PaystackCallbackURL,
		Timeout:     cfg.GatewayTimeout,
	})
	gateway := paystack.NewGateway(client, payments, cfg.PaymentPollInterval, zl.Named("paystack"))

	ordersRepo := orders.NewRepository(db)
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, zl.Named("telegram"))

	checkouts := checkout.NewRegistry(gateway, ordersRepo, telegram,
		checkout.WithTimeouts(cfg.GatewayTimeout, cfg.OrderTimeout),
		checkout.WithLogger(zl.Named("checkout")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go prune(ctx, sessions, checkouts, zl)

	app := fiber.New(fiber.Config{
		AppName:      "Flower Haven",
		ErrorHandler: routes.ErrorHandler(zl),
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		Config:    cfg,
		DB:        db,
		Log:       zl,
		Sessions:  sessions,
		Checkouts: checkouts,
		Orders:    ordersRepo,
		Payments:  payments,
		Gateway:   gateway,
		Telegram:  telegram,
	})

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Warn("shutdown", zap.Error(err))
		}
	}()

	zl.Info("starting server", zap.String("port", cfg.AppPort), zap.String("cart_storage", cfg.CartStorage))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		zl.Fatal("fiber.Listen error", zap.Error(err))
	}
}

// cartStorage picks where carts persist between requests.
func cartStorage(cfg *config.Config, db *gorm.DB, zl *zap.Logger) (cart.StorageFactory, func()) {
	if cfg.CartStorage != config.CartStorageRedis {
		return cart.DBFactory(db), func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zl.Fatal("invalid REDIS_URL", zap.Error(err))
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zl.Fatal("redis unreachable", zap.Error(err))
	}

	return cart.RedisFactory(client, cfg.CartTTL), func() { _ = client.Close() }
}

// prune drops idle carts and finished checkouts from memory. Carts stay in storage.
func prune(ctx context.Context, sessions *cart.Sessions, checkouts *checkout.Registry, zl *zap.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			carts := sessions.Prune(sessionIdle, checkouts.Active)
			forgotten := checkouts.Forget(sessions.Held)
			if carts > 0 || forgotten > 0 {
				zl.Debug("pruned sessions", zap.Int("carts", carts), zap.Int("checkouts", forgotten))
			}
		}
	}
}
