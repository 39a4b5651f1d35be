package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/shopkit/order-fulfillment/internal/cart"
	"github.com/shopkit/order-fulfillment/internal/config"
	delivery "github.com/shopkit/order-fulfillment/internal/delivery/http"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/gateway"
	"github.com/shopkit/order-fulfillment/internal/messaging/kafka"
	"github.com/shopkit/order-fulfillment/internal/metrics"
	"github.com/shopkit/order-fulfillment/internal/repository/postgres"
	"github.com/shopkit/order-fulfillment/internal/service"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	// --- Database ---
	db, err := postgres.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to init database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.SeedDemoData {
		if err := postgres.Seed(db); err != nil {
			slog.Error("Failed to seed demo data", "err", err)
			os.Exit(1)
		}
	}

	// --- Redis (cart storage) ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	// --- Kafka ---
	broker := kafka.NewKafkaBroker(cfg.KafkaBrokers)
	defer broker.Close()

	// --- Repositories ---
	txm := postgres.NewTxManager(db)
	inventoryRepo := postgres.NewInventoryRepository()
	productRepo := postgres.NewProductRepository()
	orderRepo := postgres.NewOrderRepository()
	shipmentRepo := postgres.NewShipmentRepository()
	paymentRepo := postgres.NewPaymentRepository()
	couponRepo := postgres.NewCouponRepository()
	addressRepo := postgres.NewAddressRepository()
	returnRepo := postgres.NewReturnRepository()

	// --- Services ---
	gw := gateway.NewMockGateway()
	carts := cart.NewRedisCartProvider(redisClient)
	inventorySvc := service.NewInventoryService(txm, inventoryRepo, productRepo)
	couponSvc := service.NewCouponService(couponRepo)
	checkoutSvc := service.NewCheckoutService(
		txm, carts, inventorySvc, couponSvc,
		orderRepo, paymentRepo, shipmentRepo, addressRepo, productRepo,
		gw, broker,
	)
	orderSvc := service.NewOrderService(txm, orderRepo, paymentRepo, shipmentRepo, inventorySvc, gw, broker)
	returnSvc := service.NewReturnService(txm, returnRepo, orderRepo, paymentRepo, inventorySvc, gw, broker)
	webhookSvc := service.NewWebhookService(txm, paymentRepo, orderRepo, gw)

	// --- HTTP API ---
	m := metrics.New()
	handler := delivery.NewHandler(checkoutSvc, orderSvc, returnSvc, webhookSvc, inventorySvc, carts, m)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: delivery.EnableCORS(mux),
	}

	// --- Start everything ---
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Consumer: orders.paid → notification log. Downstream services (email,
	// analytics) consume the same topic with their own group ids.
	go broker.Consume(ctx, "orders.paid", "fulfillment-notifications", func(ctx context.Context, payload []byte) error {
		var event entity.OrderPaidEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return err
		}
		slog.Info("Order paid", "order_id", event.OrderID, "user_id", event.UserID, "final_cents", event.FinalCents)
		return nil
	})

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")
	httpServer.Shutdown(context.Background())
}
