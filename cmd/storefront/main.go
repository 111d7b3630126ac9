package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/v1centp/timetobonk-client/internal/catalog"
	"github.com/v1centp/timetobonk-client/internal/checkout"
	"github.com/v1centp/timetobonk-client/internal/config"
	"github.com/v1centp/timetobonk-client/internal/events"
	"github.com/v1centp/timetobonk-client/internal/gateway"
	h "github.com/v1centp/timetobonk-client/internal/http"
	"github.com/v1centp/timetobonk-client/internal/logging"
	"github.com/v1centp/timetobonk-client/internal/pricing"
	"github.com/v1centp/timetobonk-client/internal/promo"
	"github.com/v1centp/timetobonk-client/internal/service"
	"github.com/v1centp/timetobonk-client/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	policy, err := pricing.PolicyByName(cfg.PricingPolicy, pricing.DefaultPricePointConfig(), pricing.DefaultStepConfig())
	if err != nil {
		logger.Fatal("invalid pricing policy", zap.Error(err))
	}
	normalizer := pricing.NewNormalizer(cfg.DefaultCurrency, policy)

	slot, closeSlot, err := openSlot(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open cart slot", zap.String("backend", cfg.CartSlot), zap.Error(err))
	}
	defer closeSlot()

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers...)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("publishing checkout outcomes", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	paymentsClient := gateway.NewClient(cfg.PaymentsAPIURL, cfg.UpstreamTimeout, logger)
	catalogClient := catalog.NewClient(cfg.CatalogAPIURL, cfg.UpstreamTimeout, normalizer)

	sessions := service.NewSessions(service.Dependencies{
		Slot:       slot,
		Prices:     catalogClient,
		Normalizer: normalizer,
		Validator:  promo.NewService(paymentsClient, logger),
		Payments:   paymentsClient,
		Redirector: gateway.NewHostedRedirector(cfg.GatewayAPIURL, cfg.GatewaySessionKey, cfg.UpstreamTimeout),
		Publisher:  publisher,
		Checkout: checkout.Config{
			StorefrontOrigin: cfg.StorefrontOrigin,
			CheckoutPath:     cfg.CheckoutPath,
		},
	}, cfg.SessionIdleTTL, logger)
	defer sessions.Close()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if len(cfg.KafkaBrokers) > 0 {
		consumer := events.NewConfirmationConsumer(sessions.ConfirmPayment, logger, cfg.KafkaBrokers...)
		defer consumer.Close()
		go consumer.Run(consumerCtx)
	}

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		SecureCookies:      cfg.SecureCookies,
	}, h.Handlers{
		Cart:     h.NewCartHandler(sessions, cfg.RequestTimeout, logger),
		Promo:    h.NewPromoHandler(sessions, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(sessions, cfg.RequestTimeout, logger),
		Quote:    h.NewQuoteHandler(sessions, catalogClient, normalizer, cfg.RequestTimeout, logger),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("storefront API starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("cart_slot", cfg.CartSlot),
			zap.String("currency", cfg.DefaultCurrency))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopConsumer()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func openSlot(cfg *config.Config, logger *zap.Logger) (storage.Slot, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.CartSlot {
	case config.SlotFile:
		slot, err := storage.NewFileSlot(cfg.CartSlotDir)
		return slot, func() {}, err

	case config.SlotRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		return storage.NewRedisSlot(client), func() { client.Close() }, nil

	case config.SlotMongo:
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		slot := storage.NewMongoSlot(db)
		if err := slot.CreateIndexes(ctx); err != nil {
			logger.Warn("failed to create cart slot indexes", zap.Error(err))
		}
		logger.Info("connected to mongodb", zap.String("database", cfg.MongoDBName))
		return slot, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Client().Disconnect(ctx)
		}, nil

	default:
		return storage.NewMemorySlot(), func() {}, nil
	}
}
