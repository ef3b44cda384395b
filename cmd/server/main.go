package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront-cart/internal/catalog"
	"github.com/fjod/go_cart/storefront-cart/internal/config"
	h "github.com/fjod/go_cart/storefront-cart/internal/http"
	"github.com/fjod/go_cart/storefront-cart/internal/logger"
	"github.com/fjod/go_cart/storefront-cart/internal/poller"
	"github.com/fjod/go_cart/storefront-cart/internal/publisher"
	"github.com/fjod/go_cart/storefront-cart/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, l)
	if err != nil {
		l.Fatal("Failed to open storage backend", zap.Error(err))
	}
	defer backend.close()

	directory, err := catalog.NewSQLDirectory(cfg.CatalogDBPath)
	if err != nil {
		l.Fatal("Failed to open catalog", zap.Error(err))
	}
	defer directory.Close()
	if err := directory.RunMigrations(cfg.MigrationsPath); err != nil {
		l.Fatal("Failed to run catalog migrations", zap.Error(err))
	}

	resilientOpts := catalog.DefaultResilientOptions()
	resilientOpts.MaxRetries = cfg.CatalogMaxRetries
	resilientOpts.Backoff = cfg.CatalogBackoff

	discount, err := service.ParseDiscount(cfg.DiscountCoupon)
	if err != nil {
		l.Fatal("Invalid discount coupon", zap.Error(err))
	}

	opts := []service.Option{
		service.WithMaxQuantity(cfg.MaxQuantity),
		service.WithLogger(l),
	}

	var pub publisher.Publisher = publisher.Nop{}
	var outbox *publisher.Outbox
	brokers := cfg.Brokers()
	if len(brokers) > 0 {
		outbox = publisher.NewOutbox(publisher.NewKafkaWriter(cfg.SessionTopic, brokers...), l)
		pub = outbox
		go outbox.Run(ctx)
		l.Info("Publishing checkout events", zap.Strings("brokers", brokers), zap.String("topic", cfg.SessionTopic))
	}

	cartService := service.NewCartService(backend.repo, backend.cache, opts...)
	validator := service.NewValidator(cartService, catalog.NewResilient(directory, resilientOpts, l), opts...)
	checkoutService := service.NewCheckoutService(validator, pub, discount, opts...)
	recovery := service.NewRecovery(validator, opts...)

	var orders *poller.Poller
	if len(brokers) > 0 {
		orders = poller.NewPoller(checkoutService, poller.NewKafkaReader(cfg.OrderEventsTopic, cfg.ConsumerGroup, brokers...), l)
		go orders.Run(ctx)
	}

	cartHandler := h.NewCartHandler(cartService, validator, checkoutService, recovery, cfg.RequestTimeout, l)
	checkoutHandler := h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout, l)
	router := h.NewRouter(cartHandler, checkoutHandler, cfg.RequestTimeout, l)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, "storefront-cart"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info("Storefront cart starting", zap.String("port", cfg.Port), zap.String("storage", string(cfg.StorageBackend)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	l.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Server forced to shutdown", zap.Error(err))
	}
	if orders != nil {
		orders.Close()
	}
	if outbox != nil {
		if err := outbox.Close(shutdownCtx); err != nil {
			l.Error("Failed to flush checkout events", zap.Error(err))
		}
	}

	l.Info("Server exited")
}
