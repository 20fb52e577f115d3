package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appcart "github.com/orderstack/storefront/internal/application/cart"
	appcheckout "github.com/orderstack/storefront/internal/application/checkout"
	appordering "github.com/orderstack/storefront/internal/application/ordering"
	"github.com/orderstack/storefront/internal/config"
	domcart "github.com/orderstack/storefront/internal/domain/cart"
	domcatalog "github.com/orderstack/storefront/internal/domain/catalog"
	domorder "github.com/orderstack/storefront/internal/domain/order"
	httptransport "github.com/orderstack/storefront/internal/infrastructure/http"
	"github.com/orderstack/storefront/internal/infrastructure/id"
	"github.com/orderstack/storefront/internal/infrastructure/memory"
	"github.com/orderstack/storefront/internal/infrastructure/mongodb"
	"github.com/orderstack/storefront/internal/infrastructure/observability/oteltrace"
	"github.com/orderstack/storefront/internal/infrastructure/observability/prometrics"
	"github.com/orderstack/storefront/internal/infrastructure/observability/telemetry"
	"github.com/orderstack/storefront/internal/infrastructure/observability/zaplogger"
	"github.com/orderstack/storefront/internal/infrastructure/outbox"
	paymentworker "github.com/orderstack/storefront/internal/infrastructure/payment/worker"
	"github.com/orderstack/storefront/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := zaplogger.New(
		observability.F("service", cfg.Service),
		observability.F("env", cfg.Env),
	)
	defer func() {
		if s, ok := logger.(interface{ Sync() error }); ok {
			_ = s.Sync()
		}
	}()

	registry := prometrics.New(cfg.Service, nil)
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(observability.MUsecaseRequests,
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: registry.Counter(observability.MHTTPRequests,
			"Total number of HTTP requests.", "method", "route", "status"),
		observability.MCheckoutOversold: registry.Counter(observability.MCheckoutOversold,
			"Count of checkouts that hit a decrement-time stock conflict."),
		observability.MEventPublishFailed: registry.Counter(observability.MEventPublishFailed,
			"Count of event publish failures.", "event"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(observability.MUsecaseDuration,
			"Duration of use case execution in seconds.", nil, "use_case"),
		observability.MHTTPRequestDuration: registry.Histogram(observability.MHTTPRequestDuration,
			"Duration of HTTP request handling in seconds.", nil, "method", "route"),
	}
	tel := telemetry.New(oteltrace.New(cfg.Service), logger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		catalogRepo domcatalog.Repository
		cartRepo    domcart.Repository
		orderRepo   domorder.Repository
	)
	switch cfg.Store.Backend {
	case config.StoreMongo:
		store, err := mongodb.Connect(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database)
		if err != nil {
			logger.Error("mongo_connect_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(context.Background()); err != nil {
				logger.Error("mongo_disconnect_failed", observability.F("error", err.Error()))
			}
		}()
		catalogRepo = store.Catalog()
		cartRepo = store.Carts()
		orderRepo = store.Orders()
	default:
		catalogRepo = memory.NewCatalogRepository()
		cartRepo = memory.NewCartRepository()
		orderRepo = memory.NewOrderRepository()
	}

	bus := outbox.NewBus(logger)
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	cartService := appcart.NewService(cartRepo, logger)
	checkoutUseCase := appcheckout.New(cartRepo, catalogRepo, orderRepo, id.NewUUIDGenerator(), bus, tel,
		appcheckout.WithOversoldRetries(cfg.Checkout.OversoldRetries))
	orderingService := appordering.NewService(orderRepo, catalogRepo, bus, tel)

	paymentworker.New(bus, orderingService, logger).Start()

	handler := httptransport.NewHandler(cartService, checkoutUseCase, orderingService, catalogRepo, bus)
	apiMux := handler.Router()
	api := httptransport.ObservabilityMiddleware(tel, func(r *http.Request) string {
		_, pattern := apiMux.Handler(r)
		return pattern
	})(apiMux)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		logger.Info("http_server_stopped")
	}
}
