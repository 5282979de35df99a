package main

import (
	"context"
	"errors"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rookgm/storefront/config"
	"github.com/rookgm/storefront/internal/auth"
	handler "github.com/rookgm/storefront/internal/handler/http"
	"github.com/rookgm/storefront/internal/kafka"
	"github.com/rookgm/storefront/internal/middleware"
	"github.com/rookgm/storefront/internal/provider/heleket"
	"github.com/rookgm/storefront/internal/provider/stripe"
	"github.com/rookgm/storefront/internal/repository"
	"github.com/rookgm/storefront/internal/repository/postgres"
	"github.com/rookgm/storefront/internal/service"
	"github.com/rookgm/storefront/internal/worker"
	"go.uber.org/zap"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

const serviceName = "storefront"

// newLogger creates logger with log level
func newLogger(level string) (*zap.Logger, error) {

	loggerLvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	loggerCfg := zap.NewProductionConfig()
	loggerCfg.Level = loggerLvl

	return loggerCfg.Build()
}

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	// create context cancelled on SIGINT and SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	err = db.Migrate()
	if err != nil {
		logger.Fatal("Error migrating database", zap.Error(err))
	}

	// initialize redis
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Error connecting to redis", zap.Error(err))
	}

	// audit trail is optional
	var (
		audit    service.AuditPublisher
		producer *kafka.Producer
	)
	producerCtx, stopProducer := context.WithCancel(context.Background())
	defer stopProducer()
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, kafka.TopicPaymentReconciled, 1024, logger.Named("kafka"))
		producer.Start(producerCtx)
		audit = kafka.NewAuditPublisher(producer, serviceName, logger.Named("audit"))
	}

	// payment providers
	var (
		gateways []service.Gateway
		checkers []service.StatusChecker
		parsers  []handler.WebhookParser
	)
	if cfg.Stripe.Enabled() {
		client := stripe.NewClient(cfg.Stripe, logger.Named("stripe"))
		gateways = append(gateways, client)
		checkers = append(checkers, client)
		parsers = append(parsers, client)
	}
	if cfg.Heleket.Enabled() {
		client := heleket.NewClient(cfg.Heleket, logger.Named("heleket"))
		gateways = append(gateways, client)
		checkers = append(checkers, client)
		parsers = append(parsers, client)
	}

	views, err := handler.NewViews()
	if err != nil {
		logger.Fatal("Error parsing templates", zap.Error(err))
	}

	token := auth.NewAuthToken([]byte(cfg.SessionSecret))

	// dependency injection
	// cart
	cartRepo := repository.NewCartRepository(rdb)
	productRepo := repository.NewProductRepository(db)
	cartService := service.NewCartService(cartRepo, productRepo)
	cartHandler := handler.NewCartHandler(cartService, logger.Named("cart"))

	// payment
	orderRepo := repository.NewOrderRepository(db)
	reconciler := service.NewReconciler(orderRepo, audit, logger.Named("reconciler"))
	paymentService := service.NewPaymentService(reconciler, orderRepo)
	paymentHandler := handler.NewPaymentHandler(paymentService, cartService, views, logger.Named("payment"), parsers...)

	// checkout
	initiator := service.NewCheckoutInitiator(reconciler, cfg.BaseURL, cfg.ProviderTimeout, logger.Named("checkout"), gateways...)
	checkoutService := service.NewCheckoutService(initiator, cartService, orderRepo)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, logger.Named("checkout"))

	// sweeper
	sweepService := service.NewSweepService(orderRepo, reconciler, cartService,
		cfg.SweepStaleAfter, cfg.ProviderTimeout, logger.Named("sweeper"), checkers...)
	sweeper := worker.NewPaymentSweeper(sweepService, cfg.SweepInterval, logger.Named("sweeper"))
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(ctx)
	}()

	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logging(logger))
	router.Use(chimw.Recoverer)

	router.Get("/healthz", handler.Health(db))

	// provider callbacks carry no session
	router.Post("/payment/{provider}/webhook", paymentHandler.Webhook())

	// routes bound to cart session
	router.Group(func(group chi.Router) {
		group.Use(middleware.CartSession(token, strings.HasPrefix(cfg.BaseURL, "https://"), logger))
		group.Get("/payment/{provider}/success", paymentHandler.Success())
		group.Get("/payment/{provider}/cancel", paymentHandler.Cancel())
		group.Post("/checkout", checkoutHandler.Checkout())
		group.Get("/cart", cartHandler.GetCart())
		group.Post("/cart/items", cartHandler.AddItem())
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Running server", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Error starting server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down server", zap.Error(err))
	}

	<-sweeperDone

	// flush audit events after the last request
	if producer != nil {
		stopProducer()
		producer.WaitClosed()
	}
}
