package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-ticket-core/internal/api/http"
	"github.com/spec-kit/support-ticket-core/internal/api/http/handlers"
	"github.com/spec-kit/support-ticket-core/internal/auth"
	"github.com/spec-kit/support-ticket-core/internal/config"
	"github.com/spec-kit/support-ticket-core/internal/events"
	"github.com/spec-kit/support-ticket-core/internal/observability"
	"github.com/spec-kit/support-ticket-core/internal/persistence"
	"github.com/spec-kit/support-ticket-core/internal/repository"
	"github.com/spec-kit/support-ticket-core/internal/service"
	"github.com/spec-kit/support-ticket-core/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := persistence.NewRedisStore(redis, cfg.Index.MaxValueBytes)
	locker := persistence.NewRedisLocker(redis, cfg.Allocator.LockTTL(), cfg.Allocator.LockPollInterval())
	cache := persistence.NewRedisCache(redis)

	dispatcher := events.NewInMemoryDispatcher(logger)

	ticketRepo := repository.NewTicketRepository(store, logger)
	counterRepo := repository.NewCounterRepository(store, cfg.Allocator.CounterBase, logger, metrics)
	indexRepo := repository.NewIndexRepository(store, cfg.Index.MaxEntriesPerShard, logger, metrics)

	allocator := service.NewAllocatorService(counterRepo, locker, cfg.Allocator, logger, metrics)
	slaService := service.NewSLAService(cfg.SLA, ticketRepo, indexRepo, dispatcher, logger, metrics)
	lifecycle := service.NewLifecycleService(ticketRepo, slaService, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		IndexRepo:  indexRepo,
		Allocator:  allocator,
		Lifecycle:  lifecycle,
		SLA:        slaService,
		Cache:      cache,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	scheduler := cron.New()
	sweeper := worker.NewSweeper(slaService, indexRepo, *cfg, logger)
	if err := sweeper.Register(scheduler); err != nil {
		logger.Fatal("failed to register sweep jobs", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, redis, metrics),
		Auth:           handlers.NewAuthHandler(tokens, cfg.Auth),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
