package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alberthdev/fnet-billing/internal/api/rest/routes"
	"github.com/alberthdev/fnet-billing/internal/app"
	"github.com/alberthdev/fnet-billing/internal/config"
	"github.com/alberthdev/fnet-billing/internal/engine"
	"github.com/alberthdev/fnet-billing/internal/ingest"
	"github.com/alberthdev/fnet-billing/internal/integration/callmebot"
	"github.com/alberthdev/fnet-billing/internal/integration/mikrotik"
	"github.com/alberthdev/fnet-billing/internal/kafka"
	"github.com/alberthdev/fnet-billing/internal/metrics"
	"github.com/alberthdev/fnet-billing/internal/notify"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/internal/service"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

func main() {
	log := initLogger()

	log.Infow("FNET billing engine starting up...")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	if cfg.App.AdminToken == "" {
		log.Warnw("Admin token is not set, protected endpoints will reject all requests")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Repositorios: Postgres si hay DSN, memoria en caso contrario
	repos, pool := buildRepositories(ctx, cfg, log)
	if pool != nil {
		defer pool.Close()
	}

	// Cache Redis para los repositorios de suscripciones y clientes
	redisCache, err := repository.NewRedisCacheRepository(
		cfg.Redis.Addr,
		cfg.Redis.Password,
		cfg.Redis.DB,
		log,
	)
	if err != nil {
		log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
	} else {
		log.Infow("Redis cache initialized successfully")
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Errorw("Error closing Redis connection", "error", err)
			}
		}()
		repos.Subscriptions = repository.NewCachedSubscriptionRepository(repos.Subscriptions, redisCache, log)
		repos.Customers = repository.NewCachedCustomerRepository(repos.Customers, redisCache, log)
	}

	// Kafka es opcional: sin brokers el motor funciona igual, solo no publica eventos
	var producer kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
			producer = nil
		} else {
			log.Infow("Kafka producer initialized")
			defer func() {
				if err := producer.Close(); err != nil {
					log.Errorw("Error closing Kafka producer", "error", err)
				}
			}()
		}
	}

	settingsRepo := buildSettingsRepo(repos, pool, log)
	settingsSvc := service.NewSettingsService(settingsRepo, log)

	messenger, router := buildIntegrations(cfg, settingsSvc, log)

	quota := service.NewDailyQuota(func() int {
		return settingsSvc.DailyMessageQuota(context.Background())
	}, time.Now)

	registry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(registry)

	invoiceSvc := service.NewInvoiceService(repos.Invoices, settingsSvc, producer, log)
	collectionSvc := service.NewCollectionService(
		repos.Subscriptions,
		repos.Customers,
		repos.Invoices,
		repos.Notifications,
		repos.Alerts,
		settingsSvc,
		messenger,
		router,
		quota,
		producer,
		billingMetrics,
		log,
	)
	paymentSvc := service.NewPaymentService(
		repos.Subscriptions,
		repos.Customers,
		repos.Invoices,
		repos.Alerts,
		invoiceSvc,
		settingsSvc,
		collectionSvc,
		producer,
		billingMetrics,
		log,
	)

	eng := engine.New(repos.Subscriptions, invoiceSvc, collectionSvc, billingMetrics, log, time.Now)
	if err := eng.Start(cfg.Engine.Schedule); err != nil {
		log.Fatalw("Failed to start billing engine", "schedule", cfg.Engine.Schedule, "error", err)
	}

	application := app.NewApp(cfg, eng, repos, app.Services{
		Invoices:   invoiceSvc,
		Payments:   paymentSvc,
		Collection: collectionSvc,
		Settings:   settingsSvc,
	}, service.SystemClock, log)

	ginRouter := gin.New()
	routes.SetupRoutes(ginRouter, application, registry, log)

	// Ingesta automática de reportes depositados en la carpeta configurada
	watcher := ingest.NewReportWatcher(cfg.Ingest.ReportDir, paymentSvc, log)
	watcher.Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      ginRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Infow("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	watcher.Stop()

	log.Infow("Stopping billing engine")
	eng.Stop()
	log.Infow("Billing engine stopped")

	log.Infow("Cleanup finished. Goodbye!")
}

// buildRepositories elige entre los repositorios Postgres y los de
// memoria según haya DSN configurado
func buildRepositories(ctx context.Context, cfg *config.Config, log *logger.Logger) (app.Repositories, *pgxpool.Pool) {
	if cfg.Database.DSN == "" {
		log.Warnw("No database DSN configured, using in-memory repositories")
		return app.Repositories{
			Customers:     repository.NewInMemoryCustomerRepository(log),
			Subscriptions: repository.NewInMemorySubscriptionRepository(log),
			Invoices:      repository.NewInMemoryInvoiceRepository(log),
			Notifications: repository.NewInMemoryNotificationRepository(log),
			Alerts:        repository.NewInMemoryAlertRepository(log),
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalw("Failed to create database pool", "error", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	log.Infow("Database connection established")

	return app.Repositories{
		Customers:     repository.NewPostgresCustomerRepository(pool, log),
		Subscriptions: repository.NewPostgresSubscriptionRepository(pool, log),
		Invoices:      repository.NewPostgresInvoiceRepository(pool, log),
		Notifications: repository.NewPostgresNotificationRepository(pool, log),
		Alerts:        repository.NewPostgresAlertRepository(pool, log),
	}, pool
}

func buildSettingsRepo(repos app.Repositories, pool *pgxpool.Pool, log *logger.Logger) repository.SettingsRepository {
	if pool != nil {
		return repository.NewPostgresSettingsRepository(pool, log)
	}
	return repository.NewInMemorySettingsRepository(log)
}

// buildIntegrations elige los colaboradores externos. En producción se
// usan CallMeBot y el router MikroTik reales con credenciales leídas de
// los ajustes en cada llamada; en desarrollo, simuladores.
func buildIntegrations(cfg *config.Config, settings service.SettingsService, log *logger.Logger) (notify.Messenger, notify.RouterControl) {
	if cfg.App.Env != "production" {
		log.Infow("Using simulated messenger and router integrations")
		return notify.NewSimulatedMessenger(log), notify.NewSimulatedRouter(log)
	}

	messenger := callmebot.New(func() string {
		key, err := settings.Get(context.Background(), service.SettingCallMeBotAPIKey)
		if err != nil {
			return ""
		}
		return key
	}, log)

	router := mikrotik.New(func() mikrotik.Credentials {
		ctx := context.Background()
		host, _ := settings.Get(ctx, service.SettingMikroTikHost)
		user, _ := settings.Get(ctx, service.SettingMikroTikUser)
		password, _ := settings.Get(ctx, service.SettingMikroTikPassword)
		list, err := settings.Get(ctx, service.SettingMikroTikAddressList)
		if err != nil || list == "" {
			list = service.DefaultMikroTikAddressList
		}
		return mikrotik.Credentials{
			Host:        host,
			User:        user,
			Password:    password,
			AddressList: list,
		}
	}, log)

	log.Infow("Using CallMeBot and MikroTik integrations")
	return messenger, router
}

// initLogger inicializa el logger según LOG_LEVEL
func initLogger() *logger.Logger {
	logLevel := logger.INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = logger.DEBUG
	}
	return logger.New(logLevel)
}
