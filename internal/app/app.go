package app

import (
	"github.com/gin-gonic/gin"

	"github.com/alberthdev/fnet-billing/internal/api/rest/handlers"
	"github.com/alberthdev/fnet-billing/internal/config"
	"github.com/alberthdev/fnet-billing/internal/engine"
	"github.com/alberthdev/fnet-billing/internal/ingest"
	"github.com/alberthdev/fnet-billing/internal/middleware"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/internal/service"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// Repositories agrupa los repositorios que necesita la capa HTTP
type Repositories struct {
	Customers     repository.CustomerRepository
	Subscriptions repository.SubscriptionRepository
	Invoices      repository.InvoiceRepository
	Notifications repository.NotificationRepository
	Alerts        repository.AlertRepository
}

// Services agrupa los servicios que necesita la capa HTTP
type Services struct {
	Invoices   service.InvoiceService
	Payments   service.PaymentService
	Collection service.CollectionService
	Settings   service.SettingsService
}

// App reúne los handlers y middleware del panel de administración
type App struct {
	EngineHandler       *handlers.EngineHandler
	AlertHandler        *handlers.AlertHandler
	PaymentHandler      *handlers.PaymentHandler
	InvoiceHandler      *handlers.InvoiceHandler
	SettingsHandler     *handlers.SettingsHandler
	CollectionHandler   *handlers.CollectionHandler
	SubscriptionHandler *handlers.SubscriptionHandler

	LoggerMiddleware gin.HandlerFunc
	AuthMiddleware   *middleware.AdminAuth
}

// NewApp construye la aplicación HTTP con todas sus dependencias
func NewApp(cfg *config.Config, eng *engine.Engine, repos Repositories, svcs Services, clock service.Clock, log *logger.Logger) *App {
	reader := ingest.NewYapeReader(log)

	return &App{
		EngineHandler:       handlers.NewEngineHandler(eng, log),
		AlertHandler:        handlers.NewAlertHandler(repos.Alerts, log),
		PaymentHandler:      handlers.NewPaymentHandler(svcs.Payments, reader, clock, log),
		InvoiceHandler:      handlers.NewInvoiceHandler(svcs.Invoices, repos.Invoices, log),
		SettingsHandler:     handlers.NewSettingsHandler(svcs.Settings, log),
		CollectionHandler:   handlers.NewCollectionHandler(svcs.Collection, repos.Notifications, log),
		SubscriptionHandler: handlers.NewSubscriptionHandler(repos.Customers, repos.Subscriptions, log),

		LoggerMiddleware: middleware.LoggerMiddleware(log),
		AuthMiddleware:   middleware.NewAdminAuth(cfg.App.AdminToken, log),
	}
}
