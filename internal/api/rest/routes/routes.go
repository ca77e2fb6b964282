package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alberthdev/fnet-billing/internal/app"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// SetupRoutes configura todas las rutas del panel de administración
func SetupRoutes(router *gin.Engine, application *app.App, registry *prometheus.Registry, log *logger.Logger) {
	router.Use(application.LoggerMiddleware)
	router.Use(gin.Recovery())

	// Públicos: salud y métricas
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	api.Use(application.AuthMiddleware.RequireAuth())
	{
		// Ciclo de cobranza
		engine := api.Group("/engine")
		{
			engine.POST("/run", application.EngineHandler.RunNow)
			engine.GET("/last-tick", application.EngineHandler.LastSummary)
		}

		// Clientes y contratos
		customers := api.Group("/customers")
		{
			customers.POST("", application.SubscriptionHandler.CreateCustomer)
			customers.GET("/:customer_id/subscriptions", application.SubscriptionHandler.GetCustomerSubscriptions)
		}

		subscriptions := api.Group("/subscriptions")
		{
			subscriptions.POST("", application.SubscriptionHandler.CreateSubscription)
			subscriptions.GET("", application.SubscriptionHandler.ListSubscriptions)
			subscriptions.GET("/:subscription_id", application.SubscriptionHandler.GetSubscription)
			subscriptions.GET("/:subscription_id/invoices", application.InvoiceHandler.History)
			subscriptions.GET("/:subscription_id/invoices/outstanding", application.InvoiceHandler.Outstanding)
			subscriptions.GET("/:subscription_id/notifications", application.CollectionHandler.ListNotifications)
		}

		// Facturas y caja
		invoices := api.Group("/invoices")
		{
			invoices.POST("/:invoice_id/void", application.InvoiceHandler.Void)
		}
		api.GET("/cash-movements", application.InvoiceHandler.Movements)

		// Pagos
		payments := api.Group("/payments")
		{
			payments.POST("", application.PaymentHandler.RegisterPayment)
			payments.POST("/reports/yape", application.PaymentHandler.UploadReport)
		}

		// Avisos de cobranza
		notifications := api.Group("/notifications")
		{
			notifications.POST("/:notification_id/defer", application.CollectionHandler.DeferUltimatum)
		}

		// Alertas del panel
		alerts := api.Group("/alerts")
		{
			alerts.GET("", application.AlertHandler.ListUnread)
			alerts.GET("/count", application.AlertHandler.CountUnread)
			alerts.POST("/:alert_id/read", application.AlertHandler.MarkRead)
			alerts.POST("/read-all", application.AlertHandler.MarkAllRead)
		}

		// Ajustes de ejecución
		settings := api.Group("/settings")
		{
			settings.GET("", application.SettingsHandler.List)
			settings.PUT("/:key", application.SettingsHandler.Update)
		}
	}

	log.Infow("API routes successfully configured")
}
