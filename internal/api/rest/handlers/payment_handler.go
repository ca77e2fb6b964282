package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/ingest"
	"github.com/alberthdev/fnet-billing/internal/service"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// RegisterPaymentRequest pago manual registrado desde el panel
type RegisterPaymentRequest struct {
	SubscriptionID string  `json:"subscription_id" binding:"required"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	Method         string  `json:"method"`
}

// PaymentHandler expone el registro de pagos y la carga de reportes
type PaymentHandler struct {
	payments service.PaymentService
	reader   *ingest.YapeReader
	clock    service.Clock
	log      *logger.Logger
}

// NewPaymentHandler crea el handler de pagos
func NewPaymentHandler(payments service.PaymentService, reader *ingest.YapeReader, clock service.Clock, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, reader: reader, clock: clock, log: log}
}

// RegisterPayment registra un pago manual y lo reparte entre las
// facturas pendientes de la suscripción
func (h *PaymentHandler) RegisterPayment(c *gin.Context) {
	var req RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnw("Invalid payment request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subID, err := uuid.Parse(req.SubscriptionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	method := domain.PaymentMethodCash
	switch req.Method {
	case "", string(domain.PaymentMethodCash):
	case string(domain.PaymentMethodYape):
		method = domain.PaymentMethodYape
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown payment method"})
		return
	}

	summary, err := h.payments.RegisterPayment(c.Request.Context(), subID, req.Amount, method, h.clock())
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		h.log.Errorw("Failed to register payment", "subscriptionId", subID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register payment"})
		return
	}

	h.log.Infow("Payment registered", "subscriptionId", subID, "amount", req.Amount)
	c.JSON(http.StatusOK, summary)
}

// UploadReport recibe el Excel exportado de Yape, lo interpreta y aplica
// los pagos nuevos. Las filas en o antes de la marca de agua se descartan.
func (h *PaymentHandler) UploadReport(c *gin.Context) {
	fileHeader, err := c.FormFile("report")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing report file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.Errorw("Failed to open uploaded report", "file", fileHeader.Filename, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open report file"})
		return
	}
	defer file.Close()

	entries, err := h.reader.Read(file, fileHeader.Filename)
	if err != nil {
		h.log.Warnw("Failed to parse report", "file", fileHeader.Filename, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to parse report file"})
		return
	}

	summary, err := h.payments.IngestReportEntries(c.Request.Context(), entries, h.clock())
	if err != nil {
		h.log.Errorw("Failed to ingest report", "file", fileHeader.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest report"})
		return
	}

	h.log.Infow("Report ingested", "file", fileHeader.Filename,
		"total", summary.Total, "applied", summary.Applied, "stale", summary.Stale)
	c.JSON(http.StatusOK, summary)
}
