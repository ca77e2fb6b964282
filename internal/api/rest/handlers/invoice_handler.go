package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/internal/service"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

const defaultMovementsLimit = 50

// InvoiceHandler expone la consulta y gestión de facturas
type InvoiceHandler struct {
	invoices    service.InvoiceService
	invoiceRepo repository.InvoiceRepository
	log         *logger.Logger
}

// NewInvoiceHandler crea el handler de facturas
func NewInvoiceHandler(invoices service.InvoiceService, invoiceRepo repository.InvoiceRepository, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, invoiceRepo: invoiceRepo, log: log}
}

// History devuelve todas las facturas de una suscripción
func (h *InvoiceHandler) History(c *gin.Context) {
	subID, err := uuid.Parse(c.Param("subscription_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	invoices, err := h.invoices.History(c.Request.Context(), subID)
	if err != nil {
		h.log.Errorw("Failed to list invoices", "subscriptionId", subID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list invoices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices, "count": len(invoices)})
}

// Outstanding devuelve las facturas con saldo pendiente, más antigua primero
func (h *InvoiceHandler) Outstanding(c *gin.Context) {
	subID, err := uuid.Parse(c.Param("subscription_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	invoices, err := h.invoices.ListOutstanding(c.Request.Context(), subID)
	if err != nil {
		h.log.Errorw("Failed to list outstanding invoices", "subscriptionId", subID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list outstanding invoices"})
		return
	}

	var total float64
	for _, inv := range invoices {
		total += inv.Outstanding()
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices, "count": len(invoices), "total_outstanding": total})
}

// Void anula una factura. El periodo anulado queda libre para refacturar.
func (h *InvoiceHandler) Void(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("invoice_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice ID"})
		return
	}

	if err := h.invoices.Void(c.Request.Context(), invoiceID); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvoiceNotFound) || errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		case errors.Is(err, domain.ErrInvoiceAlreadyPaid):
			c.JSON(http.StatusConflict, gin.H{"error": "Paid invoices cannot be voided"})
		default:
			h.log.Errorw("Failed to void invoice", "invoiceId", invoiceID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to void invoice"})
		}
		return
	}

	h.log.Infow("Invoice voided", "invoiceId", invoiceID)
	c.Status(http.StatusNoContent)
}

// Movements devuelve los últimos asientos de caja
func (h *InvoiceHandler) Movements(c *gin.Context) {
	limit := defaultMovementsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	movements, err := h.invoiceRepo.ListRecentMovements(c.Request.Context(), limit)
	if err != nil {
		h.log.Errorw("Failed to list cash movements", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cash movements"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements, "count": len(movements)})
}
