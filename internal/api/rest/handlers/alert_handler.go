package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// AlertHandler expone las alertas del panel de gestión
type AlertHandler struct {
	alertRepo repository.AlertRepository
	log       *logger.Logger
}

// NewAlertHandler crea el handler de alertas
func NewAlertHandler(alertRepo repository.AlertRepository, log *logger.Logger) *AlertHandler {
	return &AlertHandler{alertRepo: alertRepo, log: log}
}

// ListUnread devuelve las alertas pendientes de revisión
func (h *AlertHandler) ListUnread(c *gin.Context) {
	alerts, err := h.alertRepo.ListUnread(c.Request.Context())
	if err != nil {
		h.log.Errorw("Failed to list alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// CountUnread devuelve el número de alertas sin leer (para el badge del panel)
func (h *AlertHandler) CountUnread(c *gin.Context) {
	count, err := h.alertRepo.CountUnread(c.Request.Context())
	if err != nil {
		h.log.Errorw("Failed to count alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkRead marca una alerta como leída
func (h *AlertHandler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("alert_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	if err := h.alertRepo.MarkRead(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.log.Errorw("Failed to mark alert as read", "alertId", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark alert as read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead marca todas las alertas como leídas
func (h *AlertHandler) MarkAllRead(c *gin.Context) {
	count, err := h.alertRepo.MarkAllRead(c.Request.Context())
	if err != nil {
		h.log.Errorw("Failed to mark alerts as read", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark alerts as read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": count})
}
