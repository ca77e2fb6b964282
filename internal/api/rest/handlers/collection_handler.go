package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/internal/service"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// DeferUltimatumRequest nueva fecha de envío para un ultimátum pendiente
type DeferUltimatumRequest struct {
	Until time.Time `json:"until" binding:"required"`
}

// CollectionHandler expone la cola de avisos de cobranza
type CollectionHandler struct {
	collection       service.CollectionService
	notificationRepo repository.NotificationRepository
	log              *logger.Logger
}

// NewCollectionHandler crea el handler de cobranza
func NewCollectionHandler(collection service.CollectionService, notificationRepo repository.NotificationRepository, log *logger.Logger) *CollectionHandler {
	return &CollectionHandler{collection: collection, notificationRepo: notificationRepo, log: log}
}

// ListNotifications devuelve los avisos de una suscripción
func (h *CollectionHandler) ListNotifications(c *gin.Context) {
	subID, err := uuid.Parse(c.Param("subscription_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	tasks, err := h.notificationRepo.ListBySubscription(c.Request.Context(), subID)
	if err != nil {
		h.log.Errorw("Failed to list notifications", "subscriptionId", subID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": tasks, "count": len(tasks)})
}

// DeferUltimatum pospone el envío de un ultimátum pendiente
func (h *CollectionHandler) DeferUltimatum(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("notification_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	var req DeferUltimatumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.collection.DeferUltimatum(c.Request.Context(), taskID, req.Until); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		case errors.Is(err, domain.ErrInvalidInput):
			c.JSON(http.StatusConflict, gin.H{"error": "Only pending ultimatums can be deferred"})
		default:
			h.log.Errorw("Failed to defer ultimatum", "notificationId", taskID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to defer ultimatum"})
		}
		return
	}

	h.log.Infow("Ultimatum deferred", "notificationId", taskID, "until", req.Until)
	c.JSON(http.StatusOK, gin.H{"notification_id": taskID, "scheduled_for": req.Until})
}
