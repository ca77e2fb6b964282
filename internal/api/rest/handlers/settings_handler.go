package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alberthdev/fnet-billing/internal/service"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// UpdateSettingRequest cambio de un ajuste de ejecución
type UpdateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

// SettingsHandler expone los ajustes de ejecución del motor.
// Los cambios surten efecto en el siguiente ciclo sin reiniciar.
type SettingsHandler struct {
	settings service.SettingsService
	log      *logger.Logger
}

// NewSettingsHandler crea el handler de ajustes
func NewSettingsHandler(settings service.SettingsService, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, log: log}
}

// List devuelve todos los ajustes vigentes
func (h *SettingsHandler) List(c *gin.Context) {
	all, err := h.settings.All(c.Request.Context())
	if err != nil {
		h.log.Errorw("Failed to list settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": all})
}

// Update cambia un ajuste por clave
func (h *SettingsHandler) Update(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing setting key"})
		return
	}

	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settings.Set(c.Request.Context(), key, req.Value); err != nil {
		h.log.Errorw("Failed to update setting", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update setting"})
		return
	}

	h.log.Infow("Setting updated", "key", key, "value", req.Value)
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
