package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alberthdev/fnet-billing/internal/engine"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// EngineHandler expone el control del ciclo de cobranza
type EngineHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewEngineHandler crea el handler del motor
func NewEngineHandler(eng *engine.Engine, log *logger.Logger) *EngineHandler {
	return &EngineHandler{engine: eng, log: log}
}

// RunNow lanza un ciclo de cobranza inmediato. Si ya hay un ciclo en
// curso devuelve 409 con Skipped=true.
func (h *EngineHandler) RunNow(c *gin.Context) {
	summary := h.engine.RunTick(c.Request.Context())
	if summary.Skipped {
		c.JSON(http.StatusConflict, summary)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// LastSummary devuelve el resumen del último ciclo ejecutado
func (h *EngineHandler) LastSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.LastSummary())
}
