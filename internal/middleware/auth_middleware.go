package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alberthdev/fnet-billing/pkg/logger"
)

const (
	adminTokenHeader = "X-Admin-Token"
	bearerPrefix     = "Bearer "
)

// AdminAuth protege los endpoints de administración con un token estático.
// El panel corre en la LAN del operador; un token compartido en la
// cabecera X-Admin-Token (o Authorization: Bearer) es suficiente.
type AdminAuth struct {
	token string
	log   *logger.Logger
}

// NewAdminAuth crea el middleware de autenticación de administración
func NewAdminAuth(token string, log *logger.Logger) *AdminAuth {
	if token == "" {
		log.Warnw("Admin token is empty, protected endpoints will reject all requests")
	}
	return &AdminAuth{token: token, log: log}
}

// RequireAuth exige el token de administración en la petición
func (m *AdminAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(adminTokenHeader)
		if provided == "" {
			authHeader := c.GetHeader("Authorization")
			provided = strings.TrimPrefix(authHeader, bearerPrefix)
		}

		if provided == "" {
			m.log.Warnw("Missing admin token", "path", c.Request.RequestURI, "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing admin token"})
			return
		}

		if m.token == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(m.token)) != 1 {
			m.log.Warnw("Invalid admin token", "path", c.Request.RequestURI, "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin token"})
			return
		}

		c.Next()
	}
}
