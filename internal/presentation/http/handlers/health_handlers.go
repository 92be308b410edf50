package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharpline/sharpline-go/internal/application/services"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database"
)

// HealthHandlers reports liveness and backing store status.
type HealthHandlers struct {
	db             *database.DB
	profileService *services.ProfileService
	logger         *logging.ChanneledLogger
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(db *database.DB, profileService *services.ProfileService, logger *logging.ChanneledLogger) *HealthHandlers {
	return &HealthHandlers{db: db, profileService: profileService, logger: logger}
}

// GetHealth returns 200 when the database answers a ping and 503 otherwise.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	response := gin.H{
		"status":           "ok",
		"driver":           h.db.Driver,
		"profileCacheMode": h.profileService.CacheMode(),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.db.Status(c.Request.Context()); err != nil {
		h.logger.Database().Error("Health check database ping failed", "error", err.Error())
		response["status"] = "degraded"
		response["error"] = "database unavailable"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
