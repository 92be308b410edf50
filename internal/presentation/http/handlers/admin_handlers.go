package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharpline/sharpline-go/internal/application/services"
	"github.com/sharpline/sharpline-go/internal/domain/entities/visibility"
	domainservices "github.com/sharpline/sharpline-go/internal/domain/services"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/performance"
	"github.com/sharpline/sharpline-go/internal/presentation/http/middleware"
)

// AdminHandlers serves operator tooling: login, rule previews, cache
// control and runtime diagnostics.
type AdminHandlers struct {
	authService    *services.AuthService
	profileService *services.ProfileService
	evaluator      *domainservices.VisibilityEvaluationService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewAdminHandlers creates admin handlers with injected dependencies
func NewAdminHandlers(
	authService *services.AuthService,
	profileService *services.ProfileService,
	evaluator *domainservices.VisibilityEvaluationService,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *AdminHandlers {
	return &AdminHandlers{
		authService:    authService,
		profileService: profileService,
		evaluator:      evaluator,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// LoginRequest is the admin login body.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// EvaluateRequest pairs a rule with a hypothetical profile. A missing
// profile evaluates as the fail-closed profile.
type EvaluateRequest struct {
	Rule    json.RawMessage     `json:"rule"`
	Profile *visibility.Profile `json:"profile"`
}

// Login exchanges the admin password for an admin token.
func (h *AdminHandlers) Login(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("admin_login_request")
	defer marker.Complete()

	h.logger.Auth().Debug("Received admin login request", "method", c.Request.Method, "path", c.Request.URL.Path)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result := h.authService.AuthenticateAdmin(req.Password)
	if !result.Success {
		marker.SetSuccess(false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": result.Error})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AdminCookieName, result.Token, 3600*24, "/", "", false, true)

	marker.SetSuccess(true)
	h.logger.Perf().Info("Performance for AdminLogin request", "duration", time.Since(start), "success", true)

	c.JSON(http.StatusOK, result)
}

// Evaluate previews a rule against a supplied profile without touching
// any stored data.
func (h *AdminHandlers) Evaluate(c *gin.Context) {
	marker := h.perfTracker.StartOperation("admin_evaluate_request")
	defer marker.Complete()

	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	profile := visibility.FailClosedProfile(visibility.DeviceDesktop)
	if req.Profile != nil {
		profile = *req.Profile
	}
	rule := visibility.ParseRule(req.Rule)

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"decision": h.evaluator.ExplainVisibility(rule, profile),
		"rule":     rule,
		"profile":  profile,
	})
}

// InvalidateUserProfile drops a user's cached profile on operator request.
func (h *AdminHandlers) InvalidateUserProfile(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	if err := h.profileService.Invalidate(c.Request.Context(), userID, "admin"); err != nil {
		h.logger.Cache().Error("Admin profile invalidation failed", "error", err.Error(), "userId", logging.SanitizeUserID(userID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invalidate profile"})
		return
	}

	h.logger.Cache().Info("Profile invalidated by admin", "userId", logging.SanitizeUserID(userID))
	c.JSON(http.StatusOK, gin.H{"success": true, "userId": userID})
}

// GetPerformance returns per-operation timings and the most recent markers.
func (h *AdminHandlers) GetPerformance(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("recent", "50"))
	if err != nil || limit < 0 {
		limit = 50
	}
	stats := h.perfTracker.Stats()
	summary := make([]gin.H, 0, len(stats))
	for _, s := range stats {
		summary = append(summary, gin.H{
			"operation":   s.Operation,
			"count":       s.Count,
			"failures":    s.Failures,
			"slowCount":   s.SlowCount,
			"averageMs":   s.Average().Milliseconds(),
			"maxMs":       s.Max.Milliseconds(),
			"cacheHits":   s.CacheHits,
			"cacheMisses": s.CacheMisses,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"operations": summary,
		"recent":     h.perfTracker.Recent(limit),
	})
}

// GetLogLevels returns current log levels for all channels.
func (h *AdminHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// SetLogLevel sets the log level for a specific channel.
func (h *AdminHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(req.Level))); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log level specified"})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to set log level", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": fmt.Sprintf("Log level for channel '%s' set to '%s'", req.Channel, level.String())})
}
