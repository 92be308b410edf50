package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sharpline/sharpline-go/internal/application/services"
	"github.com/sharpline/sharpline-go/internal/infrastructure/messaging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/performance"
	"github.com/sharpline/sharpline-go/internal/presentation/http/middleware"
)

// StreamConfig configures the profile event websocket.
type StreamConfig struct {
	AllowedOrigins   []string
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	ClientBufferSize int
}

// ProfileHandlers exposes the caller's profile and its change stream.
type ProfileHandlers struct {
	profileService *services.ProfileService
	authService    *services.AuthService
	broadcaster    *messaging.ProfileBroadcaster
	upgrader       websocket.Upgrader
	stream         StreamConfig
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewProfileHandlers creates profile handlers with injected dependencies
func NewProfileHandlers(
	profileService *services.ProfileService,
	authService *services.AuthService,
	broadcaster *messaging.ProfileBroadcaster,
	stream StreamConfig,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *ProfileHandlers {
	h := &ProfileHandlers{
		profileService: profileService,
		authService:    authService,
		broadcaster:    broadcaster,
		stream:         stream,
		logger:         logger,
		perfTracker:    perfTracker,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// InvalidateRequest optionally names why the caller's profile changed.
type InvalidateRequest struct {
	Reason string `json:"reason"`
}

// GetProfile returns the profile the server would evaluate rules against.
func (h *ProfileHandlers) GetProfile(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("get_profile_request")
	defer marker.Complete()

	h.logger.Content().Debug("Received get profile request", "method", c.Request.Method, "path", c.Request.URL.Path)

	viewer := middleware.GetViewer(c)
	result, err := h.profileService.LoadProfile(c.Request.Context(), viewer)
	if err != nil {
		marker.SetError(err)
		if isCancellation(err) {
			c.AbortWithStatus(StatusClientClosedRequest)
			return
		}
		h.logger.Content().Error("Profile load failed", "error", err.Error(), "userId", logging.SanitizeUserID(viewer.UserID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	marker.SetSuccess(true)
	h.logger.Perf().Info("Performance for GetProfile request",
		"duration", time.Since(start), "success", true, "source", result.Source)

	c.JSON(http.StatusOK, gin.H{
		"profile":   result.Profile,
		"source":    result.Source,
		"cacheMode": h.profileService.CacheMode(),
	})
}

// InvalidateProfile drops the caller's cached profile after a change the
// caller made elsewhere, such as spending tokens.
func (h *ProfileHandlers) InvalidateProfile(c *gin.Context) {
	marker := h.perfTracker.StartOperation("invalidate_profile_request")
	defer marker.Complete()

	viewer := middleware.GetViewer(c)
	if viewer.IsAnonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req InvalidateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "self"
	}

	if err := h.profileService.Invalidate(c.Request.Context(), viewer.UserID, req.Reason); err != nil {
		marker.SetError(err)
		h.logger.Cache().Error("Profile invalidation failed", "error", err.Error(), "userId", logging.SanitizeUserID(viewer.UserID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invalidate profile"})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// StreamProfileEvents upgrades to a websocket that receives an event each
// time the caller's profile is invalidated. Browsers cannot set headers on
// a websocket handshake, so the token may also come as ?token=.
func (h *ProfileHandlers) StreamProfileEvents(c *gin.Context) {
	viewer := middleware.GetViewer(c)
	if viewer.IsAnonymous() {
		if token := c.Query("token"); token != "" {
			viewer = h.authService.ResolveViewer(token, viewer.ViewportWidth)
		}
	}
	if viewer.IsAnonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Realtime().Warn("Profile stream upgrade failed", "error", err.Error())
		return
	}

	h.logger.Realtime().Info("Profile stream connected", "userId", logging.SanitizeUserID(viewer.UserID))
	client := messaging.NewProfileClient(conn, viewer.UserID, h.stream.ClientBufferSize)
	h.broadcaster.Serve(client, messaging.PumpConfig{
		WriteTimeout: h.stream.WriteTimeout,
		PingInterval: h.stream.PingInterval,
	})
	h.logger.Realtime().Info("Profile stream disconnected", "userId", logging.SanitizeUserID(viewer.UserID))
}

func (h *ProfileHandlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.stream.AllowedOrigins, "*") || slices.Contains(h.stream.AllowedOrigins, origin)
}
