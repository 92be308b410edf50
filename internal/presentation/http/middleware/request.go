package middleware

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharpline/sharpline-go/internal/application/services"
	"github.com/sharpline/sharpline-go/internal/domain/user"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/security"
)

const (
	HeaderRequestID     = "X-Request-ID"
	HeaderViewportWidth = "X-Viewport-Width"
	QueryViewportWidth  = "vw"

	requestIDKey = "requestId"
	viewerKey    = "viewer"
)

// RequestIDMiddleware tags every request with a ULID, keeping a caller
// supplied one when it is a valid ULID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if !security.IsULID(id) {
			id = security.GenerateULID()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID returns the current request id.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger logs each completed request on the system channel.
func RequestLogger(logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.System().Debug("Request completed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"requestId", GetRequestID(c),
			"duration", time.Since(start))
	}
}

// ViewerMiddleware resolves the caller's identity and viewport. It never
// rejects a request; an unusable token yields an anonymous viewer.
func ViewerMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		width := parseViewportWidth(c.GetHeader(HeaderViewportWidth))
		if width == 0 {
			width = parseViewportWidth(c.Query(QueryViewportWidth))
		}
		c.Set(viewerKey, authService.ResolveViewer(c.GetHeader("Authorization"), width))
		c.Next()
	}
}

// GetViewer returns the viewer resolved by ViewerMiddleware, or an
// anonymous viewer when the middleware did not run.
func GetViewer(c *gin.Context) user.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		if viewer, ok := v.(user.Viewer); ok {
			return viewer
		}
	}
	return user.Anonymous()
}

func parseViewportWidth(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	width, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(width > 0 && width <= 100000) {
		return 0
	}
	// Fractional CSS pixels round up so 768.5 is wider than 768.
	return int(math.Ceil(width))
}
