// Package handlers provides HTTP handlers for the presentation layer.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharpline/sharpline-go/internal/application/services"
	"github.com/sharpline/sharpline-go/internal/domain/entities/visibility"
	domainservices "github.com/sharpline/sharpline-go/internal/domain/services"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/performance"
	"github.com/sharpline/sharpline-go/internal/presentation/http/middleware"
)

// StatusClientClosedRequest marks requests the caller abandoned before the
// profile finished loading.
const StatusClientClosedRequest = 499

// PageHandlers contains all page-related HTTP handlers
type PageHandlers struct {
	renderService *services.PageRenderService
	gateService   *services.TokenGateService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

// NewPageHandlers creates page handlers with injected dependencies
func NewPageHandlers(
	renderService *services.PageRenderService,
	gateService *services.TokenGateService,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *PageHandlers {
	return &PageHandlers{
		renderService: renderService,
		gateService:   gateService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// GateRequest carries a rule to check against the caller's profile.
type GateRequest struct {
	Rule json.RawMessage `json:"rule"`
}

// GetPageBySlug renders a page with only the blocks the viewer may see.
func (h *PageHandlers) GetPageBySlug(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("get_page_by_slug_request")
	defer marker.Complete()

	slug := c.Param("slug")
	viewer := middleware.GetViewer(c)
	h.logger.Content().Debug("Received get page by slug request",
		"method", c.Request.Method, "path", c.Request.URL.Path, "slug", slug,
		"authenticated", viewer.Authenticated)

	page, err := h.renderService.RenderPage(c.Request.Context(), slug, viewer)
	if err != nil {
		var hidden *services.PageHiddenError
		switch {
		case errors.Is(err, services.ErrPageNotFound):
			marker.SetSuccess(false)
			c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
		case errors.As(err, &hidden):
			marker.SetSuccess(false)
			status := http.StatusForbidden
			if viewer.IsAnonymous() && hidden.Reason == domainservices.ReasonRequiresAuth {
				status = http.StatusUnauthorized
			}
			c.JSON(status, gin.H{"error": "Page not available", "reason": hidden.Reason})
		case isCancellation(err):
			marker.SetError(err)
			h.logger.Content().Debug("Page request abandoned by client", "slug", slug)
			c.AbortWithStatus(StatusClientClosedRequest)
		default:
			marker.SetError(err)
			h.logger.Content().Error("Page render failed", "error", err.Error(), "slug", slug)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render page"})
		}
		return
	}

	h.logger.Content().Info("Get page by slug request completed",
		"slug", slug, "blocks", len(page.Blocks), "hidden", page.HiddenCount,
		"duration", time.Since(start))
	marker.SetSuccess(true)
	h.logger.Perf().Info("Performance for GetPageBySlug request",
		"duration", time.Since(start), "success", true)

	c.JSON(http.StatusOK, page)
}

// CheckGate evaluates a caller-supplied rule against the caller's profile.
// A malformed rule is treated as empty and therefore visible.
func (h *PageHandlers) CheckGate(c *gin.Context) {
	start := time.Now()
	marker := h.perfTracker.StartOperation("check_gate_request")
	defer marker.Complete()

	h.logger.Content().Debug("Received check gate request", "method", c.Request.Method, "path", c.Request.URL.Path)

	var req GateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.gateService.CheckGate(c.Request.Context(), middleware.GetViewer(c), visibility.ParseRule(req.Rule))
	if err != nil {
		marker.SetError(err)
		if isCancellation(err) {
			c.AbortWithStatus(StatusClientClosedRequest)
			return
		}
		h.logger.Content().Error("Gate check failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check gate"})
		return
	}

	marker.SetSuccess(true)
	h.logger.Perf().Info("Performance for CheckGate request",
		"duration", time.Since(start), "success", true, "visible", result.Visible)

	c.JSON(http.StatusOK, result)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
