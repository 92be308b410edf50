package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharpline/sharpline-go/internal/domain/entities/content"
	"github.com/sharpline/sharpline-go/internal/domain/repositories"
	domainservices "github.com/sharpline/sharpline-go/internal/domain/services"
	"github.com/sharpline/sharpline-go/internal/domain/user"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/performance"
)

var (
	ErrPageNotFound = errors.New("page not found")
	ErrPageHidden   = errors.New("page hidden by visibility rule")
)

// PageHiddenError carries the rule clause that hid the page.
type PageHiddenError struct {
	Slug   string
	Reason string
}

func (e *PageHiddenError) Error() string {
	return fmt.Sprintf("page %s hidden: %s", e.Slug, e.Reason)
}

func (e *PageHiddenError) Unwrap() error {
	return ErrPageHidden
}

// PageRenderService composes a page for one viewer: it waits for the
// viewer's profile, applies the page rule, then keeps only the blocks
// whose own rules pass.
type PageRenderService struct {
	pageRepo    repositories.PageRepository
	blockRepo   repositories.BlockRepository
	profiles    *ProfileService
	evaluator   *domainservices.VisibilityEvaluationService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewPageRenderService creates a new page render service
func NewPageRenderService(
	pageRepo repositories.PageRepository,
	blockRepo repositories.BlockRepository,
	profiles *ProfileService,
	evaluator *domainservices.VisibilityEvaluationService,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *PageRenderService {
	return &PageRenderService{
		pageRepo:    pageRepo,
		blockRepo:   blockRepo,
		profiles:    profiles,
		evaluator:   evaluator,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// RenderPage returns ErrPageNotFound for missing or unpublished pages and
// a *PageHiddenError (matching ErrPageHidden) when the page rule fails.
func (s *PageRenderService) RenderPage(ctx context.Context, slug string, viewer user.Viewer) (*content.RenderedPage, error) {
	if slug == "" {
		return nil, ErrPageNotFound
	}

	marker := s.perfTracker.StartOperation("render_page")
	defer marker.Complete()
	marker.AddMetadata("slug", slug)

	page, err := s.pageRepo.FindBySlug(ctx, slug)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("failed to load page %s: %w", slug, err)
	}
	if page == nil || !page.IsPublished {
		marker.SetSuccess(false)
		return nil, ErrPageNotFound
	}

	result, err := s.profiles.LoadProfile(ctx, viewer)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	profile := result.Profile

	if decision := s.evaluator.ExplainVisibility(page.VisibilityRules, profile); !decision.Visible {
		s.logger.Content().Debug("Page hidden for viewer", "slug", slug, "reason", decision.Reason, "profileSource", result.Source)
		marker.AddMetadata("hiddenBy", decision.Reason)
		return nil, &PageHiddenError{Slug: slug, Reason: decision.Reason}
	}

	blocks, err := s.blockRepo.FindByPageID(ctx, page.ID)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("failed to load blocks for page %s: %w", slug, err)
	}

	visible, hidden := s.evaluator.FilterVisibleBlocks(blocks, profile)
	marker.AddMetadata("blocks", len(visible))
	marker.AddMetadata("hidden", hidden)
	marker.SetSuccess(true)

	s.logger.Content().Info("Page rendered", "slug", slug, "visibleBlocks", len(visible), "hiddenBlocks", hidden, "profileSource", result.Source)

	return &content.RenderedPage{
		Page:        page,
		Blocks:      visible,
		HiddenCount: hidden,
		Profile:     profile,
	}, nil
}
