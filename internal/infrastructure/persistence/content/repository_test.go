package content

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/sharpline-go/internal/domain/entities/content"
	"github.com/sharpline/sharpline-go/internal/domain/entities/visibility"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database/testutil"
)

func TestPageRepository_StoreAndFind(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t)
	repo := NewSQLPageRepository(db, logging.NewDiscardLogger())

	minTokens := 50
	device := visibility.DeviceMobile
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	page := &content.PageNode{
		ID:          "page-nfl-week-1",
		Slug:        "nfl-week-1",
		Title:       "NFL Week 1 Picks",
		IsPublished: true,
		VisibilityRules: &visibility.Rule{
			MinTokens: &minTokens,
			Device:    &device,
		},
		Created: created,
	}
	require.NoError(t, repo.Store(ctx, page))

	bySlug, err := repo.FindBySlug(ctx, "nfl-week-1")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, "page-nfl-week-1", bySlug.ID)
	assert.Equal(t, "NFL Week 1 Picks", bySlug.Title)
	assert.True(t, bySlug.IsPublished)
	assert.Equal(t, created, bySlug.Created)
	assert.Nil(t, bySlug.Changed)
	require.NotNil(t, bySlug.VisibilityRules)
	require.NotNil(t, bySlug.VisibilityRules.MinTokens)
	assert.Equal(t, 50, *bySlug.VisibilityRules.MinTokens)
	require.NotNil(t, bySlug.VisibilityRules.Device)
	assert.Equal(t, visibility.DeviceMobile, *bySlug.VisibilityRules.Device)

	byID, err := repo.FindByID(ctx, "page-nfl-week-1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "nfl-week-1", byID.Slug)
}

func TestPageRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLPageRepository(testutil.OpenSQLite(t), logging.NewDiscardLogger())

	page, err := repo.FindBySlug(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, page)

	page, err = repo.FindByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, page)
}

func TestPageRepository_UpsertReplacesRule(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLPageRepository(testutil.OpenSQLite(t), logging.NewDiscardLogger())

	requires := true
	page := &content.PageNode{ID: "p1", Slug: "locked", Title: "Locked", IsPublished: true,
		VisibilityRules: &visibility.Rule{RequiresAuth: &requires}}
	require.NoError(t, repo.Store(ctx, page))

	changed := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	page.VisibilityRules = nil
	page.Title = "Open"
	page.Changed = &changed
	require.NoError(t, repo.Store(ctx, page))

	got, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Open", got.Title)
	assert.Nil(t, got.VisibilityRules)
	require.NotNil(t, got.Changed)
	assert.Equal(t, changed, *got.Changed)
}

func TestPageRepository_MalformedStoredRuleIsIgnored(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t)
	testutil.Exec(t, db,
		`INSERT INTO pages (id, slug, title, is_published, visibility_rules, created_at)
		 VALUES ('p2', 'garbled', 'Garbled', 1, '{"minTokens": "lots", "requiresAuth": true', '2026-08-01T00:00:00Z')`,
	)

	got, err := NewSQLPageRepository(db, logging.NewDiscardLogger()).FindBySlug(ctx, "garbled")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.VisibilityRules.IsEmpty())
}

func TestBlockRepository_FindByPageIDOrdersByPosition(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t)
	logger := logging.NewDiscardLogger()
	pages := NewSQLPageRepository(db, logger)
	blocks := NewSQLBlockRepository(db, logger)

	require.NoError(t, pages.Store(ctx, &content.PageNode{ID: "p1", Slug: "home", Title: "Home", IsPublished: true}))

	analyzer := "model-spread-v2"
	anyContest := true
	for _, b := range []*content.BlockNode{
		{ID: "b-contest", PageID: "p1", BlockType: content.BlockContest, Position: 2,
			VisibilityRules: &visibility.Rule{HasJoinedAnyContest: &anyContest}},
		{ID: "b-text", PageID: "p1", BlockType: content.BlockText, Position: 0,
			Config: json.RawMessage(`{"body":"Welcome"}`)},
		{ID: "b-analyzer", PageID: "p1", BlockType: content.BlockAnalyzer, Position: 1,
			VisibilityRules: &visibility.Rule{HasUsedAnalyzer: &analyzer}},
	} {
		require.NoError(t, blocks.Store(ctx, b))
	}

	got, err := blocks.FindByPageID(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "b-text", got[0].ID)
	assert.Equal(t, content.BlockText, got[0].BlockType)
	assert.JSONEq(t, `{"body":"Welcome"}`, string(got[0].Config))
	assert.Nil(t, got[0].VisibilityRules)

	assert.Equal(t, "b-analyzer", got[1].ID)
	require.NotNil(t, got[1].VisibilityRules.HasUsedAnalyzer)
	assert.Equal(t, analyzer, *got[1].VisibilityRules.HasUsedAnalyzer)

	assert.Equal(t, "b-contest", got[2].ID)
	require.NotNil(t, got[2].VisibilityRules.HasJoinedAnyContest)
	assert.True(t, *got[2].VisibilityRules.HasJoinedAnyContest)
}

func TestBlockRepository_EmptyPage(t *testing.T) {
	repo := NewSQLBlockRepository(testutil.OpenSQLite(t), logging.NewDiscardLogger())

	got, err := repo.FindByPageID(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}
