package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database/testutil"
)

func TestProfileFactsRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenSQLite(t)
	testutil.Exec(t, db,
		`INSERT INTO user_tokens (user_id, balance) VALUES ('u1', 120), ('u2', 0)`,
		`INSERT INTO analyzer_requests (id, user_id, model_id, status, created_at) VALUES
			('r1', 'u1', 'spread-v2', 'completed', '2026-09-01T00:00:00Z'),
			('r2', 'u1', 'spread-v2', 'completed', '2026-09-02T00:00:00Z'),
			('r3', 'u1', 'totals-v1', 'pending',   '2026-09-03T00:00:00Z'),
			('r4', 'u1', 'props-v3',  'failed',    '2026-09-03T00:00:00Z'),
			('r5', 'u1', 'moneyline', 'completed', '2026-09-04T00:00:00Z'),
			('r6', 'u2', 'totals-v1', 'completed', '2026-09-04T00:00:00Z')`,
		`INSERT INTO contest_entries (id, user_id, contest_id, created_at) VALUES
			('e1', 'u1', 'survivor-2026', '2026-09-01T00:00:00Z'),
			('e2', 'u1', 'survivor-2026', '2026-09-08T00:00:00Z'),
			('e3', 'u1', 'pickem-week-1', '2026-09-01T00:00:00Z')`,
	)
	repo := NewSQLProfileFactsRepository(db, logging.NewDiscardLogger())

	balance, err := repo.FindTokenBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 120, balance)

	used, err := repo.FindUsedAnalyzerIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"moneyline", "spread-v2"}, used)

	joined, err := repo.FindJoinedContestIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pickem-week-1", "survivor-2026"}, joined)
}

func TestProfileFactsRepository_UnknownUser(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLProfileFactsRepository(testutil.OpenSQLite(t), logging.NewDiscardLogger())

	balance, err := repo.FindTokenBalance(ctx, "ghost")
	require.NoError(t, err)
	assert.Zero(t, balance)

	used, err := repo.FindUsedAnalyzerIDs(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, used)

	joined, err := repo.FindJoinedContestIDs(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, joined)
}

func TestProfileFactsRepository_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := NewSQLProfileFactsRepository(testutil.OpenSQLite(t), logging.NewDiscardLogger())

	_, err := repo.FindUsedAnalyzerIDs(ctx, "u1")
	assert.Error(t, err)
}
