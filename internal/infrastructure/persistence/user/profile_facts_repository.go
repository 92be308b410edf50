// Package user provides the SQL implementation of the profile facts
// repository. The token, analyzer and contest tables are owned by other
// services; this package only reads them.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database"
)

// AnalyzerStatusCompleted is the only analyzer request status that counts
// as having used an analyzer.
const AnalyzerStatusCompleted = "completed"

// SQLProfileFactsRepository is the SQL-based implementation of the ProfileFactsRepository.
type SQLProfileFactsRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLProfileFactsRepository creates a new instance of the repository.
func NewSQLProfileFactsRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLProfileFactsRepository {
	return &SQLProfileFactsRepository{
		db:     db,
		logger: logger,
	}
}

// FindTokenBalance returns 0 for users without a balance row.
func (r *SQLProfileFactsRepository) FindTokenBalance(ctx context.Context, userID string) (int, error) {
	const query = `SELECT balance FROM user_tokens WHERE user_id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading token balance", "userId", logging.SanitizeUserID(userID))

	var balance int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	r.db.ObserveQuery(query, start)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		r.logger.Database().Error("Failed to load token balance", "error", err.Error(), "userId", logging.SanitizeUserID(userID))
		return 0, fmt.Errorf("failed to load token balance: %w", err)
	}
	return balance, nil
}

// FindUsedAnalyzerIDs returns the distinct analyzer models the user has a
// completed request for.
func (r *SQLProfileFactsRepository) FindUsedAnalyzerIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT DISTINCT model_id FROM analyzer_requests
		WHERE user_id = ? AND status = ? ORDER BY model_id`
	return r.loadIDs(ctx, query, "analyzer", userID, AnalyzerStatusCompleted)
}

// FindJoinedContestIDs returns the distinct contests the user has entered.
func (r *SQLProfileFactsRepository) FindJoinedContestIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT DISTINCT contest_id FROM contest_entries
		WHERE user_id = ? ORDER BY contest_id`
	return r.loadIDs(ctx, query, "contest", userID)
}

func (r *SQLProfileFactsRepository) loadIDs(ctx context.Context, query, kind, userID string, extra ...any) ([]string, error) {
	start := time.Now()
	r.logger.Database().Debug("Loading profile ids", "kind", kind, "userId", logging.SanitizeUserID(userID))

	args := append([]any{userID}, extra...)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Database().Error("Failed to query profile ids", "error", err.Error(), "kind", kind)
		return nil, fmt.Errorf("failed to query %s ids: %w", kind, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", kind, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s ids: %w", kind, err)
	}

	r.db.ObserveQuery(query, start)
	r.logger.Database().Info("Profile ids loaded", "kind", kind, "count", len(ids), "duration", time.Since(start))
	return ids, nil
}
