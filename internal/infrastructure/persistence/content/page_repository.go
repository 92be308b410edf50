// Package content provides the SQL-backed page and block repositories.
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sharpline/sharpline-go/internal/domain/entities/content"
	"github.com/sharpline/sharpline-go/internal/domain/entities/visibility"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database"
)

const pageColumns = `id, slug, title, is_published, visibility_rules, created_at, updated_at`

type SQLPageRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

func NewSQLPageRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLPageRepository {
	return &SQLPageRepository{
		db:     db,
		logger: logger,
	}
}

// FindByID returns nil, nil when no page has the id.
func (r *SQLPageRepository) FindByID(ctx context.Context, id string) (*content.PageNode, error) {
	const query = `SELECT ` + pageColumns + ` FROM pages WHERE id = ?`
	return r.findOne(ctx, query, "id", id)
}

// FindBySlug returns nil, nil when no page has the slug.
func (r *SQLPageRepository) FindBySlug(ctx context.Context, slug string) (*content.PageNode, error) {
	const query = `SELECT ` + pageColumns + ` FROM pages WHERE slug = ?`
	return r.findOne(ctx, query, "slug", slug)
}

func (r *SQLPageRepository) findOne(ctx context.Context, query, field, value string) (*content.PageNode, error) {
	start := time.Now()
	r.logger.Database().Debug("Loading page from database", field, value)

	page, err := scanPage(r.db.QueryRowContext(ctx, query, value))
	r.db.ObserveQuery(query, start)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Database().Debug("Page not found", field, value)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load page", "error", err.Error(), field, value)
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	r.logger.Database().Info("Page loaded from database", field, value, "duration", time.Since(start))
	return page, nil
}

// Store inserts or replaces a page.
func (r *SQLPageRepository) Store(ctx context.Context, page *content.PageNode) error {
	const query = `INSERT INTO pages (` + pageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug,
			title = excluded.title,
			is_published = excluded.is_published,
			visibility_rules = excluded.visibility_rules,
			updated_at = excluded.updated_at`

	rules, err := encodeRule(page.VisibilityRules)
	if err != nil {
		return fmt.Errorf("failed to encode page visibility rules: %w", err)
	}

	created := page.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var changed sql.NullString
	if page.Changed != nil {
		changed = database.NullableString(database.FormatTimestamp(*page.Changed))
	}

	start := time.Now()
	r.logger.Database().Debug("Executing page upsert", "id", page.ID, "slug", page.Slug)

	_, err = r.db.ExecContext(ctx, query,
		page.ID, page.Slug, page.Title, page.IsPublished, rules,
		database.FormatTimestamp(created), changed)
	r.db.ObserveQuery(query, start)
	if err != nil {
		r.logger.Database().Error("Page upsert failed", "error", err.Error(), "id", page.ID)
		return fmt.Errorf("failed to store page: %w", err)
	}

	r.logger.Database().Info("Page upsert completed", "id", page.ID, "duration", time.Since(start))
	return nil
}

func scanPage(row *sql.Row) (*content.PageNode, error) {
	var (
		page      content.PageNode
		rules     sql.NullString
		createdAt string
		updatedAt sql.NullString
	)

	if err := row.Scan(&page.ID, &page.Slug, &page.Title, &page.IsPublished, &rules, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	page.VisibilityRules = visibility.ParseRule([]byte(rules.String))
	page.Created = database.ParseTimestamp(createdAt)
	page.Changed = database.ParseNullTimestamp(updatedAt)
	return &page, nil
}

// encodeRule stores an empty rule as NULL.
func encodeRule(rule *visibility.Rule) (sql.NullString, error) {
	if rule == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "{}" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
