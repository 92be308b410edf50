package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sharpline/sharpline-go/internal/domain/entities/content"
	"github.com/sharpline/sharpline-go/internal/domain/entities/visibility"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database"
)

type SQLBlockRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

func NewSQLBlockRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLBlockRepository {
	return &SQLBlockRepository{
		db:     db,
		logger: logger,
	}
}

// FindByPageID returns the page's blocks ordered by position. A page with
// no blocks yields an empty slice.
func (r *SQLBlockRepository) FindByPageID(ctx context.Context, pageID string) ([]*content.BlockNode, error) {
	const query = `SELECT id, page_id, block_type, position, config, visibility_rules
		FROM page_blocks WHERE page_id = ? ORDER BY position, id`

	start := time.Now()
	r.logger.Database().Debug("Loading blocks from database", "pageId", pageID)

	rows, err := r.db.QueryContext(ctx, query, pageID)
	if err != nil {
		r.logger.Database().Error("Failed to query blocks", "error", err.Error(), "pageId", pageID)
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	blocks := []*content.BlockNode{}
	for rows.Next() {
		var (
			block     content.BlockNode
			blockType string
			config    sql.NullString
			rules     sql.NullString
		)
		if err := rows.Scan(&block.ID, &block.PageID, &blockType, &block.Position, &config, &rules); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		block.BlockType = content.BlockType(blockType)
		if config.Valid && config.String != "" {
			block.Config = []byte(config.String)
		}
		block.VisibilityRules = visibility.ParseRule([]byte(rules.String))
		blocks = append(blocks, &block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blocks: %w", err)
	}

	r.db.ObserveQuery(query, start)
	r.logger.Database().Info("Blocks loaded from database", "pageId", pageID, "count", len(blocks), "duration", time.Since(start))
	return blocks, nil
}

// Store inserts or replaces a block.
func (r *SQLBlockRepository) Store(ctx context.Context, block *content.BlockNode) error {
	const query = `INSERT INTO page_blocks (id, page_id, block_type, position, config, visibility_rules)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			page_id = excluded.page_id,
			block_type = excluded.block_type,
			position = excluded.position,
			config = excluded.config,
			visibility_rules = excluded.visibility_rules`

	rules, err := encodeRule(block.VisibilityRules)
	if err != nil {
		return fmt.Errorf("failed to encode block visibility rules: %w", err)
	}

	start := time.Now()
	r.logger.Database().Debug("Executing block upsert", "id", block.ID, "pageId", block.PageID)

	_, err = r.db.ExecContext(ctx, query,
		block.ID, block.PageID, string(block.BlockType), block.Position,
		database.NullableString(string(block.Config)), rules)
	r.db.ObserveQuery(query, start)
	if err != nil {
		r.logger.Database().Error("Block upsert failed", "error", err.Error(), "id", block.ID)
		return fmt.Errorf("failed to store block: %w", err)
	}

	r.logger.Database().Info("Block upsert completed", "id", block.ID, "duration", time.Since(start))
	return nil
}
