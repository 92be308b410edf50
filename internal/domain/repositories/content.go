// Package repositories defines the repository interfaces for content entities.
// These repositories abstract the data persistence details, ensuring the core
// application is clean and decoupled from the database.
package repositories

import (
	"context"

	"github.com/sharpline/sharpline-go/internal/domain/entities/content"
)

type PageRepository interface {
	FindByID(ctx context.Context, id string) (*content.PageNode, error)
	FindBySlug(ctx context.Context, slug string) (*content.PageNode, error)
	Store(ctx context.Context, page *content.PageNode) error
}

type BlockRepository interface {
	FindByPageID(ctx context.Context, pageID string) ([]*content.BlockNode, error)
	Store(ctx context.Context, block *content.BlockNode) error
}
