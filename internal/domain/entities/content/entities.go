// Package content defines the page and block entities served to the client.
package content

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/sharpline/sharpline-go/internal/domain/entities/visibility"
)

// BlockType identifies what a block renders on the client.
type BlockType string

const (
	BlockAnalyzer    BlockType = "analyzer"
	BlockContest     BlockType = "contest"
	BlockLeaderboard BlockType = "leaderboard"
	BlockAd          BlockType = "ad"
	BlockText        BlockType = "text"
	BlockCustom      BlockType = "custom"
)

// PageNode is a dynamically composed page owned by the CMS.
type PageNode struct {
	ID              string           `json:"id"`
	Slug            string           `json:"slug"`
	Title           string           `json:"title"`
	IsPublished     bool             `json:"isPublished"`
	VisibilityRules *visibility.Rule `json:"visibilityRules,omitempty"`
	Created         time.Time        `json:"created"`
	Changed         *time.Time       `json:"changed,omitempty"`
}

// BlockNode is one unit of page content with its own visibility rule,
// independent of the page's rule.
type BlockNode struct {
	ID              string           `json:"id"`
	PageID          string           `json:"pageId"`
	BlockType       BlockType        `json:"blockType"`
	Position        int              `json:"position"`
	Config          json.RawMessage  `json:"config,omitempty"`
	VisibilityRules *visibility.Rule `json:"visibilityRules,omitempty"`
}

// RenderedPage is a page together with the blocks its viewer may see.
type RenderedPage struct {
	Page        *PageNode          `json:"page"`
	Blocks      []*BlockNode       `json:"blocks"`
	HiddenCount int                `json:"hiddenCount"`
	Profile     visibility.Profile `json:"profile"`
}

// SortBlocks orders blocks by position, then id, in place.
func SortBlocks(blocks []*BlockNode) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Position != blocks[j].Position {
			return blocks[i].Position < blocks[j].Position
		}
		return blocks[i].ID < blocks[j].ID
	})
}
