// Package services provides pure domain services for business logic
package services

import (
	"github.com/sharpline/sharpline-go/internal/domain/entities/content"
	"github.com/sharpline/sharpline-go/internal/domain/entities/visibility"
)

// Reasons reported by ExplainVisibility. A hidden decision names the first
// clause that failed.
const (
	ReasonNoRule              = "no_rule"
	ReasonAllConditionsMet    = "all_conditions_met"
	ReasonRequiresAuth        = "requires_auth"
	ReasonMinTokens           = "min_tokens"
	ReasonHasUsedAnalyzer     = "has_used_analyzer"
	ReasonJoinedContest       = "joined_contest"
	ReasonHasJoinedAnyContest = "has_joined_any_contest"
	ReasonHasUsedAnyAnalyzer  = "has_used_any_analyzer"
	ReasonDevice              = "device"
)

// Decision is the outcome of evaluating one rule against one profile.
type Decision struct {
	Visible bool   `json:"visible"`
	Reason  string `json:"reason"`
}

// VisibilityEvaluationService decides page and block visibility from a
// viewer profile. This is a pure domain service with no infrastructure dependencies.
type VisibilityEvaluationService struct{}

// NewVisibilityEvaluationService creates a new visibility evaluation engine.
func NewVisibilityEvaluationService() *VisibilityEvaluationService {
	return &VisibilityEvaluationService{}
}

// EvaluateVisibility is the main entry point for rule evaluation.
func (s *VisibilityEvaluationService) EvaluateVisibility(rule *visibility.Rule, profile visibility.Profile) bool {
	return s.ExplainVisibility(rule, profile).Visible
}

// ExplainVisibility evaluates the rule and reports which clause decided it.
// Clauses are checked in a fixed order and the first failure wins.
func (s *VisibilityEvaluationService) ExplainVisibility(rule *visibility.Rule, profile visibility.Profile) Decision {
	if rule.IsEmpty() {
		return Decision{Visible: true, Reason: ReasonNoRule}
	}

	if rule.NeedsAuth() && !profile.IsAuthenticated {
		return hidden(ReasonRequiresAuth)
	}

	if rule.MinTokens != nil && profile.TokenBalance < *rule.MinTokens {
		return hidden(ReasonMinTokens)
	}

	if rule.HasUsedAnalyzer != nil && !profile.HasUsedAnalyzer(*rule.HasUsedAnalyzer) {
		return hidden(ReasonHasUsedAnalyzer)
	}

	if rule.JoinedContest != nil && !profile.HasJoinedContest(*rule.JoinedContest) {
		return hidden(ReasonJoinedContest)
	}

	if isSet(rule.HasJoinedAnyContest) && !profile.HasJoinedAnyContest() {
		return hidden(ReasonHasJoinedAnyContest)
	}

	if isSet(rule.HasUsedAnyAnalyzer) && !profile.HasUsedAnyAnalyzer() {
		return hidden(ReasonHasUsedAnyAnalyzer)
	}

	if rule.Device != nil && *rule.Device != profile.DeviceClass {
		return hidden(ReasonDevice)
	}

	return Decision{Visible: true, Reason: ReasonAllConditionsMet}
}

// FilterVisibleBlocks returns the blocks the profile may see, in position
// order, and how many were hidden. The input slice is not modified.
func (s *VisibilityEvaluationService) FilterVisibleBlocks(
	blocks []*content.BlockNode,
	profile visibility.Profile,
) ([]*content.BlockNode, int) {
	visible := make([]*content.BlockNode, 0, len(blocks))
	hiddenCount := 0

	for _, block := range blocks {
		if block == nil {
			continue
		}
		if s.EvaluateVisibility(block.VisibilityRules, profile) {
			visible = append(visible, block)
		} else {
			hiddenCount++
		}
	}

	content.SortBlocks(visible)
	return visible, hiddenCount
}

func hidden(reason string) Decision {
	return Decision{Visible: false, Reason: reason}
}

func isSet(b *bool) bool {
	return b != nil && *b
}
