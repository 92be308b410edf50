package services

import (
	"context"

	"github.com/sharpline/sharpline-go/internal/domain/entities/visibility"
	domainservices "github.com/sharpline/sharpline-go/internal/domain/services"
	"github.com/sharpline/sharpline-go/internal/domain/user"
)

// GateResult is the outcome of checking one rule for the caller.
type GateResult struct {
	Visible       bool               `json:"visible"`
	Reason        string             `json:"reason"`
	Profile       visibility.Profile `json:"profile"`
	ProfileSource ProfileSource      `json:"profileSource"`
}

// TokenGateService answers "may this viewer see content behind this
// rule" for widgets that are not part of a composed page.
type TokenGateService struct {
	profiles  *ProfileService
	evaluator *domainservices.VisibilityEvaluationService
}

func NewTokenGateService(profiles *ProfileService, evaluator *domainservices.VisibilityEvaluationService) *TokenGateService {
	return &TokenGateService{profiles: profiles, evaluator: evaluator}
}

// CheckGate loads the viewer's profile and evaluates rule against it.
// A nil rule is always visible. The only error is ctx's.
func (s *TokenGateService) CheckGate(ctx context.Context, viewer user.Viewer, rule *visibility.Rule) (*GateResult, error) {
	result, err := s.profiles.LoadProfile(ctx, viewer)
	if err != nil {
		return nil, err
	}
	decision := s.evaluator.ExplainVisibility(rule, result.Profile)
	return &GateResult{
		Visible:       decision.Visible,
		Reason:        decision.Reason,
		Profile:       result.Profile,
		ProfileSource: result.Source,
	}, nil
}
