// Package user defines the viewer identity and the interface for reading
// the per-user facts a visibility profile is built from.
package user

import "context"

// Viewer identifies who is looking at content. An empty UserID is an
// anonymous visitor.
type Viewer struct {
	UserID        string `json:"userId,omitempty"`
	Authenticated bool   `json:"authenticated"`
	ViewportWidth int    `json:"viewportWidth,omitempty"` // 0 when the client did not report one
}

// Anonymous returns an unauthenticated viewer.
func Anonymous() Viewer {
	return Viewer{}
}

// IsAnonymous reports whether the viewer has no authenticated identity.
func (v Viewer) IsAnonymous() bool {
	return !v.Authenticated || v.UserID == ""
}

// ProfileFacts are the persisted facts behind a visibility profile.
type ProfileFacts struct {
	TokenBalance     int      `json:"tokenBalance"`
	UsedAnalyzerIDs  []string `json:"usedAnalyzerIds"`
	JoinedContestIDs []string `json:"joinedContestIds"`
}

// ProfileFactsRepository reads the facts for one user. Users with no
// rows yield zero facts, not an error.
type ProfileFactsRepository interface {
	FindTokenBalance(ctx context.Context, userID string) (int, error)
	FindUsedAnalyzerIDs(ctx context.Context, userID string) ([]string, error)
	FindJoinedContestIDs(ctx context.Context, userID string) ([]string, error)
}
