package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sharpline/sharpline-go/internal/domain/entities/content"
	"github.com/sharpline/sharpline-go/internal/domain/user"
)

type fakeFactsRepo struct {
	mu    sync.Mutex
	facts map[string]user.ProfileFacts
	err   error
	// block makes every call wait for ctx to finish.
	block bool
	// release, when set, makes every call wait until it is closed.
	release chan struct{}
	started chan struct{}
	calls   atomic.Int32
}

func newFakeFactsRepo() *fakeFactsRepo {
	return &fakeFactsRepo{facts: map[string]user.ProfileFacts{}, started: make(chan struct{}, 3)}
}

func (f *fakeFactsRepo) enter(ctx context.Context) error {
	f.calls.Add(1)
	if f.block {
		f.started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}
	if f.release != nil {
		f.started <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeFactsRepo) get(userID string) user.ProfileFacts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.facts[userID]
}

func (f *fakeFactsRepo) set(userID string, facts user.ProfileFacts) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts[userID] = facts
}

func (f *fakeFactsRepo) FindTokenBalance(ctx context.Context, userID string) (int, error) {
	if err := f.enter(ctx); err != nil {
		return 0, err
	}
	return f.get(userID).TokenBalance, nil
}

func (f *fakeFactsRepo) FindUsedAnalyzerIDs(ctx context.Context, userID string) ([]string, error) {
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	return f.get(userID).UsedAnalyzerIDs, nil
}

func (f *fakeFactsRepo) FindJoinedContestIDs(ctx context.Context, userID string) ([]string, error) {
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	return f.get(userID).JoinedContestIDs, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) PublishProfileInvalidated(userID, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, userID+":"+reason)
}

func (p *fakePublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type fakePageRepo struct {
	pages map[string]*content.PageNode
	err   error
}

func (r *fakePageRepo) FindByID(_ context.Context, id string) (*content.PageNode, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, p := range r.pages {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePageRepo) FindBySlug(_ context.Context, slug string) (*content.PageNode, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.pages[slug], nil
}

func (r *fakePageRepo) Store(_ context.Context, page *content.PageNode) error {
	r.pages[page.Slug] = page
	return nil
}

type fakeBlockRepo struct {
	blocks map[string][]*content.BlockNode
	err    error
}

func (r *fakeBlockRepo) FindByPageID(_ context.Context, pageID string) ([]*content.BlockNode, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.blocks[pageID], nil
}

func (r *fakeBlockRepo) Store(_ context.Context, block *content.BlockNode) error {
	r.blocks[block.PageID] = append(r.blocks[block.PageID], block)
	return nil
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
