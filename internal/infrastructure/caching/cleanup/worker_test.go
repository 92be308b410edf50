package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/sharpline-go/internal/domain/user"
	"github.com/sharpline/sharpline-go/internal/infrastructure/caching/stores"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
)

func TestWorker_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := stores.NewProfilesStore(nil)
	require.NoError(t, store.SetProfileFacts(ctx, "u1", &user.ProfileFacts{}, time.Millisecond))
	require.NoError(t, store.SetProfileFacts(ctx, "u2", &user.ProfileFacts{}, time.Hour))

	w := NewWorker(store, &Config{CleanupInterval: time.Minute}, logging.NewDiscardLogger())

	assert.Equal(t, 1, w.RunOnce(time.Now().Add(time.Second)))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, w.RunOnce(time.Now().Add(time.Second)))
}

func TestWorker_StartStopsOnCancel(t *testing.T) {
	store := stores.NewProfilesStore(nil)
	w := NewWorker(store, &Config{CleanupInterval: 5 * time.Millisecond}, logging.NewDiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
