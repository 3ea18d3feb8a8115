package syncengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrata/record-sync/internal/model"
	"github.com/adrata/record-sync/internal/resilience"
	"github.com/adrata/record-sync/internal/route"
)

func newTestRegistry(up Updater) *Registry {
	return NewRegistry(Config{
		Router:  route.New(model.DefaultSchema()),
		Updater: up,
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
	})
}

func TestRegistryForCreatesPerRecord(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(&fakeUpdater{})

	a := r.For(model.Record{"id": "p1", "recordType": "person"})
	b := r.For(model.Record{"id": "p2", "recordType": "person"})
	assert.NotSame(t, a, b)

	again := r.For(model.Record{"id": "p1", "recordType": "person"})
	assert.Same(t, a, again)
}

func TestRegistryForSyncsExistingEngine(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(&fakeUpdater{})

	eng := r.For(model.Record{"id": "p1", "recordType": "person", "email": "old@example.com"})
	r.For(model.Record{"id": "p1", "recordType": "person", "email": "new@example.com"})

	assert.Equal(t, "new@example.com", eng.Record().String("email"))
}

func TestRegistryForKeepsRecentEditsOnResubmit(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(&fakeUpdater{})

	eng := r.For(model.Record{"id": "p1", "recordType": "person", "email": "old@example.com"})
	_, err := eng.ApplyEdit(context.Background(), "email", "edited@example.com")
	require.NoError(t, err)

	// The client posts a follow-up edit with a stale snapshot; the fresh
	// write must not be rolled back by it.
	same := r.For(model.Record{"id": "p1", "recordType": "person", "email": "old@example.com"})
	assert.Same(t, eng, same)
	assert.Equal(t, "edited@example.com", eng.Record().String("email"))
}

func TestRegistryGetAndRelease(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(&fakeUpdater{})
	r.For(model.Record{"id": "p1", "recordType": "person"})

	_, ok := r.Get("p1")
	assert.True(t, ok)

	r.Release("p1")
	_, ok = r.Get("p1")
	assert.False(t, ok)

	r.Release("p1") // releasing twice is harmless
}
