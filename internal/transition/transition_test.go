package transition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrata/record-sync/internal/bus"
	"github.com/adrata/record-sync/internal/model"
)

func drainEvents(ch <-chan bus.Event) []bus.Event {
	var out []bus.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func syncAfter(_ time.Duration, fn func()) { fn() }

func TestStageChangedCrossCollection(t *testing.T) {
	t.Parallel()

	b := bus.New()
	events, cancel := b.Subscribe()
	defer cancel()

	var navPath string
	h := NewHandler(b,
		NavigatorFunc(func(path string) { navPath = path }),
		WithAfterFunc(syncAfter),
	)

	rec := model.Record{"id": "abc123", "workspaceId": "ws1", "fullName": "Jane Doe"}
	h.StageChanged(rec, model.StageLead, model.StageProspect)

	assert.Equal(t, "/prospects/jane-doe-abc123", navPath)

	got := drainEvents(events)
	require.Len(t, got, 3, "two collection refreshes plus a counts refresh")

	var refreshed []model.Collection
	var counts []bus.Event
	for _, ev := range got {
		switch ev.Type {
		case bus.EventRefreshCollection:
			assert.Equal(t, "ws1", ev.WorkspaceID)
			assert.Equal(t, "abc123", ev.RecordID)
			refreshed = append(refreshed, ev.Collections...)
		case bus.EventRefreshCounts:
			counts = append(counts, ev)
		}
	}
	assert.ElementsMatch(t, []model.Collection{model.CollectionLeads, model.CollectionProspects}, refreshed)
	require.Len(t, counts, 1)
	assert.ElementsMatch(t, []model.Collection{model.CollectionLeads, model.CollectionProspects}, counts[0].Collections)
}

func TestStageChangedSameCollection(t *testing.T) {
	t.Parallel()

	b := bus.New()
	events, cancel := b.Subscribe()
	defer cancel()

	var navigated bool
	h := NewHandler(b,
		NavigatorFunc(func(string) { navigated = true }),
		WithAfterFunc(syncAfter),
	)

	rec := model.Record{"id": "abc123", "workspaceId": "ws1"}
	h.StageChanged(rec, model.StageLead, model.StageLead)

	assert.False(t, navigated, "no navigation inside the same collection")

	got := drainEvents(events)
	require.Len(t, got, 1)
	assert.Equal(t, bus.EventRefreshCollection, got[0].Type)
	assert.Equal(t, []model.Collection{model.CollectionLeads}, got[0].Collections)
}

func TestStageChangedNilNavigator(t *testing.T) {
	t.Parallel()

	b := bus.New()
	events, cancel := b.Subscribe()
	defer cancel()

	h := NewHandler(b, nil, WithAfterFunc(syncAfter))
	rec := model.Record{"id": "abc123", "workspaceId": "ws1"}
	h.StageChanged(rec, model.StageProspect, model.StageClient)

	got := drainEvents(events)
	assert.Len(t, got, 3, "refresh events fire even without a navigation surface")
}

func TestStageChangedNavigationIsDeferred(t *testing.T) {
	t.Parallel()

	b := bus.New()

	var gotDelay time.Duration
	fired := false
	h := NewHandler(b,
		NavigatorFunc(func(string) { fired = true }),
		WithNavigationDelay(123*time.Millisecond),
		WithAfterFunc(func(d time.Duration, fn func()) {
			gotDelay = d
			// Deliberately not invoking fn: navigation must not have
			// happened synchronously.
		}),
	)

	rec := model.Record{"id": "abc123", "workspaceId": "ws1", "fullName": "Jane Doe"}
	h.StageChanged(rec, model.StageLead, model.StageOpportunity)

	assert.Equal(t, 123*time.Millisecond, gotDelay)
	assert.False(t, fired)
}

func TestStageChangedNamelessRecordNavigatesById(t *testing.T) {
	t.Parallel()

	b := bus.New()

	var navPath string
	h := NewHandler(b,
		NavigatorFunc(func(path string) { navPath = path }),
		WithAfterFunc(syncAfter),
	)

	rec := model.Record{"id": "abc123", "workspaceId": "ws1"}
	h.StageChanged(rec, model.StageLead, model.StageClient)

	assert.Equal(t, "/clients/abc123", navPath)
}
