package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrata/record-sync/internal/model"
)

func TestBusPublishSubscribe(t *testing.T) {
	t.Parallel()

	b := New()
	events, cancel := b.Subscribe()
	defer cancel()

	b.Publish(Event{
		Type:        EventRefreshCollection,
		WorkspaceID: "ws1",
		RecordID:    "r1",
		Collections: []model.Collection{model.CollectionLeads},
	})

	select {
	case ev := <-events:
		assert.Equal(t, EventRefreshCollection, ev.Type)
		assert.Equal(t, "ws1", ev.WorkspaceID)
		assert.Equal(t, []model.Collection{model.CollectionLeads}, ev.Collections)
		assert.NotEmpty(t, ev.ID, "ids are filled in")
		assert.False(t, ev.At.IsZero(), "timestamps are filled in")
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusFanOut(t *testing.T) {
	t.Parallel()

	b := New()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(Event{Type: EventRecordUpdated, RecordID: "r1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, "r1", ev.RecordID)
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the event")
		}
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	t.Parallel()

	b := New()
	events, cancel := b.Subscribe()
	cancel()

	_, open := <-events
	assert.False(t, open)

	cancel() // cancelling twice is harmless
	b.Publish(Event{Type: EventRecordUpdated})
}

func TestBusPublishNeverBlocks(t *testing.T) {
	t.Parallel()

	b := New()
	_, cancel := b.Subscribe()
	defer cancel()

	// Nobody reads; the buffer fills and further events are dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(Event{Type: EventRecordUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestBusPreservesExplicitIDAndTime(t *testing.T) {
	t.Parallel()

	b := New()
	events, cancel := b.Subscribe()
	defer cancel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(Event{ID: "fixed", Type: EventNavigate, Path: "/leads/jane-doe-abc123", At: at})

	ev := <-events
	require.Equal(t, "fixed", ev.ID)
	assert.Equal(t, at, ev.At)
	assert.Equal(t, "/leads/jane-doe-abc123", ev.Path)
}
