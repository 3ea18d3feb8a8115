// Package transition handles lifecycle-stage changes: collection refresh
// signals and navigation to the record's new home collection.
package transition

import (
	"time"

	"go.uber.org/zap"

	"github.com/adrata/record-sync/internal/bus"
	"github.com/adrata/record-sync/internal/model"
)

// DefaultNavigationDelay gives the write's cache purge time to settle
// before the UI navigates to the new collection.
const DefaultNavigationDelay = 300 * time.Millisecond

// Navigator performs UI navigation. The engine constructs the path but
// does not own routing.
type Navigator interface {
	NavigateTo(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

func (f NavigatorFunc) NavigateTo(path string) { f(path) }

// Handler reacts to stage-field write successes.
type Handler struct {
	bus   *bus.Bus
	nav   Navigator
	delay time.Duration
	// defer function, injectable so tests run synchronously.
	after func(d time.Duration, fn func())
}

// Option configures a Handler.
type Option func(*Handler)

// WithNavigationDelay overrides the deferred-navigation delay.
func WithNavigationDelay(d time.Duration) Option {
	return func(h *Handler) { h.delay = d }
}

// WithAfterFunc overrides the scheduler used for deferred navigation.
func WithAfterFunc(after func(d time.Duration, fn func())) Option {
	return func(h *Handler) { h.after = after }
}

// NewHandler creates a stage transition handler. nav may be nil when no
// navigation surface exists (headless CLI).
func NewHandler(b *bus.Bus, nav Navigator, opts ...Option) *Handler {
	h := &Handler{
		bus:   b,
		nav:   nav,
		delay: DefaultNavigationDelay,
		after: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// StageChanged fires the side effects of a confirmed stage write.
//
// When the old and new stages map to different collections, exactly two
// refresh events are emitted (one per collection) plus a counts refresh,
// and navigation to the record's path under the new collection is
// scheduled after a short delay. When the collections are equal only a
// single local refresh signal is emitted and no navigation occurs.
func (h *Handler) StageChanged(rec model.Record, oldStage, newStage model.Stage) {
	oldColl := oldStage.Collection()
	newColl := newStage.Collection()

	if oldColl == newColl {
		h.bus.Publish(bus.Event{
			Type:        bus.EventRefreshCollection,
			WorkspaceID: rec.WorkspaceID(),
			RecordID:    rec.ID(),
			Collections: []model.Collection{newColl},
		})
		return
	}

	for _, coll := range []model.Collection{oldColl, newColl} {
		h.bus.Publish(bus.Event{
			Type:        bus.EventRefreshCollection,
			WorkspaceID: rec.WorkspaceID(),
			RecordID:    rec.ID(),
			Collections: []model.Collection{coll},
		})
	}
	h.bus.Publish(bus.Event{
		Type:        bus.EventRefreshCounts,
		WorkspaceID: rec.WorkspaceID(),
		Collections: []model.Collection{oldColl, newColl},
	})

	if h.nav == nil {
		return
	}
	path := "/" + string(newColl) + "/" + RecordSlug(rec.DisplayName(), rec.ID())
	h.after(h.delay, func() {
		zap.L().Info("navigating after stage change",
			zap.String("record_id", rec.ID()),
			zap.String("from", string(oldColl)),
			zap.String("to", string(newColl)),
			zap.String("path", path),
		)
		h.nav.NavigateTo(path)
	})
}
