package syncengine

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/adrata/record-sync/internal/bus"
	"github.com/adrata/record-sync/internal/cache"
	"github.com/adrata/record-sync/internal/model"
	"github.com/adrata/record-sync/internal/resilience"
	"github.com/adrata/record-sync/internal/route"
	"github.com/adrata/record-sync/internal/transition"
)

// Updater applies a sparse field update to one backing entity and returns
// the server's echo. Satisfied by entityapi.Client and
// entityapi.SalesforceUpdater.
type Updater interface {
	UpdateFields(ctx context.Context, kind, id string, fields map[string]any) (map[string]any, error)
}

// EditResult reports the outcome of one field edit.
type EditResult struct {
	// Record is the merged local state after the edit.
	Record model.Record
	// Written is true once the server confirmed the write.
	Written bool
	// Retryable is set on write failure when the error was transient.
	// The optimistic value stays displayed either way; reverting would
	// lose the user's input.
	Retryable bool
}

// Config wires an Engine's collaborators.
type Config struct {
	Router      *route.Router
	Updater     Updater
	Caches      *cache.Manager
	Transitions *transition.Handler
	Bus         *bus.Bus
	Retry       resilience.RetryConfig
	// RecencyWindow and Clock configure the per-record edit sessions.
	RecencyWindow time.Duration
	Clock         Clock
}

// Engine synchronizes one active record view with the remote entity store:
// optimistic local application, write routing, echo reconciliation, cache
// invalidation and stage side effects. Safe for concurrent edits.
type Engine struct {
	cfg Config

	mu      sync.Mutex
	current model.Record
	session *EditSession
}

// New creates an Engine with no active record.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		session: NewEditSession(cfg.RecencyWindow, cfg.Clock),
	}
}

// SetRecord replaces the active record. Navigating to a different record
// id starts a fresh edit session; late continuations of the previous
// record's writes detect the id change and skip their merge.
func (e *Engine) SetRecord(rec model.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current.ID() != rec.ID() {
		e.session = NewEditSession(e.cfg.RecencyWindow, e.cfg.Clock)
	}
	e.current = rec.Clone()
}

// Record returns a snapshot of the merged local state.
func (e *Engine) Record() model.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

// SyncRecord folds an inbound prop-level refresh into local state. Fields
// with writes in flight or inside the recency window keep their local
// values; unrelated fields sync normally (partial skip, never a
// whole-record skip). A payload for a different record id is ignored.
func (e *Engine) SyncRecord(incoming model.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current.ID() == "" || incoming.ID() != e.current.ID() {
		return
	}
	sess := e.session
	e.current = Merge(e.current, incoming, MergeOptions{
		Pending: sess.IsPending,
		Recent:  sess.IsRecent,
	})
}

// ApplyEdit routes a field edit, applies it optimistically, writes it to
// the remote store and reconciles the echo. A nil value is a deliberate
// field clear. On write failure the optimistic value remains displayed and
// the result reports whether a retry is worthwhile.
func (e *Engine) ApplyEdit(ctx context.Context, field string, value any) (EditResult, error) {
	rec := e.Record()
	recID := rec.ID()
	if recID == "" {
		return EditResult{}, eris.New("syncengine: no active record")
	}

	target, err := e.cfg.Router.Route(field, rec)
	if err != nil {
		return EditResult{Record: rec}, err
	}

	isStage := model.IsStageField(field)
	var oldStage, newStage model.Stage
	if isStage {
		oldStage, err = model.ParseStage(stageValue(rec))
		if err != nil {
			return EditResult{Record: rec}, err
		}
		raw, _ := value.(string)
		newStage, err = model.ParseStage(raw)
		if err != nil {
			return EditResult{Record: rec}, err
		}
		value = string(newStage)
	}

	sess := e.sessionRef()
	sess.Begin(field)
	defer sess.End(field)

	e.applyOptimistic(recID, field, value)

	retry := e.cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(string(target.Kind), field)
	}
	echo, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (map[string]any, error) {
		return e.cfg.Updater.UpdateFields(ctx, string(target.Kind), target.EntityID, map[string]any{target.APIField: value})
	})
	if err != nil {
		zap.L().Error("field write failed",
			zap.String("record_id", recID),
			zap.String("field", field),
			zap.String("entity_kind", string(target.Kind)),
			zap.Error(err),
		)
		return EditResult{Record: e.Record(), Retryable: resilience.IsTransient(err)},
			eris.Wrapf(err, "syncengine: write %s", field)
	}

	e.reconcileEcho(recID, field, target, value, echo)
	sess.MarkRecent(field)
	e.invalidate(ctx, rec, target, field, isStage, oldStage, newStage)

	if isStage && e.cfg.Transitions != nil {
		e.cfg.Transitions.StageChanged(e.Record(), oldStage, newStage)
	} else if e.cfg.Bus != nil {
		e.cfg.Bus.Publish(bus.Event{
			Type:        bus.EventRecordUpdated,
			WorkspaceID: rec.WorkspaceID(),
			RecordID:    recID,
			Field:       field,
		})
	}

	return EditResult{Record: e.Record(), Written: true}, nil
}

func (e *Engine) sessionRef() *EditSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// applyOptimistic sets the edited value in local state immediately,
// compound aliases included, while the network write is in flight.
func (e *Engine) applyOptimistic(recID, field string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current.ID() != recID {
		return
	}
	// ClearedField forces adoption even of a nil value.
	e.current = Merge(e.current, model.Record{field: value}, MergeOptions{ClearedField: field})
}

// reconcileEcho merges the server's echoed payload into local state,
// respecting pending and recency-guarded fields. A value mismatch between
// the echo and what was sent is a consistency warning, not an error: the
// local value wins inside the recency window to avoid visible flicker.
func (e *Engine) reconcileEcho(recID, field string, target route.Target, sent any, echo map[string]any) {
	if echo != nil {
		echoVal, present := echo[target.APIField]
		if !present {
			echoVal, present = echo[field]
		}
		if present && sent != nil && !reflect.DeepEqual(echoVal, sent) {
			zap.L().Warn("server echo differs from written value",
				zap.String("record_id", recID),
				zap.String("field", field),
				zap.Any("sent", sent),
				zap.Any("echoed", echoVal),
			)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// The user may have navigated away while the write was in flight;
	// never apply a late echo to a different record.
	if e.current.ID() != recID {
		zap.L().Debug("discarding late write echo after record change",
			zap.String("written_record", recID),
			zap.String("active_record", e.current.ID()),
			zap.String("field", field),
		)
		return
	}

	var cleared string
	if sent == nil {
		cleared = field
	}
	sess := e.session
	e.current = Merge(e.current, model.Record(echo), MergeOptions{
		Pending:      sess.IsPending,
		Recent:       sess.IsRecent,
		ClearedField: cleared,
	})
}

// invalidate purges caches for the record view and, when the write
// targeted a linked entity (company fields on a composite view), for that
// entity as well. Runs strictly after the confirmed write.
func (e *Engine) invalidate(ctx context.Context, rec model.Record, target route.Target, field string, isStage bool, oldStage, newStage model.Stage) {
	if e.cfg.Caches == nil {
		return
	}

	recKind, _ := model.KindForType(rec.Type())
	if recKind == "" {
		recKind, _ = rec.InferKind()
	}
	collectionWide := isStage || field == "companyId"

	inv := cache.Invalidation{
		Kind:           recKind,
		RecordID:       rec.ID(),
		WorkspaceID:    rec.WorkspaceID(),
		Collection:     collectionForRecord(rec, recKind),
		CollectionWide: collectionWide,
	}
	if isStage {
		inv.Collection = newStage.Collection()
		inv.OldCollection = oldStage.Collection()
	}
	e.cfg.Caches.Invalidate(ctx, inv)

	if target.EntityID != rec.ID() {
		e.cfg.Caches.Invalidate(ctx, cache.Invalidation{
			Kind:        target.Kind,
			RecordID:    target.EntityID,
			WorkspaceID: rec.WorkspaceID(),
			Collection:  collectionForKind(target.Kind),
		})
	}

	if e.cfg.Bus != nil {
		e.cfg.Bus.Publish(bus.Event{
			Type:        bus.EventCacheInvalidated,
			WorkspaceID: rec.WorkspaceID(),
			RecordID:    rec.ID(),
			Field:       field,
		})
	}
}

func stageValue(rec model.Record) string {
	if s := rec.String("status"); s != "" {
		return s
	}
	return rec.String("stage")
}

func collectionForRecord(rec model.Record, kind model.EntityKind) model.Collection {
	if kind == model.EntityCompany {
		return model.CollectionCompanies
	}
	stage, err := model.ParseStage(stageValue(rec))
	if err != nil {
		return model.CollectionPeople
	}
	return stage.Collection()
}

func collectionForKind(kind model.EntityKind) model.Collection {
	if kind == model.EntityCompany {
		return model.CollectionCompanies
	}
	return model.CollectionPeople
}
