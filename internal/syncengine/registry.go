package syncengine

import (
	"sync"

	"github.com/adrata/record-sync/internal/model"
)

// Registry hands out one Engine per active record id, so concurrent edits
// against different records get independent edit sessions.
type Registry struct {
	mu      sync.Mutex
	cfg     Config
	engines map[string]*Engine
}

// NewRegistry creates a Registry that builds engines from cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, engines: make(map[string]*Engine)}
}

// For returns the engine for the record's id, creating one on first use.
// An existing engine treats the record as an inbound prop-level refresh:
// pending and recency-guarded fields keep their local values.
func (r *Registry) For(rec model.Record) *Engine {
	r.mu.Lock()
	eng, ok := r.engines[rec.ID()]
	if !ok {
		eng = New(r.cfg)
		eng.SetRecord(rec)
		r.engines[rec.ID()] = eng
		r.mu.Unlock()
		return eng
	}
	r.mu.Unlock()

	eng.SyncRecord(rec)
	return eng
}

// Get returns the engine for a record id, if one exists.
func (r *Registry) Get(recordID string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, ok := r.engines[recordID]
	return eng, ok
}

// Release drops the engine for a record id (view closed).
func (r *Registry) Release(recordID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, recordID)
}
