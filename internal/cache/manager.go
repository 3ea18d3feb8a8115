package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/adrata/record-sync/internal/model"
)

// Invalidation describes the cache scope affected by one confirmed write.
type Invalidation struct {
	Kind        model.EntityKind
	RecordID    string
	WorkspaceID string
	// Collection the record currently belongs to; always gets a
	// per-record force-refresh flag.
	Collection model.Collection
	// CollectionWide is set when the edit could change which rows a
	// listing shows (stage change, company association change); it adds a
	// collection-scoped force-refresh flag for both OldCollection and
	// Collection.
	CollectionWide bool
	OldCollection  model.Collection
}

// flagTTL bounds how long an unconsumed force-refresh flag lives.
const flagTTL = 24 * time.Hour

// Manager purges the cache tiers after confirmed writes and manages
// force-refresh flags. Tier failures are isolated: a broken tier never
// blocks purging the others nor the write's success report.
type Manager struct {
	session   Tier
	workspace Tier
	fetch     Tier
}

// NewManager wires the three tiers. Any tier may be nil and is skipped.
func NewManager(session, workspace, fetch Tier) *Manager {
	return &Manager{session: session, workspace: workspace, fetch: fetch}
}

type namedTier struct {
	name string
	tier Tier
}

func (m *Manager) tiers() []namedTier {
	all := []namedTier{
		{"session", m.session},
		{"workspace", m.workspace},
		{"fetch", m.fetch},
	}
	out := all[:0]
	for _, nt := range all {
		if nt.tier != nil {
			out = append(out, nt)
		}
	}
	return out
}

// Invalidate purges every cache entry the write could have staled and sets
// force-refresh flags for the next read. Callers must invoke it strictly
// after the server confirmed the write; purging earlier would let a
// cache-miss read race ahead of the write and re-cache stale data.
//
// Purged per tier: the record's key under every collection alias it could
// appear under, the workspace counts key, and all wildcard-matched unified
// entries for the workspace.
func (m *Manager) Invalidate(ctx context.Context, inv Invalidation) {
	for _, nt := range m.tiers() {
		m.purgeTier(ctx, nt, inv)
	}

	if m.session == nil {
		return
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	flags := []string{FlagKey(inv.WorkspaceID, inv.Collection, inv.RecordID)}
	if inv.CollectionWide {
		flags = append(flags, CollectionFlagKey(inv.WorkspaceID, inv.Collection))
		if inv.OldCollection != "" && inv.OldCollection != inv.Collection {
			flags = append(flags,
				FlagKey(inv.WorkspaceID, inv.OldCollection, inv.RecordID),
				CollectionFlagKey(inv.WorkspaceID, inv.OldCollection),
			)
		}
	}
	for _, key := range flags {
		if err := m.session.Set(ctx, key, stamp, flagTTL); err != nil {
			zap.L().Warn("cache: set force-refresh flag failed",
				zap.String("key", key), zap.Error(err))
		}
	}
}

func (m *Manager) purgeTier(ctx context.Context, nt namedTier, inv Invalidation) {
	remove := func(key string) {
		if err := nt.tier.Remove(ctx, key); err != nil {
			zap.L().Warn("cache: purge failed",
				zap.String("tier", nt.name), zap.String("key", key), zap.Error(err))
		}
	}

	for _, coll := range model.CollectionAliases(inv.Kind) {
		remove(RecordKey(inv.WorkspaceID, coll, inv.RecordID))
	}
	remove(CountsKey(inv.WorkspaceID))

	keys, err := nt.tier.Keys(ctx, UnifiedPrefix(inv.WorkspaceID))
	if err != nil {
		zap.L().Warn("cache: wildcard scan failed",
			zap.String("tier", nt.name), zap.Error(err))
		return
	}
	for _, key := range keys {
		remove(key)
	}
}

// ConsumeForceRefresh reports whether a force-refresh flag is set for the
// record or its collection, clearing any flag found. A true result means
// the next read must bypass every tier and hit the remote source of truth.
func (m *Manager) ConsumeForceRefresh(ctx context.Context, workspaceID string, collection model.Collection, recordID string) bool {
	if m.session == nil {
		return false
	}
	found := false
	for _, key := range []string{
		FlagKey(workspaceID, collection, recordID),
		CollectionFlagKey(workspaceID, collection),
	} {
		_, ok, err := m.session.Get(ctx, key)
		if err != nil {
			zap.L().Warn("cache: read force-refresh flag failed",
				zap.String("key", key), zap.Error(err))
			continue
		}
		if ok {
			found = true
			if err := m.session.Remove(ctx, key); err != nil {
				zap.L().Warn("cache: clear force-refresh flag failed",
					zap.String("key", key), zap.Error(err))
			}
		}
	}
	return found
}

// Lookup reads a record payload through the tiers (fetch, session,
// workspace). When a force-refresh flag is pending it is consumed, the
// stale entry is purged and a miss is reported so the caller refetches
// from the remote store.
func (m *Manager) Lookup(ctx context.Context, workspaceID string, collection model.Collection, recordID string) ([]byte, bool) {
	key := RecordKey(workspaceID, collection, recordID)

	if m.ConsumeForceRefresh(ctx, workspaceID, collection, recordID) {
		for _, nt := range m.tiers() {
			if err := nt.tier.Remove(ctx, key); err != nil {
				zap.L().Warn("cache: purge on force-refresh failed",
					zap.String("tier", nt.name), zap.String("key", key), zap.Error(err))
			}
		}
		return nil, false
	}

	for _, nt := range []namedTier{{"fetch", m.fetch}, {"session", m.session}, {"workspace", m.workspace}} {
		if nt.tier == nil {
			continue
		}
		value, ok, err := nt.tier.Get(ctx, key)
		if err != nil {
			zap.L().Warn("cache: lookup failed",
				zap.String("tier", nt.name), zap.String("key", key), zap.Error(err))
			continue
		}
		if ok {
			return value, true
		}
	}
	return nil, false
}

// Store writes a record payload to every tier with the given TTL.
func (m *Manager) Store(ctx context.Context, workspaceID string, collection model.Collection, recordID string, value []byte, ttl time.Duration) {
	key := RecordKey(workspaceID, collection, recordID)
	for _, nt := range m.tiers() {
		if err := nt.tier.Set(ctx, key, value, ttl); err != nil {
			zap.L().Warn("cache: store failed",
				zap.String("tier", nt.name), zap.String("key", key), zap.Error(err))
		}
	}
}

// expirable is implemented by tiers that accumulate expired entries until
// explicitly purged.
type expirable interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// PurgeExpired sweeps expired entries from every tier that needs it.
func (m *Manager) PurgeExpired(ctx context.Context) {
	for _, nt := range m.tiers() {
		exp, ok := nt.tier.(expirable)
		if !ok {
			continue
		}
		n, err := exp.PurgeExpired(ctx)
		if err != nil {
			zap.L().Warn("cache: purge expired failed",
				zap.String("tier", nt.name), zap.Error(err))
			continue
		}
		if n > 0 {
			zap.L().Debug("cache: purged expired entries",
				zap.String("tier", nt.name), zap.Int("count", n))
		}
	}
}

// Close closes all tiers.
func (m *Manager) Close() {
	for _, nt := range m.tiers() {
		if err := nt.tier.Close(); err != nil {
			zap.L().Warn("cache: close tier failed",
				zap.String("tier", nt.name), zap.Error(err))
		}
	}
}
