// Package cache implements the multi-tier client cache and its
// invalidation discipline: an in-memory fetch tier, a session-scoped tier
// and a longer-lived workspace tier, all behind one Tier interface so
// invalidation logic is unit-testable against in-process fakes.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/adrata/record-sync/internal/model"
)

// Tier is a single key/value cache backend. Implementations must treat
// removal of an absent key as a no-op.
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	// Keys returns all live keys with the given prefix, for wildcard
	// invalidation.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Key builders. All cache keys are namespaced by workspace so wildcard
// purges never cross workspaces.

// RecordKey addresses one record's cached payload under one collection.
func RecordKey(workspaceID string, collection model.Collection, recordID string) string {
	return fmt.Sprintf("%s:%s:record:%s", workspaceID, collection, recordID)
}

// CountsKey addresses the aggregate per-collection counts for a workspace.
func CountsKey(workspaceID string) string {
	return workspaceID + ":counts"
}

// UnifiedPrefix is the prefix of the unified-view cache entries for a
// workspace, purged by wildcard match.
func UnifiedPrefix(workspaceID string) string {
	return workspaceID + ":unified:"
}

// FlagKey addresses the force-refresh flag for one record in a collection.
func FlagKey(workspaceID string, collection model.Collection, recordID string) string {
	return fmt.Sprintf("%s:flag:%s:%s", workspaceID, collection, recordID)
}

// CollectionFlagKey addresses the collection-wide force-refresh flag.
func CollectionFlagKey(workspaceID string, collection model.Collection) string {
	return fmt.Sprintf("%s:flag:%s", workspaceID, collection)
}
