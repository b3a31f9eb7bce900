// retention.go prunes old backups after successful patches.
package backup

import (
	"context"
	"time"

	"strictpatch/internal/logging"
)

// Policy removes backups past a maximum age or beyond a maximum count.
// The two removal sets are unioned, deduplicated by id.
type Policy struct {
	store    *Store
	maxAge   time.Duration
	maxCount int

	// now is swappable for tests
	now func() time.Time
}

// NewPolicy creates a retention policy over the given store.
func NewPolicy(store *Store, maxAge time.Duration, maxCount int) *Policy {
	return &Policy{
		store:    store,
		maxAge:   maxAge,
		maxCount: maxCount,
		now:      time.Now,
	}
}

// PruneStats summarizes one prune pass.
type PruneStats struct {
	Examined int
	Removed  int
	Failed   int
}

// Prune enumerates all backups and removes every one that is older than
// maxAge or ranked beyond maxCount newest-first. A failed deletion is
// logged and the pass continues with the next candidate.
func (p *Policy) Prune(ctx context.Context) PruneStats {
	timer := logging.StartTimer(logging.CategoryRetention, "Prune")
	defer timer.Stop()

	var stats PruneStats

	metas, err := p.store.List()
	if err != nil {
		logging.RetentionWarn("prune aborted, cannot list backups: %v", err)
		return stats
	}
	stats.Examined = len(metas)

	cutoff := p.now().Add(-p.maxAge)
	victims := make(map[string]bool)

	// metas is newest-first, so everything past maxCount goes
	for i, m := range metas {
		if p.maxCount > 0 && i >= p.maxCount {
			victims[m.ID] = true
		}
		if p.maxAge > 0 && m.CreatedAt.Before(cutoff) {
			victims[m.ID] = true
		}
	}

	for _, m := range metas {
		if !victims[m.ID] {
			continue
		}
		if ctx.Err() != nil {
			logging.RetentionWarn("prune interrupted: %v", ctx.Err())
			break
		}
		if err := p.store.Delete(m.ID); err != nil {
			stats.Failed++
			logging.RetentionWarn("failed to prune backup %s: %v", m.ID, err)
			continue
		}
		stats.Removed++
	}

	if stats.Removed > 0 || stats.Failed > 0 {
		logging.Retention("pruned %d/%d backups (%d failures)",
			stats.Removed, len(victims), stats.Failed)
	}

	return stats
}
