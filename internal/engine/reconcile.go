package engine

import (
	"context"
	"log"
	"time"

	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/metrics"
)

// DefaultPollInterval is how often RunReconciler polls running installers.
const DefaultPollInterval = 3 * time.Second

// Reconcile polls every installing record once and returns how many are
// still installing afterwards.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	all, err := e.games.ListGames(ctx)
	if err != nil {
		return 0, err
	}
	active := 0
	for _, g := range all {
		for _, pc := range g.Platforms {
			if pc.InstallationOf().Status != games.StatusInstalling {
				continue
			}
			rec, err := e.Poll(ctx, g.ID, pc.PlatformID)
			if err != nil {
				log.Printf("[reconcile] %s/%s: %v", g.ID, pc.PlatformID, err)
				active++
				continue
			}
			if rec.Status == games.StatusInstalling {
				active++
			} else {
				log.Printf("[reconcile] %s/%s finished: %s", g.ID, pc.PlatformID, rec.Status)
			}
		}
	}
	metrics.SetActiveInstalls(active)
	return active, nil
}

// RunReconciler calls Reconcile every interval until ctx is done. There is
// no timeout on installations: a stuck one stays installing until it is
// cancelled.
func (e *Engine) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[reconcile] polling installers every %s", interval)
	for {
		if _, err := e.Reconcile(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[reconcile] %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
