package backup

import (
	"context"
	"log/slog"
	"time"
)

// SchedulerConfig controls periodic snapshots.
type SchedulerConfig struct {
	Interval time.Duration // time between snapshots (default 24h)
	Retain   int           // snapshots kept after pruning; 0 keeps all
}

// StartSnapshotScheduler takes a snapshot immediately and then every
// Interval until ctx is cancelled, pruning old snapshots after each run.
// It blocks; run it in its own goroutine.
func (s *Service) StartSnapshotScheduler(ctx context.Context, cfg SchedulerConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}

	slog.Info("snapshot scheduler started",
		"interval", cfg.Interval.String(),
		"retain", cfg.Retain,
	)

	s.runSnapshotJob(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("snapshot scheduler stopped")
			return
		case <-ticker.C:
			s.runSnapshotJob(ctx, cfg)
		}
	}
}

// runSnapshotJob performs one snapshot + prune cycle. Failures are logged;
// the next tick tries again.
func (s *Service) runSnapshotJob(ctx context.Context, cfg SchedulerConfig) {
	start := time.Now()

	info, err := s.TakeSnapshot(ctx)
	if err != nil {
		slog.Error("scheduled snapshot failed", "error", err)
		return
	}

	pruned, err := s.PruneSnapshots(ctx, cfg.Retain)
	if err != nil {
		slog.Error("snapshot prune failed", "error", err)
	}

	slog.Info("scheduled snapshot completed",
		"key", info.Key,
		"pruned", pruned,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
