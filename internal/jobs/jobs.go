// Package jobs runs the scheduled maintenance work: the periodic leaderboard
// broadcast and the nightly cache invalidation.
package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tradearena/community-engine/internal/community"
	"github.com/tradearena/community-engine/internal/stats"
	"github.com/tradearena/community-engine/internal/store"
)

// Runner wraps a cron scheduler with a base context and structured logging.
type Runner struct {
	cron    *cron.Cron
	log     *slog.Logger
	baseCtx context.Context
}

func New(log *slog.Logger, baseCtx context.Context) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		log:     log,
		baseCtx: baseCtx,
	}
}

func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

func (r *Runner) Start() {
	r.log.Info("cron started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("cron stopped")
}

// BroadcastLeaderboard pushes a fresh leaderboard snapshot to all WebSocket
// clients. Scheduled as a safety net alongside the event-driven updates, so
// clients converge even if a change notification was dropped.
func BroadcastLeaderboard(st store.Store, hub *community.WSHub, log *slog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		portfolios, err := st.ListPortfolios(ctx)
		if err != nil {
			log.Warn("leaderboard broadcast skipped", "err", err)
			return
		}
		hub.Broadcast(community.WSMessage{
			Type:     "leaderboard_snapshot",
			Resource: "portfolios",
			Data:     stats.Rank(portfolios),
		})
	}
}

// InvalidateLeaderboardCache drops the cached leaderboard so the next read
// comes from the primary store. No-op when the store is not cache-backed.
func InvalidateLeaderboardCache(st store.Store, log *slog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		cached, ok := st.(*store.CachedStore)
		if !ok {
			return
		}
		if err := cached.InvalidateLeaderboard(ctx); err != nil {
			log.Warn("leaderboard cache invalidation failed", "err", err)
			return
		}
		log.Info("leaderboard cache invalidated")
	}
}
