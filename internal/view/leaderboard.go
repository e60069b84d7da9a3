package view

import (
	"context"
	"log/slog"

	"github.com/tradearena/community-engine/internal/feed"
	"github.com/tradearena/community-engine/internal/model"
	"github.com/tradearena/community-engine/internal/stats"
	"github.com/tradearena/community-engine/internal/store"
)

// LeaderboardView materializes the ranked leaderboard from portfolio rows.
// Every portfolio event triggers a full re-rank of the current collection.
type LeaderboardView struct {
	status
	st         store.Store
	portfolios []model.Portfolio
	entries    []model.LeaderboardEntry
}

// NewLeaderboardView creates an empty, loading leaderboard view.
func NewLeaderboardView(st store.Store) *LeaderboardView {
	return &LeaderboardView{status: newStatus(), st: st}
}

// Load establishes the baseline snapshot. Results arriving after ctx is
// canceled are discarded, never committed into torn-down state.
func (v *LeaderboardView) Load(ctx context.Context) error {
	portfolios, err := v.st.ListPortfolios(ctx)
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		v.setResult(err)
		return err
	}

	v.mu.Lock()
	v.portfolios = portfolios
	v.entries = stats.Rank(portfolios)
	v.mu.Unlock()
	v.setResult(nil)
	return nil
}

// Refetch re-runs the baseline fetch on demand.
func (v *LeaderboardView) Refetch(ctx context.Context) error {
	return v.Load(ctx)
}

// Apply merges one portfolio change event and re-ranks from the full
// post-merge collection.
func (v *LeaderboardView) Apply(_ context.Context, ev feed.Event) {
	var p model.Portfolio
	if err := feed.DecodeRow(ev.New, &p); err != nil {
		slog.Warn("leaderboard: undecodable portfolio row skipped", "err", err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Type {
	case feed.EventInsert, feed.EventUpdate:
		replaced := false
		for i := range v.portfolios {
			if v.portfolios[i].ModelID == p.ModelID {
				v.portfolios[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			v.portfolios = append(v.portfolios, p)
		}
	default:
		return
	}

	v.entries = stats.Rank(v.portfolios)
}

// Entries returns the current ranked leaderboard.
func (v *LeaderboardView) Entries() []model.LeaderboardEntry {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]model.LeaderboardEntry, len(v.entries))
	copy(out, v.entries)
	return out
}
