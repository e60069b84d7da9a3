package view

import (
	"context"
	"log/slog"

	"github.com/tradearena/community-engine/internal/feed"
	"github.com/tradearena/community-engine/internal/model"
	"github.com/tradearena/community-engine/internal/store"
)

// DecisionBound caps the decision feed at the most recent N records.
const DecisionBound = 100

// DecisionsView materializes the recent-decision feed, newest first,
// bounded to DecisionBound entries.
type DecisionsView struct {
	status
	st        store.Store
	decisions []model.ModelDecision
}

// NewDecisionsView creates an empty, loading decisions view.
func NewDecisionsView(st store.Store) *DecisionsView {
	return &DecisionsView{status: newStatus(), st: st}
}

func (v *DecisionsView) Load(ctx context.Context) error {
	decisions, err := v.st.ListRecentDecisions(ctx, DecisionBound)
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		v.setResult(err)
		return err
	}

	v.mu.Lock()
	v.decisions = decisions
	v.mu.Unlock()
	v.setResult(nil)
	return nil
}

func (v *DecisionsView) Refetch(ctx context.Context) error {
	return v.Load(ctx)
}

// Apply prepends inserted decisions (time-ordered feed) and replaces
// updated ones by id, trimming to the bound.
func (v *DecisionsView) Apply(_ context.Context, ev feed.Event) {
	var d model.ModelDecision
	if err := feed.DecodeRow(ev.New, &d); err != nil {
		slog.Warn("decisions: undecodable row skipped", "err", err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Type {
	case feed.EventInsert:
		v.decisions = append([]model.ModelDecision{d}, v.decisions...)
		if len(v.decisions) > DecisionBound {
			v.decisions = v.decisions[:DecisionBound]
		}
	case feed.EventUpdate:
		for i := range v.decisions {
			if v.decisions[i].ID == d.ID {
				v.decisions[i] = d
				break
			}
		}
	}
}

// Recent returns the current decision feed, newest first.
func (v *DecisionsView) Recent() []model.ModelDecision {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]model.ModelDecision, len(v.decisions))
	copy(out, v.decisions)
	return out
}
