package view

import (
	"context"
	"log/slog"

	"github.com/tradearena/community-engine/internal/feed"
	"github.com/tradearena/community-engine/internal/model"
	"github.com/tradearena/community-engine/internal/store"
)

// VoteSetView materializes one user's vote membership set
// (suggestion id → vote type). Local optimistic toggles go through
// SetLocal and are confirmed or superseded by the next authoritative
// refetch or vote event.
type VoteSetView struct {
	status
	st     store.Store
	userID string
	votes  map[string]string
}

// NewVoteSetView creates an empty, loading vote set view for one user.
func NewVoteSetView(st store.Store, userID string) *VoteSetView {
	return &VoteSetView{
		status: newStatus(),
		st:     st,
		userID: userID,
		votes:  make(map[string]string),
	}
}

func (v *VoteSetView) Load(ctx context.Context) error {
	votes, err := v.st.ListUserVotes(ctx, v.userID)
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		v.setResult(err)
		return err
	}

	set := make(map[string]string, len(votes))
	for _, vote := range votes {
		set[vote.SuggestionID] = vote.VoteType
	}

	v.mu.Lock()
	v.votes = set
	v.mu.Unlock()
	v.setResult(nil)
	return nil
}

func (v *VoteSetView) Refetch(ctx context.Context) error {
	return v.Load(ctx)
}

func (v *VoteSetView) Apply(_ context.Context, ev feed.Event) {
	row := ev.New
	if ev.Type == feed.EventDelete {
		row = ev.Old
	}

	var vote model.Vote
	if err := feed.DecodeRow(row, &vote); err != nil {
		slog.Warn("votes: undecodable row skipped", "err", err)
		return
	}
	if vote.UserID != v.userID {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Type {
	case feed.EventInsert, feed.EventUpdate:
		v.votes[vote.SuggestionID] = vote.VoteType
	case feed.EventDelete:
		delete(v.votes, vote.SuggestionID)
	}
}

// SetLocal records an optimistic toggle result ahead of the authoritative
// feed event. An empty voteType clears the entry (toggle-off).
func (v *VoteSetView) SetLocal(suggestionID, voteType string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if voteType == "" {
		delete(v.votes, suggestionID)
		return
	}
	v.votes[suggestionID] = voteType
}

// Get returns the user's vote on a suggestion, "" when none.
func (v *VoteSetView) Get(suggestionID string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.votes[suggestionID]
}

// All returns a copy of the vote membership set.
func (v *VoteSetView) All() map[string]string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]string, len(v.votes))
	for k, val := range v.votes {
		out[k] = val
	}
	return out
}
