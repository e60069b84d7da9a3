package view

import (
	"context"
	"log/slog"

	"github.com/tradearena/community-engine/internal/feed"
	"github.com/tradearena/community-engine/internal/model"
	"github.com/tradearena/community-engine/internal/store"
)

// SuggestionsView materializes the suggestion list, newest first. Vote
// count changes arrive as UPDATE events on the suggestion row and replace
// the entry wholesale.
type SuggestionsView struct {
	status
	st          store.Store
	suggestions []model.Suggestion
}

// NewSuggestionsView creates an empty, loading suggestions view.
func NewSuggestionsView(st store.Store) *SuggestionsView {
	return &SuggestionsView{status: newStatus(), st: st}
}

func (v *SuggestionsView) Load(ctx context.Context) error {
	suggestions, err := v.st.ListSuggestions(ctx)
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		v.setResult(err)
		return err
	}

	v.mu.Lock()
	v.suggestions = suggestions
	v.mu.Unlock()
	v.setResult(nil)
	return nil
}

func (v *SuggestionsView) Refetch(ctx context.Context) error {
	return v.Load(ctx)
}

func (v *SuggestionsView) Apply(_ context.Context, ev feed.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Type {
	case feed.EventInsert:
		var sg model.Suggestion
		if err := feed.DecodeRow(ev.New, &sg); err != nil {
			slog.Warn("suggestions: undecodable row skipped", "err", err)
			return
		}
		v.suggestions = append([]model.Suggestion{sg}, v.suggestions...)
	case feed.EventUpdate:
		var sg model.Suggestion
		if err := feed.DecodeRow(ev.New, &sg); err != nil {
			slog.Warn("suggestions: undecodable row skipped", "err", err)
			return
		}
		for i := range v.suggestions {
			if v.suggestions[i].ID == sg.ID {
				v.suggestions[i] = sg
				break
			}
		}
	case feed.EventDelete:
		var sg model.Suggestion
		if err := feed.DecodeRow(ev.Old, &sg); err != nil {
			return
		}
		for i := range v.suggestions {
			if v.suggestions[i].ID == sg.ID {
				v.suggestions = append(v.suggestions[:i], v.suggestions[i+1:]...)
				break
			}
		}
	}
}

// All returns the current suggestion list, newest first.
func (v *SuggestionsView) All() []model.Suggestion {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]model.Suggestion, len(v.suggestions))
	copy(out, v.suggestions)
	return out
}
