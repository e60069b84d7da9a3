package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tradearena/community-engine/internal/model"
	"github.com/tradearena/community-engine/internal/store"
)

func seedSuggestion(t *testing.T, ms *store.MemoryStore) string {
	t.Helper()
	sg := &model.Suggestion{
		ID:        uuid.NewString(),
		UserID:    "author",
		Content:   "add a dark mode to the dashboard",
		CreatedAt: time.Now().UTC(),
	}
	if err := ms.InsertSuggestion(context.Background(), sg); err != nil {
		t.Fatalf("seed suggestion: %v", err)
	}
	return sg.ID
}

func TestToggleVote_FullCycle(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := NewService(ms, nil)
	ctx := context.Background()
	id := seedSuggestion(t, ms)

	// First up vote: added, (1,0), awarded.
	res, awarded, err := svc.ToggleVote(ctx, "u1", id, model.VoteUp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != model.VoteAdded || res.Upvotes != 1 || res.Downvotes != 0 {
		t.Errorf("expected added (1,0), got %s (%d,%d)", res.Outcome, res.Upvotes, res.Downvotes)
	}
	if res.UserVote != model.VoteUp {
		t.Errorf("expected user vote up, got %q", res.UserVote)
	}
	if !awarded {
		t.Error("expected first vote to trigger an award")
	}

	// Same vote again: removed, (0,0), no award.
	res, awarded, err = svc.ToggleVote(ctx, "u1", id, model.VoteUp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != model.VoteRemoved || res.Upvotes != 0 || res.Downvotes != 0 {
		t.Errorf("expected removed (0,0), got %s (%d,%d)", res.Outcome, res.Upvotes, res.Downvotes)
	}
	if res.UserVote != "" {
		t.Errorf("expected empty user vote after removal, got %q", res.UserVote)
	}
	if awarded {
		t.Error("removal must not trigger an award")
	}

	// Down vote: added again, (0,1).
	res, _, err = svc.ToggleVote(ctx, "u1", id, model.VoteDown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != model.VoteAdded || res.Upvotes != 0 || res.Downvotes != 1 {
		t.Errorf("expected added (0,1), got %s (%d,%d)", res.Outcome, res.Upvotes, res.Downvotes)
	}
}

func TestToggleVote_SwitchPreservesTotal(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := NewService(ms, nil)
	ctx := context.Background()
	id := seedSuggestion(t, ms)

	if _, _, err := svc.ToggleVote(ctx, "u1", id, model.VoteUp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, awarded, err := svc.ToggleVote(ctx, "u1", id, model.VoteDown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != model.VoteSwitched {
		t.Errorf("expected switched, got %s", res.Outcome)
	}
	if awarded {
		t.Error("switch must not trigger an award")
	}
	if res.Upvotes+res.Downvotes != 1 {
		t.Errorf("switch changed the vote total: (%d,%d)", res.Upvotes, res.Downvotes)
	}
	if res.Upvotes != 0 || res.Downvotes != 1 {
		t.Errorf("expected (0,1) after switch, got (%d,%d)", res.Upvotes, res.Downvotes)
	}
}

func TestToggleVote_Validation(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := NewService(ms, nil)
	ctx := context.Background()
	id := seedSuggestion(t, ms)

	if _, _, err := svc.ToggleVote(ctx, "", id, model.VoteUp); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
	if _, _, err := svc.ToggleVote(ctx, "u1", id, "sideways"); !errors.Is(err, ErrInvalidVoteType) {
		t.Errorf("expected ErrInvalidVoteType, got %v", err)
	}
	if _, _, err := svc.ToggleVote(ctx, "u1", uuid.NewString(), model.VoteUp); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing suggestion, got %v", err)
	}
}

func TestToggleVote_AwardsOncePerSuggestion(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := NewService(ms, nil)
	ctx := context.Background()
	id := seedSuggestion(t, ms)

	// add, switch, remove, re-add: a single vote_cast payout.
	for _, vt := range []string{model.VoteUp, model.VoteDown, model.VoteDown, model.VoteUp} {
		if _, _, err := svc.ToggleVote(ctx, "u1", id, vt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	p, err := ms.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Points != 5 {
		t.Errorf("expected a single vote_cast award of 5 points, got %d", p.Points)
	}
}

func TestSubmitSuggestion(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := NewService(ms, nil)
	ctx := context.Background()

	sg, awarded, err := svc.SubmitSuggestion(ctx, "u1", "m1", "  show per-trade fees on the detail page  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sg.ID == "" {
		t.Error("expected generated id")
	}
	if sg.Content != "show per-trade fees on the detail page" {
		t.Errorf("expected trimmed content, got %q", sg.Content)
	}
	if sg.Upvotes != 0 || sg.Downvotes != 0 || sg.IsImplemented {
		t.Errorf("expected zeroed counters on new suggestion: %+v", sg)
	}
	if !awarded {
		t.Error("expected submission award")
	}

	stored, err := ms.GetSuggestion(ctx, sg.ID)
	if err != nil {
		t.Fatalf("stored suggestion not found: %v", err)
	}
	if stored.UserID != "u1" || stored.ModelID != "m1" {
		t.Errorf("stored fields mismatch: %+v", stored)
	}

	// Author got the submission award.
	p, err := ms.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Points != 50 {
		t.Errorf("expected 50 points for submission, got %d", p.Points)
	}
}

func TestSubmitSuggestion_Validation(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := NewService(ms, nil)
	ctx := context.Background()

	if _, _, err := svc.SubmitSuggestion(ctx, "", "", "a perfectly valid suggestion"); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
	// Nine characters after trimming.
	if _, _, err := svc.SubmitSuggestion(ctx, "u1", "", "  too short  "); !errors.Is(err, ErrContentTooShort) {
		t.Errorf("expected ErrContentTooShort, got %v", err)
	}
	// Nine runes but eighteen bytes; the minimum counts characters.
	if _, _, err := svc.SubmitSuggestion(ctx, "u1", "", "предложен"); !errors.Is(err, ErrContentTooShort) {
		t.Errorf("expected ErrContentTooShort for 9-rune content, got %v", err)
	}
	// Eleven runes of multi-byte content clears the minimum.
	if _, _, err := svc.SubmitSuggestion(ctx, "u1", "", "предложение"); err != nil {
		t.Errorf("expected 11-rune content to pass validation, got %v", err)
	}
}

func TestDailyLoginBonus_OncePerDay(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := NewService(ms, nil)
	ctx := context.Background()

	granted, err := svc.DailyLoginBonus(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !granted {
		t.Error("expected first login of the day to grant the bonus")
	}

	granted, err = svc.DailyLoginBonus(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if granted {
		t.Error("expected second login of the day to be a no-op")
	}

	p, err := ms.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Points != 10 {
		t.Errorf("expected a single 10 point bonus, got %d", p.Points)
	}
}

// failingAwardStore commits primary writes but refuses every point award.
type failingAwardStore struct {
	store.Store
}

func (f *failingAwardStore) AwardPoints(context.Context, string, string, string) error {
	return errors.New("award_points unavailable")
}

func TestAwardFailureDoesNotRollBackPrimaryWrite(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := NewService(&failingAwardStore{Store: ms}, nil)
	ctx := context.Background()

	sg, awarded, err := svc.SubmitSuggestion(ctx, "u1", "", "persist suggestions even when awards fail")
	if err != nil {
		t.Fatalf("suggestion must survive a failed award: %v", err)
	}
	if awarded {
		t.Error("failed award must be reported as not awarded")
	}
	if _, err := ms.GetSuggestion(ctx, sg.ID); err != nil {
		t.Errorf("suggestion not persisted: %v", err)
	}

	res, awarded, err := svc.ToggleVote(ctx, "u1", sg.ID, model.VoteUp)
	if err != nil {
		t.Fatalf("vote must survive a failed award: %v", err)
	}
	if res.Outcome != model.VoteAdded || res.Upvotes != 1 {
		t.Errorf("vote not recorded: %+v", res)
	}
	if awarded {
		t.Error("failed award must be reported as not awarded")
	}
}
