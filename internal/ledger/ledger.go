// Package ledger orchestrates the community reward flows: vote toggles,
// suggestion submission, and the daily login bonus. Each flow performs its
// primary write through the store and then issues a best-effort point award;
// a failed award is logged and counted but never rolls back the primary
// write, because the point balance is reconciled from the transaction ledger
// rather than incremented in place.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tradearena/community-engine/internal/metrics"
	"github.com/tradearena/community-engine/internal/model"
	"github.com/tradearena/community-engine/internal/store"
)

const minSuggestionLen = 10

var (
	ErrAuthRequired    = errors.New("ledger: authentication required")
	ErrContentTooShort = errors.New("ledger: suggestion content too short")
	ErrInvalidVoteType = errors.New("ledger: invalid vote type")
)

// Service runs the reward flows against a Store.
type Service struct {
	st  store.Store
	log *slog.Logger
}

func NewService(st store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{st: st, log: log}
}

// ToggleVote applies one user's vote to a suggestion. A repeated vote of the
// same type removes it, an opposite vote switches it. Points are awarded only
// when a new vote is added, never on removal or switch; the award procedure
// pays at most once per (user, suggestion). The returned bool reports
// whether an award went through.
func (s *Service) ToggleVote(ctx context.Context, userID, suggestionID, voteType string) (*model.VoteResult, bool, error) {
	if userID == "" {
		return nil, false, ErrAuthRequired
	}
	if voteType != model.VoteUp && voteType != model.VoteDown {
		return nil, false, ErrInvalidVoteType
	}

	res, err := s.st.ToggleVote(ctx, suggestionID, userID, voteType)
	if err != nil {
		return nil, false, err
	}
	metrics.VotesTotal.WithLabelValues(res.Outcome).Inc()

	awarded := false
	if res.Outcome == model.VoteAdded {
		awarded = s.award(ctx, userID, model.ReasonVoteCast, suggestionID)
	}
	return res, awarded, nil
}

// SubmitSuggestion validates and persists a suggestion, then awards
// submission points to the author.
func (s *Service) SubmitSuggestion(ctx context.Context, userID, modelID, content string) (*model.Suggestion, bool, error) {
	if userID == "" {
		return nil, false, ErrAuthRequired
	}
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) < minSuggestionLen {
		return nil, false, ErrContentTooShort
	}

	sg := &model.Suggestion{
		ID:        uuid.NewString(),
		UserID:    userID,
		ModelID:   modelID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.st.InsertSuggestion(ctx, sg); err != nil {
		return nil, false, err
	}
	metrics.SuggestionsCreated.Inc()

	awarded := s.award(ctx, userID, model.ReasonSuggestionSubmitted, sg.ID)
	return sg, awarded, nil
}

// DailyLoginBonus awards the once-per-day login bonus. The store decides
// idempotency; the boolean reports whether today's bonus was granted.
func (s *Service) DailyLoginBonus(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrAuthRequired
	}
	granted, err := s.st.DailyLoginBonus(ctx, userID)
	if err != nil {
		return false, err
	}
	if granted {
		metrics.PointAwards.WithLabelValues(model.ReasonDailyLogin, "ok").Inc()
	}
	return granted, nil
}

// award requests a point award and swallows failures. The primary write the
// award rode in on has already committed.
func (s *Service) award(ctx context.Context, userID, reason, referenceID string) bool {
	if err := s.st.AwardPoints(ctx, userID, reason, referenceID); err != nil {
		metrics.PointAwards.WithLabelValues(reason, "error").Inc()
		s.log.Warn("point award failed", "user", userID, "reason", reason, "err", err)
		return false
	}
	metrics.PointAwards.WithLabelValues(reason, "ok").Inc()
	return true
}
