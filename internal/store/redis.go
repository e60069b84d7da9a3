package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradearena/community-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read paths: leaderboard portfolios, the suggestion
// list, and user profiles. Writes go to the primary store and invalidate
// the affected keys; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListPortfolios(ctx context.Context) ([]model.Portfolio, error) {
	data, err := s.rdb.Get(ctx, portfoliosKey()).Bytes()
	if err == nil {
		var portfolios []model.Portfolio
		if json.Unmarshal(data, &portfolios) == nil {
			return portfolios, nil
		}
	}

	portfolios, err := s.primary.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(portfolios); err == nil {
		s.rdb.Set(ctx, portfoliosKey(), data, s.ttl)
	}
	return portfolios, nil
}

func (s *CachedStore) ListSuggestions(ctx context.Context) ([]model.Suggestion, error) {
	data, err := s.rdb.Get(ctx, suggestionsKey()).Bytes()
	if err == nil {
		var suggestions []model.Suggestion
		if json.Unmarshal(data, &suggestions) == nil {
			return suggestions, nil
		}
	}

	suggestions, err := s.primary.ListSuggestions(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(suggestions); err == nil {
		s.rdb.Set(ctx, suggestionsKey(), data, s.ttl)
	}
	return suggestions, nil
}

func (s *CachedStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	data, err := s.rdb.Get(ctx, profileKey(userID)).Bytes()
	if err == nil {
		var p model.UserProfile
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, profileKey(userID), data, s.ttl)
	}
	return p, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertPortfolio(ctx context.Context, p *model.Portfolio) error {
	if err := s.primary.UpsertPortfolio(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, portfoliosKey())
	return nil
}

func (s *CachedStore) InsertSuggestion(ctx context.Context, sg *model.Suggestion) error {
	if err := s.primary.InsertSuggestion(ctx, sg); err != nil {
		return err
	}
	s.rdb.Del(ctx, suggestionsKey())
	return nil
}

func (s *CachedStore) UpdateSuggestionStatus(ctx context.Context, id string, isImplemented bool, operatorReply string) error {
	if err := s.primary.UpdateSuggestionStatus(ctx, id, isImplemented, operatorReply); err != nil {
		return err
	}
	s.rdb.Del(ctx, suggestionsKey())
	return nil
}

func (s *CachedStore) ToggleVote(ctx context.Context, suggestionID, userID, voteType string) (*model.VoteResult, error) {
	result, err := s.primary.ToggleVote(ctx, suggestionID, userID, voteType)
	if err != nil {
		return nil, err
	}
	// Vote counts changed on the suggestion row.
	s.rdb.Del(ctx, suggestionsKey())
	return result, nil
}

func (s *CachedStore) AwardPoints(ctx context.Context, userID, reason, referenceID string) error {
	if err := s.primary.AwardPoints(ctx, userID, reason, referenceID); err != nil {
		return err
	}
	s.rdb.Del(ctx, profileKey(userID))
	return nil
}

func (s *CachedStore) DailyLoginBonus(ctx context.Context, userID string) (bool, error) {
	awarded, err := s.primary.DailyLoginBonus(ctx, userID)
	if err != nil {
		return false, err
	}
	if awarded {
		s.rdb.Del(ctx, profileKey(userID))
	}
	return awarded, nil
}

// InvalidateLeaderboard drops the cached portfolio list. Called by the
// nightly sweep job so a wedged cache entry never outlives a day.
func (s *CachedStore) InvalidateLeaderboard(ctx context.Context) error {
	return s.rdb.Del(ctx, portfoliosKey()).Err()
}

// --- Passthrough (not cached) ---

func (s *CachedStore) InsertTrade(ctx context.Context, t *model.TradeExecution) error {
	return s.primary.InsertTrade(ctx, t)
}

func (s *CachedStore) ListTradesByModel(ctx context.Context, modelID string, limit int) ([]model.TradeExecution, error) {
	return s.primary.ListTradesByModel(ctx, modelID, limit)
}

func (s *CachedStore) GetActiveConfig(ctx context.Context, modelID string) (*model.AccountConfig, error) {
	return s.primary.GetActiveConfig(ctx, modelID)
}

func (s *CachedStore) UpsertConfig(ctx context.Context, cfg *model.AccountConfig) error {
	return s.primary.UpsertConfig(ctx, cfg)
}

func (s *CachedStore) InsertDecision(ctx context.Context, d *model.ModelDecision) error {
	return s.primary.InsertDecision(ctx, d)
}

func (s *CachedStore) ListRecentDecisions(ctx context.Context, limit int) ([]model.ModelDecision, error) {
	return s.primary.ListRecentDecisions(ctx, limit)
}

func (s *CachedStore) GetSuggestion(ctx context.Context, id string) (*model.Suggestion, error) {
	return s.primary.GetSuggestion(ctx, id)
}

func (s *CachedStore) ListUserVotes(ctx context.Context, userID string) ([]model.Vote, error) {
	return s.primary.ListUserVotes(ctx, userID)
}

func (s *CachedStore) EnsureProfile(ctx context.Context, userID, email string) (*model.UserProfile, error) {
	return s.primary.EnsureProfile(ctx, userID, email)
}

func (s *CachedStore) ListPointTransactions(ctx context.Context, userID string, limit int) ([]model.PointTransaction, error) {
	return s.primary.ListPointTransactions(ctx, userID, limit)
}

// --- Cache keys ---

func portfoliosKey() string         { return "leaderboard:portfolios" }
func suggestionsKey() string        { return "suggestions:all" }
func profileKey(uid string) string  { return fmt.Sprintf("profile:%s", uid) }
