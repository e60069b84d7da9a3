package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradearena/community-engine/internal/model"
)

// Default point amounts applied by the in-memory store's award procedure.
// In production these live inside the award_points database function; the
// memory store mirrors them so dev/test behavior is observable.
var memoryAwardAmounts = map[string]int64{
	model.ReasonSuggestionSubmitted: 50,
	model.ReasonVoteCast:            5,
	model.ReasonDailyLogin:          10,
}

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	trades      []model.TradeExecution
	configs     map[string]*model.AccountConfig
	portfolios  []model.Portfolio
	decisions   []model.ModelDecision
	suggestions map[string]*model.Suggestion
	votes       map[string]*model.Vote // key: suggestionID + "/" + userID
	profiles    map[string]*model.UserProfile
	ledger      []model.PointTransaction
	lastLogin   map[string]string // userID → YYYY-MM-DD of last bonus
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs:     make(map[string]*model.AccountConfig),
		suggestions: make(map[string]*model.Suggestion),
		votes:       make(map[string]*model.Vote),
		profiles:    make(map[string]*model.UserProfile),
		lastLogin:   make(map[string]string),
	}
}

func voteKey(suggestionID, userID string) string {
	return suggestionID + "/" + userID
}

// --- Trades ---

func (s *MemoryStore) InsertTrade(_ context.Context, t *model.TradeExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *t)
	return nil
}

func (s *MemoryStore) ListTradesByModel(_ context.Context, modelID string, limit int) ([]model.TradeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeExecution
	// Newest first: walk the append-only slice backwards.
	for i := len(s.trades) - 1; i >= 0; i-- {
		if s.trades[i].ModelID == modelID {
			result = append(result, s.trades[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (s *MemoryStore) GetActiveConfig(_ context.Context, modelID string) (*model.AccountConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[modelID]
	if !ok || !cfg.IsActive {
		return nil, fmt.Errorf("config for model %s: %w", modelID, ErrNotFound)
	}
	copy := *cfg
	return &copy, nil
}

func (s *MemoryStore) UpsertConfig(_ context.Context, cfg *model.AccountConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *cfg
	s.configs[cfg.ModelID] = &copy
	return nil
}

// --- Portfolios ---

func (s *MemoryStore) ListPortfolios(_ context.Context) ([]model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Portfolio, len(s.portfolios))
	copy(out, s.portfolios)
	return out, nil
}

func (s *MemoryStore) UpsertPortfolio(_ context.Context, p *model.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.portfolios {
		if s.portfolios[i].ModelID == p.ModelID {
			s.portfolios[i] = *p
			return nil
		}
	}
	s.portfolios = append(s.portfolios, *p)
	return nil
}

// --- Decisions ---

func (s *MemoryStore) InsertDecision(_ context.Context, d *model.ModelDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decisions = append(s.decisions, *d)
	return nil
}

func (s *MemoryStore) ListRecentDecisions(_ context.Context, limit int) ([]model.ModelDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ModelDecision
	for i := len(s.decisions) - 1; i >= 0; i-- {
		result = append(result, s.decisions[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// --- Suggestions & votes ---

func (s *MemoryStore) InsertSuggestion(_ context.Context, sg *model.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *sg
	s.suggestions[sg.ID] = &copy
	return nil
}

func (s *MemoryStore) GetSuggestion(_ context.Context, id string) (*model.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sg, ok := s.suggestions[id]
	if !ok {
		return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	copy := *sg
	return &copy, nil
}

func (s *MemoryStore) ListSuggestions(_ context.Context) ([]model.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Suggestion, 0, len(s.suggestions))
	for _, sg := range s.suggestions {
		out = append(out, *sg)
	}
	// Newest first.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateSuggestionStatus(_ context.Context, id string, isImplemented bool, operatorReply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg, ok := s.suggestions[id]
	if !ok {
		return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	sg.IsImplemented = isImplemented
	sg.OperatorReply = operatorReply
	return nil
}

// ToggleVote applies the toggle rule and recounts under a single lock, which
// gives the same atomicity the Postgres store gets from a transaction.
func (s *MemoryStore) ToggleVote(_ context.Context, suggestionID, userID, voteType string) (*model.VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg, ok := s.suggestions[suggestionID]
	if !ok {
		return nil, fmt.Errorf("suggestion %s: %w", suggestionID, ErrNotFound)
	}

	key := voteKey(suggestionID, userID)
	result := &model.VoteResult{}

	existing, hasVote := s.votes[key]
	switch {
	case !hasVote:
		s.votes[key] = &model.Vote{
			SuggestionID: suggestionID,
			UserID:       userID,
			VoteType:     voteType,
			CreatedAt:    time.Now().UTC(),
		}
		result.Outcome = model.VoteAdded
		result.UserVote = voteType
	case existing.VoteType == voteType:
		delete(s.votes, key)
		result.Outcome = model.VoteRemoved
	default:
		existing.VoteType = voteType
		result.Outcome = model.VoteSwitched
		result.UserVote = voteType
	}

	// Recount from the authoritative post-mutation vote set. Counts are
	// recomputed, never incremented.
	up, down := 0, 0
	for _, v := range s.votes {
		if v.SuggestionID != suggestionID {
			continue
		}
		if v.VoteType == model.VoteUp {
			up++
		} else {
			down++
		}
	}
	sg.Upvotes, sg.Downvotes = up, down
	result.Upvotes, result.Downvotes = up, down

	return result, nil
}

func (s *MemoryStore) ListUserVotes(_ context.Context, userID string) ([]model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Vote
	for _, v := range s.votes {
		if v.UserID == userID {
			result = append(result, *v)
		}
	}
	return result, nil
}

// --- Profiles & ledger ---

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) EnsureProfile(_ context.Context, userID, email string) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[userID]; ok {
		copy := *p
		return &copy, nil
	}
	p := &model.UserProfile{
		ID:        userID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	s.profiles[userID] = p
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPointTransactions(_ context.Context, userID string, limit int) ([]model.PointTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.PointTransaction
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].UserID == userID {
			result = append(result, s.ledger[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// --- Procedures ---

func (s *MemoryStore) AwardPoints(_ context.Context, userID, reason, referenceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.awardLocked(userID, reason, referenceID)
}

func (s *MemoryStore) awardLocked(userID, reason, referenceID string) error {
	amount, ok := memoryAwardAmounts[reason]
	if !ok {
		return fmt.Errorf("award_points: unknown reason %q", reason)
	}

	// Vote awards pay at most once per (user, suggestion); a toggle-off
	// followed by a re-vote earns nothing extra.
	if reason == model.ReasonVoteCast {
		for _, tx := range s.ledger {
			if tx.UserID == userID && tx.Reason == reason && tx.ReferenceID == referenceID {
				return nil
			}
		}
	}

	p, ok := s.profiles[userID]
	if !ok {
		p = &model.UserProfile{ID: userID, CreatedAt: time.Now().UTC()}
		s.profiles[userID] = p
	}
	p.Points += amount

	s.ledger = append(s.ledger, model.PointTransaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      amount,
		Reason:      reason,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

func (s *MemoryStore) DailyLoginBonus(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	if s.lastLogin[userID] == today {
		return false, nil
	}
	s.lastLogin[userID] = today
	if err := s.awardLocked(userID, model.ReasonDailyLogin, today); err != nil {
		return false, err
	}
	return true, nil
}
