// Package store defines the persistence interface for the community engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/tradearena/community-engine/internal/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
//
// ToggleVote is the single entry point for vote mutations: the vote lookup,
// the insert/update/delete, and the recount of the suggestion's vote
// counters are one atomic unit as seen by callers.
type Store interface {
	// --- Trade feed (written by the external trading engine) ---

	// InsertTrade appends a trade execution record.
	InsertTrade(ctx context.Context, t *model.TradeExecution) error

	// ListTradesByModel returns a model's trades, newest first.
	// limit <= 0 means no limit.
	ListTradesByModel(ctx context.Context, modelID string, limit int) ([]model.TradeExecution, error)

	// GetActiveConfig returns the model's active account config.
	GetActiveConfig(ctx context.Context, modelID string) (*model.AccountConfig, error)

	// UpsertConfig creates or replaces a model's account config.
	UpsertConfig(ctx context.Context, cfg *model.AccountConfig) error

	// --- Leaderboard portfolios ---

	// ListPortfolios returns all model portfolios.
	ListPortfolios(ctx context.Context) ([]model.Portfolio, error)

	// UpsertPortfolio creates or replaces a model's portfolio summary.
	UpsertPortfolio(ctx context.Context, p *model.Portfolio) error

	// --- Decisions ---

	// InsertDecision appends a model decision record.
	InsertDecision(ctx context.Context, d *model.ModelDecision) error

	// ListRecentDecisions returns the most recent decisions, newest first.
	ListRecentDecisions(ctx context.Context, limit int) ([]model.ModelDecision, error)

	// --- Suggestions & votes ---

	// InsertSuggestion persists a new suggestion.
	InsertSuggestion(ctx context.Context, s *model.Suggestion) error

	// GetSuggestion retrieves a suggestion by id.
	GetSuggestion(ctx context.Context, id string) (*model.Suggestion, error)

	// ListSuggestions returns all suggestions, newest first.
	ListSuggestions(ctx context.Context) ([]model.Suggestion, error)

	// UpdateSuggestionStatus sets the implemented flag and operator reply.
	UpdateSuggestionStatus(ctx context.Context, id string, isImplemented bool, operatorReply string) error

	// ToggleVote applies the vote toggle rule for (suggestionID, userID):
	// no prior vote → insert; same type → delete; opposite type → update in
	// place. It then recounts both vote buckets from the post-mutation vote
	// set and persists them on the suggestion, all atomically.
	ToggleVote(ctx context.Context, suggestionID, userID, voteType string) (*model.VoteResult, error)

	// ListUserVotes returns all of a user's votes.
	ListUserVotes(ctx context.Context, userID string) ([]model.Vote, error)

	// --- Profiles & point ledger ---

	// GetProfile retrieves a user profile by id.
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)

	// EnsureProfile returns the profile, creating an empty one on first touch.
	EnsureProfile(ctx context.Context, userID, email string) (*model.UserProfile, error)

	// ListPointTransactions returns a user's point ledger, newest first.
	ListPointTransactions(ctx context.Context, userID string, limit int) ([]model.PointTransaction, error)

	// --- Server-side procedures (opaque to this service) ---

	// AwardPoints invokes the award_points database function. The amount
	// for each reason is decided server-side; this service only issues the
	// request.
	AwardPoints(ctx context.Context, userID, reason, referenceID string) error

	// DailyLoginBonus invokes the daily_login_bonus database function.
	// Returns true when a bonus was granted (first call of the day).
	DailyLoginBonus(ctx context.Context, userID string) (bool, error)
}
