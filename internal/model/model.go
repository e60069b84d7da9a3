// Package model defines the core domain types shared across the community
// engine. All monetary values use shopspring/decimal — never float64 for
// money. Points are integral and use int64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade position status.
const (
	PositionOpen   = "OPEN"
	PositionClosed = "CLOSED"
)

// Trade execution status.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Vote types.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

// TradeExecution is a record of one trade placed by a competing AI model.
// Rows are written by the external trading engine; this service only reads
// them. A CLOSED+SUCCESS trade is immutable for aggregate purposes.
type TradeExecution struct {
	ID             string          `json:"id" db:"id"`
	ModelID        string          `json:"model_id" db:"model_id"`
	Symbol         string          `json:"symbol" db:"symbol"`
	Side           string          `json:"side" db:"side"` // "LONG" or "SHORT"
	PositionStatus string          `json:"position_status" db:"position_status"`
	Status         string          `json:"status" db:"status"`
	PnL            decimal.Decimal `json:"pnl" db:"pnl"` // signed, gross of fees
	Fee            decimal.Decimal `json:"fee" db:"fee"`
	ExecutedAt     time.Time       `json:"executed_at" db:"executed_at"`
}

// AccountConfig is the trading account configuration for one model.
// Exactly one active config is expected per model; initial_balance is fixed
// at account creation.
type AccountConfig struct {
	ModelID        string          `json:"model_id" db:"model_id"`
	InitialBalance decimal.Decimal `json:"initial_balance" db:"initial_balance"`
	Leverage       int             `json:"leverage" db:"leverage"`
	MarginMode     string          `json:"margin_mode" db:"margin_mode"`
	Symbol         string          `json:"symbol" db:"symbol"`
	Platform       string          `json:"platform" db:"platform"`
	IsActive       bool            `json:"is_active" db:"is_active"`
}

// AccountStats is the derived statistics snapshot for one model's account.
// Never persisted — recomputed from trades + config on every read/event.
type AccountStats struct {
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	WinRate        decimal.Decimal `json:"win_rate"`  // percent
	TotalPnL       decimal.Decimal `json:"total_pnl"` // gross
	TotalFees      decimal.Decimal `json:"total_fees"`
	NetPnL         decimal.Decimal `json:"net_pnl"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	ROI            decimal.Decimal `json:"roi"` // percent
}

// Portfolio is the per-model account summary maintained by the trading
// engine, used to build the leaderboard.
type Portfolio struct {
	ModelID        string          `json:"model_id" db:"model_id"`
	ModelName      string          `json:"model_name" db:"model_name"`
	CurrentBalance decimal.Decimal `json:"current_balance" db:"current_balance"`
	InitialBalance decimal.Decimal `json:"initial_balance" db:"initial_balance"`
	TotalTrades    int             `json:"total_trades" db:"total_trades"`
	WinningTrades  int             `json:"winning_trades" db:"winning_trades"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// LeaderboardEntry is a Portfolio with its assigned rank and derived rates.
// Rank is 1-based, ordered by descending current balance; ties keep the
// first-seen order.
type LeaderboardEntry struct {
	Rank           int             `json:"rank"`
	ModelID        string          `json:"model_id"`
	ModelName      string          `json:"model_name"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	TotalTrades    int             `json:"total_trades"`
	WinRate        decimal.Decimal `json:"win_rate"` // percent
	ROI            decimal.Decimal `json:"roi"`      // percent
}

// ModelDecision is one reasoning/action record emitted by a competing model.
// Read-only from this service's perspective.
type ModelDecision struct {
	ID         string          `json:"id" db:"id"`
	ModelID    string          `json:"model_id" db:"model_id"`
	Symbol     string          `json:"symbol" db:"symbol"`
	Action     string          `json:"action" db:"action"` // "BUY", "SELL", "HOLD"
	Summary    string          `json:"summary" db:"summary"`
	Confidence decimal.Decimal `json:"confidence" db:"confidence"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Suggestion is a community feature suggestion. Upvotes/downvotes are
// derived from the vote set and never written directly.
type Suggestion struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	ModelID       string    `json:"model_id,omitempty" db:"model_id"`
	Content       string    `json:"content" db:"content"`
	Upvotes       int       `json:"upvotes" db:"upvotes"`
	Downvotes     int       `json:"downvotes" db:"downvotes"`
	IsImplemented bool      `json:"is_implemented" db:"is_implemented"`
	OperatorReply string    `json:"operator_reply,omitempty" db:"operator_reply"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Vote is one user's vote on one suggestion. At most one row exists per
// (suggestion_id, user_id) pair.
type Vote struct {
	SuggestionID string    `json:"suggestion_id" db:"suggestion_id"`
	UserID       string    `json:"user_id" db:"user_id"`
	VoteType     string    `json:"vote_type" db:"vote_type"` // "up" or "down"
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Vote toggle outcomes.
const (
	VoteAdded    = "added"    // no prior vote; inserted
	VoteRemoved  = "removed"  // same type twice; deleted (toggle off)
	VoteSwitched = "switched" // opposite type; updated in place
)

// VoteResult is the outcome of one vote toggle, with counts recomputed from
// the post-mutation vote set.
type VoteResult struct {
	Outcome   string `json:"outcome"`
	UserVote  string `json:"user_vote,omitempty"` // caller's vote after the toggle, "" if removed
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
}

// UserProfile holds a user's reward state. The points balance is maintained
// transactionally by a database trigger off the point_transactions ledger;
// this service only reads it. Tier is derived from points, never stored.
type UserProfile struct {
	ID             string          `json:"id" db:"id"`
	Email          string          `json:"email" db:"email"`
	Points         int64           `json:"points" db:"points"`
	Tier           string          `json:"tier,omitempty"`
	TotalRewards   decimal.Decimal `json:"total_rewards" db:"total_rewards"`
	PendingRewards decimal.Decimal `json:"pending_rewards" db:"pending_rewards"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// PointTransaction is one row of the append-only point-earning ledger.
type PointTransaction struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Amount      int64     `json:"amount" db:"amount"` // signed
	Reason      string    `json:"reason" db:"reason"`
	ReferenceID string    `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Point award reasons issued by this service. Amounts are decided by the
// award_points database function, not here.
const (
	ReasonSuggestionSubmitted = "suggestion_submitted"
	ReasonVoteCast            = "vote_cast"
	ReasonDailyLogin          = "daily_login"
)
