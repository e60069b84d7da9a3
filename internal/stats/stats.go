// Package stats derives account statistics and leaderboard rankings from
// raw trade, config, and portfolio records.
//
// Every function here is pure: no I/O, no stored state. The same input
// always produces the same output, so callers recompute from the full
// current collection on every change-feed event instead of maintaining
// incremental counters that can drift.
//
// All monetary values use shopspring/decimal — never float64 for money.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tradearena/community-engine/internal/model"
)

var (
	// DefaultInitialBalance is assumed when no account config exists.
	DefaultInitialBalance = decimal.NewFromInt(10000)

	hundred = decimal.NewFromInt(100)
)

// RateScale is the number of decimal places for percentage rounding
// (win rate, ROI).
const RateScale int32 = 2

// Calculate produces an AccountStats snapshot from a model's trades and
// account config.
//
// Only CLOSED+SUCCESS trades enter the win/loss/ROI math; open or failed
// trades may still appear in raw trade lists elsewhere. Trades with pnl = 0
// count toward the total but neither the win nor the loss bucket.
func Calculate(trades []model.TradeExecution, cfg *model.AccountConfig) model.AccountStats {
	initial := DefaultInitialBalance
	if cfg != nil {
		initial = cfg.InitialBalance
	}

	s := model.AccountStats{
		WinRate:   decimal.Zero,
		TotalPnL:  decimal.Zero,
		TotalFees: decimal.Zero,
		ROI:       decimal.Zero,
	}

	for _, t := range trades {
		if t.PositionStatus != model.PositionClosed || t.Status != model.StatusSuccess {
			continue
		}
		s.TotalTrades++
		switch {
		case t.PnL.IsPositive():
			s.WinningTrades++
		case t.PnL.IsNegative():
			s.LosingTrades++
		}
		s.TotalPnL = s.TotalPnL.Add(t.PnL)
		s.TotalFees = s.TotalFees.Add(t.Fee)
	}

	s.NetPnL = s.TotalPnL.Sub(s.TotalFees)
	s.CurrentBalance = initial.Add(s.TotalPnL)

	if s.TotalTrades > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.WinningTrades)).
			Div(decimal.NewFromInt(int64(s.TotalTrades))).
			Mul(hundred).Round(RateScale)
	}
	if initial.IsPositive() {
		s.ROI = s.CurrentBalance.Sub(initial).Div(initial).Mul(hundred).Round(RateScale)
	}

	return s
}

// Rank builds the leaderboard from portfolio summaries: 1-based rank by
// descending current balance, ties broken by input order (first-seen wins).
func Rank(portfolios []model.Portfolio) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(portfolios))
	for _, p := range portfolios {
		entries = append(entries, model.LeaderboardEntry{
			ModelID:        p.ModelID,
			ModelName:      p.ModelName,
			CurrentBalance: p.CurrentBalance,
			InitialBalance: p.InitialBalance,
			TotalTrades:    p.TotalTrades,
			WinRate:        winRate(p.WinningTrades, p.TotalTrades),
			ROI:            roi(p.CurrentBalance, p.InitialBalance),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CurrentBalance.GreaterThan(entries[j].CurrentBalance)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func winRate(winning, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(winning)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(hundred).Round(RateScale)
}

func roi(current, initial decimal.Decimal) decimal.Decimal {
	if !initial.IsPositive() {
		return decimal.Zero
	}
	return current.Sub(initial).Div(initial).Mul(hundred).Round(RateScale)
}
