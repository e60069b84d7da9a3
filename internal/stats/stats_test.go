package stats

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradearena/community-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func trade(pnl float64, posStatus, status string) model.TradeExecution {
	return model.TradeExecution{
		PnL:            d(pnl),
		PositionStatus: posStatus,
		Status:         status,
	}
}

// --- Calculate ---

func TestCalculate_Scenario(t *testing.T) {
	trades := []model.TradeExecution{
		trade(150, model.PositionClosed, model.StatusSuccess),
		trade(-50, model.PositionClosed, model.StatusSuccess),
		trade(30, model.PositionOpen, model.StatusSuccess),
	}
	cfg := &model.AccountConfig{InitialBalance: d(10000)}

	s := Calculate(trades, cfg)

	if s.TotalTrades != 2 {
		t.Errorf("expected 2 total trades, got %d", s.TotalTrades)
	}
	if s.WinningTrades != 1 {
		t.Errorf("expected 1 winning trade, got %d", s.WinningTrades)
	}
	if s.LosingTrades != 1 {
		t.Errorf("expected 1 losing trade, got %d", s.LosingTrades)
	}
	if !s.TotalPnL.Equal(d(100)) {
		t.Errorf("expected total pnl 100, got %s", s.TotalPnL)
	}
	if !s.CurrentBalance.Equal(d(10100)) {
		t.Errorf("expected balance 10100, got %s", s.CurrentBalance)
	}
	if !s.ROI.Equal(d(1)) {
		t.Errorf("expected roi 1%%, got %s", s.ROI)
	}
	if !s.WinRate.Equal(d(50)) {
		t.Errorf("expected win rate 50%%, got %s", s.WinRate)
	}
}

func TestCalculate_EmptyTrades(t *testing.T) {
	cfg := &model.AccountConfig{InitialBalance: d(10000)}
	s := Calculate(nil, cfg)

	if s.TotalTrades != 0 || s.WinningTrades != 0 || s.LosingTrades != 0 {
		t.Errorf("expected zero counts, got %+v", s)
	}
	if !s.ROI.IsZero() {
		t.Errorf("expected roi 0, got %s", s.ROI)
	}
	if !s.WinRate.IsZero() {
		t.Errorf("expected win rate 0, got %s", s.WinRate)
	}
	if !s.CurrentBalance.Equal(d(10000)) {
		t.Errorf("expected balance = initial, got %s", s.CurrentBalance)
	}
}

func TestCalculate_MissingConfigDefaultsTo10000(t *testing.T) {
	trades := []model.TradeExecution{
		trade(500, model.PositionClosed, model.StatusSuccess),
	}
	s := Calculate(trades, nil)
	if !s.CurrentBalance.Equal(d(10500)) {
		t.Errorf("expected balance 10500, got %s", s.CurrentBalance)
	}
	if !s.ROI.Equal(d(5)) {
		t.Errorf("expected roi 5%%, got %s", s.ROI)
	}
}

func TestCalculate_ZeroPnLTradeCountsNeitherBucket(t *testing.T) {
	trades := []model.TradeExecution{
		trade(0, model.PositionClosed, model.StatusSuccess),
		trade(10, model.PositionClosed, model.StatusSuccess),
	}
	s := Calculate(trades, &model.AccountConfig{InitialBalance: d(1000)})

	if s.TotalTrades != 2 {
		t.Errorf("expected 2 total trades, got %d", s.TotalTrades)
	}
	if s.WinningTrades != 1 || s.LosingTrades != 0 {
		t.Errorf("zero-pnl trade leaked into a bucket: %+v", s)
	}
}

func TestCalculate_FailedAndOpenTradesExcluded(t *testing.T) {
	trades := []model.TradeExecution{
		trade(100, model.PositionClosed, model.StatusFailed),
		trade(100, model.PositionOpen, model.StatusSuccess),
	}
	s := Calculate(trades, &model.AccountConfig{InitialBalance: d(1000)})
	if s.TotalTrades != 0 {
		t.Errorf("expected no included trades, got %d", s.TotalTrades)
	}
	if !s.CurrentBalance.Equal(d(1000)) {
		t.Errorf("expected untouched balance, got %s", s.CurrentBalance)
	}
}

func TestCalculate_NetPnLSubtractsFees(t *testing.T) {
	tr := trade(100, model.PositionClosed, model.StatusSuccess)
	tr.Fee = d(3)
	s := Calculate([]model.TradeExecution{tr}, &model.AccountConfig{InitialBalance: d(1000)})

	if !s.TotalPnL.Equal(d(100)) {
		t.Errorf("expected gross pnl 100, got %s", s.TotalPnL)
	}
	if !s.NetPnL.Equal(d(97)) {
		t.Errorf("expected net pnl 97, got %s", s.NetPnL)
	}
	if !s.TotalFees.Equal(d(3)) {
		t.Errorf("expected fees 3, got %s", s.TotalFees)
	}
}

func TestCalculate_NonPositiveInitialBalanceZeroROI(t *testing.T) {
	trades := []model.TradeExecution{
		trade(100, model.PositionClosed, model.StatusSuccess),
	}
	s := Calculate(trades, &model.AccountConfig{InitialBalance: decimal.Zero})
	if !s.ROI.IsZero() {
		t.Errorf("expected roi 0 for zero initial balance, got %s", s.ROI)
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	trades := []model.TradeExecution{
		trade(150, model.PositionClosed, model.StatusSuccess),
		trade(-50, model.PositionClosed, model.StatusSuccess),
		trade(0, model.PositionClosed, model.StatusSuccess),
	}
	cfg := &model.AccountConfig{InitialBalance: d(10000)}

	a := Calculate(trades, cfg)
	b := Calculate(trades, cfg)

	if a.TotalTrades != b.TotalTrades ||
		!a.TotalPnL.Equal(b.TotalPnL) ||
		!a.CurrentBalance.Equal(b.CurrentBalance) ||
		!a.ROI.Equal(b.ROI) ||
		!a.WinRate.Equal(b.WinRate) {
		t.Errorf("recomputation diverged:\nfirst  %+v\nsecond %+v", a, b)
	}
}

// --- Rank ---

func portfolio(id string, balance float64) model.Portfolio {
	return model.Portfolio{
		ModelID:        id,
		ModelName:      id,
		CurrentBalance: d(balance),
		InitialBalance: d(10000),
	}
}

func TestRank_DescendingBalance(t *testing.T) {
	entries := Rank([]model.Portfolio{
		portfolio("a", 9000),
		portfolio("b", 12000),
		portfolio("c", 10500),
	})

	want := []string{"b", "c", "a"}
	for i, id := range want {
		if entries[i].ModelID != id {
			t.Errorf("rank %d: expected %s, got %s", i+1, id, entries[i].ModelID)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("expected rank %d, got %d", i+1, entries[i].Rank)
		}
	}
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	entries := Rank([]model.Portfolio{
		portfolio("first", 10000),
		portfolio("second", 10000),
	})
	if entries[0].ModelID != "first" || entries[1].ModelID != "second" {
		t.Errorf("tie order not stable: %s, %s", entries[0].ModelID, entries[1].ModelID)
	}
}

func TestRank_DerivedROI(t *testing.T) {
	entries := Rank([]model.Portfolio{portfolio("a", 11000)})
	if !entries[0].ROI.Equal(d(10)) {
		t.Errorf("expected roi 10%%, got %s", entries[0].ROI)
	}
}

func TestRank_Empty(t *testing.T) {
	entries := Rank(nil)
	if len(entries) != 0 {
		t.Errorf("expected empty leaderboard, got %d entries", len(entries))
	}
}
