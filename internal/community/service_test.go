package community_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradearena/community-engine/internal/auth"
	"github.com/tradearena/community-engine/internal/community"
	"github.com/tradearena/community-engine/internal/ledger"
	"github.com/tradearena/community-engine/internal/model"
	"github.com/tradearena/community-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
// A test-only middleware reads X-Test-User to simulate authentication.
func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	lg := ledger.NewService(ms, nil)
	svc := community.NewService(ms, lg, nil, nil)
	svc.SetOperators([]string{"op1"})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if u := req.Header.Get("X-Test-User"); u != "" {
				ctx := auth.WithIdentity(req.Context(), &auth.Identity{UserID: u, Email: u + "@example.com"})
				req = req.WithContext(ctx)
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/v1", svc.Routes)

	return ms, r
}

func doJSON(t *testing.T, router chi.Router, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seedSuggestion(t *testing.T, ms *store.MemoryStore) *model.Suggestion {
	t.Helper()
	sg := &model.Suggestion{
		ID:        uuid.NewString(),
		UserID:    "author",
		Content:   "show realized pnl per symbol",
		CreatedAt: time.Now().UTC(),
	}
	if err := ms.InsertSuggestion(context.Background(), sg); err != nil {
		t.Fatalf("seed suggestion: %v", err)
	}
	return sg
}

// --- Leaderboard ---

func TestGetLeaderboard(t *testing.T) {
	ms, router := newTestEnv(t)
	for _, p := range []struct {
		id      string
		balance float64
	}{{"claude", 12500}, {"gpt", 9800}, {"gemini", 11000}} {
		err := ms.UpsertPortfolio(context.Background(), &model.Portfolio{
			ModelID:        p.id,
			ModelName:      p.id,
			CurrentBalance: d(p.balance),
			InitialBalance: d(10000),
			UpdatedAt:      time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed portfolio: %v", err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/leaderboard", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ModelID != "claude" || entries[0].Rank != 1 {
		t.Errorf("expected claude at rank 1, got %s rank %d", entries[0].ModelID, entries[0].Rank)
	}
	if entries[2].ModelID != "gpt" {
		t.Errorf("expected gpt last, got %s", entries[2].ModelID)
	}
}

func TestGetLeaderboard_Empty(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/leaderboard", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}

// --- Model stats ---

func TestGetModelStats(t *testing.T) {
	ms, router := newTestEnv(t)
	ctx := context.Background()

	err := ms.UpsertConfig(ctx, &model.AccountConfig{
		ModelID:        "claude",
		InitialBalance: d(10000),
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}
	for i, pnl := range []float64{150, -50, 30} {
		status := model.PositionClosed
		if i == 2 {
			status = model.PositionOpen
		}
		err := ms.InsertTrade(ctx, &model.TradeExecution{
			ID:             uuid.NewString(),
			ModelID:        "claude",
			Symbol:         "BTCUSDT",
			PositionStatus: status,
			Status:         model.StatusSuccess,
			PnL:            d(pnl),
			ExecutedAt:     time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed trade: %v", err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/models/claude/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var st model.AccountStats
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Open trade excluded: 2 closed trades, pnl 100, balance 10100, roi 1%.
	if st.TotalTrades != 2 {
		t.Errorf("expected 2 trades, got %d", st.TotalTrades)
	}
	if !st.CurrentBalance.Equal(d(10100)) {
		t.Errorf("expected balance 10100, got %s", st.CurrentBalance)
	}
	if !st.ROI.Equal(d(1)) {
		t.Errorf("expected roi 1, got %s", st.ROI)
	}
}

func TestGetModelStats_NoConfigUsesDefaultBalance(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/models/unknown/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with defaults, got %d: %s", w.Code, w.Body.String())
	}

	var st model.AccountStats
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !st.CurrentBalance.Equal(d(10000)) {
		t.Errorf("expected default balance 10000, got %s", st.CurrentBalance)
	}
}

func TestListModelTrades_BadLimit(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/models/claude/trades?limit=abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

// --- Suggestions & votes ---

func TestCreateSuggestion(t *testing.T) {
	ms, router := newTestEnv(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/suggestions", "u1",
		community.CreateSuggestionRequest{Content: "add candlestick charts to the decision view"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp community.SuggestionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != "u1" || resp.ID == "" {
		t.Errorf("unexpected suggestion: %+v", resp.Suggestion)
	}
	if !resp.PointsAwarded {
		t.Error("expected points_awarded true on submission")
	}

	// The author earned submission points.
	p, err := ms.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Points != 50 {
		t.Errorf("expected 50 points, got %d", p.Points)
	}
}

func TestCreateSuggestion_RequiresAuth(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/suggestions", "",
		community.CreateSuggestionRequest{Content: "a perfectly valid suggestion"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without auth, got %d", w.Code)
	}
}

func TestCreateSuggestion_TooShort(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/suggestions", "u1",
		community.CreateSuggestionRequest{Content: "short"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for short content, got %d: %s", w.Code, w.Body.String())
	}
}

func TestVoteSuggestion_Toggle(t *testing.T) {
	ms, router := newTestEnv(t)
	sg := seedSuggestion(t, ms)
	path := "/api/v1/suggestions/" + sg.ID + "/vote"

	// Up vote.
	w := doJSON(t, router, http.MethodPost, path, "u1", community.VoteRequest{VoteType: "up"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res community.VoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Outcome != model.VoteAdded || res.Upvotes != 1 {
		t.Errorf("expected added (1,0), got %+v", res)
	}
	if !res.PointsAwarded {
		t.Error("expected points_awarded true on first vote")
	}

	// Same vote toggles off.
	w = doJSON(t, router, http.MethodPost, path, "u1", community.VoteRequest{VoteType: "up"})
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Outcome != model.VoteRemoved || res.Upvotes != 0 {
		t.Errorf("expected removed (0,0), got %+v", res)
	}
	if res.PointsAwarded {
		t.Error("toggle-off must not award points")
	}
}

func TestUpdateSuggestionStatus_OperatorOnly(t *testing.T) {
	ms, router := newTestEnv(t)
	sg := seedSuggestion(t, ms)
	path := "/api/v1/suggestions/" + sg.ID
	body := community.UpdateSuggestionRequest{IsImplemented: true, OperatorReply: "shipped in v2"}

	// Regular user is forbidden.
	w := doJSON(t, router, http.MethodPatch, path, "u1", body)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-operator, got %d", w.Code)
	}

	// Operator succeeds.
	w = doJSON(t, router, http.MethodPatch, path, "op1", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated model.Suggestion
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !updated.IsImplemented || updated.OperatorReply != "shipped in v2" {
		t.Errorf("status not applied: %+v", updated)
	}

	// Unknown suggestion.
	w = doJSON(t, router, http.MethodPatch, "/api/v1/suggestions/"+uuid.NewString(), "op1", body)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown suggestion, got %d", w.Code)
	}
}

func TestVoteSuggestion_Errors(t *testing.T) {
	ms, router := newTestEnv(t)
	sg := seedSuggestion(t, ms)

	// Unknown suggestion.
	w := doJSON(t, router, http.MethodPost, "/api/v1/suggestions/"+uuid.NewString()+"/vote",
		"u1", community.VoteRequest{VoteType: "up"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown suggestion, got %d", w.Code)
	}

	// Invalid vote type.
	w = doJSON(t, router, http.MethodPost, "/api/v1/suggestions/"+sg.ID+"/vote",
		"u1", community.VoteRequest{VoteType: "sideways"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid vote type, got %d", w.Code)
	}

	// Anonymous.
	w = doJSON(t, router, http.MethodPost, "/api/v1/suggestions/"+sg.ID+"/vote",
		"", community.VoteRequest{VoteType: "up"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without auth, got %d", w.Code)
	}
}

// --- Profile & points ---

func TestGetProfile_CreatesAndDerivesTier(t *testing.T) {
	ms, router := newTestEnv(t)

	// Earn 500 points before first profile read.
	for i := 0; i < 10; i++ {
		if err := ms.AwardPoints(context.Background(), "u1", model.ReasonSuggestionSubmitted, ""); err != nil {
			t.Fatalf("award: %v", err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/profile", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp community.ProfileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Profile.Points != 500 {
		t.Errorf("expected 500 points, got %d", resp.Profile.Points)
	}
	if resp.Profile.Tier != "gold" {
		t.Errorf("expected gold tier at 500 points, got %s", resp.Profile.Tier)
	}
	if len(resp.Ledger) != 10 {
		t.Errorf("expected 10 ledger rows, got %d", len(resp.Ledger))
	}
}

func TestClaimLoginBonus(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/profile/login-bonus", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp community.LoginBonusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Granted {
		t.Error("expected first claim of the day to be granted")
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/profile/login-bonus", "u1", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Granted {
		t.Error("expected second claim of the day to be denied")
	}
}

func TestListMyVotes(t *testing.T) {
	ms, router := newTestEnv(t)
	sg := seedSuggestion(t, ms)

	w := doJSON(t, router, http.MethodPost, "/api/v1/suggestions/"+sg.ID+"/vote",
		"u1", community.VoteRequest{VoteType: "down"})
	if w.Code != http.StatusOK {
		t.Fatalf("vote failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/votes", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var votes []model.Vote
	if err := json.Unmarshal(w.Body.Bytes(), &votes); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(votes) != 1 || votes[0].SuggestionID != sg.ID || votes[0].VoteType != model.VoteDown {
		t.Errorf("unexpected vote set: %+v", votes)
	}
}
