package community

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradearena/community-engine/internal/auth"
	"github.com/tradearena/community-engine/internal/ledger"
	"github.com/tradearena/community-engine/internal/model"
	"github.com/tradearena/community-engine/internal/stats"
	"github.com/tradearena/community-engine/internal/store"
	"github.com/tradearena/community-engine/internal/tier"
	"github.com/tradearena/community-engine/internal/view"
)

const defaultDecisionLimit = 100

// Views are the feed-maintained snapshots the read handlers prefer over a
// store round trip. Any nil or still-loading view falls back to the store.
type Views struct {
	Leaderboard *view.LeaderboardView
	Decisions   *view.DecisionsView
	Suggestions *view.SuggestionsView
}

// Service exposes the community API: leaderboard, model stats, decisions,
// suggestions with voting, and user reward profiles.
type Service struct {
	store     store.Store
	ledger    *ledger.Service
	tiers     *tier.Table
	views     *Views
	operators map[string]bool
	wsHub     *WSHub // optional, nil disables broadcasts
}

// NewService creates the community service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, lg *ledger.Service, tiers *tier.Table, hub *WSHub) *Service {
	if tiers == nil {
		tiers = tier.Default()
	}
	return &Service{store: st, ledger: lg, tiers: tiers, wsHub: hub}
}

// UseViews wires the feed-maintained views into the read path. Call before
// serving traffic.
func (s *Service) UseViews(v *Views) {
	s.views = v
}

// SetOperators registers the user ids allowed to moderate suggestions
// (mark implemented, attach a reply).
func (s *Service) SetOperators(ids []string) {
	s.operators = make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			s.operators[id] = true
		}
	}
}

// Routes mounts all API handlers on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/leaderboard", s.GetLeaderboard)
	r.Get("/models/{modelID}/stats", s.GetModelStats)
	r.Get("/models/{modelID}/trades", s.ListModelTrades)
	r.Get("/decisions", s.ListDecisions)
	r.Get("/suggestions", s.ListSuggestions)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/suggestions", s.CreateSuggestion)
		r.Post("/suggestions/{suggestionID}/vote", s.VoteSuggestion)
		r.Patch("/suggestions/{suggestionID}", s.UpdateSuggestionStatus)
		r.Get("/votes", s.ListMyVotes)
		r.Get("/profile", s.GetProfile)
		r.Get("/profile/points", s.ListMyPoints)
		r.Post("/profile/login-bonus", s.ClaimLoginBonus)
	})
}

// --- Request/Response types ---

// CreateSuggestionRequest is the JSON body for POST /suggestions.
type CreateSuggestionRequest struct {
	ModelID string `json:"model_id,omitempty"`
	Content string `json:"content"`
}

// VoteRequest is the JSON body for POST /suggestions/{id}/vote.
type VoteRequest struct {
	VoteType string `json:"vote_type"` // "up" or "down"
}

// VoteResponse is the toggle result plus whether points were awarded.
// Awards are best-effort; a false here never means the vote failed.
type VoteResponse struct {
	model.VoteResult
	PointsAwarded bool `json:"points_awarded"`
}

// SuggestionResponse is a created suggestion plus the award outcome.
type SuggestionResponse struct {
	model.Suggestion
	PointsAwarded bool `json:"points_awarded"`
}

// UpdateSuggestionRequest is the JSON body for PATCH /suggestions/{id}.
type UpdateSuggestionRequest struct {
	IsImplemented bool   `json:"is_implemented"`
	OperatorReply string `json:"operator_reply"`
}

// ProfileResponse is a user profile with the recent point ledger attached.
type ProfileResponse struct {
	Profile model.UserProfile        `json:"profile"`
	Ledger  []model.PointTransaction `json:"ledger"`
}

// LoginBonusResponse reports whether today's bonus was granted.
type LoginBonusResponse struct {
	Granted bool `json:"granted"`
}

// --- HTTP Handlers ---

// GetLeaderboard handles GET /api/v1/leaderboard
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.views != nil && s.views.Leaderboard != nil && s.viewReady(s.views.Leaderboard) {
		entries := s.views.Leaderboard.Entries()
		if entries == nil {
			entries = []model.LeaderboardEntry{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
		return
	}

	portfolios, err := s.store.ListPortfolios(r.Context())
	if err != nil {
		writeError(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	entries := stats.Rank(portfolios)
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetModelStats handles GET /api/v1/models/{modelID}/stats
// Statistics are recomputed from the trade history on every request, never
// read from a stored counter.
func (s *Service) GetModelStats(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")
	ctx := r.Context()

	trades, err := s.store.ListTradesByModel(ctx, modelID, 0)
	if err != nil {
		writeError(w, "failed to load trades", http.StatusInternalServerError)
		return
	}

	cfg, err := s.store.GetActiveConfig(ctx, modelID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, "failed to load account config", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats.Calculate(trades, cfg))
}

// ListModelTrades handles GET /api/v1/models/{modelID}/trades?limit=N
func (s *Service) ListModelTrades(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	trades, err := s.store.ListTradesByModel(r.Context(), modelID, limit)
	if err != nil {
		writeError(w, "failed to load trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.TradeExecution{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// ListDecisions handles GET /api/v1/decisions?limit=N
// The limit is capped at 100, matching the decision view's bound.
func (s *Service) ListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := defaultDecisionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if n < limit {
			limit = n
		}
	}

	if s.views != nil && s.views.Decisions != nil && s.viewReady(s.views.Decisions) {
		decisions := s.views.Decisions.Recent()
		if len(decisions) > limit {
			decisions = decisions[:limit]
		}
		if decisions == nil {
			decisions = []model.ModelDecision{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(decisions)
		return
	}

	decisions, err := s.store.ListRecentDecisions(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to load decisions", http.StatusInternalServerError)
		return
	}
	if decisions == nil {
		decisions = []model.ModelDecision{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decisions)
}

// ListSuggestions handles GET /api/v1/suggestions
func (s *Service) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	if s.views != nil && s.views.Suggestions != nil && s.viewReady(s.views.Suggestions) {
		suggestions := s.views.Suggestions.All()
		if suggestions == nil {
			suggestions = []model.Suggestion{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(suggestions)
		return
	}

	suggestions, err := s.store.ListSuggestions(r.Context())
	if err != nil {
		writeError(w, "failed to load suggestions", http.StatusInternalServerError)
		return
	}
	if suggestions == nil {
		suggestions = []model.Suggestion{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(suggestions)
}

// CreateSuggestion handles POST /api/v1/suggestions
func (s *Service) CreateSuggestion(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	var req CreateSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sg, awarded, err := s.ledger.SubmitSuggestion(r.Context(), id.UserID, req.ModelID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrContentTooShort):
			writeError(w, "suggestion must be at least 10 characters", http.StatusBadRequest)
		case errors.Is(err, ledger.ErrAuthRequired):
			writeError(w, "authentication required", http.StatusUnauthorized)
		default:
			writeError(w, "failed to create suggestion", http.StatusInternalServerError)
		}
		return
	}

	slog.Info("suggestion created", "id", sg.ID, "user", id.UserID)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: "suggestion_created", Resource: "suggestions", Data: sg})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SuggestionResponse{Suggestion: *sg, PointsAwarded: awarded})
}

// VoteSuggestion handles POST /api/v1/suggestions/{suggestionID}/vote
func (s *Service) VoteSuggestion(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	suggestionID := chi.URLParam(r, "suggestionID")

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, awarded, err := s.ledger.ToggleVote(r.Context(), id.UserID, suggestionID, req.VoteType)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidVoteType):
			writeError(w, "vote_type must be up or down", http.StatusBadRequest)
		case errors.Is(err, ledger.ErrAuthRequired):
			writeError(w, "authentication required", http.StatusUnauthorized)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, "suggestion not found", http.StatusNotFound)
		default:
			writeError(w, "failed to record vote", http.StatusInternalServerError)
		}
		return
	}

	slog.Info("vote toggled",
		"suggestion", suggestionID,
		"user", id.UserID,
		"outcome", res.Outcome,
		"upvotes", res.Upvotes,
		"downvotes", res.Downvotes,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: "vote_changed", Resource: "suggestions", Data: map[string]any{
			"suggestion_id": suggestionID,
			"upvotes":       res.Upvotes,
			"downvotes":     res.Downvotes,
		}})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VoteResponse{VoteResult: *res, PointsAwarded: awarded})
}

// UpdateSuggestionStatus handles PATCH /api/v1/suggestions/{suggestionID}
// Operator-only: marks a suggestion implemented and/or attaches a reply.
func (s *Service) UpdateSuggestionStatus(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if !s.operators[id.UserID] {
		writeError(w, "operator access required", http.StatusForbidden)
		return
	}
	suggestionID := chi.URLParam(r, "suggestionID")

	var req UpdateSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateSuggestionStatus(r.Context(), suggestionID, req.IsImplemented, req.OperatorReply); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "suggestion not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to update suggestion", http.StatusInternalServerError)
		return
	}

	sg, err := s.store.GetSuggestion(r.Context(), suggestionID)
	if err != nil {
		writeError(w, "failed to load suggestion", http.StatusInternalServerError)
		return
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: "suggestion_updated", Resource: "suggestions", Data: sg})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sg)
}

// ListMyVotes handles GET /api/v1/votes
// Returns the caller's votes so the client can render toggle state.
func (s *Service) ListMyVotes(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	votes, err := s.store.ListUserVotes(r.Context(), id.UserID)
	if err != nil {
		writeError(w, "failed to load votes", http.StatusInternalServerError)
		return
	}
	if votes == nil {
		votes = []model.Vote{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(votes)
}

// GetProfile handles GET /api/v1/profile
// Creates the profile on first touch; the tier is derived from the point
// balance, never stored.
func (s *Service) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	ctx := r.Context()

	profile, err := s.store.EnsureProfile(ctx, id.UserID, id.Email)
	if err != nil {
		writeError(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	profile.Tier = s.tiers.ForPoints(profile.Points).Name

	txs, err := s.store.ListPointTransactions(ctx, id.UserID, 50)
	if err != nil {
		writeError(w, "failed to load point history", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []model.PointTransaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ProfileResponse{Profile: *profile, Ledger: txs})
}

// ListMyPoints handles GET /api/v1/profile/points?limit=N
func (s *Service) ListMyPoints(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	txs, err := s.store.ListPointTransactions(r.Context(), id.UserID, limit)
	if err != nil {
		writeError(w, "failed to load point history", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []model.PointTransaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

// ClaimLoginBonus handles POST /api/v1/profile/login-bonus
func (s *Service) ClaimLoginBonus(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())

	granted, err := s.ledger.DailyLoginBonus(r.Context(), id.UserID)
	if err != nil {
		writeError(w, "failed to claim login bonus", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginBonusResponse{Granted: granted})
}

type viewStatus interface {
	Loading() bool
	Err() error
}

// viewReady reports whether a view snapshot can serve reads: baseline loaded
// and no standing fetch error.
func (s *Service) viewReady(v viewStatus) bool {
	return !v.Loading() && v.Err() == nil
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
