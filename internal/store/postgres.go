package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradearena/community-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func notFoundOr(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}

// --- Trades ---

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.TradeExecution) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_executions (id, model_id, symbol, side, position_status, status, pnl, fee, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9)`,
		t.ID, t.ModelID, t.Symbol, t.Side, t.PositionStatus, t.Status,
		t.PnL.String(), t.Fee.String(), t.ExecutedAt,
	)
	return err
}

func (s *PostgresStore) ListTradesByModel(ctx context.Context, modelID string, limit int) ([]model.TradeExecution, error) {
	q := `SELECT id, model_id, symbol, side, position_status, status,
	             pnl::TEXT, fee::TEXT, executed_at
	      FROM trade_executions WHERE model_id = $1
	      ORDER BY executed_at DESC`
	args := []any{modelID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.TradeExecution
	for rows.Next() {
		var t model.TradeExecution
		var pnlS, feeS string
		if err := rows.Scan(&t.ID, &t.ModelID, &t.Symbol, &t.Side,
			&t.PositionStatus, &t.Status, &pnlS, &feeS, &t.ExecutedAt); err != nil {
			return nil, err
		}
		t.PnL, _ = decimal.NewFromString(pnlS)
		t.Fee, _ = decimal.NewFromString(feeS)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) GetActiveConfig(ctx context.Context, modelID string) (*model.AccountConfig, error) {
	var cfg model.AccountConfig
	var initialS string

	err := s.pool.QueryRow(ctx,
		`SELECT model_id, initial_balance::TEXT, leverage, margin_mode, symbol, platform, is_active
		 FROM account_configs WHERE model_id = $1 AND is_active`, modelID).
		Scan(&cfg.ModelID, &initialS, &cfg.Leverage, &cfg.MarginMode,
			&cfg.Symbol, &cfg.Platform, &cfg.IsActive)
	if err != nil {
		return nil, notFoundOr(err, "config", modelID)
	}

	cfg.InitialBalance, _ = decimal.NewFromString(initialS)
	return &cfg, nil
}

func (s *PostgresStore) UpsertConfig(ctx context.Context, cfg *model.AccountConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO account_configs (model_id, initial_balance, leverage, margin_mode, symbol, platform, is_active)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5, $6, $7)
		 ON CONFLICT (model_id) DO UPDATE SET
		   leverage = EXCLUDED.leverage, margin_mode = EXCLUDED.margin_mode,
		   symbol = EXCLUDED.symbol, platform = EXCLUDED.platform,
		   is_active = EXCLUDED.is_active`,
		cfg.ModelID, cfg.InitialBalance.String(), cfg.Leverage,
		cfg.MarginMode, cfg.Symbol, cfg.Platform, cfg.IsActive,
	)
	return err
}

// --- Portfolios ---

func (s *PostgresStore) ListPortfolios(ctx context.Context) ([]model.Portfolio, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT model_id, model_name, current_balance::TEXT, initial_balance::TEXT,
		        total_trades, winning_trades, updated_at
		 FROM portfolios ORDER BY model_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var portfolios []model.Portfolio
	for rows.Next() {
		var p model.Portfolio
		var curS, initS string
		if err := rows.Scan(&p.ModelID, &p.ModelName, &curS, &initS,
			&p.TotalTrades, &p.WinningTrades, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CurrentBalance, _ = decimal.NewFromString(curS)
		p.InitialBalance, _ = decimal.NewFromString(initS)
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

func (s *PostgresStore) UpsertPortfolio(ctx context.Context, p *model.Portfolio) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO portfolios (model_id, model_name, current_balance, initial_balance, total_trades, winning_trades, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5, $6, $7)
		 ON CONFLICT (model_id) DO UPDATE SET
		   model_name = EXCLUDED.model_name,
		   current_balance = EXCLUDED.current_balance,
		   total_trades = EXCLUDED.total_trades,
		   winning_trades = EXCLUDED.winning_trades,
		   updated_at = EXCLUDED.updated_at`,
		p.ModelID, p.ModelName, p.CurrentBalance.String(), p.InitialBalance.String(),
		p.TotalTrades, p.WinningTrades, p.UpdatedAt,
	)
	return err
}

// --- Decisions ---

func (s *PostgresStore) InsertDecision(ctx context.Context, d *model.ModelDecision) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO model_decisions (id, model_id, symbol, action, summary, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7)`,
		d.ID, d.ModelID, d.Symbol, d.Action, d.Summary,
		d.Confidence.String(), d.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListRecentDecisions(ctx context.Context, limit int) ([]model.ModelDecision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, model_id, symbol, action, summary, confidence::TEXT, created_at
		 FROM model_decisions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []model.ModelDecision
	for rows.Next() {
		var d model.ModelDecision
		var confS string
		if err := rows.Scan(&d.ID, &d.ModelID, &d.Symbol, &d.Action,
			&d.Summary, &confS, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Confidence, _ = decimal.NewFromString(confS)
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// --- Suggestions & votes ---

func (s *PostgresStore) InsertSuggestion(ctx context.Context, sg *model.Suggestion) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO suggestions (id, user_id, model_id, content, upvotes, downvotes, is_implemented, operator_reply, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sg.ID, sg.UserID, sg.ModelID, sg.Content,
		sg.Upvotes, sg.Downvotes, sg.IsImplemented, sg.OperatorReply, sg.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetSuggestion(ctx context.Context, id string) (*model.Suggestion, error) {
	var sg model.Suggestion
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(model_id, ''), content, upvotes, downvotes,
		        is_implemented, COALESCE(operator_reply, ''), created_at
		 FROM suggestions WHERE id = $1`, id).
		Scan(&sg.ID, &sg.UserID, &sg.ModelID, &sg.Content, &sg.Upvotes,
			&sg.Downvotes, &sg.IsImplemented, &sg.OperatorReply, &sg.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "suggestion", id)
	}
	return &sg, nil
}

func (s *PostgresStore) ListSuggestions(ctx context.Context) ([]model.Suggestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, COALESCE(model_id, ''), content, upvotes, downvotes,
		        is_implemented, COALESCE(operator_reply, ''), created_at
		 FROM suggestions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suggestions []model.Suggestion
	for rows.Next() {
		var sg model.Suggestion
		if err := rows.Scan(&sg.ID, &sg.UserID, &sg.ModelID, &sg.Content,
			&sg.Upvotes, &sg.Downvotes, &sg.IsImplemented,
			&sg.OperatorReply, &sg.CreatedAt); err != nil {
			return nil, err
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}

func (s *PostgresStore) UpdateSuggestionStatus(ctx context.Context, id string, isImplemented bool, operatorReply string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE suggestions SET is_implemented = $2, operator_reply = $3 WHERE id = $1`,
		id, isImplemented, operatorReply)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	return nil
}

// ToggleVote runs the lookup, mutation, and recount in one serializable
// transaction so concurrent votes from the same user cannot race past the
// uniqueness check. The recount reads the post-mutation vote set.
func (s *PostgresStore) ToggleVote(ctx context.Context, suggestionID, userID, voteType string) (*model.VoteResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Verify the suggestion exists (and lock its counter row).
	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT true FROM suggestions WHERE id = $1 FOR UPDATE`, suggestionID).Scan(&exists)
	if err != nil {
		return nil, notFoundOr(err, "suggestion", suggestionID)
	}

	result := &model.VoteResult{}

	var existingType string
	err = tx.QueryRow(ctx,
		`SELECT vote_type FROM votes WHERE suggestion_id = $1 AND user_id = $2 FOR UPDATE`,
		suggestionID, userID).Scan(&existingType)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx,
			`INSERT INTO votes (suggestion_id, user_id, vote_type, created_at)
			 VALUES ($1, $2, $3, now())`, suggestionID, userID, voteType); err != nil {
			return nil, err
		}
		result.Outcome = model.VoteAdded
		result.UserVote = voteType

	case err != nil:
		return nil, err

	case existingType == voteType:
		if _, err := tx.Exec(ctx,
			`DELETE FROM votes WHERE suggestion_id = $1 AND user_id = $2`,
			suggestionID, userID); err != nil {
			return nil, err
		}
		result.Outcome = model.VoteRemoved

	default:
		if _, err := tx.Exec(ctx,
			`UPDATE votes SET vote_type = $3 WHERE suggestion_id = $1 AND user_id = $2`,
			suggestionID, userID, voteType); err != nil {
			return nil, err
		}
		result.Outcome = model.VoteSwitched
		result.UserVote = voteType
	}

	// Recount from the authoritative vote set and persist both buckets.
	err = tx.QueryRow(ctx,
		`UPDATE suggestions SET
		   upvotes   = (SELECT COUNT(*) FROM votes WHERE suggestion_id = $1 AND vote_type = 'up'),
		   downvotes = (SELECT COUNT(*) FROM votes WHERE suggestion_id = $1 AND vote_type = 'down')
		 WHERE id = $1
		 RETURNING upvotes, downvotes`, suggestionID).
		Scan(&result.Upvotes, &result.Downvotes)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) ListUserVotes(ctx context.Context, userID string) ([]model.Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT suggestion_id, user_id, vote_type, created_at
		 FROM votes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []model.Vote
	for rows.Next() {
		var v model.Vote
		if err := rows.Scan(&v.SuggestionID, &v.UserID, &v.VoteType, &v.CreatedAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// --- Profiles & ledger ---

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	var totalS, pendingS string

	err := s.pool.QueryRow(ctx,
		`SELECT id, email, points, total_rewards::TEXT, pending_rewards::TEXT, created_at
		 FROM user_profiles WHERE id = $1`, userID).
		Scan(&p.ID, &p.Email, &p.Points, &totalS, &pendingS, &p.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "profile", userID)
	}

	p.TotalRewards, _ = decimal.NewFromString(totalS)
	p.PendingRewards, _ = decimal.NewFromString(pendingS)
	return &p, nil
}

func (s *PostgresStore) EnsureProfile(ctx context.Context, userID, email string) (*model.UserProfile, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_profiles (id, email, points, total_rewards, pending_rewards, created_at)
		 VALUES ($1, $2, 0, 0, 0, now())
		 ON CONFLICT (id) DO NOTHING`, userID, email)
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

func (s *PostgresStore) ListPointTransactions(ctx context.Context, userID string, limit int) ([]model.PointTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, amount, reason, COALESCE(reference_id, ''), created_at
		 FROM point_transactions WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.PointTransaction
	for rows.Next() {
		var t model.PointTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Reason,
			&t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// --- Procedures ---

// AwardPoints calls the award_points database function. The function
// appends the ledger row and bumps the profile balance in one transaction;
// per-reason amounts live there, not in this service.
func (s *PostgresStore) AwardPoints(ctx context.Context, userID, reason, referenceID string) error {
	_, err := s.pool.Exec(ctx,
		`SELECT award_points(p_user_id := $1, p_reason := $2, p_reference_id := $3)`,
		userID, reason, referenceID)
	if err != nil {
		return fmt.Errorf("award_points(%s, %s): %w", userID, reason, err)
	}
	return nil
}

// DailyLoginBonus calls the daily_login_bonus database function, which is
// idempotent per user per UTC day.
func (s *PostgresStore) DailyLoginBonus(ctx context.Context, userID string) (bool, error) {
	var awarded bool
	err := s.pool.QueryRow(ctx,
		`SELECT daily_login_bonus(p_user_id := $1)`, userID).Scan(&awarded)
	if err != nil {
		return false, fmt.Errorf("daily_login_bonus(%s): %w", userID, err)
	}
	return awarded, nil
}
