package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tradearena/community-engine/internal/auth"
	"github.com/tradearena/community-engine/internal/community"
	"github.com/tradearena/community-engine/internal/feed"
	"github.com/tradearena/community-engine/internal/jobs"
	"github.com/tradearena/community-engine/internal/ledger"
	"github.com/tradearena/community-engine/internal/metrics"
	"github.com/tradearena/community-engine/internal/store"
	"github.com/tradearena/community-engine/internal/tier"
	"github.com/tradearena/community-engine/internal/view"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store and change feed ---
	var st store.Store
	var source feed.Source
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		source = feed.NewPostgresSource(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
		source = feed.NewMemorySource()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Tier ladder ---
	tiers := tier.Default()
	if raw := os.Getenv("TIER_THRESHOLDS"); raw != "" {
		t, err := tier.Parse([]byte(raw))
		if err != nil {
			slog.Error("invalid TIER_THRESHOLDS", "err", err)
			os.Exit(1)
		}
		tiers = t
	}

	// --- Session tokens ---
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Warn("JWT_SECRET not set, using insecure default (development only)")
		secret = "dev-secret-do-not-use-in-production"
	}
	tokens := auth.JWT{Secret: []byte(secret), TokenTTL: 24 * time.Hour}

	// --- WebSocket hub ---
	wsHub := community.NewWSHub()
	go wsHub.Run()

	// --- Services ---
	ledgerSvc := ledger.NewService(st, logger)
	communitySvc := community.NewService(st, ledgerSvc, tiers, wsHub)
	if ops := os.Getenv("OPERATOR_IDS"); ops != "" {
		communitySvc.SetOperators(strings.Split(ops, ","))
	}

	// --- Materialized views + feed subscribers ---
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	leaderboard := view.NewLeaderboardView(st)
	decisions := view.NewDecisionsView(st)
	suggestions := view.NewSuggestionsView(st)
	communitySvc.UseViews(&community.Views{
		Leaderboard: leaderboard,
		Decisions:   decisions,
		Suggestions: suggestions,
	})

	subscribers := []*feed.Subscriber{
		feed.NewSubscriber(source, feed.ResourcePortfolios, feed.Filter{},
			leaderboard.Load,
			func(ctx context.Context, ev feed.Event) {
				leaderboard.Apply(ctx, ev)
				wsHub.Broadcast(community.WSMessage{
					Type:     "leaderboard_updated",
					Resource: feed.ResourcePortfolios,
					Data:     leaderboard.Entries(),
				})
			}),
		feed.NewSubscriber(source, feed.ResourceDecisions, feed.Filter{},
			decisions.Load,
			func(ctx context.Context, ev feed.Event) {
				decisions.Apply(ctx, ev)
				wsHub.Broadcast(community.WSMessage{
					Type:     "decision_created",
					Resource: feed.ResourceDecisions,
					Data:     ev.New,
				})
			}),
		feed.NewSubscriber(source, feed.ResourceSuggestions, feed.Filter{},
			suggestions.Load,
			func(ctx context.Context, ev feed.Event) {
				suggestions.Apply(ctx, ev)
				wsHub.Broadcast(community.WSMessage{
					Type:     "suggestions_changed",
					Resource: feed.ResourceSuggestions,
					Data:     ev.New,
				})
			}),
	}
	for _, sub := range subscribers {
		sub.Start(rootCtx)
	}
	defer func() {
		for _, sub := range subscribers {
			sub.Stop()
		}
	}()

	// --- Scheduled jobs ---
	cronRunner := jobs.New(logger, rootCtx)
	if _, err := cronRunner.Add("0 */5 * * * *", jobs.BroadcastLeaderboard(st, wsHub, logger)); err != nil {
		slog.Error("failed to schedule leaderboard broadcast", "err", err)
		os.Exit(1)
	}
	if _, err := cronRunner.Add("0 0 4 * * *", jobs.InvalidateLeaderboardCache(st, logger)); err != nil {
		slog.Error("failed to schedule cache invalidation", "err", err)
		os.Exit(1)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(tokens.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"community-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time arena updates.
		r.Get("/ws", wsHub.HandleWS)

		communitySvc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("community-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down community-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("community-engine stopped")
}
