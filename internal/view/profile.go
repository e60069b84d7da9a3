package view

import (
	"context"
	"log/slog"

	"github.com/tradearena/community-engine/internal/feed"
	"github.com/tradearena/community-engine/internal/model"
	"github.com/tradearena/community-engine/internal/store"
	"github.com/tradearena/community-engine/internal/tier"
)

// ProfileView materializes one user's reward state: profile with derived
// tier plus the recent point ledger. Point-transaction events refetch the
// profile from the store rather than incrementing locally — the balance is
// trigger-maintained and the store is authoritative.
type ProfileView struct {
	status
	st      store.Store
	tiers   *tier.Table
	userID  string
	profile *model.UserProfile
	ledger  []model.PointTransaction
}

// NewProfileView creates an empty, loading profile view for one user.
func NewProfileView(st store.Store, tiers *tier.Table, userID string) *ProfileView {
	return &ProfileView{status: newStatus(), st: st, tiers: tiers, userID: userID}
}

func (v *ProfileView) Load(ctx context.Context) error {
	profile, err := v.st.GetProfile(ctx, v.userID)
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		v.setResult(err)
		return err
	}
	ledger, err := v.st.ListPointTransactions(ctx, v.userID, 50)
	if err != nil {
		v.setResult(err)
		return err
	}

	profile.Tier = v.tiers.ForPoints(profile.Points).Name

	v.mu.Lock()
	v.profile = profile
	v.ledger = ledger
	v.mu.Unlock()
	v.setResult(nil)
	return nil
}

func (v *ProfileView) Refetch(ctx context.Context) error {
	return v.Load(ctx)
}

// Apply handles point-transaction inserts for this user: the row is merged
// into the local ledger and the profile balance is refetched.
func (v *ProfileView) Apply(ctx context.Context, ev feed.Event) {
	if ev.Type != feed.EventInsert {
		return
	}
	var tx model.PointTransaction
	if err := feed.DecodeRow(ev.New, &tx); err != nil {
		slog.Warn("profile: undecodable point transaction skipped", "err", err)
		return
	}
	if tx.UserID != v.userID {
		return
	}

	v.mu.Lock()
	v.ledger = append([]model.PointTransaction{tx}, v.ledger...)
	v.mu.Unlock()

	profile, err := v.st.GetProfile(ctx, v.userID)
	if err != nil {
		slog.Warn("profile: refetch after point event failed", "user", v.userID, "err", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	profile.Tier = v.tiers.ForPoints(profile.Points).Name

	v.mu.Lock()
	v.profile = profile
	v.mu.Unlock()
}

// Profile returns the current profile snapshot, nil while loading.
func (v *ProfileView) Profile() *model.UserProfile {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.profile == nil {
		return nil
	}
	copy := *v.profile
	return &copy
}

// Ledger returns the recent point transactions, newest first.
func (v *ProfileView) Ledger() []model.PointTransaction {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]model.PointTransaction, len(v.ledger))
	copy(out, v.ledger)
	return out
}
