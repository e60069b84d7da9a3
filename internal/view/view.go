// Package view holds the materialized views served to clients: the ranked
// leaderboard, the recent-decision feed, the suggestion list, and per-user
// profile/vote state. Views are fed by feed.Subscriber callbacks and expose
// value + loading + error with an explicit Refetch.
//
// Aggregates are always recomputed from the full post-merge collection,
// never incremented — correctness over performance, so repeated or
// concurrent events cannot cause drift.
package view

import (
	"sync"
)

// status is the shared loading/error surface embedded in every view.
// A view is loading until its first fetch resolves to either data or an
// error; it never hangs in between.
type status struct {
	mu      sync.RWMutex
	loading bool
	err     error
	loaded  bool
}

func newStatus() status {
	return status{loading: true}
}

// Loading reports whether the initial snapshot is still being established.
func (s *status) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last fetch error, nil once a fetch has succeeded.
func (s *status) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *status) setResult(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.err = err
	if err == nil {
		s.loaded = true
	}
}
