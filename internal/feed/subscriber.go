package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tradearena/community-engine/internal/metrics"
)

// Subscriber states.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateSubscribed
	StateError
	StateTearingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateSubscribed:
		return "subscribed"
	case StateError:
		return "error"
	case StateTearingDown:
		return "tearing_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FetchFunc loads the full baseline snapshot for a resource into the view.
// Implementations must honor ctx cancellation and must not commit results
// once ctx is done, so late fetches after teardown are discarded.
type FetchFunc func(ctx context.Context) error

// ApplyFunc merges one change event into the view and recomputes dependent
// aggregates from the full post-merge collection.
type ApplyFunc func(ctx context.Context, ev Event)

// Subscriber keeps one materialized view synchronized with one resource's
// change feed. Lifecycle: Idle → Fetching → Subscribed → (event)* →
// TearingDown → Closed. A failed baseline fetch or subscribe parks in
// Error, from which Retry re-runs the fetch and subscribes again.
//
// Subscribers are independent: a failure in one never affects another.
type Subscriber struct {
	source   Source
	resource string
	filter   Filter
	fetch    FetchFunc
	apply    ApplyFunc

	state atomic.Int32
	alive atomic.Bool
	retry chan struct{}

	cancel context.CancelFunc
	done   chan struct{}

	stopOnce sync.Once
}

// NewSubscriber wires a subscriber for one resource. fetch establishes the
// baseline; apply merges each subsequent event.
func NewSubscriber(source Source, resource string, filter Filter, fetch FetchFunc, apply ApplyFunc) *Subscriber {
	s := &Subscriber{
		source:   source,
		resource: resource,
		filter:   filter,
		fetch:    fetch,
		apply:    apply,
		retry:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.state.Store(int32(StateIdle))
	return s
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// Start runs the subscriber until Stop or ctx cancellation. The baseline
// fetch completes before the subscription begins, so no event is applied
// against a missing snapshot.
func (s *Subscriber) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.alive.Store(true)
	go s.run(ctx)
}

// Retry re-runs a failed baseline fetch or subscribe. No-op unless in the
// Error state.
func (s *Subscriber) Retry() {
	if s.State() != StateError {
		return
	}
	select {
	case s.retry <- struct{}{}:
	default:
	}
}

// Stop tears the subscriber down. The liveness flag drops before anything
// else, so by the time Stop returns no callback can run and no late event
// or fetch result will be applied.
func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() {
		s.alive.Store(false)
		s.state.Store(int32(StateTearingDown))
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.state.Store(int32(StateClosed))
	})
}

func (s *Subscriber) run(ctx context.Context) {
	defer close(s.done)

	// Baseline fetch then subscribe, with manual retry from the Error
	// state. A failed subscribe retries through the same loop as a failed
	// fetch and re-establishes the baseline first, so no event lands on a
	// stale snapshot.
	var (
		events <-chan Event
		unsub  func()
	)
	for {
		s.state.Store(int32(StateFetching))
		err := s.fetch(ctx)
		if ctx.Err() != nil || !s.alive.Load() {
			return
		}
		if err == nil {
			events, unsub, err = s.source.Subscribe(ctx, s.resource, s.filter)
			if err == nil {
				break
			}
			slog.Error("feed: subscribe failed", "resource", s.resource, "err", err)
		} else {
			slog.Error("feed: baseline fetch failed", "resource", s.resource, "err", err)
		}

		s.state.Store(int32(StateError))
		select {
		case <-s.retry:
		case <-ctx.Done():
			return
		}
	}
	defer unsub()

	s.state.Store(int32(StateSubscribed))
	slog.Info("feed: subscribed", "resource", s.resource)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !s.alive.Load() {
				return
			}
			if !ev.valid() {
				metrics.FeedEventsDropped.WithLabelValues(s.resource).Inc()
				slog.Warn("feed: malformed event skipped",
					"resource", s.resource, "type", ev.Type)
				continue
			}
			metrics.FeedEvents.WithLabelValues(s.resource, ev.Type).Inc()
			s.apply(ctx, ev)
		}
	}
}
