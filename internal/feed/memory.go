package feed

import (
	"context"
	"sync"
)

// MemorySource implements Source in-process, for tests and for development
// without a database. Producers call Publish to fan events out.
type MemorySource struct {
	mu   sync.Mutex
	subs map[string][]*memorySub
}

type memorySub struct {
	ch     chan Event
	filter Filter
	closed bool
}

// NewMemorySource creates an in-process event source.
func NewMemorySource() *MemorySource {
	return &MemorySource{subs: make(map[string][]*memorySub)}
}

func (s *MemorySource) Subscribe(ctx context.Context, resource string, filter Filter) (<-chan Event, func(), error) {
	if _, err := Channel(resource); err != nil {
		return nil, nil, err
	}

	sub := &memorySub{
		ch:     make(chan Event, 64),
		filter: filter,
	}

	s.mu.Lock()
	s.subs[resource] = append(s.subs[resource], sub)
	s.mu.Unlock()

	unsub := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		close(sub.ch)
		list := s.subs[resource]
		for i, candidate := range list {
			if candidate == sub {
				s.subs[resource] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}

	// Tie the subscription to the context as well, matching the Postgres
	// source's behavior.
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			unsub()
		}()
	}

	return sub.ch, unsub, nil
}

// Publish fans an event out to every matching subscriber. Events are
// delivered in publish order per subscriber; a subscriber whose buffer is
// full drops the event rather than blocking the publisher.
func (s *MemorySource) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs[ev.Resource] {
		if !sub.filter.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
