package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradearena/community-engine/internal/metrics"
)

// PostgresSource implements Source over Postgres LISTEN/NOTIFY. Row
// triggers on each watched table send pg_notify('arena:{resource}',
// json_build_object('type', TG_OP, 'new', NEW, 'old', OLD)).
//
// Each subscription holds one dedicated connection from the pool for the
// duration of the LISTEN; notification payloads that fail to parse are
// counted and skipped, never fatal to the subscription.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a LISTEN/NOTIFY-backed event source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// notifyPayload is the JSON shape produced by the notify triggers.
type notifyPayload struct {
	Type string         `json:"type"`
	New  map[string]any `json:"new"`
	Old  map[string]any `json:"old"`
}

func (s *PostgresSource) Subscribe(ctx context.Context, resource string, filter Filter) (<-chan Event, func(), error) {
	channel, err := Channel(resource)
	if err != nil {
		return nil, nil, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("feed: acquire conn for %s: %w", resource, err)
	}

	// Channel names contain ':' so the identifier must be quoted.
	if _, err := conn.Exec(ctx, fmt.Sprintf(`LISTEN %q`, channel)); err != nil {
		conn.Release()
		return nil, nil, fmt.Errorf("feed: listen %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, 64)

	go func() {
		defer close(events)
		defer conn.Release()

		for {
			n, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					slog.Error("feed: wait for notification failed",
						"resource", resource, "err", err)
				}
				return
			}

			var payload notifyPayload
			if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
				metrics.FeedEventsDropped.WithLabelValues(resource).Inc()
				slog.Warn("feed: unparseable notification skipped",
					"resource", resource, "err", err)
				continue
			}

			ev := Event{
				Resource: resource,
				Type:     payload.Type,
				New:      payload.New,
				Old:      payload.Old,
			}
			if !filter.matches(ev) {
				continue
			}

			select {
			case events <- ev:
			case <-subCtx.Done():
				return
			}
		}
	}()

	return events, cancel, nil
}
