package workers

import (
	"context"
	"log/slog"

	application "eligo/contexts/election-operations/ballot-engine/application"
	"eligo/contexts/election-operations/ballot-engine/application/queries"
	"eligo/contexts/election-operations/ballot-engine/ports"
)

// TallyRefresher re-warms the results cache whenever the cast path reports a
// tally invalidation, so read-heavy pollers mostly hit a warm cache instead
// of racing each other into recomputation.
type TallyRefresher struct {
	Subscriber    ports.EventSubscriber
	Tallies       queries.TallyUseCase
	ConsumerGroup string
	Logger        *slog.Logger
}

func (c TallyRefresher) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	return c.Subscriber.Subscribe(ctx, "tally.invalidated", c.ConsumerGroup,
		func(ctx context.Context, event ports.EventEnvelope) error {
			if _, err := c.Tallies.Results(ctx); err != nil {
				logger.Error("tally refresh failed",
					"event", "ballot_tally_refresh_failed",
					"module", "election-operations/ballot-engine",
					"layer", "worker",
					"event_id", event.EventID,
					"error", err.Error(),
				)
				return err
			}
			logger.Debug("tally cache refreshed",
				"event", "ballot_tally_refreshed",
				"module", "election-operations/ballot-engine",
				"layer", "worker",
				"event_id", event.EventID,
			)
			return nil
		})
}
