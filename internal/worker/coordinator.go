package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often a coordinator re-reads dependency status.
const DefaultPollInterval = 100 * time.Millisecond

// DependencyClient exposes another worker's status and start operation,
// usually over HTTP.
type DependencyClient interface {
	Status(ctx context.Context, name string) (Status, error)
	Start(ctx context.Context, name string) error
}

// Coordinator makes sure a dependency is READY before a dependent starts.
type Coordinator struct {
	client   DependencyClient
	interval time.Duration
	log      zerolog.Logger
}

// NewCoordinator returns a coordinator polling client every interval.
// A non-positive interval selects DefaultPollInterval.
func NewCoordinator(client DependencyClient, interval time.Duration, log zerolog.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Coordinator{client: client, interval: interval, log: log}
}

// EnsureReady starts the dependency if it is IDLE, then polls until it
// reports READY. Any status or start error aborts the wait, as does ctx.
// There is no built-in deadline.
func (c *Coordinator) EnsureReady(ctx context.Context, name string) error {
	st, err := c.client.Status(ctx, name)
	if err != nil {
		return err
	}
	if st == StatusIdle {
		c.log.Info().Str("dependency", name).Msg("starting dependency")
		if err := c.client.Start(ctx, name); err != nil {
			return err
		}
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		st, err := c.client.Status(ctx, name)
		if err != nil {
			return err
		}
		if st == StatusReady {
			c.log.Info().Str("dependency", name).Msg("dependency ready")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
