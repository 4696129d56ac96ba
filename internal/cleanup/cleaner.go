package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper removes expired state and reports how much it removed
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweeperFunc adapts a function to Sweeper
type SweeperFunc func(ctx context.Context) (int, error)

// Sweep calls f
func (f SweeperFunc) Sweep(ctx context.Context) (int, error) {
	return f(ctx)
}

// Cleaner runs named sweepers on a fixed interval
type Cleaner struct {
	sweepers map[string]Sweeper
	order    []string
	interval time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Cleaner{
		sweepers: make(map[string]Sweeper),
		interval: interval,
	}
}

// Add registers a sweeper under name. Sweepers run in registration order.
func (c *Cleaner) Add(name string, s Sweeper) {
	if _, exists := c.sweepers[name]; !exists {
		c.order = append(c.order, name)
	}
	c.sweepers[name] = s
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "sweepers", c.order)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup runs every sweeper once. A failing sweeper does not stop the others.
func (c *Cleaner) cleanup(ctx context.Context) {
	slog.Debug("running cleanup cycle")

	for _, name := range c.order {
		n, err := c.sweepers[name].Sweep(ctx)
		if err != nil {
			slog.Error("cleanup sweep failed", "sweeper", name, "error", err)
			continue
		}
		if n == 0 {
			slog.Debug("nothing to clean", "sweeper", name)
			continue
		}
		slog.Info("expired entries removed", "sweeper", name, "count", n)
	}
}
