// Package driver ticks the engine from a wall-clock ticker.
package driver

import (
	"context"
	"log/slog"
	"time"

	"github.com/seantiz/cadence/internal/model"
)

// Advancer is the part of the engine the driver needs.
type Advancer interface {
	Advance(ctx context.Context, dt time.Duration) []model.FrameSnapshot
}

// Driver calls Advance on every tick with the wall time measured since the
// previous one, so a late tick still carries the full elapsed time.
type Driver struct {
	eng      Advancer
	interval time.Duration
	logger   *slog.Logger
}

// New creates a driver ticking every interval.
func New(eng Advancer, interval time.Duration, logger *slog.Logger) *Driver {
	return &Driver{eng: eng, interval: interval, logger: logger}
}

// Run ticks until ctx is cancelled and returns ctx.Err().
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("driver started", "interval", d.interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("driver stopped")
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			start := time.Now()
			snaps := d.eng.Advance(ctx, dt)
			if took := time.Since(start); took > d.interval {
				d.logger.Warn("tick overran interval", "took", took, "interval", d.interval, "frames", len(snaps))
			}
		}
	}
}
