package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable is anything with idle entries to evict.
type Sweepable interface {
	Sweep(ttl time.Duration) int
}

// SweepFunc adapts a function to Sweepable.
type SweepFunc func(ttl time.Duration) int

// Sweep calls f.
func (f SweepFunc) Sweep(ttl time.Duration) int {
	return f(ttl)
}

// StartTTLWorker runs a background goroutine that periodically evicts tab
// state idle for longer than ttl. It stops when ctx is done.
func StartTTLWorker(ctx context.Context, interval, ttl time.Duration, targets ...Sweepable) {
	if interval <= 0 || ttl <= 0 {
		slog.Info("TTL worker disabled", "interval", interval, "ttl", ttl)
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(ttl, targets)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ttl time.Duration, targets []Sweepable) int {
	total := 0
	for _, t := range targets {
		total += t.Sweep(ttl)
	}
	if total > 0 {
		slog.Info("TTL worker evicted idle tab state", "count", total)
	}
	return total
}
