package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a connection pool.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrap(p.Ping(ctx), "ping")
	}
}

// GoroutineCheck fails when more than limit goroutines are running.
func GoroutineCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}

// GCPauseCheck fails when a recent stop-the-world pause exceeded limit.
func GCPauseCheck(limit time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > limit {
				return errors.Errorf("gc pause %s over %s", pause, limit)
			}
		}
		return nil
	}
}
