// Package health serves liveness and readiness probes for the storefront API.
//
// Probes run in the background and flip state only after FailAfter
// consecutive failures or RecoverAfter consecutive successes, so one slow
// database ping does not take the pod out of rotation.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the probed dependency is usable.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a probe contributes to.
type Kind uint8

const (
	Liveness Kind = iota
	Readiness
)

// Options tunes probe scheduling.
type Options struct {
	Interval     time.Duration
	Timeout      time.Duration
	FailAfter    int
	RecoverAfter int
}

func (o *Options) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	if o.FailAfter <= 0 {
		o.FailAfter = 3
	}
	if o.RecoverAfter <= 0 {
		o.RecoverAfter = 1
	}
}

type probe struct {
	name  string
	kind  Kind
	check CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Only touched by the probe's own goroutine.
	fails int
	oks   int
}

func (p *probe) run(ctx context.Context, opts Options) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := p.check(ctx); err != nil {
		msg := err.Error()
		p.lastErr.Store(&msg)
		p.oks = 0
		p.fails++
		if p.fails >= opts.FailAfter {
			p.healthy.Store(false)
		}
		return
	}
	p.lastErr.Store(nil)
	p.fails = 0
	p.oks++
	if p.oks >= opts.RecoverAfter {
		p.healthy.Store(true)
	}
}

func (p *probe) reason() string {
	if msg := p.lastErr.Load(); msg != nil {
		return *msg
	}
	return "unhealthy"
}

// Health tracks registered probes and the manual ready flag.
type Health struct {
	opts  Options
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
}

// New creates a Health that starts not ready.
func New(opts Options) *Health {
	opts.setDefaults()
	return &Health{opts: opts}
}

// Add registers a probe. Probes start healthy.
func (h *Health) Add(kind Kind, name string, check CheckFunc) {
	p := &probe{name: name, kind: kind, check: check}
	p.healthy.Store(true)

	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

// SetReady marks the service as accepting traffic, or draining.
func (h *Health) SetReady(ready bool) { h.ready.Store(ready) }

// Run executes every probe on its own ticker until ctx is done.
func (h *Health) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range h.snapshot() {
		g.Go(func() error {
			ticker := time.NewTicker(h.opts.Interval)
			defer ticker.Stop()
			for {
				p.run(ctx, h.opts)
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	return g.Wait()
}

func (h *Health) snapshot() []*probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*probe(nil), h.probes...)
}

func (h *Health) failures(kind Kind) map[string]string {
	out := make(map[string]string)
	for _, p := range h.snapshot() {
		if p.kind == kind && !p.healthy.Load() {
			out[p.name] = p.reason()
		}
	}
	return out
}

// IsReady reports the ready flag combined with readiness probe state.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	write(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := h.failures(Readiness)
	if !h.ready.Load() {
		failed["service"] = "not ready"
	}
	write(w, failed)
}

func write(w http.ResponseWriter, failed map[string]string) {
	status, label := http.StatusOK, "ok"
	if len(failed) > 0 {
		status, label = http.StatusServiceUnavailable, "unhealthy"
	}

	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(label) })
		if len(names) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failed[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
