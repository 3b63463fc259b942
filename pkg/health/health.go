// Package health serves liveness and readiness probes.
//
// Checks run on demand when a probe is requested. All checks of one probe
// run concurrently, each bounded by its own timeout.
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

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Result is the outcome of one check.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Report is the outcome of one probe.
type Report struct {
	Healthy bool
	Results []Result
	// NotReady is set for readiness reports while the gate is closed.
	NotReady bool
}

// Health holds the registered checks and the readiness gate.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []check
	readiness []check
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check for /livez.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check for /readyz.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, check{name: name, timeout: timeout, fn: fn})
}

// SetReady opens or closes the readiness gate. It is closed during startup
// and graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Live runs the liveness checks.
func (h *Health) Live(ctx context.Context) Report {
	h.mu.RLock()
	checks := append([]check(nil), h.liveness...)
	h.mu.RUnlock()
	return runChecks(ctx, checks)
}

// Ready runs the readiness checks. The report is unhealthy while the gate
// is closed, regardless of check results.
func (h *Health) Ready(ctx context.Context) Report {
	h.mu.RLock()
	checks := append([]check(nil), h.readiness...)
	h.mu.RUnlock()

	rep := runChecks(ctx, checks)
	if !h.ready.Load() {
		rep.Healthy = false
		rep.NotReady = true
	}
	return rep
}

func runChecks(ctx context.Context, checks []check) Report {
	results := make([]Result, len(checks))

	// Check errors are collected in results, never returned to the group,
	// so one failure does not cancel the others.
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := c.fn(checkCtx)
			results[i] = Result{Name: c.name, Err: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	rep := Report{Healthy: true, Results: results}
	for _, r := range results {
		if r.Err != nil {
			rep.Healthy = false
		}
	}
	return rep
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	writeReport(w, h.Live(r.Context()))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	writeReport(w, h.Ready(r.Context()))
}

// writeReport answers 200 {"status":"ok"} or 503 {"status":"unhealthy",
// "checks":{name: error}}.
func writeReport(w http.ResponseWriter, rep Report) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		if rep.Healthy {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				if rep.NotReady {
					e.Field("_readiness", func(e *jx.Encoder) { e.Str("service is not ready") })
				}
				for _, res := range rep.Results {
					if res.Err == nil {
						continue
					}
					e.Field(res.Name, func(e *jx.Encoder) { e.Str(res.Err.Error()) })
				}
			})
		})
	})

	status := http.StatusOK
	if !rep.Healthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
