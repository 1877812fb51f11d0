// Package health reports whether the dev server can do its job: serve
// documents, persist source edits, fan out patches, and reach the
// generation upstream. The dev server mounts the handlers under /healthz.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"
)

// Status represents the health status of the server.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const defaultCheckTimeout = 5 * time.Second

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration_ms"`
	Error    string        `json:"error,omitempty"`
	Details  any           `json:"details,omitempty"`
}

// HealthStatus represents the overall health of the server.
type HealthStatus struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// Check defines a single health check.
type Check struct {
	Name     string
	Check    func(ctx context.Context) error
	Timeout  time.Duration
	Critical bool // failure makes the overall status unhealthy
}

// Checker runs registered health checks for the dev server.
type Checker struct {
	checks  []Check
	version string
	mu      sync.RWMutex
}

// NewChecker creates a health checker with no checks registered.
func NewChecker() *Checker {
	return &Checker{
		checks: make([]Check, 0),
	}
}

// SetVersion sets the server version shown in health responses.
func (hc *Checker) SetVersion(version string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.version = version
}

// AddCheck registers a health check. A failure degrades the overall
// status but does not make it unhealthy.
func (hc *Checker) AddCheck(name string, check func(context.Context) error, timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks = append(hc.checks, Check{
		Name:    name,
		Check:   check,
		Timeout: timeout,
	})
}

// AddCriticalCheck registers a critical health check.
// If a critical check fails, the overall status is unhealthy.
func (hc *Checker) AddCriticalCheck(name string, check func(context.Context) error, timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks = append(hc.checks, Check{
		Name:     name,
		Check:    check,
		Timeout:  timeout,
		Critical: true,
	})
}

// Check runs all registered checks concurrently and returns the
// overall status.
func (hc *Checker) Check(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	checks := make([]Check, len(hc.checks))
	copy(checks, hc.checks)
	version := hc.version
	hc.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusHealthy,
		Checks:    make(map[string]CheckResult),
		Timestamp: time.Now(),
		Version:   version,
	}

	type namedResult struct {
		name     string
		result   CheckResult
		critical bool
	}

	results := make(chan namedResult, len(checks))
	var wg sync.WaitGroup

	for _, c := range checks {
		wg.Add(1)
		go func(check Check) {
			defer wg.Done()

			timeout := check.Timeout
			if timeout <= 0 {
				timeout = defaultCheckTimeout
			}

			start := time.Now()
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := check.Check(checkCtx)
			duration := time.Since(start)

			result := CheckResult{
				Status:   StatusHealthy,
				Duration: duration / time.Millisecond,
			}

			if err != nil {
				result.Status = StatusUnhealthy
				result.Error = err.Error()
				var ce *CheckError
				if errors.As(err, &ce) {
					result.Details = ce.Details
				}
			}

			results <- namedResult{
				name:     check.Name,
				result:   result,
				critical: check.Critical,
			}
		}(c)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		status.Checks[r.name] = r.result

		if r.result.Status != StatusHealthy {
			if r.critical {
				status.Status = StatusUnhealthy
			} else if status.Status == StatusHealthy {
				status.Status = StatusDegraded
			}
		}
	}

	return status
}

// LivenessHandler returns an HTTP handler for liveness probes.
// Returns 200 whenever the process is running.
func (hc *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	})
}

// ReadinessHandler returns an HTTP handler for readiness probes.
// Returns 200 if no critical check fails, 503 otherwise.
func (hc *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := hc.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")

		if status.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(status)
	})
}

// HealthHandler returns an HTTP handler for full health reports.
// Always returns 200 with per-check detail.
func (hc *Checker) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := hc.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	})
}

// Check constructors. Each takes plain closures so the checker stays
// decoupled from the packages it observes.

// PingCheck always passes.
func PingCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		return nil
	}
}

// WorkspaceCheck verifies the source directory the editor rewrites
// still exists. Without it property edits cannot be persisted.
func WorkspaceCheck(dir string) func(context.Context) error {
	return func(ctx context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return &CheckError{
				Message: "workspace directory unavailable",
				Details: map[string]any{"dir": dir, "cause": err.Error()},
			}
		}
		if !info.IsDir() {
			return &CheckError{
				Message: "workspace path is not a directory",
				Details: map[string]any{"dir": dir},
			}
		}
		return nil
	}
}

// BreakerCheck reports the generation upstream as unavailable while its
// circuit breaker is open. Half-open still passes: probes are allowed.
func BreakerCheck(state func() string) func(context.Context) error {
	return func(ctx context.Context) error {
		s := state()
		if s == "open" {
			return &CheckError{
				Message: "generation upstream circuit open",
				Details: map[string]any{"state": s},
			}
		}
		return nil
	}
}

// BusCheck fails once the message bus has dropped more than maxDropped
// messages, which means sessions are too slow to drain their queues.
func BusCheck(dropped func() int64, maxDropped int64) func(context.Context) error {
	return func(ctx context.Context) error {
		n := dropped()
		if n > maxDropped {
			return &CheckError{
				Message: "message bus dropping messages",
				Details: map[string]any{"dropped": n, "max": maxDropped},
			}
		}
		return nil
	}
}

// ConnectionCheck fails when the websocket connection pool is at
// capacity and new editor sessions would be rejected.
func ConnectionCheck(count func() int, maxConnections int) func(context.Context) error {
	return func(ctx context.Context) error {
		n := count()
		if n >= maxConnections {
			return &CheckError{
				Message: "connection pool at capacity",
				Details: map[string]any{"current": n, "max": maxConnections},
			}
		}
		return nil
	}
}

// MemoryCheck fails when the heap exceeds maxBytes. A zero limit
// disables the check.
func MemoryCheck(maxBytes uint64) func(context.Context) error {
	return func(ctx context.Context) error {
		if maxBytes == 0 {
			return nil
		}
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		if m.HeapAlloc > maxBytes {
			return &CheckError{
				Message: "heap over limit",
				Details: map[string]any{"heap_alloc": m.HeapAlloc, "max": maxBytes},
			}
		}
		return nil
	}
}

// CheckError is a health check failure with structured details that
// surface in the /healthz response.
type CheckError struct {
	Message string
	Details map[string]any
}

func (e *CheckError) Error() string {
	return e.Message
}

// DefaultChecker returns a checker with the baseline ping check.
func DefaultChecker(version string) *Checker {
	hc := NewChecker()
	hc.SetVersion(version)
	hc.AddCheck("ping", PingCheck(), time.Second)
	return hc
}
