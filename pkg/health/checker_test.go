package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestChecker_AllPass(t *testing.T) {
	hc := NewChecker()
	hc.SetVersion("1.0.0")

	hc.AddCheck("ping", func(ctx context.Context) error {
		return nil
	}, time.Second)

	hc.AddCheck("workspace", func(ctx context.Context) error {
		return nil
	}, time.Second)

	status := hc.Check(context.Background())

	if status.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", status.Status)
	}

	if len(status.Checks) != 2 {
		t.Errorf("expected 2 checks, got %d", len(status.Checks))
	}

	for name, result := range status.Checks {
		if result.Status != StatusHealthy {
			t.Errorf("check %s should be healthy", name)
		}
		if result.Error != "" {
			t.Errorf("check %s should have no error", name)
		}
	}

	if status.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", status.Version)
	}
}

func TestChecker_NonCriticalFailureDegrades(t *testing.T) {
	hc := NewChecker()

	hc.AddCheck("passing", func(ctx context.Context) error {
		return nil
	}, time.Second)

	hc.AddCheck("failing", func(ctx context.Context) error {
		return errors.New("bus overloaded")
	}, time.Second)

	status := hc.Check(context.Background())

	if status.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", status.Status)
	}

	if status.Checks["passing"].Status != StatusHealthy {
		t.Error("passing check should be healthy")
	}

	if status.Checks["failing"].Status != StatusUnhealthy {
		t.Error("failing check should be unhealthy")
	}

	if status.Checks["failing"].Error == "" {
		t.Error("failing check should carry an error message")
	}
}

func TestChecker_CriticalFailureUnhealthy(t *testing.T) {
	hc := NewChecker()

	hc.AddCheck("passing", func(ctx context.Context) error {
		return nil
	}, time.Second)

	hc.AddCriticalCheck("workspace", func(ctx context.Context) error {
		return errors.New("workspace directory unavailable")
	}, time.Second)

	status := hc.Check(context.Background())

	if status.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", status.Status)
	}
}

func TestChecker_Timeout(t *testing.T) {
	hc := NewChecker()

	hc.AddCheck("slow", func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, 50*time.Millisecond)

	status := hc.Check(context.Background())

	if status.Checks["slow"].Status != StatusUnhealthy {
		t.Error("timed out check should be unhealthy")
	}
}

func TestChecker_CheckErrorDetailsSurface(t *testing.T) {
	hc := NewChecker()

	hc.AddCheck("breaker", func(ctx context.Context) error {
		return &CheckError{
			Message: "generation upstream circuit open",
			Details: map[string]any{"state": "open"},
		}
	}, time.Second)

	status := hc.Check(context.Background())

	details, ok := status.Checks["breaker"].Details.(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", status.Checks["breaker"].Details)
	}
	if details["state"] != "open" {
		t.Errorf("expected state open in details, got %v", details["state"])
	}
}

func TestChecker_LivenessHandler(t *testing.T) {
	hc := NewChecker()
	handler := hc.LivenessHandler()

	req := httptest.NewRequest("GET", "/healthz/live", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if response["status"] != "alive" {
		t.Error("expected status alive")
	}
}

func TestChecker_ReadinessHandler(t *testing.T) {
	hc := NewChecker()
	hc.AddCriticalCheck("workspace", func(ctx context.Context) error {
		return nil
	}, time.Second)

	handler := hc.ReadinessHandler()

	req := httptest.NewRequest("GET", "/healthz/ready", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestChecker_ReadinessHandler_Unhealthy(t *testing.T) {
	hc := NewChecker()
	hc.AddCriticalCheck("workspace", func(ctx context.Context) error {
		return errors.New("no such directory")
	}, time.Second)

	handler := hc.ReadinessHandler()

	req := httptest.NewRequest("GET", "/healthz/ready", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestChecker_HealthHandler(t *testing.T) {
	hc := NewChecker()
	hc.SetVersion("2.0.0")
	hc.AddCheck("cache", func(ctx context.Context) error {
		return nil
	}, time.Second)

	handler := hc.HealthHandler()

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if status.Version != "2.0.0" {
		t.Errorf("expected version 2.0.0, got %s", status.Version)
	}

	if _, ok := status.Checks["cache"]; !ok {
		t.Error("expected cache check in response")
	}
}

func TestDefaultChecker(t *testing.T) {
	hc := DefaultChecker("1.0.0")

	status := hc.Check(context.Background())

	if status.Status != StatusHealthy {
		t.Error("default checker should be healthy")
	}

	if status.Version != "1.0.0" {
		t.Error("version should be set")
	}

	if _, ok := status.Checks["ping"]; !ok {
		t.Error("default checker should have ping check")
	}
}

func TestWorkspaceCheck(t *testing.T) {
	dir := t.TempDir()

	if err := WorkspaceCheck(dir)(context.Background()); err != nil {
		t.Errorf("existing directory should pass: %v", err)
	}

	if err := WorkspaceCheck(filepath.Join(dir, "missing"))(context.Background()); err == nil {
		t.Error("missing directory should fail")
	}

	file := filepath.Join(dir, "App.jsx")
	if err := os.WriteFile(file, []byte("export default function App() {}"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := WorkspaceCheck(file)(context.Background()); err == nil {
		t.Error("plain file should fail")
	}
}

func TestBreakerCheck(t *testing.T) {
	state := "closed"
	check := BreakerCheck(func() string { return state })

	if err := check(context.Background()); err != nil {
		t.Errorf("closed breaker should pass: %v", err)
	}

	state = "open"
	if err := check(context.Background()); err == nil {
		t.Error("open breaker should fail")
	}

	state = "half-open"
	if err := check(context.Background()); err != nil {
		t.Errorf("half-open breaker should pass: %v", err)
	}
}

func TestBusCheck(t *testing.T) {
	dropped := int64(0)
	check := BusCheck(func() int64 { return dropped }, 10)

	if err := check(context.Background()); err != nil {
		t.Errorf("quiet bus should pass: %v", err)
	}

	dropped = 11
	if err := check(context.Background()); err == nil {
		t.Error("bus past drop threshold should fail")
	}
}

func TestConnectionCheck(t *testing.T) {
	current := 50
	check := ConnectionCheck(func() int { return current }, 100)

	if err := check(context.Background()); err != nil {
		t.Errorf("pool under capacity should pass: %v", err)
	}

	current = 100
	if err := check(context.Background()); err == nil {
		t.Error("pool at capacity should fail")
	}
}

func TestMemoryCheck(t *testing.T) {
	if err := MemoryCheck(0)(context.Background()); err != nil {
		t.Errorf("zero limit disables the check: %v", err)
	}

	if err := MemoryCheck(1)(context.Background()); err == nil {
		t.Error("one byte limit should always fail")
	}
}
