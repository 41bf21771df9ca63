package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/transctrl/pkg/runtime"
	"github.com/cuemby/transctrl/pkg/types"
)

// stubDriver is a minimal runtime.Driver used only to control whether the
// Docker ping in a health/readiness check succeeds or fails.
type stubDriver struct {
	runtime.Driver
	listErr error
}

func (s *stubDriver) ListManaged(ctx context.Context) ([]*types.ManagedContainer, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return nil, nil
}

func TestCheckHealth_DockerReachable(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{})
	hc.SetVersion("1.0.0")

	health := hc.CheckHealth(context.Background())

	if health.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", health.Status)
	}
	if health.Components["docker"] != "healthy" {
		t.Errorf("expected docker healthy, got '%s'", health.Components["docker"])
	}
	if health.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", health.Version)
	}
}

func TestCheckHealth_DockerUnreachable(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{listErr: errors.New("connection refused")})

	health := hc.CheckHealth(context.Background())

	if health.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got '%s'", health.Status)
	}
	if health.Components["docker"] == "healthy" {
		t.Error("expected docker to be reported unhealthy")
	}
}

func TestCheckReadiness_ReadyOnlyWhenAPIReadyAndDockerReachable(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{})

	notReady := hc.CheckReadiness(context.Background())
	if notReady.Status != "not_ready" {
		t.Errorf("expected not_ready before SetAPIReady, got '%s'", notReady.Status)
	}
	if notReady.Message == "" {
		t.Error("expected message explaining why not ready")
	}

	hc.SetAPIReady(true)

	ready := hc.CheckReadiness(context.Background())
	if ready.Status != "ready" {
		t.Errorf("expected status 'ready', got '%s'", ready.Status)
	}
}

func TestCheckReadiness_NotReadyWhenDockerUnreachable(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{listErr: errors.New("docker daemon unreachable")})
	hc.SetAPIReady(true)

	readiness := hc.CheckReadiness(context.Background())

	if readiness.Status != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%s'", readiness.Status)
	}
	if readiness.Components["docker"] == "ready" {
		t.Error("expected docker to be reported not ready")
	}
}

func TestHealthHandler(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{})
	hc.SetVersion("test")

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	hc.HealthHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy status, got %s", health.Status)
	}
	if health.Version != "test" {
		t.Errorf("expected version 'test', got %s", health.Version)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{listErr: errors.New("broken")})

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	hc.HealthHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "unhealthy" {
		t.Errorf("expected unhealthy status, got %s", health.Status)
	}
}

func TestReadyHandler(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{})
	hc.SetAPIReady(true)

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()

	hc.ReadyHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var readiness HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&readiness); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if readiness.Status != "ready" {
		t.Errorf("expected ready status, got %s", readiness.Status)
	}
}

func TestReadyHandler_NotReady(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{})
	// SetAPIReady never called.

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()

	hc.ReadyHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var readiness HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&readiness); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if readiness.Status != "not_ready" {
		t.Errorf("expected not_ready status, got %s", readiness.Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{})

	req := httptest.NewRequest("GET", "/livez", nil)
	w := httptest.NewRecorder()

	hc.LivenessHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "alive" {
		t.Errorf("expected status 'alive', got '%s'", response["status"])
	}
	if response["uptime"] == "" {
		t.Error("uptime should not be empty")
	}
}

func TestLivenessHandler_IgnoresDockerState(t *testing.T) {
	hc := NewHealthChecker(&stubDriver{listErr: errors.New("docker is down")})

	req := httptest.NewRequest("GET", "/livez", nil)
	w := httptest.NewRecorder()

	hc.LivenessHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("liveness should stay 200 regardless of docker state, got %d", w.Code)
	}
}
