package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cuemby/transctrl/pkg/runtime"
)

// pingTimeout bounds the live Docker probe a readiness/health check performs
// so a wedged daemon fails the check instead of hanging the handler.
const pingTimeout = 3 * time.Second

// HealthStatus is the JSON body served by the health and readiness endpoints.
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy", "degraded", "unhealthy", "ready", "not_ready"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// HealthChecker reports this daemon's two load-bearing conditions: whether
// the Docker Engine API is reachable, and whether the gRPC server has
// finished starting. It has no generic component registry — a daemon this
// small has exactly two things that can be down.
type HealthChecker struct {
	runtime   runtime.Driver
	startTime time.Time
	version   atomic.Value // string
	apiReady  atomic.Bool
}

// NewHealthChecker creates a checker that probes rt for Docker connectivity.
func NewHealthChecker(rt runtime.Driver) *HealthChecker {
	hc := &HealthChecker{
		runtime:   rt,
		startTime: time.Now(),
	}
	hc.version.Store("")
	return hc
}

// SetVersion sets the version string reported in health responses.
func (hc *HealthChecker) SetVersion(version string) {
	hc.version.Store(version)
}

// SetAPIReady marks whether the gRPC server has finished starting.
func (hc *HealthChecker) SetAPIReady(ready bool) {
	hc.apiReady.Store(ready)
}

func (hc *HealthChecker) pingDocker(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := hc.runtime.ListManaged(ctx)
	return err
}

// CheckHealth reports whether the Docker connection this daemon depends on
// is currently usable. Unlike readiness, it does not factor in whether the
// API has finished starting — a daemon that is up but still initializing is
// still healthy.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	status := "healthy"
	components := map[string]string{"docker": "healthy"}

	if err := hc.pingDocker(ctx); err != nil {
		status = "unhealthy"
		components["docker"] = "unhealthy: " + err.Error()
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Version:    hc.version.Load().(string),
		Uptime:     time.Since(hc.startTime).String(),
	}
}

// CheckReadiness reports whether this daemon can serve Reconcile/GetStatus
// traffic: the gRPC server must have finished starting and Docker must be
// reachable.
func (hc *HealthChecker) CheckReadiness(ctx context.Context) HealthStatus {
	status := "ready"
	message := ""
	components := make(map[string]string, 2)

	if !hc.apiReady.Load() {
		status = "not_ready"
		message = "waiting for api to start"
		components["api"] = "not ready"
	} else {
		components["api"] = "ready"
	}

	if err := hc.pingDocker(ctx); err != nil {
		status = "not_ready"
		message = "docker unreachable"
		components["docker"] = "not ready: " + err.Error()
	} else {
		components["docker"] = "ready"
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    hc.version.Load().(string),
		Uptime:     time.Since(hc.startTime).String(),
	}
}

// HealthHandler serves /healthz.
func (hc *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hc.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		statusCode := http.StatusOK
		if health.Status != "healthy" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(health)
	}
}

// ReadyHandler serves /readyz.
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := hc.CheckReadiness(r.Context())

		w.Header().Set("Content-Type", "application/json")
		statusCode := http.StatusOK
		if readiness.Status != "ready" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(readiness)
	}
}

// LivenessHandler serves /livez: a bare process-is-running check that never
// touches Docker, so it cannot be taken down by a wedged daemon connection.
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(hc.startTime).String(),
		})
	}
}
