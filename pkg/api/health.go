package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cuemby/transctrl/pkg/log"
	"github.com/cuemby/transctrl/pkg/metrics"
)

// ServeHealth runs the HTTP sidecar exposing /healthz, /readyz, and
// /metrics. It blocks until ctx is canceled, then shuts the server down.
func ServeHealth(ctx context.Context, addr string, hc *metrics.HealthChecker) error {
	mux := http.NewServeMux()
	mux.Handle("/healthz", hc.HealthHandler())
	mux.Handle("/readyz", hc.ReadyHandler())
	mux.Handle("/livez", hc.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.WithComponent("api").Info().Str("addr", addr).Msg("health sidecar listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health sidecar: %w", err)
		}
		return nil
	}
}
