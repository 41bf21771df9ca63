// Command transctrld is the controller daemon: it hosts the gRPC service on
// a Unix domain socket and a plain HTTP sidecar for health checks and
// Prometheus scraping.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cuemby/transctrl/pkg/api"
	"github.com/cuemby/transctrl/pkg/audit"
	"github.com/cuemby/transctrl/pkg/config"
	"github.com/cuemby/transctrl/pkg/controller"
	"github.com/cuemby/transctrl/pkg/drift"
	"github.com/cuemby/transctrl/pkg/log"
	"github.com/cuemby/transctrl/pkg/metrics"
	"github.com/cuemby/transctrl/pkg/ratelimit"
	"github.com/cuemby/transctrl/pkg/reconciler"
	"github.com/cuemby/transctrl/pkg/runtime"
	"github.com/cuemby/transctrl/pkg/validator"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "transctrld",
	Short:   "transctrl controller daemon",
	Version: Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("transctrld %s (%s)\n", Version, Commit))
	serveCmd.Flags().String("health-addr", "127.0.0.1:9090", "Address for the HTTP health/metrics sidecar")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	log.Init(log.Config{Level: log.Level(cfg.LogLevel)})
	logger := log.WithComponent("main")

	driver, err := runtime.NewDockerDriver(cfg.DockerHost)
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	defer driver.Close()

	vcfg := validator.Config{AllowedMountBase: cfg.AllowedMountBase}
	dcfg := drift.Config{DefaultMemLimit: cfg.DefaultMemLimit, DefaultCPUQuota: cfg.DefaultCPUQuota}
	createCfg := runtime.DefaultCreateConfig(cfg.DefaultMemLimit, cfg.DefaultCPUQuota)

	auditLogger := audit.New(os.Stdout)

	rec := reconciler.New(driver, reconciler.Config{
		Validator: vcfg,
		Drift:     dcfg,
		Create:    createCfg,
	}, auditLogger)

	limiter := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow)
	svc := controller.New(driver, rec, limiter, vcfg, auditLogger)

	hc := metrics.NewHealthChecker(driver)
	hc.SetVersion(Version)

	collector := metrics.NewCollector(driver)
	collector.Start()
	defer collector.Stop()

	server := api.NewServer(svc)

	healthAddr, _ := cmd.Flags().GetString("health-addr")
	healthCtx, cancelHealth := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := api.ServeHealth(healthCtx, healthAddr, hc); err != nil {
			logger.Error().Err(err).Msg("health sidecar exited")
		}
	}()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- server.Serve(cfg.SocketPath)
	}()
	hc.SetAPIReady(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("gRPC server exited")
		}
	}

	server.Stop()
	cancelHealth()
	wg.Wait()

	return nil
}
