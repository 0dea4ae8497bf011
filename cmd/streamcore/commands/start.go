package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/marmos91/streamcore/internal/logger"
	"github.com/marmos91/streamcore/internal/remote"
	"github.com/marmos91/streamcore/pkg/config"
	"github.com/marmos91/streamcore/pkg/metrics"
	"github.com/marmos91/streamcore/pkg/streamcore"

	// Import prometheus metrics to register init() functions.
	_ "github.com/marmos91/streamcore/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run streamcore as a standalone process",
	Long: `Start loads configuration, brings up the metrics server (if
enabled), and hosts a Core for the life of the process.

This binary has no bundled production Transport — the module is meant to
be embedded as a library (pkg/streamcore) by a host process that supplies
one via streamcore.New. Run "streamcore debug stream" to exercise the full
pipeline against an in-memory fixture instead.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := metrics.InitRegistry()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped unexpectedly", logger.Err(err))
			}
		}()
		logger.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	core, err := streamcore.New(cfg, remote.NewMockTransport())
	if err != nil {
		return fmt.Errorf("construct core: %w", err)
	}
	logger.Warn("no production Transport is wired into this binary; running with an in-memory mock transport")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("streamcore is running, press Ctrl+C to stop")
	<-sigChan
	signal.Stop(sigChan)
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := core.Shutdown(shutdownCtx); err != nil {
		logger.Error("core shutdown error", logger.Err(err))
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

// InitLogger configures the package-level logger from cfg.
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}
