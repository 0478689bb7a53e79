package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scpigo/hislipd/internal/config"
	"github.com/scpigo/hislipd/internal/logger"
	"github.com/scpigo/hislipd/internal/metrics"
	"github.com/scpigo/hislipd/internal/telemetry"
	"github.com/scpigo/hislipd/pkg/admin"
	"github.com/scpigo/hislipd/pkg/device"
	"github.com/scpigo/hislipd/pkg/server"
	"github.com/scpigo/hislipd/pkg/session"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the hislipd server",
	Long: `Start the hislipd HiSLIP server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/hislipd/config.yaml.

Examples:
  # Start with default config location
  hislipd start

  # Start with custom config
  hislipd start --config /etc/hislipd/config.yaml

  # Override log level with an environment variable
  HISLIPD_LOGGING_LEVEL=DEBUG hislipd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "hislipd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "hislipd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("hislipd starting", "version", Version, "commit", Commit)
	logger.Info("log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	} else {
		logger.Info("profiling disabled")
	}

	// Metrics must be initialized before the server is constructed, so
	// internal/metrics.IsEnabled() already reflects the final state when the
	// admin router decides whether to mount /metrics.
	metrics.Init(cfg.Metrics.Enabled)
	if metrics.IsEnabled() {
		logger.Info("metrics enabled")
	} else {
		logger.Info("metrics disabled")
	}

	preferredMode := session.Overlapped
	if cfg.Server.PreferredMode == "synchronized" {
		preferredMode = session.Synchronized
	}

	srv := server.New(server.Config{
		VendorID:            cfg.Server.VendorID,
		MaxMessageSize:      uint64(cfg.Server.MaxMessageSize),
		PreferredMode:       preferredMode,
		EncryptionMandatory: cfg.Server.EncryptionMandatory,
		InitialEncryption:   cfg.Server.InitialEncryption,
		ShortIDN:            cfg.Server.ShortIDN,
		ProtocolMajor:       2,
		ProtocolMinor:       0,
	}, device.NewDemoDevice(cfg.Server.ShortIDN))

	adminSrv := admin.NewServer(cfg.Metrics.ListenAddress, srv.Registry())

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.ListenAndServe(ctx, cfg.Server.ListenAddress)
	}()

	adminDone := make(chan error, 1)
	go func() {
		adminDone <- adminSrv.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("hislipd is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		<-adminDone
		logger.Info("hislipd stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		<-adminDone
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}
