package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qgenlab/qgen/internal/metrics"
	"github.com/qgenlab/qgen/internal/server"
)

var (
	serveAddr    string
	serveTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Serves JSON recovery, generation, health and Prometheus metrics over HTTP.
Blocks until SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr from config)")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 15*time.Minute, "per-request generation timeout")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	usage, err := setupUsageLog(cfg, false, logger)
	if err != nil {
		logger.Error("failed to open usage log", "error", err)
		os.Exit(1)
	}
	defer usage.Close()

	m := metrics.New()
	pl, err := buildPipeline(cfg, usage, m, false, logger)
	if err != nil {
		logger.Error("failed to set up provider", "error", err)
		os.Exit(1)
	}
	pl.shared = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(addr, pl.run, m, serveTimeout, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
