package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/qgenlab/qgen/internal/config"
	"github.com/qgenlab/qgen/internal/generator"
	"github.com/qgenlab/qgen/internal/metrics"
	"github.com/qgenlab/qgen/internal/model"
	"github.com/qgenlab/qgen/internal/notifier"
	"github.com/qgenlab/qgen/internal/output"
	"github.com/qgenlab/qgen/internal/provider"
	"github.com/qgenlab/qgen/internal/ratelimit"
	"github.com/qgenlab/qgen/internal/retry"
	"github.com/qgenlab/qgen/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "qgen",
	Short: "Curriculum-grounded question generator",
	Long:  "qgen builds prompts from subject reference data, sends them to an LLM and saves questions, answers and rubrics.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real environment variables win.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to read .env", "error", err)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: QGEN_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > QGEN_CONFIG env var > "./config.yaml".
// Without any of them the defaults are used, with the model from QGEN_MODEL.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("QGEN_CONFIG"); env != "" {
			path = env
		} else {
			if _, err := os.Stat("config.yaml"); errors.Is(err, fs.ErrNotExist) {
				return config.Default(nil)
			}
			path = "config.yaml"
		}
	}
	return config.Load(path, nil)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// usageLog bundles the configured call recorders.
type usageLog struct {
	sqlite *store.SQLiteStore // nil when disabled
	csv    *store.CSVLog      // nil when disabled
}

func (u *usageLog) recorder() model.UsageRecorder {
	var tee store.Tee
	if u.sqlite != nil {
		tee = append(tee, u.sqlite)
	}
	if u.csv != nil {
		tee = append(tee, u.csv)
	}
	if len(tee) == 0 {
		return store.NewNopStore()
	}
	return tee
}

func (u *usageLog) Close() {
	if u.sqlite != nil {
		u.sqlite.Close()
	}
}

// setupUsageLog opens the SQLite log and the CSV token log. In dry-run mode
// nothing is persisted.
func setupUsageLog(cfg *config.Config, dryRun bool, logger *slog.Logger) (*usageLog, error) {
	u := &usageLog{}
	if dryRun {
		logger.Info("dry-run mode enabled, nothing will be written")
		return u, nil
	}
	if cfg.UsageLog.SQLitePath != "" {
		s, err := store.NewSQLiteStore(cfg.UsageLog.SQLitePath)
		if err != nil {
			return nil, err
		}
		u.sqlite = s
	}
	if cfg.UsageLog.CSV {
		u.csv = store.NewCSVLog(cfg.UsageLog.CSVPath)
	}
	return u, nil
}

// setupProvider builds the decorated provider chain:
// instrumented → retry → rate limit → adapter.
func setupProvider(cfg *config.Config, recorder model.UsageRecorder, m *metrics.Metrics, logger *slog.Logger) (model.Provider, error) {
	httpClient := &http.Client{Timeout: cfg.LLM.Timeout}
	base, err := provider.New(cfg.LLM, httpClient, logger)
	if err != nil {
		return nil, err
	}

	kind := cfg.LLM.Provider
	limiter := ratelimit.NewLimiterFunc(cfg.RateLimit.MinDelayFor)
	logger.Debug("rate limiter configured", "provider", kind, "min_delay", cfg.RateLimit.MinDelayFor(kind.String()).String())

	var p model.Provider = ratelimit.NewRateLimitedProvider(base, limiter, kind.String())
	p = retry.NewRetryProvider(p, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay, logger)
	return provider.NewInstrumented(p, kind, cfg.LLM.Model, recorder, m, logger), nil
}

// buildPipeline wires everything a generation run needs.
func buildPipeline(cfg *config.Config, usage *usageLog, m *metrics.Metrics, dryRun bool, logger *slog.Logger) (*pipeline, error) {
	p, err := setupProvider(cfg, usage.recorder(), m, logger)
	if err != nil {
		return nil, err
	}
	notifyClient := &http.Client{Timeout: notifyTimeout}
	return &pipeline{
		cfg:      cfg,
		gen:      generator.New(p, cfg.LLM.Model, m, logger),
		csvLog:   usage.csv,
		pdf:      output.NewPDFRenderer(cfg.PDF),
		notifier: setupNotifier(cfg, notifyClient, logger),
		logger:   logger,
		dryRun:   dryRun,
	}, nil
}

// writeMetrics dumps the registry for node_exporter's textfile collector.
func writeMetrics(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) {
	if cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.TextfilePath, "error", err)
	}
}
