package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trtd/internal/backend"
	"trtd/internal/config"
	"trtd/internal/httpapi"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// envOr returns the environment value for key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trtd",
		Short:         "HTTP daemon fronting a batched GPU inference executor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.Flags()
	flags.String("addr", envOr("TRTD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	flags.String("engines-dir", envOr("TRTD_ENGINES_DIR", ""), "Directory holding compiled engine artifacts (config.json)")
	flags.String("executor-bin", envOr("TRTD_EXECUTOR_BIN", ""), "Path to the executor runtime binary")
	flags.String("executor-worker", envOr("TRTD_EXECUTOR_WORKER", ""), "Path to the per-GPU worker binary (sharded engines)")
	flags.Int("max-in-flight", envOrInt("TRTD_MAX_IN_FLIGHT", 0), "Maximum concurrent requests (0=unlimited)")
	flags.String("log-level", envOr("TRTD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	flags.Bool("log-json", false, "Emit JSON logs instead of console output")
	flags.String("cors-origins", envOr("TRTD_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins (empty disables CORS)")
	flags.String("config", envOr("TRTD_CONFIG", ""), "Optional config file (.yaml/.json/.toml); flags override")

	root.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		return run(cfg)
	}
	return root
}

// resolveConfig loads the optional config file and lets explicitly set flags
// take precedence over it.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}

	flagStr := func(name string, dst *string) {
		v, _ := cmd.Flags().GetString(name)
		if cmd.Flags().Changed(name) || (*dst == "" && v != "") {
			*dst = v
		}
	}
	flagStr("addr", &cfg.Addr)
	flagStr("engines-dir", &cfg.EnginesDir)
	flagStr("executor-bin", &cfg.ExecutorBin)
	flagStr("executor-worker", &cfg.ExecutorWorker)
	flagStr("log-level", &cfg.LogLevel)
	if v, _ := cmd.Flags().GetInt("max-in-flight"); cmd.Flags().Changed("max-in-flight") || cfg.MaxInFlight == 0 {
		cfg.MaxInFlight = v
	}
	if v, _ := cmd.Flags().GetBool("log-json"); cmd.Flags().Changed("log-json") {
		cfg.LogJSON = v
	}
	if v, _ := cmd.Flags().GetString("cors-origins"); v != "" {
		cfg.CORSEnabled = true
		cfg.CORSOrigins = splitCSV(v)
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.EnginesDir == "" {
		return cfg, fmt.Errorf("engines directory is required (--engines-dir or TRTD_ENGINES_DIR)")
	}
	if cfg.ExecutorBin == "" {
		return cfg, fmt.Errorf("executor binary is required (--executor-bin or TRTD_EXECUTOR_BIN)")
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		lvl = zerolog.InfoLevel
	}
	var out = os.Stderr
	if cfg.LogJSON {
		return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out}).Level(lvl).With().Timestamp().Logger()
}

func run(cfg config.Config) error {
	log := newLogger(cfg)

	b, err := backend.New(backend.Config{
		EnginesDir:     cfg.EnginesDir,
		ExecutorBin:    cfg.ExecutorBin,
		ExecutorWorker: cfg.ExecutorWorker,
		MaxInFlight:    cfg.MaxInFlight,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("backend init: %w", err)
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log)
	if cfg.CORSEnabled {
		httpapi.SetCORSOptions(true, cfg.CORSOrigins,
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Accept", "Content-Type", "X-Log-Level"})
	}

	mux := httpapi.NewMux(b)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("engines_dir", cfg.EnginesDir).Msg("trtd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		b.Close()
		return fmt.Errorf("server error: %w", err)
	}

	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := b.Close(); err != nil {
		log.Warn().Err(err).Msg("executor shutdown error")
	}
	return nil
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
