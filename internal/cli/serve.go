package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"llmd/internal/backend"
	"llmd/internal/config"
	"llmd/internal/dispatch"
	"llmd/internal/httpapi"
	"llmd/internal/ratelimit"
	"llmd/internal/registry"
	"llmd/internal/scheduler"
)

var (
	flagConfig string
	flagAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "config file (.yaml/.json/.toml)")
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address, overrides config")
}

func runServe(cmd *cobra.Command, args []string) error {
	var cfg config.Config
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if len(cfg.Models) == 0 {
		return errors.New("no models configured (set models in the config file)")
	}

	log := newLogger(cfg)

	reg := registry.New(registry.WithLogger(log))
	if err := reg.Initialize(cfg.Models); err != nil {
		return err
	}
	engine := dispatch.New(reg, dispatch.WithLogger(log))
	limiter := ratelimit.New(ratelimit.Config{
		Window:      cfg.RateLimitWindow(),
		MaxRequests: cfg.RateLimit.MaxRequests,
	})
	sched := scheduler.New(engine, scheduler.Config{
		DataDir:       cfg.Training.DataDir,
		CheckpointDir: cfg.Training.CheckpointDir,
	}, scheduler.WithLogger(log))

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(engine, sched, limiter)}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Int("models", len(cfg.Models)).
			Bool("llama", backend.LlamaBuilt()).
			Msg("llmd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	sched.Close()
	reg.Shutdown(ctx)
	return nil
}

// newLogger builds the process logger: console writer on stderr, or rotated
// file output when log.file is configured.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
