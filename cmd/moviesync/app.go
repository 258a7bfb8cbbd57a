package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/njoerd114/moviesync/internal/config"
	"github.com/njoerd114/moviesync/internal/counter"
	"github.com/njoerd114/moviesync/internal/movies"
	"github.com/njoerd114/moviesync/internal/notify"
	"github.com/njoerd114/moviesync/internal/store"
	syncp "github.com/njoerd114/moviesync/internal/sync"
	"github.com/njoerd114/moviesync/internal/telemetry"
)

// app carries the process-wide streams and global flags shared by every
// subcommand.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfgPath string
	verbose bool

	logger *slog.Logger
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut}
}

// setupLogger builds the text logger on errOut, bridged to OTel logs.
// Interactive commands stay quiet unless --verbose is given.
func (a *app) setupLogger() {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	text := slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level})
	a.logger = slog.New(telemetry.NewLogHandler(text, "moviesync"))
	slog.SetDefault(a.logger)
}

// stack is everything a store-backed command needs.
type stack struct {
	cfg    *config.Config
	client *store.Client
	repo   *movies.Repository
	ctrl   *syncp.Controller

	shutdown func()
}

// connect loads the config and wires the client, repository and controller.
// The caller must call the returned stack's close method.
func (a *app) connect(ctx context.Context) (*stack, error) {
	logger := a.logger

	// --- Config --------------------------------------------------------------

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", a.cfgPath, err)
	}
	logger.Info("config loaded",
		"store_url", cfg.StoreURL,
		"ceiling", cfg.Ceiling,
		"request_timeout", cfg.RequestTimeout,
	)

	st := &stack{cfg: cfg, shutdown: func() {}}

	// --- Telemetry (optional) ------------------------------------------------

	var notifier notify.Notifier = notify.NewTerminal(a.out)
	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Headers:        cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(ctx, telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			st.shutdown = func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}
			// Notifications become log records too, so they reach the collector.
			notifier = notify.Multi{notifier, notify.NewLog(logger)}
		}
	}

	// --- Store client --------------------------------------------------------

	hc := &http.Client{Timeout: cfg.RequestTimeout}
	client, err := store.NewClient(cfg.StoreURL, cfg.AuthToken, hc, logger)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("initialising store client: %w", err)
	}

	guard := counter.NewGuard(client, cfg.Ceiling, logger)
	repo := movies.NewRepository(client, guard, logger)

	st.client = client
	st.repo = repo
	st.ctrl = syncp.NewController(repo, notifier, cfg.Ceiling, logger)
	return st, nil
}

func (s *stack) close() {
	s.shutdown()
}
