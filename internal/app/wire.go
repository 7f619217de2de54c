package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"denim/internal/console"
	"denim/internal/domain"
	"denim/internal/metrics"
	"denim/internal/protocol/envelope"
	"denim/internal/protocol/tdh"
	commandsvc "denim/internal/services/command"
	messagesvc "denim/internal/services/message"
	sessionsvc "denim/internal/services/session"
	"denim/internal/store"
	"denim/internal/transport"
)

// Wire bundles the long-lived pieces shared by every command.
type Wire struct {
	Config  Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Codec   *envelope.Codec
	KEX     *tdh.Engine
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	tier, err := domain.ParseTier(cfg.Security.Tier)
	if err != nil {
		return nil, err
	}
	codec, err := envelope.New(tier, cfg.Security.SignPassword)
	if err != nil {
		return nil, err
	}
	kex := tdh.NewEngine(tdh.Options{
		StepTimeout:  cfg.Security.HandshakeTimeout,
		StartTimeout: cfg.Security.HandshakeStartTimeout,
		Logger:       logger.Named("tdh"),
	})
	return &Wire{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Codec:   codec,
		KEX:     kex,
	}, nil
}

// OpenHistory opens the history for peerHost: SQLite under the home
// directory, or memory only when history is disabled.
func (w *Wire) OpenHistory(peerHost string) (domain.HistoryStore, error) {
	if !w.Config.History.Enabled {
		return store.NewMemoryHistory(), nil
	}
	return store.OpenHistory(store.HistoryPath(w.Config.Home, peerHost))
}

// NewScheduler assembles the services for one session over link.
func (w *Wire) NewScheduler(link *transport.Link, history domain.HistoryStore, con *console.Console) *sessionsvc.Scheduler {
	log := w.Logger.Named("session")
	return sessionsvc.New(link, sessionsvc.Config{
		KeyExchange: w.KEX,
		Messages:    messagesvc.New(w.Codec, history, w.Metrics, log),
		Commands:    commandsvc.New(history, con, con),
		Input:       con,
		Output:      con,
		Metrics:     w.Metrics,
		Logger:      log,
	})
}

// ServeMetrics exposes /metrics on the configured address until ctx ends.
// It returns immediately when metrics are disabled.
func (w *Wire) ServeMetrics(ctx context.Context) error {
	addr := w.Config.Metrics.Listen
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", w.Metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	w.Logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close flushes the logger.
func (w *Wire) Close() {
	_ = w.Logger.Sync()
}
