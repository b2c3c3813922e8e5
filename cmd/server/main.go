package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/classpoll/pollsession/internal/config"
	"github.com/classpoll/pollsession/internal/httpapi"
	"github.com/classpoll/pollsession/internal/hub"
	"github.com/classpoll/pollsession/internal/mirror"
	"github.com/classpoll/pollsession/internal/session"
	"github.com/classpoll/pollsession/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, closeMirror := setupMirror(ctx, cfg, logger)

	h := hub.NewHub(ctx, sessionFactory(cfg, logger, sink), logger.Named("hub"))
	if _, err := h.Ensure(ctx, cfg.Session.Code); err != nil {
		logger.Fatal("start session", zap.Error(err))
	}

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub: h,
		Log: logger,
		WS: ws.Options{
			DefaultSession: cfg.Session.Code,
			OriginPatterns: originPatterns(cfg.Server.CORSAllowedOrigins),
			OutboxSize:     cfg.WS.OutboxSize,
			ReadLimit:      cfg.WS.ReadLimitBytes,
			WriteTimeout:   cfg.WS.WriteTimeout,
			PingInterval:   cfg.WS.PingInterval,
		},
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("session", cfg.Session.Code))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Stopping sessions first closes every outbox, which ends the
		// websocket handlers.
		h.Shutdown()
		err := srv.Shutdown(shutdownCtx)
		return multierr.Append(err, closeMirror())
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *zap.Logger {
	zc := zap.NewDevelopmentConfig()
	if cfg.Production() {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if lvl, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func sessionFactory(cfg *config.Config, logger *zap.Logger, sink session.Sink) hub.Factory {
	return func(ctx context.Context, code string) *session.Session {
		sc := session.DefaultConfig(code)
		sc.InboxSize = cfg.Session.InboxSize
		sc.Limits.MaxTimerSeconds = cfg.Session.MaxTimerSeconds
		sc.MaxNameRunes = cfg.Session.MaxNameLength
		sc.MaxMessageRunes = cfg.Session.MaxMessageLength

		opts := []session.Option{session.WithLogger(logger.Named("session"))}
		if sink != nil {
			opts = append(opts, session.WithSink(sink))
		}
		return session.New(ctx, sc, opts...)
	}
}

// setupMirror connects whichever mirror publishers are configured. A
// publisher that cannot connect is skipped with a warning.
func setupMirror(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Sink, func() error) {
	log := logger.Named("mirror")
	var pubs []mirror.Publisher

	if cfg.Redis.Addr != "" {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rp, err := mirror.NewRedisPublisher(cctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ChannelPrefix, log)
		cancel()
		if err != nil {
			log.Warn("redis mirror disabled", zap.Error(err))
		} else {
			pubs = append(pubs, rp)
		}
	}
	if cfg.NATS.URL != "" {
		np, err := mirror.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			log.Warn("nats mirror disabled", zap.Error(err))
		} else {
			pubs = append(pubs, np)
		}
	}

	if len(pubs) == 0 {
		return nil, func() error { return nil }
	}
	f := mirror.NewForwarder(log, cfg.MirrorBuffer, pubs...)
	return f, f.Close
}

// originPatterns turns CORS origins into host patterns for the websocket
// origin check, which compares hosts only.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		out = append(out, o)
	}
	return out
}
