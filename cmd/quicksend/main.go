package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quicksend/internal/authz"
	"quicksend/internal/config"
	"quicksend/internal/jwtsigner"
	"quicksend/internal/notify"
	"quicksend/internal/observability/logging"
	"quicksend/internal/observability/metrics"
	"quicksend/internal/service"
	"quicksend/internal/store"
	transport "quicksend/internal/transport/http"
	"quicksend/pkg/db"
)

func main() {
	cfg := config.Load(".env")

	logger := logging.NewLogger(logging.Config{
		ServiceName: "quicksend",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	slog.SetDefault(logger)
	metrics.MustRegister("quicksend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(ctx, db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL, Logger: logger})
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}

	st := store.New(gdb)
	if err := st.AutoMigrate(ctx); err != nil {
		logger.Error("auto migrate", "error", err)
		os.Exit(1)
	}

	signer, err := jwtsigner.NewFromBase64(cfg.SocketSigningKey, cfg.SocketKeyID, cfg.SocketIssuer)
	if err != nil {
		logger.Error("socket signer", "error", err)
		os.Exit(1)
	}
	if cfg.SocketSigningKey == "" {
		logger.Warn("SOCKET_SIGNING_KEY not set; using an ephemeral key")
	}

	hub := notify.NewHub(32)
	tokens := notify.NewTokenStore(cfg.SocketTokenTTL)
	go tokens.Run(ctx, time.Minute)

	svc := service.New(st, service.Options{
		Notifier:      hub,
		MessageMaxAge: cfg.MessageMaxAge,
	})
	auth := authz.New(authz.StoreIdentities{Store: st}, authz.WithMaxAge(cfg.SignatureMaxAge))

	handler := transport.NewRouter(transport.Config{
		CORSOrigins:    cfg.CORSOrigins,
		RateLimit:      cfg.RateLimit,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	}, transport.Deps{
		Service: svc,
		Auth:    auth,
		Hub:     hub,
		Tokens:  tokens,
		Signer:  signer,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("quicksend listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("quicksend stopped")
}
