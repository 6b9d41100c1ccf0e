package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"darim/internal/adapter/amqp"
	adapthttp "darim/internal/adapter/http"
	"darim/internal/adapter/lognotify"
	"darim/internal/adapter/memory"
	"darim/internal/adapter/postgres"
	"darim/internal/adapter/redis"
	"darim/internal/adapter/s3"
	"darim/internal/app"
	"darim/internal/config"
	"darim/internal/domain"
	"darim/internal/logging"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.New(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store    domain.Store
		sessions domain.SessionRepository
		closers  []func() error
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db open: %w", err)
		}
		closers = append(closers, db.Close)
		store = db
		if cfg.SessionBackend == config.BackendPostgres {
			sessions = db.Sessions()
		}
	default:
		store = memory.New()
	}

	switch cfg.SessionBackend {
	case config.BackendRedis:
		rdb, err := redis.Connect(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		closers = append(closers, rdb.Close)
		sessions = redis.NewSessionRepo(rdb)
	case config.BackendMemory:
		sessions = memory.NewSessionRepo()
	}

	var notifier domain.Notifier = lognotify.Notifier{Log: log.With("component", "notifier")}
	if cfg.AMQPURL != "" {
		notifier = amqp.NewNotifier(cfg.AMQPURL, log.With("component", "notifier"))
	}

	creds := app.NewCredentials(cfg.BcryptCost)
	sessionMgr := app.NewSessionManager(store.Users(), sessions, []byte(cfg.SessionSecret), cfg.SessionTTL)
	resets := app.NewPasswordResetService(store, sessionMgr, notifier, creds, cfg.ResetTokenTTL, log)
	users := app.NewUserService(store, sessionMgr, resets, notifier, creds, cfg.SignUpTokenTTL, log)

	if cfg.S3.Enabled() {
		avatars, err := s3.New(ctx, s3.Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			return err
		}
		users.WithAvatarStorage(avatars)
	}

	srv := adapthttp.New(adapthttp.Services{
		Auth:     app.NewAuthService(store.Users(), sessionMgr, creds),
		Sessions: sessionMgr,
		Users:    users,
		Posts:    app.NewPostService(store.Posts()),
	}, log, version)

	if cfg.OIDC.Enabled() {
		provider, err := oidc.NewProvider(ctx, cfg.OIDC.Issuer)
		if err != nil {
			return fmt.Errorf("oidc provider: %w", err)
		}
		srv.WithOIDC(adapthttp.OIDCConfig{
			Enabled:  true,
			Provider: provider,
			OAuth2Config: oauth2.Config{
				ClientID:     cfg.OIDC.ClientID,
				ClientSecret: cfg.OIDC.ClientSecret,
				RedirectURL:  cfg.OIDC.RedirectURL,
				Endpoint:     provider.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "email"},
			},
		})
	}

	go sessionMgr.RunJanitor(ctx, cfg.JanitorInterval, log)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.Addr, "version", version,
			"store", cfg.StoreBackend, "sessions", cfg.SessionBackend)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
