package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortivault/fortivault/internal/breach"
	"github.com/fortivault/fortivault/internal/config"
	pkgcrypto "github.com/fortivault/fortivault/internal/crypto"
	httpserver "github.com/fortivault/fortivault/internal/server/http"
	"github.com/fortivault/fortivault/internal/service"
	"github.com/fortivault/fortivault/internal/session"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		sf   storeFlags
		addr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sf.apply(&cfg)
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("store", cfg.StoreDriver),
	)

	be, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	hasher, err := pkgcrypto.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	box, err := pkgcrypto.NewCipherBox([]byte(cfg.VaultEncryptionKey))
	if err != nil {
		return err
	}
	sessions := newSessions(cfg)

	gate, closeGate, err := newGate(cfg, logger)
	if err != nil {
		return err
	}
	defer closeGate()

	srv := httpserver.New(httpserver.Options{
		Auth:              service.NewAuthService(be.users, hasher, sessions, be.lim),
		Vault:             service.NewVaultService(be.creds, box),
		Admin:             service.NewAdminService(be.users),
		Gate:              gate,
		SecureCookies:     !cfg.IsDev(),
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Health:            be.ping,
	}, logger)

	hs := httpserver.NewHTTPServer(cfg.HTTPAddr, srv.Router())
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- hs.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			_ = hs.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			return err
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// newSessions issues tokens valid for session.DefaultTTL, matching the cookie lifetime.
func newSessions(cfg config.Config) *session.Manager {
	return session.NewManager([]byte(cfg.JWTSecret), session.DefaultTTL)
}

// newGate builds the breach gate, with a Redis range cache when REDIS_ADDR is set.
func newGate(cfg config.Config, log *zap.Logger) (*breach.Gate, func(), error) {
	policy, err := breach.ParsePolicy(cfg.Breach.FailurePolicy)
	if err != nil {
		return nil, nil, err
	}
	opts := breach.Options{
		HIBPBaseURL:         cfg.Breach.HIBPBaseURL,
		SafeBrowsingBaseURL: cfg.Breach.SafeBrowsingBaseURL,
		SafeBrowsingAPIKey:  cfg.Breach.SafeBrowsingAPIKey,
		Timeout:             cfg.Breach.Timeout,
		Policy:              policy,
		CacheTTL:            cfg.Breach.CacheTTL,
	}
	closeFn := func() {}
	if cfg.Breach.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Breach.RedisAddr})
		opts.Cache = breach.NewRedisRangeCache(rc)
		closeFn = func() { _ = rc.Close() }
		log.Info("breach range cache enabled", zap.String("redis", cfg.Breach.RedisAddr))
	}
	if cfg.Breach.SafeBrowsingAPIKey == "" {
		log.Warn("SAFE_BROWSING_API_KEY is not set; URL checks will report unverified")
	}
	return breach.NewGate(opts, log), closeFn, nil
}
