package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortivault/fortivault/internal/config"
	"github.com/fortivault/fortivault/internal/limiter"
	"github.com/fortivault/fortivault/internal/migrate"
	"github.com/fortivault/fortivault/internal/repository"
	"github.com/fortivault/fortivault/internal/repository/mongodb"
	"github.com/fortivault/fortivault/internal/repository/postgres"
)

// backend is an opened store with the repositories and limiter built on it.
type backend struct {
	users repository.UserRepository
	creds repository.CredentialRepository
	lim   limiter.Limiter
	ping  func(ctx context.Context) error
	close func()
}

// openStore connects the configured driver. Postgres is migrated before use and
// Mongo gets its indexes.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	settings := limiter.Settings{
		Window:   cfg.Login.Window,
		MaxFails: cfg.Login.MaxFails,
		BlockFor: cfg.Login.BlockFor,
	}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("store ready", zap.String("driver", cfg.StoreDriver))
		return &backend{
			users: postgres.NewUserRepo(db),
			creds: postgres.NewCredentialRepo(db),
			lim:   limiter.NewPG(db.Pool, settings),
			ping:  db.Ping,
			close: db.Close,
		}, nil

	case config.DriverMongo:
		st, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, st.DB); err != nil {
			_ = st.Close(context.Background())
			return nil, err
		}
		log.Info("store ready", zap.String("driver", cfg.StoreDriver), zap.String("database", cfg.MongoDatabase))
		return &backend{
			users: mongodb.NewUserRepo(st.DB),
			creds: mongodb.NewCredentialRepo(st.DB),
			lim:   limiter.NewMongo(st.Attempts(), settings),
			ping:  st.Ping,
			close: func() { _ = st.Close(context.Background()) },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
