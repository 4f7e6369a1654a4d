package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortivault/fortivault/internal/config"
	"github.com/fortivault/fortivault/internal/migrate"
	"github.com/fortivault/fortivault/internal/service"
)

func newMigrateCmd() *cobra.Command {
	var sf storeFlags
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadPostgres(&sf)
			if err != nil {
				return err
			}
			if err := migrate.Up(cmd.Context(), cfg.DatabaseDSN); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			v, err := migrate.Version(cmd.Context(), cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			cmd.Printf("schema at version %d\n", v)
			return nil
		},
	}
	ver := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadPostgres(&sf)
			if err != nil {
				return err
			}
			v, err := migrate.Version(cmd.Context(), cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			cmd.Println(v)
			return nil
		},
	}
	sf.register(up)
	sf.register(ver)
	cmd.AddCommand(up, ver)
	return cmd
}

func loadPostgres(sf *storeFlags) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	sf.apply(&cfg)
	if cfg.StoreDriver != config.DriverPostgres {
		return cfg, errors.New("migrations apply to the postgres store only")
	}
	if cfg.DatabaseDSN == "" {
		return cfg, errors.New("DATABASE_DSN is required")
	}
	return cfg, nil
}

func newPromoteCmd() *cobra.Command {
	var sf storeFlags
	cmd := &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sf.apply(&cfg)

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			be, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer be.close()

			u, err := service.NewAdminService(be.users).PromoteByEmail(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("promote %s: %w", args[0], err)
			}
			logger.Info("user promoted", zap.String("user_id", u.ID.String()))
			cmd.Printf("%s is now %s\n", u.Email, u.Role)
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func init() {
	rootCmd.AddCommand(newServeCmd(), newMigrateCmd(), newPromoteCmd())
}
