// Command fortivault runs the password vault server and its maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortivault/fortivault/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "fortivault",
	Short:         "Password vault with breach screening",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// storeFlags are shared by every command that touches the store.
type storeFlags struct {
	driver   string
	dsn      string
	mongoURI string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.driver, "store", "", "store driver: postgres or mongo (overrides STORE_DRIVER)")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "PostgreSQL DSN (overrides DATABASE_DSN)")
	cmd.Flags().StringVar(&f.mongoURI, "mongo-uri", "", "MongoDB URI (overrides MONGO_URI)")
}

func (f *storeFlags) apply(cfg *config.Config) {
	if f.driver != "" {
		cfg.StoreDriver = f.driver
	}
	if f.dsn != "" {
		cfg.DatabaseDSN = f.dsn
	}
	if f.mongoURI != "" {
		cfg.MongoURI = f.mongoURI
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
