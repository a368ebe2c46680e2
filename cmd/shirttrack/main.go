// Package main provides the shirttrack server and its maintenance commands.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/rl1809/shirt-tracker/internal/adapter/storage"
	"github.com/rl1809/shirt-tracker/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// configFile is set by the --config flag.
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "shirttrack",
	Short:         "Shirttrack tracks garments from stock to shipment",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML); SHIRTTRACK_* env vars override it")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the shirttrack version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "shirttrack", version)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables if they are missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx := cmd.Context()
		store, err := openStore(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}
		log.Printf("migrated %s schema", store.Dialect().Name)
		return nil
	},
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*storage.SQLStore, error) {
	store, err := storage.Open(ctx, storage.Options{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Printf("connected to %s", store.Dialect().Name)
	return store, nil
}
