package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AngelCh415/moi-etl/internal/config"
	"github.com/AngelCh415/moi-etl/internal/ingest"
	"github.com/AngelCh415/moi-etl/internal/pipeline"
	"github.com/AngelCh415/moi-etl/internal/store"
)

var version = "dev"

var (
	configPath string
	verbose    bool
	cfg        config.Config
	logger     *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "moi",
	Short:         "Reconcile Meta, Google and Shopify exports into daily marketing metrics",
	Version:       version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		lvl := cfg.LogLevel()
		if verbose {
			lvl = slog.LevelDebug
		}
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default $MOI_CONFIG or ./moi.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(exportCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "moi", version)
	},
}

// openStorage returns the configured backend and its closer.
func openStorage() (store.Storage, io.Closer, error) {
	if cfg.Storage.InMemory() {
		return store.NewMemoryStore(), io.NopCloser(nil), nil
	}
	st, err := store.OpenSQLite(cfg.Storage.DBPath, logger)
	if err != nil {
		return nil, nil, err
	}
	return st, st, nil
}

func newProcessor() (*pipeline.Processor, io.Closer, error) {
	st, closer, err := openStorage()
	if err != nil {
		return nil, nil, err
	}
	cl := ingest.NewHTTPClient(cfg.Server.HTTPTimeout)
	return pipeline.New(st, cl, logger, cfg), closer, nil
}
