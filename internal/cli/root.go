package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/asad/blobreader/internal/config"
	"github.com/asad/blobreader/internal/core"
	"github.com/asad/blobreader/internal/httpx"
	"github.com/asad/blobreader/internal/logging"
	"github.com/asad/blobreader/internal/services/blob"
)

var (
	// Version is set at build time via ldflags.
	// Example: go build -ldflags "-X github.com/asad/blobreader/internal/cli.Version=1.0.0"
	Version = "dev"
)

// app carries what every command needs once flags and config are loaded.
type app struct {
	cfg    *config.Config
	logger logging.Logger
}

// newRootCmd builds the command tree. PersistentPreRunE loads configuration
// into a before any subcommand runs.
func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "blobreader",
		Short: "Read-only server and tools for single-file blob stores",
		Long: `blobreader serves entries of blob store files: single files holding many
named blobs and a sorted index that is binary searched on disk.

Entries stored gzip compressed are passed through to clients that accept gzip
and decompressed for all others.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default ./blobreader.{yaml,json,toml} if present)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "directory holding <id>.blob store files")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newStoresCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute is the entry point for the CLI. It should be called from main.go.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// load reads configuration from file, environment and flags, then builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}
	bindFlag(v, cmd, "data_dir", "data-dir")
	bindFlag(v, cmd, "log_level", "log-level")
	bindFlag(v, cmd, "port", "port")

	cfg := config.Load(v)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// bindFlag lets an explicitly set flag override config file and environment.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		v.Set(key, f.Value.String())
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		// Skip config loading.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blobreader version %s\n", Version)
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server on the configured port.
Stores are read from the data directory and mounted under /stores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().IntP("port", "p", 0, "HTTP port to listen on")
	return cmd
}

// runServe initializes and starts the HTTP server.
func (a *app) runServe(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	logger.Info("starting blobreader",
		logging.String("version", Version),
		logging.Int("port", cfg.Port),
		logging.String("data_dir", cfg.DataDir),
		logging.String("default_store", cfg.DefaultStore),
		logging.Bool("auto_index", cfg.AutoIndex),
		logging.String("log_level", cfg.LogLevel),
	)

	catalog, err := blob.NewFileCatalog(cfg.DataDir, cfg.DefaultStore, cfg.AutoIndex)
	if err != nil {
		return fmt.Errorf("failed to initialize store catalog: %w", err)
	}

	registry := core.NewRegistry()
	registry.Register(blob.NewBlobService(catalog, blob.Options{
		Stream:   cfg.StreamOptions(),
		PageSize: cfg.PageSize,
	}, logger))

	logger.Info("registered services",
		logging.Int("count", len(registry.Services())),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpx.NewEdgeRouter(cfg, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.String("address", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
