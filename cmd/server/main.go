// Command server runs the query HTTP server over a previously built index.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-search/kestrel/internal/config"
	"github.com/kestrel-search/kestrel/internal/logger"
	"github.com/kestrel-search/kestrel/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile  string
	logLevel    string
	showVersion bool
	indexDir    string
	listenAddr  string
	adminToken  string
	corsOrigins []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve ranked search over a built index",
		Long: `serve loads a TF-IDF index built by the indexer and exposes it over HTTP:

  GET /search?q=<string>&k=<int>   ranked search results with snippets
  GET /doc/:doc_id                 raw document metadata and body

CONFIGURATION (12-Factor App):
The server runs with sensible defaults and loads configuration from
environment variables prefixed TFIDX_. Command-line flags override
environment variables and config files.`,
		RunE: runServer,
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (optional)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.Flags().StringVar(&indexDir, "index", "", "Path to the built index directory")
	rootCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (host:port)")
	rootCmd.Flags().StringVar(&adminToken, "admin-token", "", "Admin token required on /admin/* routes")
	rootCmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("kestrel server\nVersion: %s\nCommit:  %s\nBuilt:   %s\n", version, commit, date)
		return nil
	}

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if indexDir != "" {
		cfg.IndexDir = indexDir
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if adminToken != "" {
		cfg.AdminToken = adminToken
	}
	if len(corsOrigins) > 0 {
		cfg.CORSOrigins = corsOrigins
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info("starting kestrel server", "version", version, "commit", commit, "date", date, "index_dir", cfg.IndexDir)

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		log.Error("failed to create server", "error", err)
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Initialize(ctx); err != nil {
		log.Error("server initialization failed", "error", err)
		return fmt.Errorf("server initialization failed: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Error("server error", "error", err)
			return err
		}
		log.Info("server stopped normally")
		return nil

	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", "error", err)
			return fmt.Errorf("shutdown error: %w", err)
		}
		log.Info("server shutdown complete")
		return nil
	}
}
