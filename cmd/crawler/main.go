// Command crawler harvests HTML pages from a seed list into ingest-record
// JSONL consumable by cmd/indexer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kestrel-search/kestrel/internal/cache"
	"github.com/kestrel-search/kestrel/internal/config"
	"github.com/kestrel-search/kestrel/internal/crawler"
	"github.com/kestrel-search/kestrel/internal/fetcher"
	"github.com/kestrel-search/kestrel/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	seedsPath    string
	outputPath   string
	maxDepth     int
	maxPages     int
	maxPerHost   int
	sameHostOnly bool
	userAgent    string
	cacheDir     string
	logLevel     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl HTML pages into ingest-record JSONL",
		Long: `crawl walks the web breadth-first from a seed list, honoring robots.txt
and per-host page caps, and writes one JSON ingest record per fetched page
to the output path. The output is consumable directly by cmd/indexer.`,
		RunE: runCrawl,
	}

	rootCmd.Flags().StringVar(&seedsPath, "seeds", "", "Path to a newline-delimited seed URL file (required)")
	rootCmd.Flags().StringVar(&outputPath, "output", "", "Output JSONL path (required)")
	rootCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum crawl depth (0 = use default)")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", 0, "Maximum pages to fetch (0 = use default)")
	rootCmd.Flags().IntVar(&maxPerHost, "max-per-host", 0, "Maximum pages per host (0 = use default)")
	rootCmd.Flags().BoolVar(&sameHostOnly, "same-host", false, "Restrict the crawl to the seeds' hosts")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header sent on every request")
	rootCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Optional page cache directory")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	_ = rootCmd.MarkFlagRequired("seeds")
	_ = rootCmd.MarkFlagRequired("output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	cfg.Seeds = seedsPath
	cfg.OutputPath = outputPath
	if maxDepth > 0 {
		cfg.MaxDepth = maxDepth
	}
	if maxPages > 0 {
		cfg.MaxPages = maxPages
	}
	if maxPerHost > 0 {
		cfg.MaxPerHost = maxPerHost
	}
	if sameHostOnly {
		cfg.SameHostOnly = sameHostOnly
	}
	if userAgent != "" {
		cfg.UserAgent = userAgent
	}
	if cacheDir != "" {
		cfg.CrawlCacheDir = cacheDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log, err := logger.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info("starting crawl", "version", version, "commit", commit, "seeds", cfg.Seeds, "output", cfg.OutputPath)

	seeds, err := crawler.LoadSeeds(cfg.Seeds)
	if err != nil {
		return fmt.Errorf("load seeds: %w", err)
	}

	client := fetcher.NewHTTPClient(30*time.Second, 3, cfg.MaxPerHost, cfg.UserAgent)

	var pageCache *cache.CrawlPageCache
	if cfg.CrawlCacheDir != "" {
		pageCache, err = cache.NewCrawlPageCache(cfg.CrawlCacheDir, log)
		if err != nil {
			return fmt.Errorf("create page cache: %w", err)
		}
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zlog = zlog.Level(lvl)
	}

	cr := crawler.NewCrawler(client, pageCache, crawler.Config{
		MaxDepth:     cfg.MaxDepth,
		MaxPages:     cfg.MaxPages,
		MaxPerHost:   cfg.MaxPerHost,
		SameHostOnly: cfg.SameHostOnly,
		UserAgent:    cfg.UserAgent,
	}, zlog)

	out, err := os.Create(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received shutdown signal, stopping crawl")
		cancel()
	}()

	if err := cr.Crawl(ctx, seeds, out); err != nil {
		log.Error("crawl failed", "error", err)
		return fmt.Errorf("crawl failed: %w", err)
	}

	log.Info("crawl complete", "output", cfg.OutputPath)
	return nil
}
