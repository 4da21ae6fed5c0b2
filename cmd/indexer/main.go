// Command indexer builds a TF-IDF index from ingest records on disk.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-search/kestrel/internal/config"
	"github.com/kestrel-search/kestrel/internal/indexcore"
	"github.com/kestrel-search/kestrel/internal/logger"
	"github.com/kestrel-search/kestrel/internal/parser"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	inputPath   string
	outputDir   string
	smoothedIDF bool
	markdownDir string
	logLevel    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "build",
		Short: "Build a TF-IDF index from ingest records",
		Long: `build reads ingest records (.json, .jsonl, and optionally a directory of
.md files) and writes a complete on-disk TF-IDF index: a dictionary, a doc
table, a doc-id map, a meta header, and one posting file per term.

The build is batch-only: every run produces a fresh index from scratch.`,
		RunE: runBuild,
	}

	rootCmd.Flags().StringVar(&inputPath, "input", "", "Path to an ingest file or directory (required)")
	rootCmd.Flags().StringVar(&outputDir, "output", "", "Output index directory (required)")
	rootCmd.Flags().BoolVar(&smoothedIDF, "smoothed-idf", false, "Use smoothed IDF (ln(1 + N/df)) during build")
	rootCmd.Flags().StringVar(&markdownDir, "markdown-dir", "", "Optional directory of .md files to ingest alongside --input")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	_ = rootCmd.MarkFlagRequired("input")
	_ = rootCmd.MarkFlagRequired("output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	cfg.InputPath = inputPath
	cfg.OutputDir = outputDir
	cfg.SmoothedIDF = smoothedIDF
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log, err := logger.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info("starting build", "version", version, "commit", commit, "input", cfg.InputPath, "output", cfg.OutputDir, "smoothed_idf", cfg.SmoothedIDF)

	builder := indexcore.NewBuilder(cfg.OutputDir, cfg.SmoothedIDF)

	files, err := indexcore.DiscoverIngestFiles(cfg.InputPath)
	if err != nil {
		return fmt.Errorf("discover ingest files: %w", err)
	}

	docCount := 0
	for _, f := range files {
		docs, err := indexcore.ReadIngestFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		for _, d := range docs {
			if d.ID == "" || d.Title == "" || d.Body == "" {
				return fmt.Errorf("malformed record in %s: id, title, and body are required", f)
			}
			if err := builder.AddDocument(d); err != nil {
				return fmt.Errorf("add document from %s: %w", f, err)
			}
			docCount++
		}
		log.Debug("ingested file", "path", f, "docs_so_far", docCount)
	}

	if markdownDir != "" {
		mdCount, err := ingestMarkdownDir(builder, markdownDir)
		if err != nil {
			return fmt.Errorf("ingest markdown dir %s: %w", markdownDir, err)
		}
		docCount += mdCount
		log.Info("ingested markdown directory", "path", markdownDir, "docs", mdCount)
	}

	log.Info("tokenization complete, weighting and persisting index", "docs", docCount, "terms", builder.NumTerms())

	if err := builder.Build(time.Now()); err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	log.Info("build complete", "docs", builder.NumDocs(), "terms", builder.NumTerms(), "output", cfg.OutputDir)
	return nil
}

// ingestMarkdownDir walks dir for .md files and adds each as an InputDoc,
// using the file's relative path as the external id and the concatenated,
// whitespace-normalized section text as the body.
func ingestMarkdownDir(builder *indexcore.Builder, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		doc, err := parser.ParseMarkdown(content, path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		var body strings.Builder
		for _, section := range doc.Sections {
			body.WriteString(section.Heading)
			body.WriteString(" ")
			body.WriteString(section.Content)
			body.WriteString(" ")
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}

		if err := builder.AddDocument(indexcore.InputDoc{
			ID:    rel,
			Title: doc.Title,
			Body:  parser.NormalizeMarkdown(body.String()),
		}); err != nil {
			return fmt.Errorf("add document %s: %w", rel, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, nil
}
