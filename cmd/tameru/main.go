// Package main is the tameru CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tameru/internal/cache"
	"github.com/hyperjump/tameru/internal/chunker"
	"github.com/hyperjump/tameru/internal/cli"
	"github.com/hyperjump/tameru/internal/config"
	"github.com/hyperjump/tameru/internal/extract"
	"github.com/hyperjump/tameru/internal/models"
	"github.com/hyperjump/tameru/internal/query"
	"github.com/hyperjump/tameru/internal/registry"
	"github.com/hyperjump/tameru/internal/server"
	"github.com/hyperjump/tameru/internal/watcher"
	"github.com/hyperjump/tameru/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tameru/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "tameru server" from the project dir uses the project's
// config (including debug). Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			// No config anywhere: run on defaults.
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "extract":
		runExtract()
	case "chunk", "rechunk":
		runRechunk()
	case "search":
		runSearch()
	case "heading":
		runHeading()
	case "unit":
		runUnit()
	case "summary":
		runSummary()
	case "list":
		runList()
	case "server":
		runServer()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("tameru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// newManager builds the cache manager from config.
func newManager(cfg *config.Config, logger *zap.Logger) *cache.Manager {
	opts := []cache.Option{}
	if cfg.Debug && logger != nil {
		opts = append(opts, cache.WithLogger(logger))
	}
	return cache.NewManager(
		cfg.Cache.Root,
		extract.NewExtractor(),
		chunker.NewChunker(cfg.Chunker.MinTokens, cfg.Chunker.MaxTokens),
		opts...,
	)
}

// openRegistry opens the extraction registry; a failure is reported as a
// warning and extraction continues without it.
func openRegistry(cfg *config.Config, logger *zap.Logger) *registry.Registry {
	reg, err := registry.Open(cfg.Registry.DatabasePath)
	if err != nil {
		if logger != nil {
			logger.Warn("registry unavailable", zap.Error(err))
		}
		return nil
	}
	return reg
}

// recordExtraction catalogs a published cache entry in the registry.
func recordExtraction(reg *registry.Registry, root, key, srcPath string) error {
	dir, err := cache.Find(root, key)
	if err != nil {
		return err
	}
	manifest, err := cache.ReadManifest(dir)
	if err != nil {
		return err
	}
	index, err := cache.ReadIndex(dir)
	if err != nil {
		return err
	}
	abs, _ := filepath.Abs(srcPath)
	return reg.Record(context.Background(), &registry.Entry{
		Key:          key,
		SourcePath:   abs,
		OriginalName: manifest.OriginalName,
		Format:       manifest.Format,
		SizeBytes:    manifest.SizeBytes,
		Chunks:       len(index.Chunks),
		TotalTokens:  index.TotalTokens,
		ExtractedAt:  manifest.ExtractedAt,
	})
}

// setup loads config and builds a logger. Exits on failure.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "re-extract even when a cache entry exists")
	password := fs.String("password", "", "password for encrypted documents")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: tameru extract [flags] <file>...")
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	manager := newManager(cfg, logger)
	reg := openRegistry(cfg, logger)
	if reg != nil {
		defer reg.Close()
	}

	failed := false
	for _, path := range fs.Args() {
		key, err := manager.Extract(path, cache.ExtractOptions{Force: *force, Password: *password})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		if reg != nil {
			if err := recordExtraction(reg, manager.Root(), key, path); err != nil {
				logger.Warn("failed to record extraction", zap.String("key", key), zap.Error(err))
			}
		}
		fmt.Printf("%s  %s\n", key, path)
	}
	if failed {
		os.Exit(1)
	}
}

func runRechunk() {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: tameru chunk [flags] <key>...")
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	manager := newManager(cfg, logger)

	for _, key := range fs.Args() {
		if err := manager.Rechunk(key); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", key, err)
			os.Exit(1)
		}
		fmt.Printf("rechunked %s\n", key)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: tameru search [flags] <key> <term>...")
		os.Exit(1)
	}
	key := fs.Arg(0)
	term := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()

	results, err := query.NewEngine(cfg.Cache.Root).Search(key, term)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, term, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runHeading() {
	fs := flag.NewFlagSet("heading", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: tameru heading [flags] <key> <name>...")
		os.Exit(1)
	}
	key := fs.Arg(0)
	name := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()

	body, ref, err := query.NewEngine(cfg.Cache.Root).Heading(key, name)
	if err != nil {
		var hnf *models.HeadingNotFoundError
		if errors.As(err, &hnf) {
			fmt.Fprintln(os.Stderr, hnf.Error())
			if len(hnf.Available) > 0 {
				fmt.Fprintln(os.Stderr, "Available headings:")
				for _, h := range hnf.Available {
					fmt.Fprintf(os.Stderr, "  %s\n", h)
				}
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Heading lookup failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteChunk(os.Stdout, ref, body, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runUnit() {
	fs := flag.NewFlagSet("unit", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: tameru unit [flags] <key> <sheet[!start-end]>")
		os.Exit(1)
	}
	key := fs.Arg(0)
	unitID := fs.Arg(1)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()

	bodies, refs, err := query.NewEngine(cfg.Cache.Root).Unit(key, unitID)
	if err != nil {
		var unf *models.UnitNotFoundError
		if errors.As(err, &unf) {
			fmt.Fprintln(os.Stderr, unf.Error())
			if len(unf.Available) > 0 {
				fmt.Fprintln(os.Stderr, "Available sheets:")
				for _, s := range unf.Available {
					fmt.Fprintf(os.Stderr, "  %s\n", s)
				}
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Unit lookup failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteChunks(os.Stdout, refs, bodies, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSummary() {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: tameru summary [flags] <key>")
		os.Exit(1)
	}
	key := fs.Arg(0)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()

	summary, err := query.NewEngine(cfg.Cache.Root).Summary(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Summary failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSummary(os.Stdout, summary, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	limit := fs.Int("limit", 100, "maximum entries to list")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()

	reg, err := registry.Open(cfg.Registry.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open registry: %v\n", err)
		os.Exit(1)
	}
	defer reg.Close()

	entries, err := reg.List(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteCacheList(os.Stdout, entries, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	reg := openRegistry(cfg, logger)
	if reg != nil {
		defer reg.Close()
	}

	engineOpts := []query.Option{}
	if cfg.Debug || *debug {
		engineOpts = append(engineOpts, query.WithLogger(logger))
	}
	srv := server.NewServer(
		query.NewEngine(cfg.Cache.Root, engineOpts...),
		reg,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	// Positional directories override the configured watch roots.
	roots := cfg.Watch.Directories
	if fs.NArg() > 0 {
		roots = fs.Args()
	}
	if len(roots) == 0 {
		fmt.Println("Usage: tameru watch [flags] <directory>...")
		os.Exit(1)
	}

	manager := newManager(cfg, logger)
	reg := openRegistry(cfg, logger)
	if reg != nil {
		defer reg.Close()
	}

	watchOpts := []watcher.Option{}
	if cfg.Debug || *debug {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	w := watcher.NewWatcher(
		roots,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			key, err := manager.Extract(path, cache.ExtractOptions{})
			if err != nil {
				logger.Warn("watch extract failed", zap.String("path", path), zap.Error(err))
				return
			}
			if reg != nil {
				if err := recordExtraction(reg, manager.Root(), key, path); err != nil {
					logger.Warn("failed to record extraction", zap.String("key", key), zap.Error(err))
				}
			}
			logger.Info("extracted", zap.String("path", path), zap.String("key", key))
		},
		watchOpts...,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()
	w.SyncExistingFiles()

	logger.Info("watching", zap.Strings("roots", roots))
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")
}

func printUsage() {
	fmt.Println(`tameru - Extraction cache for office documents

Usage:
  tameru extract [flags] <file>...          Extract and cache documents
  tameru chunk [flags] <key>...             Regenerate chunks from cached content
  tameru search [flags] <key> <term>        Search chunk text
  tameru heading [flags] <key> <name>       Look up a section by heading
  tameru unit [flags] <key> <sheet[!a-b]>   Look up sheet rows
  tameru summary [flags] <key>              Show cache entry summary
  tameru list [flags]                       List cached extractions
  tameru server [flags]                     Start the HTTP query API
  tameru watch [flags] [directory]...       Watch directories and extract on change
  tameru version                            Show version
  tameru help                               Show this help

Extract Flags:
  --config string     Config file path (default: /usr/local/etc/tameru/config.yaml)
  --force             Re-extract even when a cache entry already exists
  --password string   Password for encrypted documents

Query Flags (search, heading, unit, summary, list):
  --config string     Config file path
  --output string     Output format: text or json (default: text)

Server Flags:
  --config string     Config file path
  --debug             Enable debug logging

Watch Flags:
  --config string     Config file path
  --debug             Enable debug logging (file events, sync progress)

Examples:
  tameru extract report.docx
  tameru extract --password s3cret protected.pdf
  tameru search 1f0c9a8b2d374e5f6a7b8c9d0e1f2a3b revenue
  tameru heading 1f0c9a8b2d374e5f6a7b8c9d0e1f2a3b "Executive Summary"
  tameru unit 1f0c9a8b2d374e5f6a7b8c9d0e1f2a3b 'Sheet1!1-500'
  tameru summary 1f0c9a8b2d374e5f6a7b8c9d0e1f2a3b
  tameru list --output json
  tameru server
  tameru watch ~/Documents/reports`)
}
