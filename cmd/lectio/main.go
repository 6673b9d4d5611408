// Package main is the Lectio CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/psalterlabs/lectio/internal/commentary"
	"github.com/psalterlabs/lectio/internal/config"
	"github.com/psalterlabs/lectio/internal/extract"
	"github.com/psalterlabs/lectio/internal/llm"
	"github.com/psalterlabs/lectio/internal/retrieval"
	"github.com/psalterlabs/lectio/internal/server"
	"github.com/psalterlabs/lectio/internal/storage"
	"github.com/psalterlabs/lectio/internal/study"
	"github.com/psalterlabs/lectio/internal/watcher"
	"github.com/psalterlabs/lectio/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/lectio/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence (for development). Environment
// overrides (from .env when present) are applied last.
func loadConfig(path string) (*config.Config, string, error) {
	_ = godotenv.Load()
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnvOverrides(cfg)
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "generate":
		runGenerate()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("lectio version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.Close()

	index := retrieval.NewIndex(
		store,
		retrieval.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		cfg.Retrieval.MinTextLen,
		retrieval.WithLogger(logger),
	)
	if err := index.Reload(context.Background()); err != nil {
		logger.Fatal("Failed to reload index", zap.Error(err))
	}

	commentaryStore := commentary.NewStore(store, commentary.Config{
		NeutralScore:   cfg.Commentary.NeutralScore,
		RegenThreshold: cfg.Commentary.RegenThreshold,
		MinRatings:     cfg.Commentary.MinRatings,
	}, commentary.WithLogger(logger))

	ollama := llm.NewOllamaClient(llm.OllamaOptions{
		BaseURL:      cfg.Ollama.BaseURL,
		DefaultModel: cfg.Ollama.DefaultModel,
		Timeout:      cfg.Ollama.Timeout,
		NumPredict:   cfg.Ollama.NumPredict,
		Temperature:  cfg.Ollama.Temperature,
		TopP:         cfg.Ollama.TopP,
	})

	engine := study.NewEngine(
		index,
		commentaryStore,
		ollama,
		extract.NewExtractor(),
		cfg.Retrieval.DefaultTopK,
		study.WithLogger(logger),
	)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled && len(cfg.Sources) > 0 {
		roots := make(map[string]string, len(cfg.Sources))
		for _, src := range cfg.Sources {
			roots[src.Directory] = src.ID
		}
		watchSvc := watcher.NewWatcher(roots, cfg.Watch.Extensions, func(sourceID string) {
			dir := dirForSource(cfg.Sources, sourceID)
			n, err := engine.IngestDirectory(context.Background(), sourceID, dir, cfg.Watch.Extensions)
			if err != nil {
				logger.Warn("watch re-ingest failed", zap.String("source_id", sourceID), zap.Error(err))
				return
			}
			logger.Info("source re-ingested", zap.String("source_id", sourceID), zap.Int("files", n))
		}, watcher.WithLogger(logger))
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()

		// Ingest any source that is configured but not yet in the index.
		for _, src := range cfg.Sources {
			if index.ChunkCount(src.ID) > 0 {
				continue
			}
			n, err := engine.IngestDirectory(context.Background(), src.ID, src.Directory, cfg.Watch.Extensions)
			if err != nil {
				logger.Warn("initial ingest failed", zap.String("source_id", src.ID), zap.Error(err))
				continue
			}
			logger.Info("source ingested", zap.String("source_id", src.ID), zap.Int("files", n))
		}
	}

	srv := server.NewServer(engine, store, ollama, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func dirForSource(sources []config.SourceConfig, sourceID string) string {
	for _, src := range sources {
		if src.ID == sourceID {
			return src.Directory
		}
	}
	return ""
}

// runIngest extracts a file or directory locally and posts the text to a
// running server.
func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server base URL")
	_ = fs.Parse(os.Args[2:])
	args := fs.Args()
	if len(args) < 2 {
		fmt.Println("Usage: lectio ingest [flags] <source_id> <file-or-directory>")
		os.Exit(1)
	}
	sourceID, path := args[0], args[1]

	text, err := extractPath(path)
	if err != nil {
		fmt.Printf("Extraction failed: %v\n", err)
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]string{"text": text})
	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/sources/%s/ingest", strings.TrimRight(*serverURL, "/"), sourceID),
		"application/json", bytes.NewReader(body),
	)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func extractPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	extractor := extract.NewExtractor()
	if !info.IsDir() {
		return extractor.Extract(path)
	}
	var texts []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		if !extract.Supported(filepath.Ext(p)) {
			return nil
		}
		text, exErr := extractor.Extract(p)
		if exErr != nil {
			fmt.Printf("Skipping %s: %v\n", p, exErr)
			return nil
		}
		texts = append(texts, text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(texts, "\n\n"), nil
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server base URL")
	sourceID := fs.String("source", "", "source to search (required)")
	topK := fs.Int("top-k", 5, "number of results")
	_ = fs.Parse(os.Args[2:])
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" || *sourceID == "" {
		fmt.Println("Usage: lectio search -source <source_id> [flags] <query>")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"source_id": *sourceID,
		"query":     query,
		"top_k":     *topK,
	})
	resp, err := http.Post(strings.TrimRight(*serverURL, "/")+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server base URL")
	personaName := fs.String("persona", "augustine", "persona (augustine, aquinas, combined)")
	_ = fs.Parse(os.Args[2:])
	passage := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if passage == "" {
		fmt.Println("Usage: lectio generate [flags] <passage>")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]string{"passage": passage, "persona": *personaName})
	resp, err := http.Post(strings.TrimRight(*serverURL, "/")+"/api/v1/commentary/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server base URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(strings.TrimRight(*serverURL, "/") + "/api/v1/status")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func printResponse(resp *http.Response) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Failed to read response: %v\n", err)
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(body))
	}
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Lectio - devotional retrieval and commentary engine

Usage: lectio <command> [flags]

Commands:
  server     Run the HTTP API server
  ingest     Extract a file or directory and ingest it as a source
  search     Query a source's chunks by keyword relevance
  generate   Generate persona commentary for a passage
  status     Show index and storage statistics
  version    Print version

Examples:
  lectio server -config ./config.yaml -debug
  lectio ingest augustine ./corpus/augustine
  lectio search -source augustine grace and free will
  lectio generate -persona aquinas "Romans 8:28"`)
}
