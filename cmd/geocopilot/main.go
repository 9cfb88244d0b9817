// Package main is the GeoCopilot CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

	"github.com/yosgi/GeoCopilot/internal/cli"
	"github.com/yosgi/GeoCopilot/internal/config"
	"github.com/yosgi/GeoCopilot/internal/embedding"
	"github.com/yosgi/GeoCopilot/internal/export"
	"github.com/yosgi/GeoCopilot/internal/history"
	"github.com/yosgi/GeoCopilot/internal/importer"
	"github.com/yosgi/GeoCopilot/internal/ingest"
	"github.com/yosgi/GeoCopilot/internal/llm"
	"github.com/yosgi/GeoCopilot/internal/models"
	"github.com/yosgi/GeoCopilot/internal/persist"
	"github.com/yosgi/GeoCopilot/internal/query"
	"github.com/yosgi/GeoCopilot/internal/server"
	"github.com/yosgi/GeoCopilot/internal/storage"
	"github.com/yosgi/GeoCopilot/internal/store"
	"github.com/yosgi/GeoCopilot/internal/vector"
	"github.com/yosgi/GeoCopilot/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/geocopilot/config.yaml"
	defaultServerURL  = "http://localhost:5002"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "geocopilot server" from the project dir uses the project's config
// (including debug). Returns the config and the path that was actually loaded.
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
	case "server":
		runServer()
	case "insert":
		runInsert()
	case "query":
		runQuery()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("geocopilot version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (batch contents, query timings, etc.)")
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

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	components.Saver.Start(ctx)
	components.Sweeper.Start(ctx)

	var imp *importer.Importer
	if cfg.Storage.ImportDir != "" {
		imp = importer.NewImporter(cfg.Storage.ImportDir, components.Ingest, importer.WithLogger(logger))
		if err := imp.Start(ctx); err != nil {
			logger.Fatal("Failed to start importer", zap.Error(err))
		}
		imp.ScanExisting(ctx)
	}

	srv := server.NewServer(
		components.Ingest,
		components.Query,
		components.Exporter,
		components.Saver,
		components.Index,
		components.Meta,
		components.Pool,
		components.History,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if imp != nil {
		imp.Stop()
	}
	components.Sweeper.Stop()
	components.Saver.Stop()
	if vectors, records, err := components.Saver.SaveNow(); err != nil {
		logger.Warn("final save failed", zap.Error(err))
	} else {
		logger.Info("final save complete", zap.Int("vectors", vectors), zap.Int("records", records))
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runInsert() {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: geocopilot insert [flags] <records.json>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read file: %v\n", err)
		os.Exit(1)
	}
	// Validate locally so a malformed file fails before touching the server.
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		fmt.Printf("Invalid records file: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(*serverURL+"/insert_json_batch", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			Inserted  int `json:"inserted"`
			TotalInDB int `json:"total_in_db"`
			PoolSize  int `json:"pool_size"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Inserted %d of %d record(s); %d in database, %d staged\n",
			out.Inserted, len(records), out.TotalInDB, out.PoolSize)
	case http.StatusConflict:
		var out struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out.Message)
	default:
		b, _ := io.ReadAll(resp.Body)
		fmt.Printf("Insert failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: geocopilot query [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces. Multi-word questions work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  geocopilot query cooling water pumps
  geocopilot query "cooling water pumps"            # same as above
  geocopilot query --top-k 10 heat exchangers
  geocopilot query --summary "which pumps need monthly inspection?"
  geocopilot query --output json condensers          # raw records for other apps
`)
}

// buildQueryText joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// queryArgsReorder moves any flags (and their values) that appear after the
// question to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "geocopilot query \"pumps\"
// -top-k 10" would otherwise leave -top-k unparsed.
func queryArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runQuery() {
	queryArgs := queryArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	topK := fs.Int("top-k", 0, "number of matches to retrieve (0 = server default)")
	summary := fs.Bool("summary", false, "ask the chat model to answer from the matches")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(queryArgs)

	if fs.NArg() < 1 {
		printQueryUsage(fs)
		os.Exit(1)
	}
	queryStr := buildQueryText(fs.Args())
	if queryStr == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	body, err := json.Marshal(&models.QueryRequest{Query: queryStr, TopK: *topK})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
		os.Exit(1)
	}

	if *summary {
		resp, err := http.Post(*serverURL+"/query/summary", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Summary failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Answer string `json:"answer"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out.Answer)
		return
	}

	resp, err := http.Post(*serverURL+"/query", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Query failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var results []models.Record
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteQueryResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusResponse is the shape of the GET /status response.
type statusResponse struct {
	DatabaseStatus  string          `json:"database_status"`
	TotalEquipment  int             `json:"total_equipment"`
	FAISSIndexSize  int             `json:"faiss_index_size"`
	PoolSize        int             `json:"pool_size"`
	DataConsistency bool            `json:"data_consistency"`
	FilesExist      map[string]bool `json:"files_exist"`
	HistoryIngests  *int64          `json:"history_ingests,omitempty"`
	HistoryQueries  *int64          `json:"history_queries,omitempty"`
	DiskUsageBytes  *int64          `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct snapshot mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read snapshots directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		idx, err := vector.NewIndex(cfg.Vector.IndexType, cfg.Vector.Dimensions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create vector index: %v\n", err)
			os.Exit(1)
		}
		if err := idx.Load(cfg.Storage.IndexPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load index snapshot: %v\n", err)
			os.Exit(1)
		}
		meta := store.NewMetadata()
		if err := meta.Load(cfg.Storage.MetadataPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load metadata snapshot: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			DatabaseStatus:  "ready",
			TotalEquipment:  meta.Len(),
			FAISSIndexSize:  idx.Size(),
			DataConsistency: idx.Size() == meta.Len(),
			FilesExist: map[string]bool{
				"faiss_index":  fileReadable(cfg.Storage.IndexPath),
				"metadata_pkl": fileReadable(cfg.Storage.MetadataPath),
			},
		}
		if cfg.History.EnabledOrDefault() {
			if h, herr := history.NewStore(cfg.History.DatabasePath); herr == nil {
				if ingests, queries, cerr := h.Counts(context.Background()); cerr == nil {
					status.HistoryIngests = &ingests
					status.HistoryQueries = &queries
				}
				_ = h.Close()
			}
		}
		if usage, uerr := storage.DiskUsageBytes(
			cfg.Storage.IndexPath, cfg.Storage.MetadataPath,
			cfg.History.DatabasePath, cfg.Storage.ExportDir,
		); uerr == nil {
			status.DiskUsageBytes = &usage
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("database_status:    %s\n", status.DatabaseStatus)
		fmt.Printf("total_equipment:    %d   # records in the metadata store\n", status.TotalEquipment)
		fmt.Printf("faiss_index_size:   %d   # vectors in the index\n", status.FAISSIndexSize)
		fmt.Printf("pool_size:          %d   # records staged since the last drain\n", status.PoolSize)
		fmt.Printf("data_consistency:   %t\n", status.DataConsistency)
		fmt.Printf("files_exist:        index=%t metadata=%t\n",
			status.FilesExist["faiss_index"], status.FilesExist["metadata_pkl"])
		if status.HistoryIngests != nil && status.HistoryQueries != nil {
			fmt.Printf("history:            %d ingest(s), %d query(ies) recorded\n",
				*status.HistoryIngests, *status.HistoryQueries)
		}
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Printf("%s already exists (use --force to overwrite)\n", *configPath)
		os.Exit(1)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Save(*configPath, cfg); err != nil {
		fmt.Printf("Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *configPath)
}

func fileReadable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Components holds initialized services.
type Components struct {
	Index     vector.Index
	Meta      *store.Metadata
	Pool      *store.Pool
	Embedder  embedding.Embedder
	Generator llm.Generator
	History   *history.Store
	Ingest    *ingest.Service
	Query     *query.Engine
	Exporter  *export.Exporter
	Saver     *persist.Saver
	Sweeper   *persist.Sweeper
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.History != nil {
		_ = c.History.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	idx, err := vector.NewIndex(cfg.Vector.IndexType, cfg.Vector.Dimensions)
	if err != nil {
		// Fall back to the flat index if the configured type fails (e.g. FAISS not compiled in)
		if cfg.Vector.IndexType != string(vector.IndexTypeFlat) && cfg.Vector.IndexType != "" {
			logger.Warn("failed to create vector index, falling back to flat",
				zap.String("requested_type", cfg.Vector.IndexType),
				zap.Error(err))
			idx, err = vector.NewIndex(string(vector.IndexTypeFlat), cfg.Vector.Dimensions)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}
	if loadErr := idx.Load(cfg.Storage.IndexPath); loadErr != nil {
		logger.Warn("index snapshot load skipped", zap.String("path", cfg.Storage.IndexPath), zap.Error(loadErr))
	}

	meta := store.NewMetadata()
	if loadErr := meta.Load(cfg.Storage.MetadataPath); loadErr != nil {
		logger.Warn("metadata snapshot load skipped", zap.String("path", cfg.Storage.MetadataPath), zap.Error(loadErr))
	}
	logger.Info("database loaded",
		zap.Int("vectors", idx.Size()),
		zap.Int("records", meta.Len()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))
	if idx.Size() != meta.Len() {
		logger.Warn("index and metadata snapshots disagree",
			zap.Int("vectors", idx.Size()),
			zap.Int("records", meta.Len()))
	}
	pool := store.NewPool()

	var embedder embedding.Embedder = embedding.NewOpenAIEmbedder(
		cfg.Provider.APIKeyEnv,
		cfg.Provider.EmbeddingModel,
		cfg.Provider.BaseURL,
		cfg.Vector.Dimensions,
		cfg.Provider.Timeout(),
	)
	if cfg.Provider.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Provider.CacheSize)
	}
	generator := llm.NewOpenAIGenerator(
		cfg.Provider.APIKeyEnv,
		cfg.Provider.ChatModel,
		cfg.Provider.BaseURL,
		cfg.Provider.Timeout(),
	)

	var hist *history.Store
	if cfg.History.EnabledOrDefault() {
		h, histErr := history.NewStore(cfg.History.DatabasePath)
		if histErr != nil {
			logger.Warn("history disabled: store unavailable",
				zap.String("path", cfg.History.DatabasePath),
				zap.Error(histErr))
		} else {
			hist = h
		}
	}

	ingOpts := []ingest.ServiceOption{ingest.WithLogger(logger)}
	qryOpts := []query.EngineOption{query.WithLogger(logger)}
	if hist != nil {
		ingOpts = append(ingOpts, ingest.WithRecorder(hist))
		qryOpts = append(qryOpts, query.WithRecorder(hist))
	}

	return &Components{
		Index:     idx,
		Meta:      meta,
		Pool:      pool,
		Embedder:  embedder,
		Generator: generator,
		History:   hist,
		Ingest:    ingest.NewService(idx, meta, pool, embedder, ingOpts...),
		Query:     query.NewEngine(idx, meta, embedder, generator, &cfg.Query, qryOpts...),
		Exporter:  export.NewExporter(meta, idx, &cfg.Storage, export.WithLogger(logger)),
		Saver: persist.NewSaver(idx, meta,
			cfg.Storage.IndexPath, cfg.Storage.MetadataPath,
			cfg.Persist.SaveInterval(), persist.WithSaverLogger(logger)),
		Sweeper: persist.NewSweeper(pool,
			cfg.Persist.SweepInterval(), cfg.Persist.PoolIdleTimeout(),
			persist.WithSweeperLogger(logger)),
	}, nil
}

func printUsage() {
	fmt.Println(`geocopilot - Equipment metadata search and summary server

Usage:
  geocopilot server [flags]            Start the HTTP server
  geocopilot insert [flags] <file>     Insert a JSON batch of equipment records
  geocopilot query [flags] <question>  Find the nearest equipment records
  geocopilot status [flags]            Show database and snapshot status
  geocopilot init [flags]              Write a default config file
  geocopilot version                   Show version
  geocopilot help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/geocopilot/config.yaml)
  --debug            Enable debug logging (batch contents, query timings, etc.)

Insert Flags:
  --server string    Server URL (default: http://localhost:5002)

Query Flags:
  --server string    Server URL (default: http://localhost:5002)
  --top-k int        Number of matches to retrieve (0 = server default)
  --summary          Ask the chat model to answer from the matches
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct snapshot mode)
  --server string    Server URL (default: http://localhost:5002). Use empty (--server "") to read snapshots directly.
  --output string    Output format: text or json (default: text)

Init Flags:
  --config string    Where to write the config file (default: config.yaml)
  --force            Overwrite an existing file

Examples:
  geocopilot server
  geocopilot insert equipment_batch.json
  geocopilot query "cooling water pumps"
  geocopilot query --summary "which pumps need monthly inspection?"
  geocopilot query --output json condensers
  geocopilot status
  geocopilot status --server "" --config ./config.yaml
  geocopilot init --config ./config.yaml`)
}
