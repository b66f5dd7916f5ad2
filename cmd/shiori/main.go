// Package main is the Shiori CLI entry point.
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

	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/internal/server"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/internal/vector"
	"github.com/hyperjump/shiori/internal/watcher"
	"github.com/hyperjump/shiori/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shiori/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present. When no file exists at the default path either, built-in defaults
// are used. Returns the config and the path that was actually loaded ("" for defaults).
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
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			if err := config.Validate(cfg); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadEnv reads .env from the working directory and next to the config file. Existing
// environment variables are not overridden.
func loadEnv(configPath string) {
	_ = godotenv.Load()
	if configPath != "" {
		envPath := filepath.Join(filepath.Dir(configPath), ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
		}
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "index":
		runIndex()
	case "retrieve":
		runRetrieve()
	case "prompt":
		runPrompt()
	case "chat":
		runChat()
	case "server":
		runServer()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("shiori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// fail prints err, which already names the failing stage, and exits 1.
func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

// setup loads config and .env and creates the logger.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger) {
	loadEnv(configPath)
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config", err)
	}
	loadEnv(resolved)
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("Failed to create logger", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

// queryArgsReorder moves any flags (and their values) that appear after the query
// to the front so that flag.Parse() sees them.
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

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("out", "", "index output directory (default: storage.index_path)")
	debug := fs.Bool("debug", false, "enable debug logging")
	quiet := fs.Bool("quiet", false, "no progress bar")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	dir := cfg.Loader.Directory
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	outDir := cfg.Storage.IndexPath
	if *out != "" {
		outDir = *out
	}

	var bar *progressbar.ProgressBar
	var opts []indexer.BuilderOption
	if !*quiet {
		opts = append(opts, indexer.WithProgress(func(done, total int) {
			if bar == nil {
				bar = newProgressBar(total, "embedding chunks")
			}
			_ = bar.Set(done)
		}))
	}
	components, err := initializeComponents(cfg, logger, false, opts...)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	idx, stats, err := components.Builder.BuildAndSave(ctx, dir, outDir)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		fail("Indexing failed", err)
	}
	_ = idx.Close()
	cli.WriteBuildStats(os.Stdout, stats, outDir)
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func printQueryUsage(fs *flag.FlagSet, name string) {
	fmt.Fprintf(fs.Output(), "Usage: shiori %s [flags] <query>\n\n", name)
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
}

// queryFlags holds the flags shared by retrieve and prompt.
type queryFlags struct {
	configPath *string
	serverURL  *string
	k          *int
	output     *string
	debug      *bool
}

func parseQueryFlags(name string) (*flag.FlagSet, queryFlags, string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	f := queryFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		serverURL:  fs.String("server", "", "server URL (empty = load the index directly)"),
		k:          fs.Int("k", 0, "number of results (default: retrieval.top_k)"),
		output:     fs.String("output", "text", "output format: text, compact, or json"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
	fs.Usage = func() { printQueryUsage(fs, name) }
	_ = fs.Parse(queryArgsReorder(os.Args[2:]))
	query := buildQuery(fs.Args())
	if query == "" {
		printQueryUsage(fs, name)
		os.Exit(1)
	}
	return fs, f, query
}

func runRetrieve() {
	_, f, query := parseQueryFlags("retrieve")
	format, err := cli.ParseOutputFormat(*f.output)
	if err != nil {
		fail("Invalid flag", err)
	}
	req := &models.RetrieveRequest{Query: query, K: *f.k}

	var response *models.RetrieveResponse
	if *f.serverURL != "" {
		response = new(models.RetrieveResponse)
		if err := postJSON(*f.serverURL+"/api/v1/retrieve", req, response); err != nil {
			fail("Retrieve failed", err)
		}
	} else {
		cfg, logger := setup(*f.configPath, *f.debug)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, true)
		if err != nil {
			fail("Failed to initialize", err)
		}
		defer components.Close()
		response, err = components.Retriever.Do(context.Background(), req)
		if err != nil {
			fail("Retrieve failed", err)
		}
	}
	if err := cli.WriteResults(os.Stdout, response, format); err != nil {
		fail("Output failed", err)
	}
}

func runPrompt() {
	_, f, query := parseQueryFlags("prompt")
	format, err := cli.ParseOutputFormat(*f.output)
	if err != nil {
		fail("Invalid flag", err)
	}
	req := &models.RetrieveRequest{Query: query, K: *f.k}

	var response models.PromptResponse
	if *f.serverURL != "" {
		if err := postJSON(*f.serverURL+"/api/v1/prompt", req, &response); err != nil {
			fail("Prompt failed", err)
		}
	} else {
		cfg, logger := setup(*f.configPath, *f.debug)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, true)
		if err != nil {
			fail("Failed to initialize", err)
		}
		defer components.Close()
		if err := req.Validate(cfg.Retrieval.TopK); err != nil {
			fail("Prompt failed", err)
		}
		results, err := components.Retriever.Retrieve(context.Background(), req.Query, req.K)
		if err != nil {
			fail("Prompt failed", err)
		}
		response = models.PromptResponse{
			Query:  req.Query,
			Prompt: components.Assembler.Assemble(results, req.Query),
			Hits:   len(results),
		}
	}
	if err := cli.WritePrompt(os.Stdout, &response, format); err != nil {
		fail("Output failed", err)
	}
}

func postJSON(url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	if err := components.LoadIndex(); err != nil {
		logger.Warn("no usable index; serving 503 until POST /api/v1/index", zap.Error(err))
	}

	rebuilder := retrieval.NewRebuilder(components.Builder, components.Retriever, cfg.Loader.Directory,
		cfg.Storage.IndexPath, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Watch.Enabled {
		watchSvc := watcher.NewWatcher(cfg.Loader.Directory, cfg.Loader.Extensions,
			func(ctx context.Context) {
				if _, err := rebuilder.Rebuild(ctx); err != nil {
					logger.Warn("watch rebuild failed", zap.Error(err))
				}
			},
			watcher.WithDebounce(cfg.Watch.Debounce()),
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(components.Retriever, components.Assembler, rebuilder, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Index          *vector.Stats          `json:"index"`
	BuildID        string                 `json:"build_id,omitempty"`
	BuiltAt        *time.Time             `json:"built_at,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	LeftoverDirs   []string               `json:"leftover_dirs,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the index directory)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fail("Status failed", err)
		}
		status = *res
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		status = localStatus(cfg)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fail("Output failed", err)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// localStatus reads the persisted index manifest without loading vectors.
func localStatus(cfg *config.Config) statusResponse {
	status := statusResponse{
		Config: map[string]interface{}{
			"index_path":         cfg.Storage.IndexPath,
			"source_directory":   cfg.Loader.Directory,
			"embedding_provider": cfg.Embedding.Provider,
			"embedding_model":    cfg.Embedding.Model,
			"chunk_size":         cfg.Chunking.ChunkSize,
			"chunk_overlap":      cfg.Chunking.Overlap(),
			"top_k":              cfg.Retrieval.TopK,
		},
	}
	if m, err := vector.ReadManifest(cfg.Storage.IndexPath); err == nil {
		status.Index = &vector.Stats{
			Type:       m.IndexType,
			Metric:     m.Metric,
			Size:       m.Count,
			Dimensions: m.Dimensions,
			Model:      m.Model,
		}
		status.BuildID = m.BuildID
		status.BuiltAt = &m.CreatedAt
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.IndexPath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	if leftovers, err := storage.LeftoverDirs(cfg.Storage.IndexPath); err == nil {
		status.LeftoverDirs = leftovers
	}
	return status
}

func writeStatusText(w io.Writer, status statusResponse) {
	if status.Index == nil {
		fmt.Fprintln(w, "index:              none   # run `shiori index` to build one")
	} else {
		fmt.Fprintf(w, "index_type:         %s\n", status.Index.Type)
		fmt.Fprintf(w, "entries:            %d   # chunks in the index\n", status.Index.Size)
		fmt.Fprintf(w, "dimensions:         %d\n", status.Index.Dimensions)
		fmt.Fprintf(w, "model:              %s\n", status.Index.Model)
		fmt.Fprintf(w, "metric:             %s\n", status.Index.Metric)
	}
	if status.BuildID != "" {
		fmt.Fprintf(w, "build_id:           %s\n", status.BuildID)
	}
	if status.BuiltAt != nil {
		fmt.Fprintf(w, "built_at:           %s\n", status.BuiltAt.Format(time.RFC3339))
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	for _, d := range status.LeftoverDirs {
		fmt.Fprintf(w, "leftover_dir:       %s   # from an interrupted save; safe to delete\n", d)
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, k := range []string{"index_path", "source_directory", "embedding_provider", "embedding_model", "chunk_size", "chunk_overlap", "top_k"} {
			if v, ok := status.Config[k]; ok {
				fmt.Fprintf(w, "%-19s %v\n", k+":", v)
			}
		}
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
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

func printUsage() {
	fmt.Println(usage)
}

const usage = `shiori - local retrieval-augmented generation over your documents

Usage:
  shiori index [flags] [dir]         Build the vector index from a directory (default: loader.directory)
  shiori retrieve [flags] <query>    Show the chunks nearest to a query
  shiori prompt [flags] <query>      Show the assembled LLM prompt for a query
  shiori chat [flags]                Chat with your documents (streams from the configured LLM)
  shiori server [flags]              Start the HTTP server
  shiori status [flags]              Show index status
  shiori version                     Show version
  shiori help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/shiori/config.yaml, or ./config.yaml)
  --debug            Enable debug logging

Index Flags:
  --out string       Index output directory (default: storage.index_path)
  --quiet            Do not show a progress bar

Retrieve / Prompt Flags:
  --k int            Number of chunks (default: retrieval.top_k)
  --output string    text, compact, or json (default: text)
  --server string    Query a running server instead of loading the index

Chat Flags:
  --k int            Number of chunks per turn (default: retrieval.top_k)
  --show-context     Print the retrieved chunks before each answer

Status Flags:
  --server string    Server URL; empty reads the index directory
  --output string    text or json (default: text)

Examples:
  shiori index ./docs
  shiori retrieve "what is the refund policy"
  shiori retrieve --k 8 --output json refund policy
  shiori prompt "summarise chapter 2"
  shiori chat
  shiori server --debug
  shiori status --output json

Notes:
  Page and slide numbers in results are 1-based (report.pdf#1 is the first page).`
