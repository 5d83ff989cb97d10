package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrickmvla/rift-copilot/internal/config"
	"github.com/patrickmvla/rift-copilot/internal/httpapi"
	"github.com/patrickmvla/rift-copilot/internal/ingest"
	"github.com/patrickmvla/rift-copilot/internal/ingestworker"
	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
	"github.com/patrickmvla/rift-copilot/internal/orchestrator"
	"github.com/patrickmvla/rift-copilot/internal/ranker"
	"github.com/patrickmvla/rift-copilot/internal/reader"
	"github.com/patrickmvla/rift-copilot/internal/search"
	"github.com/patrickmvla/rift-copilot/internal/storage"
	"github.com/patrickmvla/rift-copilot/internal/verify"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rift",
	Short:   "Evidence-bound research copilot",
	Long:    "rift plans, searches, reads, ranks, answers, and verifies research questions with citations bound to source text.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(workerCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("rift", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/rift/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set your LLM/search provider and API keys.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		remaining, err := db.CountQueuedIngestJobs()
		if err != nil {
			return fmt.Errorf("counting queue: %w", err)
		}

		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("LLM provider: %s (%s)\n", cfg.Providers.LLM.Provider, cfg.Providers.LLM.BaseURL)
		fmt.Printf("Search provider: %s (fallback: %s)\n", cfg.Providers.Search.Provider, cfg.Providers.Search.FallbackProvider)
		fmt.Printf("Ingest queue: %d job(s) pending\n", remaining)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveWorkerInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		srv, err := buildServer(db)
		if err != nil {
			return err
		}

		if serveWorkerInterval > 0 {
			wctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			worker := ingestworker.New(ingest.New(db, reader.New()), ingestworker.Options{Interval: serveWorkerInterval})
			go func() {
				if err := worker.Run(wctx); err != nil && wctx.Err() == nil {
					log.Printf("ingest worker stopped: %v", err)
				}
			}()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return http.ListenAndServe(fmt.Sprintf(":%d", port), srv.Handler())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default: config server.port)")
	serveCmd.Flags().DurationVar(&serveWorkerInterval, "worker-interval", 5*time.Second, "Background ingest queue drain interval (0 disables)")
}

// --- research command ---

var (
	researchDepth  string
	researchThread string
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Run one research question end to end and print the answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		orch, err := buildOrchestrator(db)
		if err != nil {
			return err
		}

		req := orchestrator.Request{
			ThreadID: researchThread,
			Question: args[0],
			Depth:    orchestrator.Depth(researchDepth),
		}

		return runResearchCLI(cmd.Context(), orch, req)
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchDepth, "depth", "normal", "Research depth: quick, normal, deep")
	researchCmd.Flags().StringVar(&researchThread, "thread", "", "Continue an existing thread instead of starting a new one")
}

// runResearchCLI drives one orchestrator run, printing progress lines
// to stderr and streaming the answer text to stdout as it arrives.
func runResearchCLI(ctx context.Context, orch *orchestrator.Orchestrator, req orchestrator.Request) error {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	emit := func(event string, data any) {
		switch event {
		case "progress":
			if p, ok := data.(orchestrator.ProgressPayload); ok {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", p.Stage, p.Message)
			}
		case "token":
			if text, ok := data.(string); ok {
				out.WriteString(text)
				out.Flush()
			}
		case "sources":
			if s, ok := data.(orchestrator.SourcesPayload); ok && len(s.Sources) > 0 {
				fmt.Fprintln(os.Stderr, "\nSources:")
				for _, src := range s.Sources {
					fmt.Fprintf(os.Stderr, "  [%d] %s\n", src.Number, src.URL)
				}
			}
		case "done":
			out.WriteString("\n")
		}
	}

	return orch.Run(ctx, req, emit)
}

// --- ingest command ---

var (
	ingestImmediate bool
	ingestPriority  int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [url...]",
	Short: "Ingest one or more URLs into the source store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		in := ingest.New(db, reader.New())
		for _, url := range args {
			outcome, err := in.Ingest(cmd.Context(), url, ingest.Options{Immediate: ingestImmediate, Priority: ingestPriority})
			if err != nil {
				fmt.Printf("  %s: error: %v\n", url, err)
				continue
			}
			fmt.Printf("  %s: %s (source %s)\n", url, outcome.Status, outcome.SourceID)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestImmediate, "immediate", true, "Fetch inline instead of queueing")
	ingestCmd.Flags().IntVar(&ingestPriority, "priority", 0, "Queue priority when not immediate")
}

// --- worker command ---

var (
	workerLimit          int
	workerConcurrency    int
	workerReviveStaleSec int
	workerWatch          bool
	workerInterval       time.Duration
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the ingest worker against the durable queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		in := ingest.New(db, reader.New())
		batchOpts := ingest.WorkerOptions{
			Limit:          workerLimit,
			Pool:           workerConcurrency,
			ReviveStaleSec: workerReviveStaleSec,
		}

		if workerWatch {
			fmt.Println("Watching ingest queue. Press Ctrl+C to stop.")
			w := ingestworker.New(in, ingestworker.Options{Interval: workerInterval, Batch: batchOpts})
			return w.Run(cmd.Context())
		}

		counts, err := in.RunBatch(cmd.Context(), batchOpts)
		if err != nil {
			return err
		}

		fmt.Printf("revived=%d claimed=%d processed=%d ok=%d exists=%d requeued=%d errors=%d remaining=%d\n",
			counts.Revived, counts.Claimed, counts.Processed, counts.OK, counts.Exists, counts.Requeued, counts.Errors, counts.Remaining)
		return nil
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerLimit, "limit", 20, "Max jobs to claim per batch")
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 4, "Worker pool size")
	workerCmd.Flags().IntVar(&workerReviveStaleSec, "revive-stale-sec", 300, "Revive jobs stuck processing longer than this")
	workerCmd.Flags().BoolVar(&workerWatch, "watch", false, "Keep running, polling the queue on an interval")
	workerCmd.Flags().DurationVar(&workerInterval, "interval", 5*time.Second, "Poll interval when --watch is set")
}

// --- wiring helpers ---

func openDB() (*storage.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return storage.Open(cfg.GetDBPath())
}

// buildGateway wires the configured LLM provider into a Gateway, the
// way openDB wires the configured data directory into a *storage.DB.
func buildGateway() *llmgateway.Gateway {
	return llmgateway.NewFromConfig(cfg.Providers.LLM, cfg.Budgets.RequestTimeoutMs)
}

// buildSearcher wires the primary/fallback search providers named in
// config into a Searcher.
func buildSearcher() *search.Searcher {
	primary := buildSearchProvider(cfg.Providers.Search.Provider, cfg.Providers.Search.APIKeyEnv)
	var fallback search.Provider
	if cfg.Providers.Search.FallbackProvider != "" {
		fallback = buildSearchProvider(cfg.Providers.Search.FallbackProvider, "")
	}
	return search.New(primary, fallback)
}

func buildSearchProvider(name, apiKeyEnv string) search.Provider {
	switch strings.ToLower(name) {
	case "feeds", "feed":
		return search.NewFeedProvider(defaultFeeds)
	case "none", "":
		return nil
	default:
		return search.NewWebProvider(apiKeyEnv, "")
	}
}

// defaultFeeds seeds the RSS fallback provider when no feed list is
// configured. A future config.Providers.Search.Feeds field could
// override this; none exists yet because the distilled config schema
// has no such knob.
var defaultFeeds = []string{
	"https://hnrss.org/frontpage",
	"https://feeds.arstechnica.com/arstechnica/index",
}

func buildRanker(gw *llmgateway.Gateway, db *storage.DB) *ranker.Ranker {
	var rr ranker.Reranker
	if cfg.Budgets.EnableRerank && cfg.Providers.Rerank.Provider != "none" {
		rr = ranker.NewLLMReranker(gw)
	}
	return ranker.New(db, rr)
}

func buildOrchestrator(db *storage.DB) (*orchestrator.Orchestrator, error) {
	gw := buildGateway()
	sch := buildSearcher()
	ing := ingest.New(db, reader.New())
	rk := buildRanker(gw, db)
	vf := verify.New(gw)
	return orchestrator.New(db, sch, ing, rk, gw, vf, cfg.Budgets, cfg.Reader), nil
}

func buildServer(db *storage.DB) (*httpapi.Server, error) {
	gw := buildGateway()
	sch := buildSearcher()
	ing := ingest.New(db, reader.New())
	rk := buildRanker(gw, db)
	vf := verify.New(gw)
	orch := orchestrator.New(db, sch, ing, rk, gw, vf, cfg.Budgets, cfg.Reader)
	return httpapi.New(db, orch, sch, ing, rk, vf, cfg.Budgets)
}
