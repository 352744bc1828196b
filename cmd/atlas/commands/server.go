package commands

import (
	"context"
	"fmt"
	"net/http"

	//nolint:gosec // We are using pprof for debugging
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/moolen/atlas/internal/api/handlers"
	"github.com/moolen/atlas/internal/apiserver"
	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/consolidation"
	"github.com/moolen/atlas/internal/extraction"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/ledger"
	"github.com/moolen/atlas/internal/lifecycle"
	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/mcp"
	"github.com/moolen/atlas/internal/retrieval"
	"github.com/moolen/atlas/internal/tracing"
	"github.com/moolen/atlas/internal/worker"
)

var (
	configPath        string
	pprofEnabled      bool
	pprofPort         int
	stdioEnabled      bool
	extractionEnabled bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Atlas server",
	Long: `Start the Atlas server: the ingestion API, the graph projection and
enrichment workers, the consolidation scheduler and the MCP query surface.`,
	Run: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&configPath, "config", "",
		"Path to the YAML config file. Environment variables with the CG_ prefix override file values.")
	serverCmd.Flags().BoolVar(&pprofEnabled, "pprof-enabled", false, "Enable pprof profiling server (default: false)")
	serverCmd.Flags().IntVar(&pprofPort, "pprof-port", 9999, "Port the pprof server listens on (default: 9999)")
	serverCmd.Flags().BoolVar(&stdioEnabled, "stdio", false, "Enable stdio MCP transport alongside HTTP (default: false)")
	serverCmd.Flags().BoolVar(&extractionEnabled, "extraction-enabled", true,
		"Enable LLM session extraction. Requires ANTHROPIC_API_KEY (default: true)")
}

func runServer(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(configPath)
	HandleError(err, "Configuration error")

	// Setup logging
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("server")

	logger.Info("Starting Atlas v%s", Version)
	logger.Debug("Configuration loaded: APIPort=%d Redis=%s Graph=%s:%d",
		cfg.API.Port, cfg.Redis.Addr, cfg.Graph.Host, cfg.Graph.Port)

	manager := lifecycle.NewManager()
	logger.Info("Lifecycle manager created")

	// Initialize tracing provider
	tracingProvider, err := tracing.NewTracingProvider(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		TLSCAPath:   cfg.Tracing.TLSCAPath,
		TLSInsecure: cfg.Tracing.TLSInsecure,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing (continuing without tracing): %v", err)
		tracingProvider = nil
	}
	if tracingProvider != nil {
		if err := manager.Register(tracingProvider); err != nil {
			logger.Error("Failed to register tracing provider: %v", err)
			HandleError(err, "Tracing registration error")
		}
	}

	// Start pprof server if enabled
	if pprofEnabled {
		go func() {
			pprofAddr := fmt.Sprintf(":%d", pprofPort)
			logger.Info("Starting pprof server on %s", pprofAddr)
			if err := http.ListenAndServe(pprofAddr, nil); err != nil { //nolint:gosec // We are using pprof for debugging
				logger.Error("pprof server failed: %v", err)
			}
		}()
	}

	ctx := context.Background()

	// Connect the graph store and ensure indexes exist
	graphClient := graph.NewClient(graph.ClientConfig{
		Host:         cfg.Graph.Host,
		Port:         cfg.Graph.Port,
		Password:     cfg.Graph.Password,
		GraphName:    cfg.Graph.GraphName,
		MaxRetries:   10, // wait for a FalkorDB sidecar to come up
		DialTimeout:  10 * time.Second,
		ReadTimeout:  time.Duration(cfg.Graph.TimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Graph.TimeoutMs) * time.Millisecond,
		PoolSize:     10,
	})
	if err := graphClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to graph store: %v", err)
		HandleError(err, "Graph connection error")
	}
	if err := graphClient.InitializeSchema(ctx); err != nil {
		logger.Error("Failed to initialize graph schema: %v", err)
		HandleError(err, "Graph schema error")
	}
	logger.Info("Graph store connected and schema initialized")

	// Connect the event ledger
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})
	store := ledger.NewStore(redisClient, cfg.Redis)
	if err := store.Ping(ctx); err != nil {
		logger.Error("Failed to connect to Redis: %v", err)
		HandleError(err, "Redis connection error")
	}
	if err := store.EnsureIndex(ctx); err != nil {
		// Full-text search degrades gracefully without the RediSearch module
		logger.Warn("Search index unavailable, GET /v1/events queries will fail: %v", err)
	}
	logger.Info("Event ledger connected")

	// Stream consumers
	projectionConsumer, err := worker.NewProjectionConsumer(cfg, redisClient, graphClient)
	if err != nil {
		logger.Error("Failed to create projection consumer: %v", err)
		HandleError(err, "Projection consumer error")
	}
	enrichmentConsumer := worker.NewEnrichmentConsumer(cfg, redisClient, graphClient)
	consolidationConsumer := worker.NewConsolidationConsumer(cfg, redisClient, store, graphClient)
	scheduler := worker.NewScheduler(cfg, redisClient)

	components := []lifecycle.Component{
		projectionConsumer,
		enrichmentConsumer,
		consolidationConsumer,
		scheduler,
	}

	if extractionEnabled {
		extractor := extraction.NewExtractor(extraction.Config{})
		components = append(components, worker.NewExtractionConsumer(cfg, store, graphClient, extractor))
	} else {
		logger.Info("Session extraction disabled - knowledge nodes will not be derived")
	}

	// Query services shared by the HTTP API and the MCP tools
	queryService := retrieval.NewService(graphClient, cfg.Decay)
	engine := consolidation.NewEngine(graphClient, store, cfg)
	atlasServer := mcp.NewAtlasServer(queryService, Version)
	logger.Info("MCP server created with direct retrieval service access")

	h := handlers.New(store, graphClient, queryService, scheduler, engine)
	apiComponent := apiserver.New(cfg.API, h, atlasServer.GetMCPServer())
	logger.Info("API server component created")

	// Hot-reload scoring parameters when the config file changes; other
	// settings apply on restart.
	if configPath != "" {
		cfgWatcher, err := config.NewWatcher(configPath, func(next *config.Config) error {
			queryService.UpdateDecay(next.Decay)
			return nil
		})
		if err != nil {
			logger.Error("Failed to create config watcher: %v", err)
			HandleError(err, "Config watcher error")
		}
		components = append(components, cfgWatcher)
	}

	for _, component := range components {
		if err := manager.Register(component); err != nil {
			logger.Error("Failed to register %s: %v", component.Name(), err)
			HandleError(err, "Component registration error")
		}
	}
	if err := manager.Register(apiComponent); err != nil {
		logger.Error("Failed to register API server component: %v", err)
		HandleError(err, "API server registration error")
	}

	logger.Info("All components registered")
	runCtx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(runCtx); err != nil {
		logger.Error("Failed to start components: %v", err)
		HandleError(err, "Startup error")
	}

	// Start stdio MCP transport if requested
	if stdioEnabled {
		logger.Info("Starting stdio MCP transport alongside HTTP")
		go func() {
			if err := server.ServeStdio(atlasServer.GetMCPServer()); err != nil {
				logger.Error("Stdio transport error: %v", err)
			}
		}()
	}

	logger.Info("Application started successfully")
	logger.Info("Ingesting events and serving API requests...")

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client: %v", err)
	}
	if err := graphClient.Close(); err != nil {
		logger.Error("Failed to close graph client: %v", err)
	}

	logger.Info("Shutdown complete")
}
