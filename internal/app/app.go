package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/handlers"
	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/jobs"
	"github.com/ternarybob/assero/internal/services/events"
	"github.com/ternarybob/assero/internal/services/llm"
	"github.com/ternarybob/assero/internal/services/patents"
	"github.com/ternarybob/assero/internal/services/pdf"
	"github.com/ternarybob/assero/internal/services/scheduler"
	"github.com/ternarybob/assero/internal/services/sessions"
	"github.com/ternarybob/assero/internal/services/webfetch"
	"github.com/ternarybob/assero/internal/storage/badger"
	"github.com/ternarybob/assero/internal/tools"
	"github.com/ternarybob/assero/internal/workflow"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	ctx       context.Context
	cancelCtx context.CancelFunc

	StorageManager interfaces.StorageManager

	// Event bus and streaming
	EventService interfaces.EventService
	LogStreamer  *handlers.LogStreamer

	// Providers. Any of these may be nil when unconfigured; every consumer
	// degrades instead of failing.
	LLMService        interfaces.LLMService
	PatentsClient     *patents.Client
	WebFetchService   *webfetch.Service
	SessionService    interfaces.SessionService
	PDFService        interfaces.PDFService
	DocumentExtractor interfaces.DocumentExtractor

	// Workflow pipeline
	ToolRegistry   *tools.Registry
	WorkflowEngine interfaces.WorkflowEngine

	// Job orchestration
	JobService       *jobs.Service
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	WSHandler       *handlers.WebSocketHandler
	JobHandler      *handlers.JobHandler
	DocumentHandler *handlers.DocumentHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	// Initialize storage
	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Event bus and WebSocket hub come first so everything created after
	// them can publish and stream from the moment it starts.
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.Logger, common.GetVersion())

	// Route the arbor context channel into the hub. Logs written before a
	// client connects are dropped by the hub, not buffered.
	app.LogStreamer = handlers.NewLogStreamer(app.WSHandler, app.Logger, &app.Config.WebSocket)
	app.LogStreamer.Start()
	app.Logger.SetChannel("context", app.LogStreamer.GetChannel())
	app.Logger.Debug().
		Int("channel_capacity", cap(app.LogStreamer.GetChannel())).
		Msg("Log streamer attached to arbor context channel")

	// Initialize services in dependency order
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	// Start workers AFTER all handlers are initialized so nothing dequeues
	// before the event subscribers are in place.
	if err := app.JobService.Start(app.ctx); err != nil {
		return nil, fmt.Errorf("failed to start job workers: %w", err)
	}
	app.Logger.Debug().Msg("Job workers started")

	if err := app.SchedulerService.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info().
		Str("llm_provider", app.llmProviderName()).
		Bool("patents_configured", app.PatentsClient != nil).
		Bool("sessions_enabled", cfg.Sessions.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the storage layer (Badger)
func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = manager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Bool("in_memory", a.Config.Storage.Badger.InMemory).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order.
//
// JOB ORCHESTRATION ARCHITECTURE:
//  1. ToolRegistry - Maps tool names to implementations (prior art search,
//     claim drafting, claim analysis, web search)
//  2. WorkflowEngine - Classifies intent, plans tool invocations, executes
//     them with context substitution, assembles the final response
//  3. JobService - Owns the job store, the bounded queue and the worker
//     pool that drives the engine
//  4. SchedulerService - Cron-driven eviction and stale-job sweeps
func (a *App) initServices() error {
	var err error

	// LLM provider. Every consumer carries a deterministic fallback, so a
	// missing or unhealthy provider degrades quality, never availability.
	a.LLMService, err = llm.NewLLMService(a.Config, a.Logger)
	if err != nil {
		a.LLMService = nil
		a.Logger.Warn().Err(err).Msg("Failed to initialize LLM service - classification and drafting fall back to heuristics")
		a.Logger.Info().Msg("To enable LLM features, set claude.api_key or gemini.api_key in config")
	} else {
		// Health check validates the API key before any job depends on it
		if err := a.LLMService.HealthCheck(context.Background()); err != nil {
			a.LLMService = nil
			a.Logger.Warn().Err(err).Msg("LLM service health check failed - service disabled")
			a.Logger.Info().Msg("To enable LLM features, provide a valid API key")
		} else {
			a.Logger.Debug().
				Str("provider", a.llmProviderName()).
				Msg("LLM service initialized and health check passed")
		}
	}

	// Session persistence for conversation history
	if a.Config.Sessions.Enabled {
		a.SessionService = sessions.NewService(a.StorageManager.SessionStorage(), &a.Config.Sessions, a.Logger)
		a.Logger.Debug().
			Int("max_turns", a.Config.Sessions.MaxTurns).
			Msg("Session service initialized")
	} else {
		a.Logger.Info().Msg("Session persistence disabled")
	}

	// Patent search client. Optional: the prior-art tool degrades to LLM
	// knowledge when no credentials are configured.
	if a.Config.Patents.Configured() {
		client, err := patents.NewClient(&a.Config.Patents, patents.WithLogger(a.Logger))
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to initialize patent search client - prior art falls back to LLM knowledge")
		} else {
			a.PatentsClient = client
			a.Logger.Debug().
				Str("base_url", a.Config.Patents.BaseURL).
				Int("rate_limit", a.Config.Patents.RateLimit).
				Msg("Patent search client initialized")
		}
	} else {
		a.Logger.Info().Msg("Patent API credentials not configured - prior art search uses LLM knowledge only")
	}

	// Web search and page fetching
	a.WebFetchService, err = webfetch.NewService(&a.Config.WebSearch, webfetch.WithLogger(a.Logger))
	if err != nil {
		a.WebFetchService = nil
		a.Logger.Warn().Err(err).Msg("Failed to initialize web search service - web search tool disabled")
	}

	// Result export and document extraction
	a.PDFService = pdf.NewService(&a.Config.PDF, a.Logger)
	a.DocumentExtractor = pdf.NewExtractor(a.Logger)

	// Tool registry
	if err := a.initTools(); err != nil {
		return fmt.Errorf("failed to initialize tools: %w", err)
	}

	// Workflow engine: classify -> plan -> execute -> assemble
	a.WorkflowEngine = workflow.NewEngine(a.LLMService, a.ToolRegistry, a.Logger)

	// Job orchestration: store, bounded queue, worker pool
	notifier := events.NewNotifier(a.EventService)
	a.JobService = jobs.NewService(a.Config.Jobs, a.WorkflowEngine, a.SessionService, notifier, a.Logger)
	a.Logger.Debug().
		Int("queue_size", a.Config.Jobs.QueueSize).
		Int("worker_count", a.Config.Jobs.WorkerCount).
		Int("max_attempts", a.Config.Jobs.MaxAttempts).
		Msg("Job service initialized")

	// Maintenance scheduler sweeps the job store on a cron schedule
	a.SchedulerService = scheduler.NewService(a.JobService, a.EventService, &a.Config.Scheduler, a.Logger)

	return nil
}

// initTools registers the tool set the workflow planner can draw on. The
// two search tools are wrapped in the TTL result cache; drafting and
// analysis are generative and never cached.
func (a *App) initTools() error {
	a.ToolRegistry = tools.NewRegistry(a.Logger)

	cache := a.StorageManager.CacheStorage()
	cacheTTL := a.Config.Storage.Badger.CacheTTL()

	// A nil concrete pointer must not become a non-nil interface value,
	// so the optional searchers are only assigned when present.
	var searcher tools.PatentSearcher
	if a.PatentsClient != nil {
		searcher = a.PatentsClient
	}
	priorArt := tools.NewPriorArtTool(searcher, a.LLMService, a.Config.Patents.MaxResults, a.Logger)
	if err := a.ToolRegistry.Register(tools.WithCache(priorArt, cache, cacheTTL, a.Logger)); err != nil {
		return err
	}

	if err := a.ToolRegistry.Register(tools.NewDraftingTool(a.LLMService, a.Logger)); err != nil {
		return err
	}
	if err := a.ToolRegistry.Register(tools.NewAnalysisTool(a.LLMService, a.Logger)); err != nil {
		return err
	}

	var fetcher tools.WebSearcher
	if a.WebFetchService != nil {
		fetcher = a.WebFetchService
	}
	webSearch := tools.NewWebSearchTool(fetcher, a.Config.WebSearch.MaxResults, a.Logger)
	if err := a.ToolRegistry.Register(tools.WithCache(webSearch, cache, cacheTTL, a.Logger)); err != nil {
		return err
	}

	a.Logger.Debug().
		Strs("tools", a.ToolRegistry.Names()).
		Str("cache_ttl", cacheTTL.String()).
		Msg("Tool registry initialized")

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler(a.LLMService)

	// EventSubscriber relays job lifecycle events to WebSocket clients with
	// config-driven whitelisting and throttling
	_ = handlers.NewEventSubscriber(a.WSHandler, a.EventService, a.Logger, &a.Config.WebSocket)
	a.Logger.Debug().
		Int("allowed_events", len(a.Config.WebSocket.AllowedEvents)).
		Int("throttle_intervals", len(a.Config.WebSocket.ThrottleIntervals)).
		Msg("EventSubscriber initialized")

	a.JobHandler = handlers.NewJobHandler(a.JobService, a.PDFService, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.DocumentExtractor, a.Logger)

	return nil
}

func (a *App) llmProviderName() string {
	if a.LLMService == nil {
		return "none"
	}
	return string(a.LLMService.GetProvider())
}

// Close closes all application resources in reverse initialization order
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	// Stop maintenance first so no sweep runs against a draining pool
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.JobService != nil {
		if err := a.JobService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop job workers")
		} else {
			a.Logger.Info().Msg("Job workers stopped")
		}
	}

	if a.LogStreamer != nil {
		a.LogStreamer.Stop()
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		} else {
			a.Logger.Info().Msg("LLM service closed")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
