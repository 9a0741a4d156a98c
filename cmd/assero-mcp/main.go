package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/services/llm"
	"github.com/ternarybob/assero/internal/services/patents"
	"github.com/ternarybob/assero/internal/services/webfetch"
	"github.com/ternarybob/assero/internal/storage/badger"
	"github.com/ternarybob/assero/internal/tools"
)

// The MCP server exposes the patent tool set directly over stdio, without
// the job queue: MCP clients manage their own concurrency and retries, so
// each tool call runs synchronously in the request.
func main() {
	// Load configuration
	configPath := os.Getenv("ASSERO_CONFIG")
	if configPath == "" {
		configPath = "assero.toml"
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logger for MCP server (console only, warn level, no file
	// output) to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	// Initialize storage for the tool result cache
	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	// LLM provider. Tools degrade without one, so a failure is not fatal.
	llmService, err := llm.NewLLMService(config, logger)
	if err != nil {
		llmService = nil
		logger.Warn().Err(err).Msg("LLM provider unavailable - drafting and analysis tools will report errors")
	}
	if llmService != nil {
		defer llmService.Close()
	}

	// Patent search client, optional
	var searcher tools.PatentSearcher
	if config.Patents.Configured() {
		client, err := patents.NewClient(&config.Patents, patents.WithLogger(logger))
		if err != nil {
			logger.Warn().Err(err).Msg("Patent search client unavailable - prior art falls back to LLM knowledge")
		} else {
			searcher = client
		}
	}

	// Web search
	var fetcher tools.WebSearcher
	if webfetchService, err := webfetch.NewService(&config.WebSearch, webfetch.WithLogger(logger)); err != nil {
		logger.Warn().Err(err).Msg("Web search unavailable")
	} else {
		fetcher = webfetchService
	}

	// Build the tool registry with the same cache wrapping the HTTP server
	// uses, so both surfaces share cached search results.
	registry := tools.NewRegistry(logger)
	cache := storageManager.CacheStorage()
	cacheTTL := config.Storage.Badger.CacheTTL()

	priorArt := tools.NewPriorArtTool(searcher, llmService, config.Patents.MaxResults, logger)
	if err := registry.Register(tools.WithCache(priorArt, cache, cacheTTL, logger)); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register prior art tool")
	}
	if err := registry.Register(tools.NewDraftingTool(llmService, logger)); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register drafting tool")
	}
	if err := registry.Register(tools.NewAnalysisTool(llmService, logger)); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register analysis tool")
	}
	webSearch := tools.NewWebSearchTool(fetcher, config.WebSearch.MaxResults, logger)
	if err := registry.Register(tools.WithCache(webSearch, cache, cacheTTL, logger)); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register web search tool")
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"assero",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Register patent workflow tools
	mcpServer.AddTool(createSearchPriorArtTool(), handleSearchPriorArt(registry, logger))
	mcpServer.AddTool(createDraftClaimsTool(), handleDraftClaims(registry, logger))
	mcpServer.AddTool(createAnalyzeClaimsTool(), handleAnalyzeClaims(registry, logger))
	mcpServer.AddTool(createSearchWebTool(), handleSearchWeb(registry, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
