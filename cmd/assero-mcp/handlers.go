package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/models"
	"github.com/ternarybob/assero/internal/tools"
)

// handleSearchPriorArt implements the search_prior_art tool
func handleSearchPriorArt(registry *tools.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return errorResult("Error: query parameter is required"), nil
		}

		params := map[string]interface{}{"query": query}
		if maxResults := request.GetInt("max_results", 0); maxResults > 0 {
			params["max_results"] = maxResults
		}

		result, err := registry.Execute(ctx, models.ToolPriorArtSearch, params)
		if err != nil {
			logger.Error().Err(err).Msg("Prior art search failed")
			return errorResult(fmt.Sprintf("Prior art search error: %v", err)), nil
		}

		return textResult(formatToolResult(result)), nil
	}
}

// handleDraftClaims implements the draft_claims tool
func handleDraftClaims(registry *tools.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		description, err := request.RequireString("invention_description")
		if err != nil || description == "" {
			return errorResult("Error: invention_description parameter is required"), nil
		}

		params := map[string]interface{}{"invention_description": description}
		if docContext := request.GetString("context", ""); docContext != "" {
			params["context"] = docContext
		}
		if numClaims := request.GetInt("num_claims", 0); numClaims > 0 {
			params["num_claims"] = numClaims
		}

		result, err := registry.Execute(ctx, models.ToolClaimDrafting, params)
		if err != nil {
			logger.Error().Err(err).Msg("Claim drafting failed")
			return errorResult(fmt.Sprintf("Claim drafting error: %v", err)), nil
		}

		return textResult(formatToolResult(result)), nil
	}
}

// handleAnalyzeClaims implements the analyze_claims tool
func handleAnalyzeClaims(registry *tools.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		claims, err := request.RequireString("claims")
		if err != nil || claims == "" {
			return errorResult("Error: claims parameter is required"), nil
		}

		params := map[string]interface{}{"claims": claims}
		if priorArt := request.GetString("context", ""); priorArt != "" {
			params["context"] = priorArt
		}

		result, err := registry.Execute(ctx, models.ToolClaimAnalysis, params)
		if err != nil {
			logger.Error().Err(err).Msg("Claim analysis failed")
			return errorResult(fmt.Sprintf("Claim analysis error: %v", err)), nil
		}

		return textResult(formatToolResult(result)), nil
	}
}

// handleSearchWeb implements the search_web tool
func handleSearchWeb(registry *tools.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return errorResult("Error: query parameter is required"), nil
		}

		params := map[string]interface{}{"query": query}
		if maxResults := request.GetInt("max_results", 0); maxResults > 0 {
			params["max_results"] = maxResults
		}

		result, err := registry.Execute(ctx, models.ToolWebSearch, params)
		if err != nil {
			logger.Error().Err(err).Msg("Web search failed")
			return errorResult(fmt.Sprintf("Web search error: %v", err)), nil
		}

		return textResult(formatToolResult(result)), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
		IsError: true,
	}
}
