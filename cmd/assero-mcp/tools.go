package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchPriorArtTool returns the search_prior_art tool definition
func createSearchPriorArtTool() mcp.Tool {
	return mcp.NewTool("search_prior_art",
		mcp.WithDescription("Search published patent literature for prior art. Returns publication numbers, titles, dates and abstracts as markdown. Falls back to LLM knowledge when no patent API is configured."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Technology or invention to search prior art for"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum results to return (default from config, typically 5)"),
		),
	)
}

// createDraftClaimsTool returns the draft_claims tool definition
func createDraftClaimsTool() mcp.Tool {
	return mcp.NewTool("draft_claims",
		mcp.WithDescription("Draft patent claims (one independent claim plus dependent claims) from an invention description"),
		mcp.WithString("invention_description",
			mcp.Required(),
			mcp.Description("What the invention is and does"),
		),
		mcp.WithString("context",
			mcp.Description("Prior art, search results or document text to draft against"),
		),
		mcp.WithNumber("num_claims",
			mcp.Description("How many claims to draft (default: 5)"),
		),
	)
}

// createAnalyzeClaimsTool returns the analyze_claims tool definition
func createAnalyzeClaimsTool() mcp.Tool {
	return mcp.NewTool("analyze_claims",
		mcp.WithDescription("Analyze patent claims for scope, ambiguity, antecedent basis and dependency problems"),
		mcp.WithString("claims",
			mcp.Required(),
			mcp.Description("Claim text to analyze"),
		),
		mcp.WithString("context",
			mcp.Description("Prior art or search results to analyze against"),
		),
	)
}

// createSearchWebTool returns the search_web tool definition
func createSearchWebTool() mcp.Tool {
	return mcp.NewTool("search_web",
		mcp.WithDescription("Search the web and return result titles, links and snippets as markdown"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum results to return (default from config, typically 5)"),
		),
	)
}
