package mcp

import (
	"context"
	"encoding/json"

	"github.com/storyeval/storyeval/pkg/analytics"
)

const maxRecent = 100

type modelArgs struct {
	Model string `json:"model"`
}

type recentArgs struct {
	Limit int `json:"limit"`
}

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"storyeval_stats":   handleStats,
	"storyeval_models":  handleModels,
	"storyeval_recent":  handleRecent,
	"storyeval_pricing": handlePricing,
}

var allTools = []ToolDefinition{
	{
		Name:        "storyeval_stats",
		Description: "Show evaluation success, average rubric scores, timing, token and cost statistics, optionally for one story model.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model": map[string]any{
					"type":        "string",
					"description": "Story model to narrow the headline numbers to (optional)",
				},
			},
		},
	},
	{
		Name:        "storyeval_models",
		Description: "Rank story models by average overall score with per-model success rate, tokens and cost.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "storyeval_recent",
		Description: "List the most recent generations, newest first.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of entries to return (optional, default 10, max 100)",
				},
			},
		},
	},
	{
		Name:        "storyeval_pricing",
		Description: "Show the per-million-token prices used to cost generations.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

func decodeArgs(raw json.RawMessage, dst any) {
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, dst)
	}
}

func handleStats(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args modelArgs
	decodeArgs(raw, &args)
	report, err := s.backend.Stats(ctx, args.Model)
	if err != nil {
		return errorResult("Error computing stats: " + err.Error())
	}
	return textResult(formatReport(report))
}

func handleModels(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	report, err := s.backend.Stats(ctx, "")
	if err != nil {
		return errorResult("Error computing stats: " + err.Error())
	}
	return textResult(formatRanking(report))
}

func handleRecent(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	args := recentArgs{Limit: analytics.DefaultRecentLimit}
	decodeArgs(raw, &args)
	if args.Limit <= 0 {
		return errorResult("limit must be positive")
	}
	entries, err := s.backend.Recent(ctx, min(args.Limit, maxRecent))
	if err != nil {
		return errorResult("Error reading log: " + err.Error())
	}
	return textResult(formatEntries(entries))
}

func handlePricing(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatPricing(s.backend.Currency(), s.backend.Pricing()))
}
