package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/storyeval/storyeval/pkg/models"
)

// fakeBackend implements Backend for testing.
type fakeBackend struct {
	report     models.StatsReport
	ids        []string
	entries    []models.LogEntry
	prices     []models.ModelPricing
	err        error
	lastFilter string
	lastLimit  int
}

func (f *fakeBackend) Stats(_ context.Context, filter string) (models.StatsReport, error) {
	f.lastFilter = filter
	if f.err != nil {
		return models.EmptyReport(filter), f.err
	}
	return f.report, nil
}

func (f *fakeBackend) Models(_ context.Context) ([]string, error) { return f.ids, f.err }

func (f *fakeBackend) Recent(_ context.Context, n int) ([]models.LogEntry, error) {
	f.lastLimit = n
	if f.err != nil {
		return nil, f.err
	}
	if n > len(f.entries) {
		n = len(f.entries)
	}
	return f.entries[:n], nil
}

func (f *fakeBackend) Pricing() []models.ModelPricing { return f.prices }
func (f *fakeBackend) Currency() string                { return "USD" }

func sampleReport() models.StatsReport {
	r := models.EmptyReport("")
	r.TotalEvaluations = 3
	r.SuccessfulEvaluations = 2
	r.FailedEvaluations = 1
	r.SuccessRate = 2.0 / 3.0
	r.AverageScores = map[string]float64{models.OverallKey: 7.5, "creativity": 8}
	r.CostStats.TotalCosts = 0.0123
	r.ModelRanking = []string{"story-b", "story-a"}
	r.ModelBreakdown = map[string]models.ModelStats{
		"story-b": {Model: "story-b", Rank: 1, GroupStats: models.GroupStats{
			TotalEvaluations: 1, SuccessfulEvaluations: 1, SuccessRate: 1,
			AverageScores: map[string]float64{models.OverallKey: 9},
		}},
		"story-a": {Model: "story-a", Rank: 2, GroupStats: models.GroupStats{
			TotalEvaluations: 2, SuccessfulEvaluations: 1, SuccessRate: 0.5,
			AverageScores: map[string]float64{models.OverallKey: 6},
		}},
	}
	r.ComplexityStats = map[models.Complexity]models.GroupStats{
		models.ComplexitySimple: {TotalEvaluations: 3, AverageScores: map[string]float64{models.OverallKey: 7.5}},
	}
	return r
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: json.RawMessage(args)})
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`3`),
		Method:  "tools/call",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	return result
}

func TestInitialize(t *testing.T) {
	srv := New(&fakeBackend{}, "test", nil)
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	json.Unmarshal(data, &result)

	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %s, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "storyeval" {
		t.Errorf("server name = %s, want storyeval", result.ServerInfo.Name)
	}
	if result.ServerInfo.Version != "test" {
		t.Errorf("server version = %s, want test", result.ServerInfo.Version)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(&fakeBackend{}, "test", nil)
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	json.Unmarshal(data, &result)

	if len(result.Tools) != 4 {
		t.Errorf("got %d tools, want 4", len(result.Tools))
	}

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"storyeval_stats", "storyeval_models", "storyeval_recent", "storyeval_pricing"} {
		if !names[want] {
			t.Errorf("missing tool: %s", want)
		}
	}
}

func TestToolCallStats(t *testing.T) {
	b := &fakeBackend{report: sampleReport()}
	srv := New(b, "test", nil)

	result := callTool(t, srv, "storyeval_stats", `{"model":"story-a"}`)
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}
	if b.lastFilter != "story-a" {
		t.Errorf("filter = %q, want story-a", b.lastFilter)
	}

	text := result.Content[0].Text
	for _, want := range []string{"3 (2 succeeded, 1 failed, 66.7%)", "creativity", "7.50", "$0.0123", "simple"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestToolCallStatsEmpty(t *testing.T) {
	srv := New(&fakeBackend{report: models.EmptyReport("")}, "test", nil)

	result := callTool(t, srv, "storyeval_stats", `{}`)
	if result.Content[0].Text != "No evaluations found." {
		t.Errorf("unexpected output: %s", result.Content[0].Text)
	}
}

func TestToolCallModelsRanking(t *testing.T) {
	srv := New(&fakeBackend{report: sampleReport()}, "test", nil)

	text := callTool(t, srv, "storyeval_models", "").Content[0].Text
	b := strings.Index(text, "story-b")
	a := strings.Index(text, "story-a")
	if a < 0 || b < 0 {
		t.Fatalf("expected both models in output, got:\n%s", text)
	}
	if b > a {
		t.Errorf("story-b should be listed before story-a:\n%s", text)
	}
}

func TestToolCallRecent(t *testing.T) {
	ts := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	b := &fakeBackend{entries: []models.LogEntry{
		{
			ID:         "e2",
			Timestamp:  ts,
			Models:     models.ModelInfo{StoryModel: "story-a"},
			Evaluation: models.Evaluation{OverallScore: models.Score(8.25)},
			TokenUsage: models.NewTokenUsage(&models.Usage{TotalTokens: 120}, nil),
		},
		{
			ID:         "e1",
			Timestamp:  ts.Add(-time.Minute),
			Models:     models.ModelInfo{StoryModel: "story-b"},
			Evaluation: models.FailedEvaluation("boom", "judge unavailable"),
		},
	}}
	srv := New(b, "test", nil)

	text := callTool(t, srv, "storyeval_recent", `{"limit":5}`).Content[0].Text
	if b.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", b.lastLimit)
	}
	for _, want := range []string{"2025-05-01 12:00:00", "story-a", "8.25", "120", "story-b", "failed"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestToolCallRecentLimits(t *testing.T) {
	b := &fakeBackend{}
	srv := New(b, "test", nil)

	callTool(t, srv, "storyeval_recent", "")
	if b.lastLimit != 10 {
		t.Errorf("default limit = %d, want 10", b.lastLimit)
	}

	callTool(t, srv, "storyeval_recent", `{"limit":500}`)
	if b.lastLimit != 100 {
		t.Errorf("capped limit = %d, want 100", b.lastLimit)
	}

	result := callTool(t, srv, "storyeval_recent", `{"limit":0}`)
	if !result.IsError {
		t.Error("expected isError=true for limit 0")
	}
}

func TestToolCallPricing(t *testing.T) {
	srv := New(&fakeBackend{prices: []models.ModelPricing{
		{Model: "gpt-4.1-mini", InputPerMillion: 0.4, OutputPerMillion: 1.6},
	}}, "test", nil)

	text := callTool(t, srv, "storyeval_pricing", "").Content[0].Text
	for _, want := range []string{"gpt-4.1-mini", "0.4000", "1.6000", "Prices in USD."} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestToolCallBackendError(t *testing.T) {
	srv := New(&fakeBackend{err: errors.New("disk gone")}, "test", nil)

	for _, name := range []string{"storyeval_stats", "storyeval_models", "storyeval_recent"} {
		result := callTool(t, srv, name, "")
		if !result.IsError {
			t.Errorf("%s: expected isError=true", name)
		}
		if !strings.Contains(result.Content[0].Text, "disk gone") {
			t.Errorf("%s: expected cause in output, got: %s", name, result.Content[0].Text)
		}
	}
}

func TestUnknownTool(t *testing.T) {
	srv := New(&fakeBackend{}, "test", nil)

	result := callTool(t, srv, "storyeval_nope", "")
	if !result.IsError {
		t.Error("expected isError=true for unknown tool")
	}
}

func TestNotificationNoResponse(t *testing.T) {
	srv := New(&fakeBackend{}, "test", nil)

	line, _ := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
	line = append(line, '\n')

	var out bytes.Buffer
	_ = srv.Run(context.Background(), bytes.NewReader(line), &out)

	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got: %s", out.String())
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := New(&fakeBackend{}, "test", nil)
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`9`),
		Method:  "unknown/method",
	})

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestParseError(t *testing.T) {
	srv := New(&fakeBackend{}, "test", nil)

	var out bytes.Buffer
	if err := srv.Run(context.Background(), strings.NewReader("{not json\n"), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Errorf("expected parse error, got: %+v", resp.Error)
	}
}
