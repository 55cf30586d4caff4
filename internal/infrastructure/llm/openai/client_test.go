package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

func TestParsePlanStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"semantic_query\": \"largest advisers\", \"structured_filters\": {\"location\": \"Saint Louis, MO\", \"min_aum\": 500000000, \"max_aum\": null, \"services\": null}}\n```"

	plan, err := parsePlan(raw)
	if err != nil {
		t.Fatalf("parsePlan() error = %v", err)
	}
	if plan.SemanticQuery != "largest advisers" {
		t.Fatalf("unexpected semantic query %q", plan.SemanticQuery)
	}
	if plan.Filters.Location == nil || *plan.Filters.Location != "Saint Louis, MO" {
		t.Fatalf("unexpected location %v", plan.Filters.Location)
	}
	if plan.Filters.MinAUM == nil || *plan.Filters.MinAUM != 500000000 {
		t.Fatalf("unexpected min aum %v", plan.Filters.MinAUM)
	}
}

func TestParsePlanToleratesSurroundingProse(t *testing.T) {
	raw := "Here is the plan you asked for: {\"semantic_query\": \"advisers\", \"structured_filters\": {}} hope that helps"

	plan, err := parsePlan(raw)
	if err != nil {
		t.Fatalf("parsePlan() error = %v", err)
	}
	if plan.SemanticQuery != "advisers" {
		t.Fatalf("unexpected semantic query %q", plan.SemanticQuery)
	}
}

func TestParsePlanRejectsMissingKeys(t *testing.T) {
	if _, err := parsePlan(`{"semantic_query": "advisers"}`); err == nil {
		t.Fatalf("expected error for missing structured_filters")
	}
	if _, err := parsePlan(`{"structured_filters": {}}`); err == nil {
		t.Fatalf("expected error for missing semantic_query")
	}
	if _, err := parsePlan("not json at all"); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Options{
		APIKey:     "test-key",
		BaseURL:    server.URL + "/v1",
		PlanModel:  "plan-model",
		GenModel:   "gen-model",
		EmbedModel: "text-embedding-3-small",
	})
}

func TestPlanQueryRoundTrip(t *testing.T) {
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "plan-model" {
			t.Errorf("expected plan model, got %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "largest RIAs in St. Louis" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"semantic_query\":\"largest investment advisers\",\"structured_filters\":{\"location\":\"Saint Louis, MO\"}}"}}]}`))
	})

	plan, err := NewPlanner(client).PlanQuery(context.Background(), "largest RIAs in St. Louis")
	if err != nil {
		t.Fatalf("PlanQuery() error = %v", err)
	}
	if plan.SemanticQuery != "largest investment advisers" {
		t.Fatalf("unexpected semantic query %q", plan.SemanticQuery)
	}
	if plan.Filters.Location == nil || *plan.Filters.Location != "Saint Louis, MO" {
		t.Fatalf("unexpected location %v", plan.Filters.Location)
	}
}

func TestEmbedPreservesInputOrder(t *testing.T) {
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		// Out-of-order response items must land by index.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0.3,0.4]},{"index":0,"embedding":[0.1,0.2]}]}`))
	})

	vectors, err := NewEmbedder(client).Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][0] != 0.3 {
		t.Fatalf("vectors not ordered by index: %v", vectors)
	}
}

func TestGenerateAnswerIncludesFirmContext(t *testing.T) {
	var prompt string
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) == 2 {
			prompt = req.Messages[1].Content
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Acme Capital leads the market.  "}}]}`))
	})

	answer, err := NewGenerator(client).GenerateAnswer(context.Background(), "who is largest?", []domain.AggregatedFirm{
		{Name: "Acme Capital LLC", City: "Saint Louis", State: "MO", TotalAUM: 1_800_000_000, GroupSize: 2},
	})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "Acme Capital leads the market." {
		t.Fatalf("expected trimmed answer, got %q", answer)
	}
	if !strings.Contains(prompt, "Acme Capital LLC") || !strings.Contains(prompt, "$1.8 billion") {
		t.Fatalf("expected firm context in prompt, got %q", prompt)
	}
}

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{1_800_000_000, "$1.8 billion"},
		{500_000_000, "$500.0 million"},
		{75_000, "$75000"},
	}
	for _, tc := range cases {
		if got := formatUSD(tc.in); got != tc.want {
			t.Fatalf("formatUSD(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
