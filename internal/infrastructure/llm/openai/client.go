package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/infrastructure/resilience"
)

type Client struct {
	api        *openai.Client
	planModel  string
	genModel   string
	embedModel openai.EmbeddingModel
	executor   *resilience.Executor
}

type Options struct {
	APIKey     string
	BaseURL    string
	PlanModel  string
	GenModel   string
	EmbedModel string
	Executor   *resilience.Executor
}

func New(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		planModel:  opts.PlanModel,
		genModel:   opts.GenModel,
		embedModel: openai.EmbeddingModel(opts.EmbedModel),
		executor:   opts.Executor,
	}
}

// Planner decomposes questions into query plans via chat completion.
type Planner struct {
	client *Client
}

func NewPlanner(client *Client) *Planner {
	return &Planner{client: client}
}

func (p *Planner) PlanQuery(ctx context.Context, question string) (domain.QueryPlan, error) {
	var raw string
	err := p.client.execute(ctx, "openai.plan", func(callCtx context.Context) error {
		resp, err := p.client.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: p.client.planModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: decompositionInstruction},
				{Role: openai.ChatMessageRoleUser, Content: question},
			},
			Temperature: 0,
		})
		if err != nil {
			return fmt.Errorf("plan completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("plan completion: empty choices")
		}
		raw = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return domain.QueryPlan{}, wrapTemporaryIfNeeded("plan query", err)
	}

	plan, err := parsePlan(raw)
	if err != nil {
		return domain.QueryPlan{}, err
	}
	return plan, nil
}

// parsePlan is strict about the two required keys but tolerant about the
// wrapping: models like to add Markdown fences and prose around the JSON.
func parsePlan(raw string) (domain.QueryPlan, error) {
	cleaned := extractJSONObject(stripCodeFences(raw))

	var decoded struct {
		SemanticQuery *string                   `json:"semantic_query"`
		Filters       *domain.StructuredFilters `json:"structured_filters"`
	}
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return domain.QueryPlan{}, fmt.Errorf("parse plan json: %w", err)
	}
	if decoded.SemanticQuery == nil || decoded.Filters == nil {
		return domain.QueryPlan{}, fmt.Errorf("parse plan json: missing required keys")
	}
	return domain.QueryPlan{
		SemanticQuery: *decoded.SemanticQuery,
		Filters:       *decoded.Filters,
	}, nil
}

func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// Embedder builds vectors for narratives and query text.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	err := e.client.execute(ctx, "openai.embed", func(callCtx context.Context) error {
		resp, err := e.client.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input:          texts,
			Model:          e.client.embedModel,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		if err != nil {
			return fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
		}
		out = make([][]float32, len(resp.Data))
		for _, item := range resp.Data {
			out[item.Index] = item.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Generator produces the grounded user-facing answer.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, sources []domain.AggregatedFirm) (string, error) {
	var text string
	err := g.client.execute(ctx, "openai.generate", func(callCtx context.Context) error {
		resp, err := g.client.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: g.client.genModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: answerInstruction},
				{Role: openai.ChatMessageRoleUser, Content: buildAnswerPrompt(question, sources)},
			},
		})
		if err != nil {
			return fmt.Errorf("answer completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("answer completion: empty choices")
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate answer", err)
	}
	return text, nil
}

// StreamAnswer feeds generated fragments to emit as they arrive. The stream
// is not retried mid-flight: a failure here is the caller's cue to degrade.
func (g *Generator) StreamAnswer(ctx context.Context, question string, sources []domain.AggregatedFirm, emit func(token string) error) error {
	stream, err := g.client.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: g.client.genModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerInstruction},
			{Role: openai.ChatMessageRoleUser, Content: buildAnswerPrompt(question, sources)},
		},
		Stream: true,
	})
	if err != nil {
		return wrapTemporaryIfNeeded("open answer stream", fmt.Errorf("create completion stream: %w", err))
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return wrapTemporaryIfNeeded("read answer stream", fmt.Errorf("recv completion chunk: %w", err))
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if token := chunk.Choices[0].Delta.Content; token != "" {
			if err := emit(token); err != nil {
				return err
			}
		}
	}
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, operation, call, classifyOpenAIError)
}
