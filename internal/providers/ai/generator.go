// Package ai drafts letter text through a chat completion model.
package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/smallbiznis/lexdraft/internal/observability/metrics"
	"github.com/smallbiznis/lexdraft/internal/providers/external"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	ProviderName = "openai"

	DefaultModel       = openai.GPT4Turbo
	DefaultTemperature = float32(0.7)
	DefaultMaxTokens   = 2048
)

var ErrEmptyCompletion = errors.New("empty_completion")

// Generator produces text for a system and user prompt pair.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewOpenAI(cfg Config, log *zap.Logger, m *metrics.Metrics) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		breaker: external.NewBreaker("ai.openai", log),
		log:     log.Named("ai.openai"),
		metrics: m,
	}
}

// Generate makes exactly one completion call. Failures, including an empty
// completion, come back as *external.ServiceError.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyCompletion
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return nil, ErrEmptyCompletion
		}
		return text, nil
	})
	if err != nil {
		reason := "error"
		if external.IsBreakerOpen(err) {
			reason = "breaker_open"
		} else if errors.Is(err, ErrEmptyCompletion) {
			reason = "empty"
		}
		g.metrics.RecordProviderFailure(ctx, ProviderName, reason)
		g.log.Error("completion failed", zap.String("model", g.model), zap.String("reason", reason), zap.Error(err))
		return "", external.Wrap(ProviderName, "generate", err)
	}
	return out.(string), nil
}

// Unconfigured fails every call. It stands in when no API key is set.
type Unconfigured struct{}

func (Unconfigured) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", external.Wrap(ProviderName, "generate", external.ErrNotConfigured)
}
