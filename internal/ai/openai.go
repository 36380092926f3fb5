package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

type OpenAIOptions struct {
	APIKey    string
	Model     string
	BaseURL   string
	Persona   string
	MaxTokens int
}

// OpenAIGenerator produces replies through a chat completion endpoint.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	persona   string
	maxTokens int
}

func NewOpenAIGenerator(opts OpenAIOptions) *OpenAIGenerator {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT3Dot5Turbo
	}
	if opts.Persona == "" {
		opts.Persona = DefaultPersona
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 150
	}
	return &OpenAIGenerator{
		client:    openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		persona:   opts.Persona,
		maxTokens: opts.MaxTokens,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.persona},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrGeneration)
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrGeneration)
	}
	log.Debug().Str("model", resp.Model).Int("tokens", resp.Usage.TotalTokens).Msg("[OpenAIGenerator] reply generated")
	return reply, nil
}
