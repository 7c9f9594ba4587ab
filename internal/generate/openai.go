package generate

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI is a Generator backed by an OpenAI-compatible chat-completions
// endpoint. Primary and backup generators are both instances of this type
// pointed at different models (or different base URLs entirely).
type OpenAI struct {
	client *openai.Client
	model  string
	name   string
}

// NewOpenAI creates a generator for the given model. baseURL overrides the
// default endpoint, which makes the same adapter serve OpenRouter-style
// gateways and self-hosted compatible servers.
func NewOpenAI(name, apiKey, baseURL, model string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
		name:   name,
	}
}

// Name implements Generator.
func (o *OpenAI) Name() string { return o.name }

// Generate implements Generator. Degenerate (empty) completions are reported
// as ErrEmptyOutput so the pipeline advances to the next tier.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices from %s", ErrEmptyOutput, o.name)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: from %s", ErrEmptyOutput, o.name)
	}
	return text, nil
}

// systemPrompt frames the conversational register for external models.
const systemPrompt = "You are Stan, a friendly and empathetic conversational assistant. " +
	"Reply naturally and concisely to the user's latest message, " +
	"taking the recent conversation into account."
