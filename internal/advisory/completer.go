// Package advisory resolves optional AI root-cause and remediation advice for a run.
package advisory

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Completer sends a single prompt to a language model and returns its text answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicCompleter implements Completer on the Anthropic Messages API.
type AnthropicCompleter struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter builds a completer for the given model.
func NewAnthropicCompleter(apiKey, model string, maxTokens int) (*AnthropicCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicCompleter{client: &client, model: model, maxTokens: int64(maxTokens)}, nil
}

// Complete concatenates the text blocks of the model's reply.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
