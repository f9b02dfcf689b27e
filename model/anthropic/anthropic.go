// Package anthropic adapts the Anthropic Messages API to model.Completer.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/threadmind/threadmind/core"
	"github.com/threadmind/threadmind/logging"
	"github.com/threadmind/threadmind/model"
)

// Options configure the Anthropic completer.
type Options struct {
	// Model is the model name. Defaults to claude-sonnet-4-20250514.
	Model string

	// MaxTokens caps the completion length. Defaults to 1024.
	MaxTokens int64

	// Logger receives per-call diagnostics. Defaults to the process logger.
	Logger logging.Logger
}

// Completer calls the Anthropic Messages API.
type Completer struct {
	client *anthropic.Client
	opts   Options
}

// New builds a completer for the given API key. With an empty key it
// returns model.Fallback instead: the server stays up and every turn gets
// the fixed fallback reply. This is the deliberate degradation branch for
// generation; embedding has no equivalent.
func New(apiKey string, optFns ...func(o *Options)) model.Completer {
	opts := Options{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 1024,
		Logger:    logging.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if apiKey == "" {
		opts.Logger.Warn("anthropic api key unset, generation degrades to fallback reply")
		return model.Fallback{}
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Completer{client: &client, opts: opts}
}

// Complete sends the assembled prompt and returns the completion text.
// System turns become the request's system prompt; model turns become
// assistant messages; everything else is sent as user content.
func (c *Completer) Complete(ctx context.Context, turns []core.PromptTurn) (string, error) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case core.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: turn.Text})
		case core.RoleModel:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		}
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("anthropic: empty prompt")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.opts.Model),
		MaxTokens: c.opts.MaxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	c.opts.Logger.Debug("anthropic completion",
		"model", c.opts.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return text, nil
}
