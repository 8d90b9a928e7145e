package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"captionkit/caption"
)

// DefaultClaudeModel is used when no model is configured.
const DefaultClaudeModel = "claude-sonnet-4-5-20250929"

// ClaudeWriter writes captions with the Anthropic Messages API.
type ClaudeWriter struct {
	client *anthropic.Client
	model  string
}

// NewClaudeWriter creates a writer for apiKey. Extra options are applied after the key.
func NewClaudeWriter(apiKey, model string, opts ...option.RequestOption) (*ClaudeWriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}
	if model == "" {
		model = DefaultClaudeModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(opts...)
	return &ClaudeWriter{client: &client, model: model}, nil
}

func (w *ClaudeWriter) Name() string { return "anthropic:" + w.model }

func (w *ClaudeWriter) WriteCaptions(ctx context.Context, p Prompt) ([]caption.RemoteCaption, error) {
	resp, err := w.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(w.model),
		MaxTokens:   1024,
		System:      []anthropic.TextBlockParam{{Text: p.System}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(p.User))},
		Temperature: anthropic.Float(0.8),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &StatusError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("claude API call: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return ParseCaptions(sb.String())
}
