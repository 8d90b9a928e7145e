package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	"captionkit/caption"
)

// DefaultAzureAPIVersion is used when no API version is configured.
const DefaultAzureAPIVersion = "2024-08-01-preview"

// AzureConfig holds Azure OpenAI settings.
type AzureConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	APIVersion string
}

// AzureWriter writes captions with Azure OpenAI chat completions.
type AzureWriter struct {
	client *openai.Client
	model  string
}

// NewAzureWriter creates a writer using the Azure OpenAI SDK
func NewAzureWriter(cfg AzureConfig, opts ...option.RequestOption) (*AzureWriter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT not set")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_MODEL not set")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAzureAPIVersion
	}

	opts = append([]option.RequestOption{
		azure.WithEndpoint(strings.TrimSuffix(cfg.Endpoint, "/"), cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
	}, opts...)
	client := openai.NewClient(opts...)

	return &AzureWriter{
		client: &client,
		model:  cfg.Model,
	}, nil
}

func (w *AzureWriter) Name() string { return "azure:" + w.model }

func (w *AzureWriter) WriteCaptions(ctx context.Context, p Prompt) ([]caption.RemoteCaption, error) {
	resp, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(w.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(p.System),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(p.User),
					},
				},
			},
		},
		MaxTokens:   openai.Int(1024),
		Temperature: openai.Float(0.8),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &StatusError{Provider: "azure", StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("AI request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}
	return ParseCaptions(resp.Choices[0].Message.Content)
}
