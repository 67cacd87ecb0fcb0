// Package sdk provides an llm.Transport backed by the official openai-go client.
// Importing it registers the "sdk" transport.
package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/joshsymonds/pocforge/internal/llm"
	"github.com/joshsymonds/pocforge/internal/provider"
)

// Transport sends chat completions through openai-go. Client-side retries are
// disabled; the executor owns the retry policy.
type Transport struct {
	client openai.Client
}

// New creates an SDK transport for the resolved provider.
func New(cfg provider.Config, extra ...option.RequestOption) *Transport {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(BaseURL(cfg.Endpoint)),
		option.WithMaxRetries(0),
	}
	opts = append(opts, extra...)
	return &Transport{client: openai.NewClient(opts...)}
}

// BaseURL strips the chat completions path from a full endpoint URL.
func BaseURL(endpoint string) string {
	base := strings.TrimSuffix(strings.TrimRight(endpoint, "/"), "chat/completions")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// Send implements llm.Transport. API errors become replies so the executor
// classifies them exactly like raw HTTP responses.
func (t *Transport) Send(ctx context.Context, req llm.ChatRequest) (*llm.Reply, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return &llm.Reply{StatusCode: apiErr.StatusCode, Body: []byte(apiErr.Error())}, nil
		}
		return nil, err
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding completion: %w", err)
	}
	return &llm.Reply{StatusCode: http.StatusOK, Body: body}, nil
}

func init() {
	llm.DefaultTransports.Register("sdk", func(cfg provider.Config) (llm.Transport, error) {
		if cfg.Endpoint == "" {
			return nil, errors.New("sdk transport requires an endpoint")
		}
		return New(cfg), nil
	})
}
