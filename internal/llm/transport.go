// Package llm issues chat completion requests and turns a noisy provider into
// a single result per request: generated text or a classified terminal error.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/joshsymonds/pocforge/internal/provider"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider-neutral body of one attempt.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// Reply is the raw provider answer. Any HTTP status is a Reply; only
// failures to obtain a status at all are transport errors.
type Reply struct {
	Body       []byte
	StatusCode int
}

// Transport sends a single attempt to the resolved provider.
type Transport interface {
	Send(ctx context.Context, req ChatRequest) (*Reply, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req ChatRequest) (*Reply, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, req ChatRequest) (*Reply, error) {
	return f(ctx, req)
}

// maxReplyBytes caps how much of a response body is read.
const maxReplyBytes = 8 << 20

// HTTPTransport posts OpenAI-compatible chat completion requests with net/http.
type HTTPTransport struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewHTTPTransport creates a transport for the resolved provider. A nil client
// uses a fresh http.Client; per-attempt deadlines come from the context.
func NewHTTPTransport(cfg provider.Config, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{
		client:   client,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
	}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req ChatRequest) (*Reply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Reply{StatusCode: resp.StatusCode, Body: body}, nil
}

// TransportFactory builds a Transport for a resolved provider.
type TransportFactory func(cfg provider.Config) (Transport, error)

// TransportRegistry manages available transports.
type TransportRegistry struct {
	factories map[string]TransportFactory
	mu        sync.RWMutex
}

// NewTransportRegistry creates a new transport registry.
func NewTransportRegistry() *TransportRegistry {
	return &TransportRegistry{
		factories: make(map[string]TransportFactory),
	}
}

// Register registers a transport factory under name.
func (r *TransportRegistry) Register(name string, factory TransportFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get builds the named transport for cfg.
func (r *TransportRegistry) Get(name string, cfg provider.Config) (Transport, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &TransportNotFoundError{Name: name}
	}
	return factory(cfg)
}

// Names lists registered transports in sorted order.
func (r *TransportRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TransportNotFoundError is returned when a requested transport doesn't exist.
type TransportNotFoundError struct {
	Name string
}

func (e *TransportNotFoundError) Error() string {
	return "transport not found: " + e.Name
}

// DefaultTransports is the global transport registry.
var DefaultTransports = NewTransportRegistry()

func init() {
	DefaultTransports.Register("http", func(cfg provider.Config) (Transport, error) {
		return NewHTTPTransport(cfg, nil), nil
	})
}
