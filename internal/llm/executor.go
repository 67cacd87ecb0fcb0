package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joshsymonds/pocforge/internal/provider"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

// Retry schedule constants.
const (
	BackoffBase        = 3 * time.Second
	DownshiftPause     = time.Second
	EmptyReplyPause    = time.Second
	MinDownshiftTokens = 2048
	MaxBackoffDelay    = 5 * time.Minute

	defaultTimeout = 120 * time.Second
	defaultRetries = 2
)

// RequestSpec is the input for one logical request. MaxTokens is the
// starting budget; downshifts never leak back into the caller's spec.
type RequestSpec struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Executor runs one request to completion against a single provider.
type Executor struct {
	transport Transport
	logger    logger.Logger
	sleepFunc func(ctx context.Context, d time.Duration) error
	provider  provider.Config
	timeout   time.Duration
	retries   int
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTimeout bounds every attempt.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRetries sets how many extra attempts follow the first.
func WithRetries(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// NewExecutor creates an executor for a resolved provider.
func NewExecutor(cfg provider.Config, transport Transport, opts ...Option) *Executor {
	e := &Executor{
		transport: transport,
		provider:  cfg,
		sleepFunc: contextSleep,
		timeout:   defaultTimeout,
		retries:   defaultRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.WithProvider(string(cfg.Provider), cfg.Model)
	} else {
		e.logger = e.logger.With("provider", string(cfg.Provider), "model", cfg.Model)
	}
	return e
}

// SetSleepFunc overrides the sleep function (for testing).
func (e *Executor) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	e.sleepFunc = fn
}

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDelay is BackoffBase * 2^attempt, saturating at MaxBackoffDelay.
func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		return BackoffBase
	}
	d := BackoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= MaxBackoffDelay {
			return MaxBackoffDelay
		}
	}
	return d
}

// Execute sends spec until it succeeds or fails terminally. All retry kinds
// share one budget of Retries extra attempts.
func (e *Executor) Execute(ctx context.Context, spec RequestSpec) (string, error) {
	maxTokens := spec.MaxTokens
	p := e.provider.Provider
	var last error

	for attempt := 0; attempt <= e.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", e.cancelled(attempt, err)
		}
		attempts := attempt + 1
		canRetry := attempt < e.retries

		reply, err := e.send(ctx, spec, maxTokens)
		if err != nil {
			if ctx.Err() != nil {
				return "", e.cancelled(attempts, ctx.Err())
			}
			last = newExecutionError(p, ErrorTypeTransport, 0, attempts, "request failed", err.Error(), err)
			if !canRetry {
				return "", newExecutionError(p, ErrorTypeExhausted, 0, attempts, "request failed after retries", err.Error(), last)
			}
			delay := backoffDelay(attempt)
			e.logger.Warn("Request failed, backing off", "error", err, "attempt", attempts, "delay", delay)
			if err := e.sleepFunc(ctx, delay); err != nil {
				return "", e.cancelled(attempts, err)
			}
			continue
		}

		status := reply.StatusCode
		body := string(reply.Body)

		if status >= 200 && status < 300 {
			content, perr := extractContent(reply.Body)
			if perr == nil && strings.TrimSpace(content) != "" {
				e.logger.Debug("Request succeeded", "attempt", attempts, "max_tokens", maxTokens)
				return content, nil
			}
			if !canRetry {
				return "", newExecutionError(p, ErrorTypeExhausted, status, attempts, "empty response after retries", body, perr)
			}
			e.logger.Warn("Empty response, retrying", "attempt", attempts, "delay", EmptyReplyPause)
			if err := e.sleepFunc(ctx, EmptyReplyPause); err != nil {
				return "", e.cancelled(attempts, err)
			}
			continue
		}

		switch Classify(status, body) {
		case Backoff:
			last = newExecutionError(p, ErrorTypeTransport, status, attempts, "transient status", body, nil)
			if !canRetry {
				return "", newExecutionError(p, ErrorTypeExhausted, status, attempts, "retries exhausted", body, last)
			}
			delay := backoffDelay(attempt)
			e.logger.Warn("Transient provider error, backing off",
				"status", status, "attempt", attempts, "of", e.retries+1, "delay", delay)
			if err := e.sleepFunc(ctx, delay); err != nil {
				return "", e.cancelled(attempts, err)
			}

		case Downshift:
			if maxTokens <= MinDownshiftTokens {
				return "", newExecutionError(p, ErrorTypeParameter, status, attempts, "token limit at floor", body, nil)
			}
			if !canRetry {
				return "", newExecutionError(p, ErrorTypeExhausted, status, attempts, "token limit, retries exhausted", body, nil)
			}
			maxTokens /= 2
			e.logger.Warn("Token limit hit, downshifting", "status", status, "attempt", attempts, "max_tokens", maxTokens)
			if err := e.sleepFunc(ctx, DownshiftPause); err != nil {
				return "", e.cancelled(attempts, err)
			}

		default:
			msg := "unexpected status"
			if status == 400 {
				msg = "deterministic 400"
			}
			return "", newExecutionError(p, ErrorTypeDeterministic, status, attempts, msg, body, nil)
		}
	}

	// Reached only when retries were exhausted by a path that continued.
	return "", newExecutionError(p, ErrorTypeExhausted, 0, e.retries+1, "retries exhausted", "", last)
}

func (e *Executor) send(ctx context.Context, spec RequestSpec, maxTokens int) (*Reply, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.transport.Send(attemptCtx, ChatRequest{
		Model: e.provider.Model,
		Messages: []Message{
			{Role: "system", Content: spec.SystemPrompt},
			{Role: "user", Content: spec.UserPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: spec.Temperature,
	})
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("attempt timed out after %s: %w", e.timeout, err)
		}
		return nil, err
	}
	if reply == nil {
		return nil, errors.New("transport returned no reply")
	}
	return reply, nil
}

func (e *Executor) cancelled(attempts int, err error) *ExecutionError {
	return newExecutionError(e.provider.Provider, ErrorTypeCancelled, 0, attempts, "cancelled", "", err)
}

type completionPayload struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractContent returns choices[0].message.content.
func extractContent(body []byte) (string, error) {
	var payload completionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", nil
	}
	return payload.Choices[0].Message.Content, nil
}
