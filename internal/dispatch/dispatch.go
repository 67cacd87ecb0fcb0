// Package dispatch runs a batch of work items through a handler with a
// concurrency cap and a fixed cooldown between admissions.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/joshsymonds/pocforge/internal/llm"
	"github.com/joshsymonds/pocforge/internal/models"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

// Status of a single outcome.
type Status string

// Outcome statuses.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ReasonCancelled marks items that never ran because the context ended.
const ReasonCancelled = "cancelled"

// Outcome is the result for one work item. Success carries Text and Token;
// failure carries Reason and a bounded Detail.
type Outcome struct {
	Err       error         `json:"-"`
	FindingID string        `json:"finding_id"`
	Status    Status        `json:"status"`
	Text      string        `json:"text,omitempty"`
	Token     string        `json:"token,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Index     int           `json:"index"`
	Duration  time.Duration `json:"duration"`
}

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Result is what a handler produces for a successful item.
type Result struct {
	Text  string
	Token string
}

// Handler processes one work item.
type Handler interface {
	Handle(ctx context.Context, item models.WorkItem) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, item models.WorkItem) (Result, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, item models.WorkItem) (Result, error) {
	return f(ctx, item)
}

// Dispatcher admits items in input order, at most concurrency at a time.
type Dispatcher struct {
	logger      logger.Logger
	sleepFunc   func(ctx context.Context, d time.Duration) error
	concurrency int
	delay       time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a dispatcher. Concurrency below one is treated as one and a
// negative delay as none.
func New(concurrency int, delay time.Duration, opts ...Option) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if delay < 0 {
		delay = 0
	}
	d := &Dispatcher{
		logger:      logger.GetGlobalLogger(),
		sleepFunc:   contextSleep,
		concurrency: concurrency,
		delay:       delay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetSleepFunc overrides the cooldown sleep (for testing).
func (d *Dispatcher) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	d.sleepFunc = fn
}

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

// Dispatch runs every item and returns one outcome per item, aligned with
// items. It never fails as a whole: handler errors and panics become failure
// outcomes, and items not admitted before ctx ends are marked cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, items []models.WorkItem, h Handler) []Outcome {
	outcomes := make([]Outcome, len(items))
	if len(items) == 0 {
		return outcomes
	}

	d.logger.Info("Dispatching batch",
		"items", len(items),
		"concurrency", d.concurrency,
		"delay", d.delay)

	sem := semaphore.NewWeighted(int64(d.concurrency))
	var g errgroup.Group

	next := 0
	for ; next < len(items); next++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if next > 0 && d.delay > 0 {
			if err := d.sleepFunc(ctx, d.delay); err != nil {
				sem.Release(1)
				break
			}
		}

		i, item := next, items[next]
		d.logger.Debug("Admitted item", "index", i, "finding_id", item.Finding.ID)
		g.Go(func() error {
			defer sem.Release(1)
			outcomes[i] = d.run(ctx, i, item, h)
			if !outcomes[i].Succeeded() {
				return fmt.Errorf("item %d: %w", i, outcomes[i].Err)
			}
			return nil
		})
	}

	for i := next; i < len(items); i++ {
		outcomes[i] = cancelledOutcome(i, items[i], ctx.Err())
	}

	// The group has no shared context: one item's failure never cancels its siblings.
	firstErr := g.Wait()

	succeeded, failed := Summarize(outcomes)
	if firstErr != nil {
		d.logger.Info("Batch complete", "succeeded", succeeded, "failed", failed, "first_error", firstErr)
	} else {
		d.logger.Info("Batch complete", "succeeded", succeeded, "failed", failed)
	}
	return outcomes
}

func (d *Dispatcher) run(ctx context.Context, i int, item models.WorkItem, h Handler) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = failureOutcome(i, item, fmt.Errorf("handler panic: %v", r))
		}
		out.Duration = time.Since(start)
		if !out.Succeeded() {
			d.logger.Warn("Item failed", "index", i, "finding_id", item.Finding.ID, "reason", out.Reason)
		}
	}()

	res, err := h.Handle(ctx, item)
	if err != nil {
		return failureOutcome(i, item, err)
	}
	return Outcome{
		Index:     i,
		FindingID: item.Finding.ID,
		Status:    StatusSuccess,
		Text:      res.Text,
		Token:     res.Token,
	}
}

func failureOutcome(i int, item models.WorkItem, err error) Outcome {
	return Outcome{
		Index:     i,
		FindingID: item.Finding.ID,
		Status:    StatusFailure,
		Reason:    reasonFor(err),
		Detail:    llm.Truncate(err.Error(), llm.MaxDetailLength),
		Err:       err,
	}
}

func cancelledOutcome(i int, item models.WorkItem, err error) Outcome {
	if err == nil {
		err = context.Canceled
	}
	return Outcome{
		Index:     i,
		FindingID: item.Finding.ID,
		Status:    StatusFailure,
		Reason:    ReasonCancelled,
		Detail:    err.Error(),
		Err:       err,
	}
}

func reasonFor(err error) string {
	var execErr *llm.ExecutionError
	switch {
	case errors.As(err, &execErr) && execErr.Type == llm.ErrorTypeCancelled:
		return ReasonCancelled
	case errors.As(err, &execErr):
		return string(execErr.Type) + ": " + execErr.Message
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	default:
		return "generation failed"
	}
}

// Summarize counts successes and failures.
func Summarize(outcomes []Outcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
