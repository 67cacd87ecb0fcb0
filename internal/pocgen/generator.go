// Package pocgen turns selected findings into PoC artifacts by driving the
// dispatcher and request executor.
package pocgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joshsymonds/pocforge/internal/config"
	"github.com/joshsymonds/pocforge/internal/dispatch"
	"github.com/joshsymonds/pocforge/internal/llm"
	"github.com/joshsymonds/pocforge/internal/models"
	"github.com/joshsymonds/pocforge/internal/prompt"
	"github.com/joshsymonds/pocforge/internal/provider"
	"github.com/joshsymonds/pocforge/internal/selection"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

// Executor sends one request and returns the generated text.
type Executor interface {
	Execute(ctx context.Context, spec llm.RequestSpec) (string, error)
}

// Input is everything a generation run reads.
type Input struct {
	Program     models.Program           `json:"program" yaml:"program"`
	Findings    []models.Finding         `json:"findings" yaml:"findings"`
	Enrichments []models.EnrichedFinding `json:"enrichments,omitempty" yaml:"enrichments,omitempty"`
	Patches     []models.Patch           `json:"patches,omitempty" yaml:"patches,omitempty"`
}

// Result is the outcome of one generation run.
type Result struct {
	StartedAt     time.Time          `json:"started_at"`
	CompletedAt   time.Time          `json:"completed_at"`
	RunID         string             `json:"run_id"`
	Program       string             `json:"program"`
	Provider      string             `json:"provider"`
	Model         string             `json:"model"`
	Strategy      string             `json:"strategy"`
	PoCs          []models.PoC       `json:"pocs"`
	Outcomes      []dispatch.Outcome `json:"outcomes"`
	TotalFindings int                `json:"total_findings"`
	Selected      int                `json:"selected"`
	Generated     int                `json:"generated"`
	Fallback      int                `json:"fallback"`
}

// Generator runs PoC generation for a batch of findings.
type Generator struct {
	executor   Executor
	strategy   selection.Strategy
	dispatcher *dispatch.Dispatcher
	logger     logger.Logger
	nowFunc    func() time.Time
	provider   provider.Config
	dispatch   config.Dispatch
}

// NewGenerator creates a generator from already-built collaborators.
func NewGenerator(
	executor Executor,
	prov provider.Config,
	strategy selection.Strategy,
	cfg config.Dispatch,
	log logger.Logger,
) *Generator {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Generator{
		executor:   executor,
		strategy:   strategy,
		dispatcher: dispatch.New(cfg.Concurrency, cfg.InterRequestDelay(), dispatch.WithLogger(log)),
		logger:     log,
		nowFunc:    time.Now,
		provider:   prov,
		dispatch:   cfg,
	}
}

// NewFromConfig resolves the provider, transport and strategy named by cfg.
// A missing credential surfaces here as *provider.ConfigError, before any request.
func NewFromConfig(cfg *config.Config, log logger.Logger) (*Generator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	prov, err := provider.Resolve(cfg.Provider)
	if err != nil {
		return nil, err
	}

	transport, err := llm.DefaultTransports.Get(cfg.Transport, prov)
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	strategy, err := selection.DefaultRegistry.Get(cfg.Selection)
	if err != nil {
		return nil, err
	}

	exec := llm.NewExecutor(prov, transport,
		llm.WithLogger(log),
		llm.WithTimeout(cfg.Dispatch.Timeout()),
		llm.WithRetries(cfg.Dispatch.Retries),
	)

	return NewGenerator(exec, prov, strategy, cfg.Dispatch, log), nil
}

// Generate selects findings, dispatches them and returns one PoC per
// selected finding. Items that fail get a fallback scaffold; only a
// cancelled context before any work starts is reported as an error.
func (g *Generator) Generate(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:         uuid.New().String(),
		StartedAt:     g.nowFunc(),
		Program:       in.Program.Name,
		Provider:      string(g.provider.Provider),
		Model:         g.provider.Model,
		Strategy:      g.strategy.Name(),
		TotalFindings: len(in.Findings),
	}
	log := g.logger.With("run_id", result.RunID)

	selected := selection.Apply(g.strategy, in.Findings, g.dispatch.MaxItems)
	result.Selected = len(selected)

	log.Info("Generating PoCs via "+g.provider.Provider.Label(),
		"model", g.provider.Model,
		"total_findings", result.TotalFindings,
		"selected", result.Selected,
		"strategy", result.Strategy,
		"concurrency", g.dispatch.Concurrency,
		"delay", g.dispatch.InterRequestDelay(),
	)

	items := models.BuildWorkItems(selected, in.Enrichments, in.Patches)
	outcomes := g.dispatcher.Dispatch(ctx, items, g.handler(in.Program, log))

	result.Outcomes = outcomes
	result.PoCs = make([]models.PoC, len(items))
	for i, o := range outcomes {
		result.PoCs[i] = g.artifact(in.Program, items[i].Finding, o)
		if result.PoCs[i].IsGenerated() {
			result.Generated++
		} else {
			result.Fallback++
		}
	}
	result.CompletedAt = g.nowFunc()

	log.Info("PoC generation complete",
		"generated", result.Generated,
		"fallback", result.Fallback,
		"duration", result.CompletedAt.Sub(result.StartedAt),
	)
	return result, nil
}

var errNoCode = errors.New("response contained no code")

func (g *Generator) handler(program models.Program, log logger.Logger) dispatch.Handler {
	language := prompt.Language(program)

	return dispatch.HandlerFunc(func(ctx context.Context, item models.WorkItem) (dispatch.Result, error) {
		msgs := prompt.Build(program, item)
		text, err := g.executor.Execute(ctx, llm.RequestSpec{
			SystemPrompt: msgs.System,
			UserPrompt:   msgs.User,
			MaxTokens:    g.dispatch.MaxTokens,
			Temperature:  g.dispatch.Temperature,
		})
		if err != nil {
			return dispatch.Result{}, err
		}

		code := prompt.ExtractCode(text, language)
		if code == "" {
			return dispatch.Result{}, errNoCode
		}

		token := prompt.Token(item.Finding.ClassID)
		if !strings.Contains(code, token) && !strings.Contains(code, prompt.NativeTestName(item.Finding)) {
			log.Warn("Generated test does not embed its identifier",
				"finding_id", item.Finding.ID, "token", token)
		}
		return dispatch.Result{Text: code, Token: token}, nil
	})
}

func (g *Generator) artifact(program models.Program, f models.Finding, o dispatch.Outcome) models.PoC {
	poc := models.PoC{
		FindingID:   f.ID,
		ClassID:     f.ClassID,
		ClassName:   f.ClassName,
		Title:       f.Title,
		Identifier:  prompt.Token(f.ClassID),
		Language:    prompt.Language(program),
		RunCommand:  prompt.RunCommand(program, f),
		Provider:    string(g.provider.Provider),
		Model:       g.provider.Model,
		GeneratedAt: g.nowFunc(),
	}
	poc.SetDuration(o.Duration)

	if o.Succeeded() {
		poc.Status = models.PoCStatusGenerated
		poc.TestCode = o.Text
		return poc
	}

	poc.Status = models.PoCStatusFallback
	poc.TestCode = prompt.Fallback(program, f)
	poc.Error = o.Reason
	if o.Detail != "" && o.Detail != o.Reason {
		poc.Error = o.Reason + ": " + o.Detail
	}
	return poc
}
