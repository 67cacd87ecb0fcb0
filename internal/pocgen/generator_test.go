package pocgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/pocforge/internal/config"
	"github.com/joshsymonds/pocforge/internal/llm"
	"github.com/joshsymonds/pocforge/internal/models"
	"github.com/joshsymonds/pocforge/internal/provider"
	"github.com/joshsymonds/pocforge/internal/selection"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

// MockExecutor implements Executor for testing.
type MockExecutor struct {
	ExecuteFunc func(ctx context.Context, spec llm.RequestSpec) (string, error)
	specs       []llm.RequestSpec
	mu          sync.Mutex
}

func (m *MockExecutor) Execute(ctx context.Context, spec llm.RequestSpec) (string, error) {
	m.mu.Lock()
	m.specs = append(m.specs, spec)
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, spec)
	}
	return "```typescript\ndescribe(\"PoC#0: mock\", () => {});\n```", nil
}

func testDispatch() config.Dispatch {
	d := config.DefaultDispatch()
	d.DelayMS = 0
	return d
}

func testInput() Input {
	return Input{
		Program: models.Program{Name: "vault", Framework: models.FrameworkAnchor},
		Findings: []models.Finding{
			{ID: "f-low", ClassID: 1, ClassName: "Unchecked Math", Title: "Overflow in deposit", Severity: "low",
				Location: models.Location{File: "src/math.rs"}},
			{ID: "f-crit", ClassID: 2, ClassName: "Missing Signer Check", Title: "Withdraw lacks signer", Severity: "critical",
				Location: models.Location{File: "src/withdraw.rs"}},
			{ID: "f-high", ClassID: 3, ClassName: "PDA Seed Collision", Title: "Shared seeds", Severity: "high",
				Location: models.Location{File: "src/pda.rs"}},
		},
		Enrichments: []models.EnrichedFinding{
			{Title: "Missing Signer Check in withdraw", ExploitScenario: "drain the vault"},
		},
		Patches: []models.Patch{
			{File: "src/withdraw.rs", Diff: "+ require!(ctx.accounts.authority.is_signer)"},
		},
	}
}

func TestGenerateMixesGeneratedAndFallback(t *testing.T) {
	exec := &MockExecutor{ExecuteFunc: func(_ context.Context, spec llm.RequestSpec) (string, error) {
		if strings.Contains(spec.UserPrompt, "PoC#3") {
			return "", &llm.ExecutionError{Type: llm.ErrorTypeExhausted, Provider: provider.Moonshot, Status: 429, Message: "retries exhausted"}
		}
		return "Sure!\n```typescript\ndescribe(\"PoC#2: missing_signer_check\", () => {});\n```", nil
	}}
	log := logger.NewMockLogger()
	prov := provider.Config{Provider: provider.Moonshot, Model: "kimi-k2.5"}
	gen := NewGenerator(exec, prov, selection.NewSeverityStrategy(), testDispatch(), log)

	res, err := gen.Generate(context.Background(), testInput())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "vault", res.Program)
	assert.Equal(t, "moonshot", res.Provider)
	assert.Equal(t, "severity", res.Strategy)
	assert.Equal(t, 3, res.TotalFindings)
	assert.Equal(t, 3, res.Selected)
	assert.Equal(t, 2, res.Generated)
	assert.Equal(t, 1, res.Fallback)
	require.Len(t, res.PoCs, 3)
	require.Len(t, res.Outcomes, 3)

	// severity order: critical, high, low
	assert.Equal(t, []string{"f-crit", "f-high", "f-low"},
		[]string{res.PoCs[0].FindingID, res.PoCs[1].FindingID, res.PoCs[2].FindingID})

	crit := res.PoCs[0]
	assert.Equal(t, models.PoCStatusGenerated, crit.Status)
	assert.Equal(t, `describe("PoC#2: missing_signer_check", () => {});`, crit.TestCode)
	assert.Equal(t, "PoC#2", crit.Identifier)
	assert.Equal(t, `cd <repo> && anchor test -- --grep "PoC#2"`, crit.RunCommand)
	assert.Equal(t, "typescript", crit.Language)

	high := res.PoCs[1]
	assert.Equal(t, models.PoCStatusFallback, high.Status)
	assert.Contains(t, high.TestCode, `describe("PoC#3: PDA Seed Collision"`)
	assert.Contains(t, high.Error, "exhausted")
	assert.Equal(t, "PoC#3", high.Identifier)

	assert.True(t, log.HasMessageContaining("INFO", "Generating PoCs via Moonshot"))
	assert.True(t, log.HasMessage("INFO", "PoC generation complete"))
}

func TestGenerateWiresContextAndBudget(t *testing.T) {
	exec := &MockExecutor{}
	cfg := testDispatch()
	cfg.MaxTokens = 8192
	cfg.Temperature = 0.5
	gen := NewGenerator(exec, provider.Config{Provider: provider.KimiCode}, selection.NewCriticalOnlyStrategy(), cfg, logger.NewMockLogger())

	_, err := gen.Generate(context.Background(), testInput())
	require.NoError(t, err)

	require.Len(t, exec.specs, 1)
	spec := exec.specs[0]
	assert.Equal(t, 8192, spec.MaxTokens)
	assert.InDelta(t, 0.5, spec.Temperature, 1e-9)
	assert.Contains(t, spec.SystemPrompt, "PoC#2")
	assert.Contains(t, spec.UserPrompt, "drain the vault")
	assert.Contains(t, spec.UserPrompt, "authority.is_signer")
}

func TestGenerateTruncatesToMaxItems(t *testing.T) {
	exec := &MockExecutor{}
	cfg := testDispatch()
	cfg.MaxItems = 1
	gen := NewGenerator(exec, provider.Config{}, selection.NewAllStrategy(), cfg, logger.NewMockLogger())

	res, err := gen.Generate(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalFindings)
	assert.Equal(t, 1, res.Selected)
	require.Len(t, res.PoCs, 1)
	assert.Equal(t, "f-low", res.PoCs[0].FindingID)
}

func TestGenerateZeroMaxItems(t *testing.T) {
	exec := &MockExecutor{}
	cfg := testDispatch()
	cfg.MaxItems = 0
	gen := NewGenerator(exec, provider.Config{}, selection.NewAllStrategy(), cfg, logger.NewMockLogger())

	res, err := gen.Generate(context.Background(), testInput())
	require.NoError(t, err)
	assert.Empty(t, res.PoCs)
	assert.Empty(t, exec.specs)
}

func TestGenerateEmptyCodeFallsBack(t *testing.T) {
	exec := &MockExecutor{ExecuteFunc: func(context.Context, llm.RequestSpec) (string, error) {
		return "```typescript\n```", nil
	}}
	gen := NewGenerator(exec, provider.Config{}, selection.NewCriticalOnlyStrategy(), testDispatch(), logger.NewMockLogger())

	res, err := gen.Generate(context.Background(), testInput())
	require.NoError(t, err)
	require.Len(t, res.PoCs, 1)
	assert.Equal(t, models.PoCStatusFallback, res.PoCs[0].Status)
	assert.Contains(t, res.PoCs[0].Error, "no code")
}

func TestGenerateWarnsWhenTokenMissing(t *testing.T) {
	exec := &MockExecutor{ExecuteFunc: func(context.Context, llm.RequestSpec) (string, error) {
		return "```ts\ndescribe(\"exploit\", () => {});\n```", nil
	}}
	log := logger.NewMockLogger()
	gen := NewGenerator(exec, provider.Config{}, selection.NewCriticalOnlyStrategy(), testDispatch(), log)

	res, err := gen.Generate(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, models.PoCStatusGenerated, res.PoCs[0].Status)
	assert.True(t, log.HasMessage("WARN", "Generated test does not embed its identifier"))
}

func TestGenerateCancelledContext(t *testing.T) {
	gen := NewGenerator(&MockExecutor{}, provider.Config{}, selection.NewAllStrategy(), testDispatch(), logger.NewMockLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, testInput())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdentifierStableAcrossRuns(t *testing.T) {
	run := func(title string) models.PoC {
		in := testInput()
		in.Findings = in.Findings[1:2]
		in.Findings[0].Title = title
		gen := NewGenerator(&MockExecutor{}, provider.Config{}, selection.NewAllStrategy(), testDispatch(), logger.NewMockLogger())
		res, err := gen.Generate(context.Background(), in)
		require.NoError(t, err)
		return res.PoCs[0]
	}

	a, b := run("Withdraw lacks signer"), run("Withdraw lacks signer")
	c := run("A totally different [title] (v2)")
	assert.Equal(t, a.Identifier, b.Identifier)
	assert.Equal(t, a.Identifier, c.Identifier)
	assert.Equal(t, a.RunCommand, c.RunCommand)
}

func envConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	return cfg
}

func TestNewFromConfigMissingCredential(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := envConfig(t, map[string]string{
		provider.EnvProvider: "kimi_code",
		provider.EnvEndpoint: srv.URL,
	})

	_, err := NewFromConfig(cfg, logger.NewMockLogger())
	var cfgErr *provider.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, provider.KimiCode, cfgErr.Provider)
	assert.Equal(t, int32(0), calls.Load())
}

func TestNewFromConfigUnknownNames(t *testing.T) {
	cfg := envConfig(t, map[string]string{provider.EnvMoonshotKey: "sk"})
	cfg.Transport = "carrier-pigeon"
	_, err := NewFromConfig(cfg, logger.NewMockLogger())
	var tnf *llm.TransportNotFoundError
	require.ErrorAs(t, err, &tnf)

	cfg.Transport = config.TransportHTTP
	cfg.Selection = "random"
	_, err = NewFromConfig(cfg, logger.NewMockLogger())
	var snf *selection.StrategyNotFoundError
	require.ErrorAs(t, err, &snf)
}

func TestGenerateEndToEndOverHTTP(t *testing.T) {
	var mu sync.Mutex
	var maxTokens []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req llm.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		mu.Lock()
		maxTokens = append(maxTokens, req.MaxTokens)
		mu.Unlock()

		if strings.Contains(req.Messages[1].Content, "PoC#1") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid model"}}`))
			return
		}
		content := "```typescript\ndescribe(\"PoC#2: x\", () => {});\n```"
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cfg := envConfig(t, map[string]string{
		provider.EnvKimiCodeKey: "sk-kimi",
		provider.EnvEndpoint:    srv.URL + "/coding/v1/chat/completions",
		config.EnvDelayMS:       "0",
	})
	cfg.Selection = "all"

	gen, err := NewFromConfig(cfg, logger.NewMockLogger())
	require.NoError(t, err)

	in := testInput()
	in.Findings = in.Findings[:2]
	res, err := gen.Generate(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.PoCs, 2)
	assert.Equal(t, "kimi_code", res.Provider)
	assert.Equal(t, models.PoCStatusFallback, res.PoCs[0].Status)
	assert.Contains(t, res.PoCs[0].Error, "deterministic")
	assert.Equal(t, models.PoCStatusGenerated, res.PoCs[1].Status)
	assert.Equal(t, []int{4096, 4096}, maxTokens)
}

func TestArtifactErrorJoinsReasonAndDetail(t *testing.T) {
	gen := NewGenerator(&MockExecutor{ExecuteFunc: func(context.Context, llm.RequestSpec) (string, error) {
		return "", errors.New("socket hang up")
	}}, provider.Config{}, selection.NewCriticalOnlyStrategy(), testDispatch(), logger.NewMockLogger())

	res, err := gen.Generate(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "generation failed: socket hang up", res.PoCs[0].Error)
}
