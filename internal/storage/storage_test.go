package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/pocforge/internal/models"
	"github.com/joshsymonds/pocforge/internal/pocgen"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFindings(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewMockLogger()
	s := NewStorageWithLogger(dir, log)

	path := writeFile(t, dir, "findings.json", `[
  {"class_id": 4, "class_name": "Missing Signer Check", "title": "Unsigned withdraw", "severity": "critical",
   "location": {"file": "programs/vault/src/lib.rs", "line": 42}},
  {"class_id": 7, "class_name": "", "title": "broken", "severity": "high"},
  {"id": "keep-me", "class_id": 9, "class_name": "Overflow", "title": "Overflow", "severity": "low"}
]`)

	findings, err := s.LoadFindings(path)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, models.GenerateFindingID(4, "programs/vault/src/lib.rs", 42), findings[0].ID)
	assert.Equal(t, "keep-me", findings[1].ID)
	assert.Equal(t, 1, log.Count("WARN"))
}

func TestLoadFindingsYAML(t *testing.T) {
	dir := t.TempDir()
	s := NewStorageWithLogger(dir, logger.Nop())

	path := writeFile(t, dir, "findings.yaml", `
- class_id: 2
  class_name: Arbitrary CPI
  title: Unchecked program id
  severity: high
  location:
    file: src/processor.rs
`)

	findings, err := s.LoadFindings(path)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Arbitrary CPI", findings[0].ClassName)
	assert.Equal(t, "src/processor.rs", findings[0].Location.File)
}

func TestLoadInputBundle(t *testing.T) {
	dir := t.TempDir()
	s := NewStorageWithLogger(dir, logger.Nop())

	path := writeFile(t, dir, "bundle.yaml", `
program:
  name: vault
  framework: anchor
  repo: ./vault
findings:
  - class_id: 1
    class_name: Missing Owner Check
    title: Owner not verified
    severity: critical
enrichments:
  - title: Owner not verified
    exploit_scenario: Attacker passes a forged account
patches:
  - file: src/lib.rs
    diff: "+ require!(owner == expected)"
`)

	in, err := s.LoadInput(path)
	require.NoError(t, err)
	assert.Equal(t, "vault", in.Program.Name)
	assert.True(t, in.Program.IsAnchor())
	require.Len(t, in.Findings, 1)
	assert.NotEmpty(t, in.Findings[0].ID)
	require.Len(t, in.Enrichments, 1)
	require.Len(t, in.Patches, 1)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	s := NewStorageWithLogger(dir, logger.Nop())

	_, err := s.LoadFindings(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	txt := writeFile(t, dir, "findings.txt", "[]")
	_, err = s.LoadFindings(txt)
	require.Error(t, err)

	bad := writeFile(t, dir, "bad.json", "{not json")
	_, err = s.LoadPatches(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestLoadProgramAndEnrichments(t *testing.T) {
	dir := t.TempDir()
	s := NewStorageWithLogger(dir, logger.Nop())

	program, err := s.LoadProgram(writeFile(t, dir, "program.json",
		`{"name":"token-swap","framework":"native","repo":"./swap"}`))
	require.NoError(t, err)
	assert.Equal(t, "token-swap", program.Name)
	assert.False(t, program.IsAnchor())

	enrichments, err := s.LoadEnrichments(writeFile(t, dir, "enrichments.json",
		`[{"title":"Fee bypass","impact":"Loss of fees"}]`))
	require.NoError(t, err)
	require.Len(t, enrichments, 1)
	assert.Equal(t, "Loss of fees", enrichments[0].Impact)
}

func sampleResult(runID string, started time.Time) *pocgen.Result {
	return &pocgen.Result{
		RunID:       runID,
		Program:     "vault",
		Provider:    "moonshot",
		Model:       "kimi-k2.5",
		StartedAt:   started,
		CompletedAt: started.Add(time.Minute),
		Selected:    2,
		Generated:   1,
		Fallback:    1,
		PoCs: []models.PoC{
			{
				ClassID:    4,
				ClassName:  "Missing Signer Check",
				Identifier: "PoC#4",
				Language:   "typescript",
				Status:     models.PoCStatusGenerated,
				TestCode:   `describe("PoC#4", () => {});`,
			},
			{
				ClassID:    9,
				ClassName:  "Integer Overflow",
				Identifier: "PoC#9",
				Language:   "rust",
				Status:     models.PoCStatusFallback,
				TestCode:   "fn poc_9_integer_overflow() {}",
			},
		},
	}
}

func TestSaveResults(t *testing.T) {
	dir := t.TempDir()
	s := NewStorageWithLogger(dir, logger.Nop())

	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	result := sampleResult("0f3c9a7e-1111-2222-3333-444455556666", started)

	runDir, err := s.SaveResults(result)
	require.NoError(t, err)
	assert.Equal(t, "20260314-092653-0f3c9a7e", filepath.Base(runDir))

	ts, err := os.ReadFile(filepath.Join(runDir, "pocs", "01_poc_4_missing_signer_check.ts"))
	require.NoError(t, err)
	assert.Equal(t, result.PoCs[0].TestCode, string(ts))

	_, err = os.Stat(filepath.Join(runDir, "pocs", "02_poc_9_integer_overflow.rs"))
	require.NoError(t, err)

	loaded, err := s.LoadResults(runDir)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, loaded.RunID)
	assert.Len(t, loaded.PoCs, 2)
	assert.True(t, loaded.StartedAt.Equal(started))
}

func TestSaveResultsRejectsFileAsBase(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "not-a-dir", "x")
	s := NewStorageWithLogger(file, logger.Nop())

	_, err := s.SaveResults(sampleResult("abc", time.Now()))
	require.Error(t, err)
}

func TestListRuns(t *testing.T) {
	dir := t.TempDir()
	s := NewStorageWithLogger(dir, logger.Nop())

	runs, err := s.ListRuns("", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaaaaaaa-1", "bbbbbbbb-2", "cccccccc-3"} {
		r := sampleResult(id, base.Add(time.Duration(i)*time.Hour))
		if i == 1 {
			r.Program = "swap"
		}
		_, err := s.SaveResults(r)
		require.NoError(t, err)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "runs", "garbage"), 0o750))

	runs, err = s.ListRuns("", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "cccccccc-3", runs[0].ID)
	assert.Equal(t, "aaaaaaaa-1", runs[2].ID)

	runs, err = s.ListRuns("", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "cccccccc-3", runs[0].ID)

	runs, err = s.ListRuns("swap", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "bbbbbbbb-2", runs[0].ID)
}

func TestPoCFileName(t *testing.T) {
	assert.Equal(t, "03_poc_12_pda_seed_collision.ts",
		PoCFileName(2, models.PoC{ClassID: 12, ClassName: "PDA Seed Collision", Language: "typescript"}))
	assert.Equal(t, "01_poc_5.rs",
		PoCFileName(0, models.PoC{ClassID: 5, Language: "rust"}))
}
