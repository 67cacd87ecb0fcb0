// Package storage loads generation inputs and persists generation results.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshsymonds/pocforge/internal/models"
	"github.com/joshsymonds/pocforge/internal/pocgen"
	"github.com/joshsymonds/pocforge/internal/prompt"
	"github.com/joshsymonds/pocforge/pkg/logger"
	"github.com/joshsymonds/pocforge/pkg/pathutil"
)

const (
	runsDir     = "runs"
	pocsDir     = "pocs"
	resultsFile = "results.json"
)

// Storage handles loading inputs and saving generation runs.
type Storage struct {
	logger  logger.Logger
	baseDir string
}

// NewStorage creates a new storage instance.
func NewStorage(baseDir string) *Storage {
	return NewStorageWithLogger(baseDir, logger.GetGlobalLogger())
}

// NewStorageWithLogger creates a new storage instance with a custom logger.
func NewStorageWithLogger(baseDir string, log logger.Logger) *Storage {
	return &Storage{
		baseDir: baseDir,
		logger:  log,
	}
}

// LoadInput reads a bundle file holding program, findings, enrichments and patches.
func (s *Storage) LoadInput(path string) (*pocgen.Input, error) {
	var in pocgen.Input
	if err := s.decodeFile(path, &in); err != nil {
		return nil, fmt.Errorf("loading input bundle: %w", err)
	}
	in.Findings = s.normalizeFindings(in.Findings)
	return &in, nil
}

// LoadFindings reads a list of findings. Findings that fail validation are
// skipped with a warning; missing IDs are generated.
func (s *Storage) LoadFindings(path string) ([]models.Finding, error) {
	var findings []models.Finding
	if err := s.decodeFile(path, &findings); err != nil {
		return nil, fmt.Errorf("loading findings: %w", err)
	}
	return s.normalizeFindings(findings), nil
}

// LoadEnrichments reads a list of enrichment records.
func (s *Storage) LoadEnrichments(path string) ([]models.EnrichedFinding, error) {
	var enrichments []models.EnrichedFinding
	if err := s.decodeFile(path, &enrichments); err != nil {
		return nil, fmt.Errorf("loading enrichments: %w", err)
	}
	return enrichments, nil
}

// LoadPatches reads a list of patches.
func (s *Storage) LoadPatches(path string) ([]models.Patch, error) {
	var patches []models.Patch
	if err := s.decodeFile(path, &patches); err != nil {
		return nil, fmt.Errorf("loading patches: %w", err)
	}
	return patches, nil
}

// LoadProgram reads the program description.
func (s *Storage) LoadProgram(path string) (models.Program, error) {
	var program models.Program
	if err := s.decodeFile(path, &program); err != nil {
		return models.Program{}, fmt.Errorf("loading program: %w", err)
	}
	return program, nil
}

func (s *Storage) normalizeFindings(findings []models.Finding) []models.Finding {
	valid := make([]models.Finding, 0, len(findings))
	for i, f := range findings {
		if err := f.IsValid(); err != nil {
			s.logger.Warn("Skipping invalid finding", "index", i, "error", err)
			continue
		}
		if f.ID == "" {
			f.ID = models.GenerateFindingID(f.ClassID, f.Location.File, f.Location.Line)
		}
		valid = append(valid, f)
	}
	return valid
}

// decodeFile decodes JSON or YAML depending on the file extension.
func (s *Storage) decodeFile(path string, v any) error {
	validPath, err := pathutil.ValidateInputPath(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(validPath) // #nosec G304 - path is validated above
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(validPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(validPath), err)
	}
	return nil
}

// RunDirName names a run directory so that lexical order is chronological.
func RunDirName(result *pocgen.Result) string {
	id := result.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return result.StartedAt.UTC().Format("20060102-150405") + "-" + id
}

// SaveResults writes results.json and one test file per PoC under a new run
// directory and returns that directory.
func (s *Storage) SaveResults(result *pocgen.Result) (string, error) {
	base, err := pathutil.ValidateOutputDir(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid output directory: %w", err)
	}

	runDir, err := pathutil.JoinAndValidate(base, runsDir, RunDirName(result))
	if err != nil {
		return "", fmt.Errorf("invalid run directory: %w", err)
	}
	pocDir := filepath.Join(runDir, pocsDir)
	if err := os.MkdirAll(pocDir, 0o750); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	resultsPath, err := pathutil.JoinAndValidate(runDir, resultsFile)
	if err != nil {
		return "", fmt.Errorf("invalid results path: %w", err)
	}
	if err := s.saveJSON(resultsPath, result); err != nil {
		return "", fmt.Errorf("saving results: %w", err)
	}

	for i, poc := range result.PoCs {
		path, err := pathutil.JoinAndValidate(pocDir, PoCFileName(i, poc))
		if err != nil {
			return "", fmt.Errorf("invalid PoC path: %w", err)
		}
		if err := os.WriteFile(path, []byte(poc.TestCode), 0o600); err != nil {
			return "", fmt.Errorf("writing PoC %s: %w", poc.Identifier, err)
		}
	}

	s.logger.Info("Saved generation results",
		"run_id", result.RunID,
		"dir", runDir,
		"pocs", len(result.PoCs))
	return runDir, nil
}

// PoCFileName is the file a PoC's test code is written to.
func PoCFileName(index int, poc models.PoC) string {
	ext := "rs"
	if poc.Language == prompt.LanguageTypeScript {
		ext = "ts"
	}
	name := prompt.NativeTestName(models.Finding{ClassID: poc.ClassID, ClassName: poc.ClassName})
	return pathutil.SafeFileName(fmt.Sprintf("%02d_%s.%s", index+1, name, ext))
}

// LoadResults reads a saved run.
func (s *Storage) LoadResults(runDir string) (*pocgen.Result, error) {
	path, err := pathutil.JoinAndValidate(runDir, resultsFile)
	if err != nil {
		return nil, fmt.Errorf("invalid results path: %w", err)
	}
	var result pocgen.Result
	if err := s.loadJSON(path, &result); err != nil {
		return nil, fmt.Errorf("loading results: %w", err)
	}
	return &result, nil
}

// RunInfo provides summary information about a saved run.
type RunInfo struct {
	StartedAt   time.Time
	CompletedAt time.Time
	ID          string
	Path        string
	Program     string
	Provider    string
	Model       string
	Selected    int
	Generated   int
	Fallback    int
}

// ListRuns returns saved runs, newest first. A limit of zero means all.
func (s *Storage) ListRuns(program string, limit int) ([]RunInfo, error) {
	dir := filepath.Join(s.baseDir, runsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() > entries[j].Name() })

	var runs []RunInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runDir := filepath.Join(dir, entry.Name())
		result, err := s.LoadResults(runDir)
		if err != nil {
			s.logger.Debug("Skipping invalid run directory", "dir", entry.Name(), "error", err)
			continue
		}
		if program != "" && result.Program != program {
			continue
		}

		runs = append(runs, RunInfo{
			ID:          result.RunID,
			Path:        runDir,
			Program:     result.Program,
			Provider:    result.Provider,
			Model:       result.Model,
			StartedAt:   result.StartedAt,
			CompletedAt: result.CompletedAt,
			Selected:    result.Selected,
			Generated:   result.Generated,
			Fallback:    result.Fallback,
		})
		if limit > 0 && len(runs) >= limit {
			break
		}
	}
	return runs, nil
}

// saveJSON saves data as JSON to a file.
func (s *Storage) saveJSON(path string, data any) (err error) {
	file, err := os.Create(path) // #nosec G304 - path is validated by caller
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// loadJSON loads JSON data from a file.
func (s *Storage) loadJSON(path string, data any) (err error) {
	file, err := os.Open(path) // #nosec G304 - path is validated by caller
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return json.NewDecoder(file).Decode(data)
}
