package generate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/pocforge/internal/config"
	"github.com/joshsymonds/pocforge/internal/storage"
	"github.com/joshsymonds/pocforge/pkg/logger"
)

func TestApplyFlags(t *testing.T) {
	opts := &Options{}
	cmd := newCommand(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--transport", "sdk", "--max", "3", "--selection", "critical-only"}))

	cfg := config.Default()
	require.NoError(t, applyFlags(cmd, cfg, opts))

	assert.Equal(t, config.TransportSDK, cfg.Transport)
	assert.Equal(t, "critical-only", cfg.Selection)
	assert.Equal(t, 3, cfg.Dispatch.MaxItems)
	assert.Equal(t, config.DefaultConcurrency, cfg.Dispatch.Concurrency)
}

func TestApplyFlagsRejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown selection", []string{"--selection", "loudest"}},
		{"unknown transport", []string{"--transport", "grpc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &Options{}
			cmd := newCommand(opts)
			require.NoError(t, cmd.ParseFlags(tt.args))
			assert.Error(t, applyFlags(cmd, config.Default(), opts))
		})
	}
}

func TestLoadInputFromSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	opts := &Options{
		Program:  write("program.json", `{"name":"vault","framework":"anchor"}`),
		Findings: write("findings.json", `[{"class_id":1,"class_name":"Missing Owner Check","title":"t","severity":"high"}]`),
		Patches:  write("patches.json", `[{"file":"src/lib.rs","diff":"+x"}]`),
	}

	in, err := loadInput(storage.NewStorageWithLogger(dir, logger.Nop()), opts)
	require.NoError(t, err)
	assert.Equal(t, "vault", in.Program.Name)
	assert.Len(t, in.Findings, 1)
	assert.Len(t, in.Patches, 1)
	assert.Empty(t, in.Enrichments)
}

func TestLoadInputRequiresFindings(t *testing.T) {
	_, err := loadInput(storage.NewStorageWithLogger(t.TempDir(), logger.Nop()), &Options{})
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(""))
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("POCFORGE_TEST_ENV_VALUE=from-file\n"), 0o600))
	t.Setenv("POCFORGE_TEST_ENV_VALUE", "")
	require.NoError(t, os.Unsetenv("POCFORGE_TEST_ENV_VALUE"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("POCFORGE_TEST_ENV_VALUE"))
}
