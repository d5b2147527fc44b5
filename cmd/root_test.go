package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfigYAML = `logging:
  level: error
tracing:
  enabled: false
auth:
  scraper_api_key: test-key
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfigYAML), 0o600))

	var out bytes.Buffer
	root, cleanup := newRootCmd()
	t.Cleanup(cleanup)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedPrintsSummary(t *testing.T) {
	out, err := runCLI(t, "seed")
	require.NoError(t, err)
	require.Contains(t, out, `"initialized"`)
	require.Contains(t, out, `"tierBreakdown"`)
}

func TestImportDryRun(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "entries.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"question,answer,tags\n"+
			"What is agreed value?,Agreed value is the sum the insurer pays for a total loss.,coverage\n",
	), 0o600))

	out, err := runCLI(t, "import", csvPath, "--dry-run")
	require.NoError(t, err)
	require.Contains(t, out, `"dry_run"`)
	require.Contains(t, out, "Would import 1 entries")
}

func TestImportMissingFile(t *testing.T) {
	_, err := runCLI(t, "import", filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorContains(t, err, "open import file")
}

func TestPublishDryRunOnEmptyStore(t *testing.T) {
	out, err := runCLI(t, "publish", "--dry-run", "--min-confidence", "0.8")
	require.NoError(t, err)
	require.Contains(t, out, `"published": 0`)
}

func TestDiscoverWithoutMatchingRoots(t *testing.T) {
	out, err := runCLI(t, "discover", "--domain", "nowhere.example")
	require.NoError(t, err)
	require.Contains(t, out, "No sources available")
	require.Contains(t, out, `"roots": 0`)
}

func TestReviewErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "bad id", args: []string{"review", "approve", "abc"}, want: "invalid candidate id"},
		{name: "zero id", args: []string{"review", "show", "0"}, want: "invalid candidate id"},
		{name: "unknown candidate", args: []string{"review", "reject", "42"}, want: "not found"},
		{name: "missing arg", args: []string{"review", "show"}, want: "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestMigrateRequiresDSN(t *testing.T) {
	_, err := runCLI(t, "migrate", "up")
	require.ErrorContains(t, err, "db.dsn is required")
}

func TestResolveWithoutSetup(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	require.Error(t, err)
	_, err = resolveConfig(context.Background())
	require.Error(t, err)
}
