package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docwatch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/services"
	"github.com/custodia-labs/docwatch/internal/normalisers"
)

const apiV1 = `# Pricing

The Pro plan costs $10 per month for every seat in the workspace.

# API

The v1 endpoint is available to all customers on every plan.
`

const apiV2 = `# Pricing

The Pro plan costs $12 per month for every seat in the workspace.

# API

The v1 endpoint is deprecated and will be removed next year.
`

// testEnv holds the in-memory services behind the commands.
type testEnv struct {
	versions *memory.VersionStore
	config   *memory.ConfigStore
	ingestor *services.IngestionCoordinator
	lineage  *services.LineageService

	metricsPaths []string
	exported     []string
}

func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	sources := memory.NewSourceStore()
	versions := memory.NewVersionStore()
	detector := services.NewChangeDetector()
	coordinator := services.NewIngestionCoordinator(
		normalisers.NewDefaultRegistry(domain.DefaultMinExtractionLength),
		sources, versions, detector, nil, nil,
	)

	env := &testEnv{
		versions: versions,
		config:   memory.NewConfigStore(),
		ingestor: coordinator,
		lineage:  services.NewLineageService(sources, versions, versions, detector),
	}

	SetServices(Services{
		Ingestor:            coordinator,
		BatchIngestor:       services.NewBatchIngester(coordinator, 2, 0),
		Lineage:             env.lineage,
		Settings:            services.NewSettingsService(env.config, "/home/test"),
		Rules:               detector.Rules(),
		ClassificationFloor: domain.DefaultClassificationFloor,
		ExportRules: func(path string) error {
			env.exported = append(env.exported, path)
			return nil
		},
		WriteMetrics: func(path string) error {
			env.metricsPaths = append(env.metricsPaths, path)
			return nil
		},
	})
	t.Cleanup(func() { SetServices(Services{}) })
	return env
}

// ingestText ingests markdown content directly through the coordinator.
func (e *testEnv) ingestText(t *testing.T, sourceID, content string) *domain.IngestionOutcome {
	t.Helper()
	out, err := e.ingestor.Ingest(context.Background(), domain.RawDocument{
		SourceID: sourceID,
		Type:     domain.SourceTypeMarkdown,
		Content:  []byte(content),
	})
	require.NoError(t, err)
	return out
}

// resetFlags restores every flag to its default between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "docwatch", rootCmd.Use)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{
		"ingest", "batch", "sources", "versions", "show", "changes", "compare",
		"history", "verify", "stats", "rules", "watch", "mcp", "settings", "version",
	} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_RejectsUnknownOutput(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "", "stats", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRootCmd_WritesMetricsFile(t *testing.T) {
	env := setupTestServices(t)

	_, err := execute(t, "", "stats", "--metrics-file", "/tmp/docwatch.prom")
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/docwatch.prom"}, env.metricsPaths)

	_, err = execute(t, "", "stats")
	require.NoError(t, err)
	assert.Len(t, env.metricsPaths, 1)
}

func TestRootCmd_MetricsFileWithoutRecorder(t *testing.T) {
	setupTestServices(t)
	writeMetrics = nil

	_, err := execute(t, "", "stats", "--metrics-file", "/tmp/docwatch.prom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics not configured")
}

func TestRootCmd_ServicesNotConfigured(t *testing.T) {
	SetServices(Services{})

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"ingest", "src", "a.md"}, "ingest service not configured"},
		{[]string{"batch", "m.yaml"}, "batch service not configured"},
		{[]string{"sources"}, "lineage service not configured"},
		{[]string{"changes"}, "lineage service not configured"},
		{[]string{"stats"}, "lineage service not configured"},
		{[]string{"rules"}, "rule catalog not configured"},
		{[]string{"watch", "."}, "ingest service not configured"},
		{[]string{"settings", "show"}, "settings service not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJSONOutput(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "", "stats", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"versions": 0`)

	// Test buffers are not files, so auto means text.
	out, err = execute(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Versions: 0")
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, isTerminal(new(bytes.Buffer)))
}
