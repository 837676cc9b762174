package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docwatch/internal/adapters/driving/watch"
	"github.com/custodia-labs/docwatch/internal/core/domain"
)

func TestWatchCmd_Flags(t *testing.T) {
	assert.Equal(t, "watch <dir>", watchCmd.Use)
	flag := watchCmd.Flags().Lookup("debounce")
	require.NotNil(t, flag)
	assert.Equal(t, watch.DefaultDebounce.String(), flag.DefValue)
}

func TestWatchCmd_RejectsMissingDir(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "", "watch", t.TempDir()+"/missing")
	assert.Error(t, err)
}

func TestWatchConfig_MergesExcludeSetting(t *testing.T) {
	env := setupTestServices(t)
	require.NoError(t, env.config.Set("watch.exclude", []string{"build"}))

	resetFlags(watchCmd)
	require.NoError(t, watchCmd.Flags().Set("exclude", "dist"))
	require.NoError(t, watchCmd.Flags().Set("prefix", "acme/"))
	t.Cleanup(func() { resetFlags(watchCmd) })

	cfg, err := watchConfig(watchCmd, "./docs")
	require.NoError(t, err)
	assert.Equal(t, "./docs", cfg.Root)
	assert.Equal(t, "acme/", cfg.SourcePrefix)
	assert.Equal(t, []string{"build", "dist"}, cfg.ExcludeDirs)
	assert.Equal(t, watch.DefaultDebounce, cfg.Debounce)
}

func TestPrintWatchResult(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	printWatchResult(cmd, watch.Result{SourceID: "a.md", Outcome: &domain.IngestionOutcome{VersionID: "v1", IsDuplicate: true}})
	assert.Empty(t, buf.String())

	printWatchResult(cmd, watch.Result{SourceID: "a.md", Outcome: &domain.IngestionOutcome{
		VersionID: "v2",
		Changes:   []domain.Change{{Type: domain.ChangeModified, Classification: domain.ClassBugfix, Heading: "Fixes", SectionID: "s1"}},
	}})
	assert.Contains(t, buf.String(), "NEW   a.md  v2  1 change(s)")
	assert.Contains(t, buf.String(), "bugfix")

	printWatchResult(cmd, watch.Result{SourceID: "b.md", Err: domain.ErrParse})
	assert.Contains(t, buf.String(), "FAIL  b.md")
}
