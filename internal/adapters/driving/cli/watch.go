package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docwatch/internal/adapters/driving/watch"
	"github.com/custodia-labs/docwatch/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest documents in a directory whenever they change",
	Long: `Watch a directory tree and ingest every supported document when it is
created or written. Each file is its own source, identified by its path
relative to the directory (plus --prefix). Hidden directories, node_modules,
vendor and the directories named in the watch.exclude setting are skipped.

Runs until interrupted.

Examples:
  docwatch watch ./docs
  docwatch watch ./mirror --prefix acme/ --no-scan`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a changed file is ingested")
	watchCmd.Flags().String("prefix", "", "prefix for source ids")
	watchCmd.Flags().StringSlice("exclude", nil, "directory names to skip")
	watchCmd.Flags().Bool("no-scan", false, "skip the initial ingestion of existing files")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}
	cfg, err := watchConfig(cmd, args[0])
	if err != nil {
		return err
	}
	w, err := watch.New(cfg, ingestor, func(r watch.Result) { printWatchResult(cmd, r) })
	if err != nil {
		return err
	}

	if noScan, _ := cmd.Flags().GetBool("no-scan"); !noScan {
		if err := w.Scan(cmd.Context()); err != nil {
			return err
		}
	}
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	return w.Run(cmd.Context())
}

// watchConfig builds the watcher config from flags. The watch.exclude
// setting applies in addition to --exclude.
func watchConfig(cmd *cobra.Command, root string) (watch.Config, error) {
	debounce, _ := cmd.Flags().GetDuration("debounce")
	prefix, _ := cmd.Flags().GetString("prefix")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return watch.Config{}, fmt.Errorf("failed to get settings: %w", err)
		}
		exclude = append(append([]string{}, settings.WatchExclude...), exclude...)
	}
	return watch.Config{
		Root:         root,
		Debounce:     debounce,
		ExcludeDirs:  exclude,
		SourcePrefix: prefix,
	}, nil
}

func printWatchResult(cmd *cobra.Command, r watch.Result) {
	ts := now().Format(time.TimeOnly)
	switch {
	case r.Err != nil:
		// The coordinator has already logged the failure.
		logger.Debug("watch: %s failed: %v", r.SourceID, r.Err)
		cmd.Printf("%s  FAIL  %s  %v\n", ts, r.SourceID, r.Err)
	case r.Outcome.IsDuplicate:
		logger.Debug("watch: %s unchanged", r.SourceID)
	default:
		cmd.Printf("%s  NEW   %s  %s  %d change(s)\n", ts, r.SourceID, r.Outcome.VersionID, len(r.Outcome.Changes))
		for i := range r.Outcome.Changes {
			printChange(cmd, &r.Outcome.Changes[i], false)
		}
	}
}
