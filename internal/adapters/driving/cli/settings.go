package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage engine settings",
	Long: `View and change engine settings. Settings are stored in
~/.docwatch/config.toml and take effect on the next run.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting. The new settings are validated before they are saved.

Keys:
  ` + strings.Join(settingKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

// setting binds a config key to an EngineSettings field.
type setting struct {
	get func(s *domain.EngineSettings) string
	set func(s *domain.EngineSettings, v string) error
}

func intSetting(field func(s *domain.EngineSettings) *int) setting {
	return setting{
		get: func(s *domain.EngineSettings) string { return strconv.Itoa(*field(s)) },
		set: func(s *domain.EngineSettings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %q is not an integer", domain.ErrInvalidInput, v)
			}
			*field(s) = n
			return nil
		},
	}
}

func floatSetting(field func(s *domain.EngineSettings) *float64) setting {
	return setting{
		get: func(s *domain.EngineSettings) string { return strconv.FormatFloat(*field(s), 'g', -1, 64) },
		set: func(s *domain.EngineSettings, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidInput, v)
			}
			*field(s) = f
			return nil
		},
	}
}

func stringSetting(field func(s *domain.EngineSettings) *string) setting {
	return setting{
		get: func(s *domain.EngineSettings) string { return *field(s) },
		set: func(s *domain.EngineSettings, v string) error {
			*field(s) = v
			return nil
		},
	}
}

func boolSetting(field func(s *domain.EngineSettings) *bool) setting {
	return setting{
		get: func(s *domain.EngineSettings) string { return strconv.FormatBool(*field(s)) },
		set: func(s *domain.EngineSettings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %q is not true or false", domain.ErrInvalidInput, v)
			}
			*field(s) = b
			return nil
		},
	}
}

// listSetting takes a comma-separated value. An empty value clears the list.
func listSetting(field func(s *domain.EngineSettings) *[]string) setting {
	return setting{
		get: func(s *domain.EngineSettings) string { return strings.Join(*field(s), ",") },
		set: func(s *domain.EngineSettings, v string) error {
			var items []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			*field(s) = items
			return nil
		},
	}
}

var settingsTable = map[string]setting{
	"extraction.min_length":          intSetting(func(s *domain.EngineSettings) *int { return &s.MinExtractionLength }),
	"detection.similarity_threshold": floatSetting(func(s *domain.EngineSettings) *float64 { return &s.SimilarityThreshold }),
	"detection.classification_floor": floatSetting(func(s *domain.EngineSettings) *float64 { return &s.ClassificationFloor }),
	"batch.workers":                  intSetting(func(s *domain.EngineSettings) *int { return &s.Workers }),
	"batch.rate_per_second":          floatSetting(func(s *domain.EngineSettings) *float64 { return &s.RatePerSecond }),
	"storage.data_dir":               stringSetting(func(s *domain.EngineSettings) *string { return &s.DataDir }),
	"storage.cache_size":             intSetting(func(s *domain.EngineSettings) *int { return &s.CacheSize }),
	"rules.file":                     stringSetting(func(s *domain.EngineSettings) *string { return &s.RulesFile }),
	"publish.nats_url":               stringSetting(func(s *domain.EngineSettings) *string { return &s.NATSURL }),
	"publish.subject_prefix":         stringSetting(func(s *domain.EngineSettings) *string { return &s.SubjectPrefix }),
	"publish.enabled":                boolSetting(func(s *domain.EngineSettings) *bool { return &s.PublishEnabled }),
	"watch.exclude":                  listSetting(func(s *domain.EngineSettings) *[]string { return &s.WatchExclude }),
}

func settingKeys() []string {
	keys := make([]string, 0, len(settingsTable))
	for k := range settingsTable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if jsonOutput(cmd) {
		out := make(map[string]string, len(settingsTable))
		for k, s := range settingsTable {
			out[k] = s.get(settings)
		}
		return printJSON(cmd, out)
	}

	defaults := settingsService.GetDefaults()
	for _, k := range settingKeys() {
		s := settingsTable[k]
		value := s.get(settings)
		if value == "" {
			value = "(not set)"
		}
		if value == s.get(&defaults) {
			value += "  (default)"
		}
		cmd.Printf("%-32s %s\n", k, value)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	key, value := args[0], args[1]

	s, ok := settingsTable[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q (known: %s)", domain.ErrInvalidInput, key, strings.Join(settingKeys(), ", "))
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if err := s.set(settings, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Printf("Set %s = %s\n", key, s.get(settings))
	return nil
}
