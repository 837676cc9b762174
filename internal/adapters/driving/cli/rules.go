package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the classification rule table",
	Long: `List the active classification rules in table order.

Rules come from the built-in table, extended or replaced by the YAML rules
file named in settings (rules.file). Use --export to write the active table
as a starting point for a rules file, and --test to see how a piece of text
would be classified.

Examples:
  docwatch rules
  docwatch rules --test "The v1 endpoint is deprecated and will be removed"
  docwatch rules --export ~/.docwatch/rules.yaml`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().String("export", "", "write the active rules to this YAML file")
	rulesCmd.Flags().String("test", "", "classify this text and exit")
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, _ []string) error {
	if ruleCatalog == nil {
		return errors.New("rule catalog not configured")
	}
	exportPath, _ := cmd.Flags().GetString("export")
	text, _ := cmd.Flags().GetString("test")

	if text != "" {
		class, confidence := ruleCatalog.Classify(text, classFloor)
		if jsonOutput(cmd) {
			return printJSON(cmd, struct {
				Classification string  `json:"classification"`
				Confidence     float64 `json:"confidence"`
			}{string(class), confidence})
		}
		cmd.Printf("%s (confidence %.2f, floor %.2f)\n", class, confidence, classFloor)
		return nil
	}

	if exportPath != "" {
		if exportRules == nil {
			return errors.New("rule export not configured")
		}
		if err := exportRules(exportPath); err != nil {
			return fmt.Errorf("export rules: %w", err)
		}
		cmd.Printf("Wrote %d rule(s) to %s\n", len(ruleCatalog.Specs()), exportPath)
		return nil
	}

	specs := ruleCatalog.Specs()
	if jsonOutput(cmd) {
		type ruleView struct {
			Classification string  `json:"classification"`
			Pattern        string  `json:"pattern"`
			Weight         float64 `json:"weight"`
		}
		out := make([]ruleView, len(specs))
		for i, s := range specs {
			out[i] = ruleView{string(s.Classification), s.Pattern, s.Weight}
		}
		return printJSON(cmd, out)
	}

	for i, s := range specs {
		cmd.Printf("%3d  %-13s %4.2f  %s\n", i+1, s.Classification, s.Weight, s.Pattern)
	}
	return nil
}
