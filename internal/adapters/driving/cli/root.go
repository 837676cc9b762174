// Package cli provides the docwatch command-line interface.
//
// Commands are package-level cobra commands registered from init. The
// services they drive are injected once by main through SetServices, so
// every command can be exercised in tests against in-memory stores.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docwatch/internal/adapters/driving/mcp"
	"github.com/custodia-labs/docwatch/internal/core/ports/driving"
	"github.com/custodia-labs/docwatch/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Output formats.
const (
	outputAuto = "auto"
	outputText = "text"
	outputJSON = "json"
)

var (
	verbose     bool
	outputMode  string
	metricsFile string
)

// Services are the application services the commands drive.
type Services struct {
	Ingestor      driving.Ingestor
	BatchIngestor driving.BatchIngestor
	Lineage       driving.LineageService
	Settings      driving.SettingsService
	Rules         driving.RuleCatalog

	// ClassificationFloor is the confidence floor used by "rules --test".
	ClassificationFloor float64

	// ExportRules writes the active rule table to a YAML file.
	ExportRules func(path string) error

	// WriteMetrics writes a metrics snapshot to a file.
	WriteMetrics func(path string) error
}

var (
	ingestor        driving.Ingestor
	batchIngestor   driving.BatchIngestor
	lineageService  driving.LineageService
	settingsService driving.SettingsService
	ruleCatalog     driving.RuleCatalog
	classFloor      float64
	exportRules     func(path string) error
	writeMetrics    func(path string) error
)

// SetServices injects the services used by every command.
func SetServices(s Services) {
	ingestor = s.Ingestor
	batchIngestor = s.BatchIngestor
	lineageService = s.Lineage
	settingsService = s.Settings
	ruleCatalog = s.Rules
	classFloor = s.ClassificationFloor
	exportRules = s.ExportRules
	writeMetrics = s.WriteMetrics
}

var rootCmd = &cobra.Command{
	Use:   "docwatch",
	Short: "Track document versions and classify what changed",
	Long: `docwatch ingests documents (HTML, PDF, Markdown, DOCX, plain text), keeps an
immutable version history per source, and derives classified, scored
section-level changes between consecutive versions.

Every stored version is content-addressed and re-verified on read, so the
history can be used as an audit trail.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		switch outputMode {
		case outputAuto, outputText, outputJSON:
			return nil
		default:
			return fmt.Errorf("unknown output format %q (want auto, text or json)", outputMode)
		}
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		if metricsFile == "" {
			return nil
		}
		if writeMetrics == nil {
			return errors.New("metrics not configured")
		}
		if err := writeMetrics(metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Info("metrics written to %s", metricsFile)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputMode, "output", "o", outputAuto,
		"output format: auto, text or json (auto uses json when stdout is not a terminal)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "",
		"write Prometheus metrics in text format to this file after the command")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// mcpPorts builds the MCP port set from the injected services.
func mcpPorts() *mcp.Ports {
	return &mcp.Ports{
		Lineage: lineageService,
		Ingest:  ingestor,
	}
}

// jsonOutput reports whether the command should print JSON.
func jsonOutput(cmd *cobra.Command) bool {
	switch outputMode {
	case outputJSON:
		return true
	case outputText:
		return false
	}
	return !isTerminal(cmd.OutOrStdout())
}

// isTerminal reports whether w is an interactive terminal. Writers that
// are not files, such as test buffers, count as terminals.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return true
	}
	return term.IsTerminal(int(f.Fd()))
}
