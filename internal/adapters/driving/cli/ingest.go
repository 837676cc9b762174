package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <source-id> <file>",
	Short: "Ingest one document as a new version of a source",
	Long: `Ingest one document as a new version of a source.

The content is normalised into sections, compared with the latest stored
version and, if it differs, committed together with its classified changes.
Re-ingesting identical content is a no-op.

Use "-" as the file to read from stdin (--type is then required).

Examples:
  docwatch ingest acme-pricing ./pricing.html
  curl -s https://example.com/terms | docwatch ingest terms - --type html --uri https://example.com/terms`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringP("type", "t", "", "document type: html, pdf, text, markdown, docx (default: from file extension)")
	ingestCmd.Flags().String("uri", "", "original location of the document (default: the file path)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	sourceID, path := args[0], args[1]
	typeFlag, _ := cmd.Flags().GetString("type")
	uri, _ := cmd.Flags().GetString("uri")

	sourceType, err := resolveType(typeFlag, path)
	if err != nil {
		return err
	}

	content, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	if uri == "" && path != "-" {
		if abs, err := filepath.Abs(path); err == nil {
			uri = "file://" + filepath.ToSlash(abs)
		}
	}

	outcome, err := ingestor.Ingest(cmd.Context(), domain.RawDocument{
		SourceID: sourceID,
		URI:      uri,
		Type:     sourceType,
		Content:  content,
	})
	if err != nil {
		return fmt.Errorf("ingest %s: %w", sourceID, err)
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, struct {
			SourceID    string       `json:"source_id"`
			VersionID   string       `json:"version_id"`
			IsDuplicate bool         `json:"is_duplicate"`
			Changes     []changeView `json:"changes"`
		}{sourceID, outcome.VersionID, outcome.IsDuplicate, toChangeViews(outcome.Changes)})
	}

	if outcome.IsDuplicate {
		cmd.Printf("No change: %s is identical to version %s\n", sourceID, outcome.VersionID)
		return nil
	}
	cmd.Printf("Stored version %s for %s\n", outcome.VersionID, sourceID)
	if len(outcome.Changes) == 0 {
		cmd.Println("No section changes (first version or formatting-only update).")
		return nil
	}
	cmd.Printf("%d change(s):\n", len(outcome.Changes))
	for i := range outcome.Changes {
		printChange(cmd, &outcome.Changes[i], false)
	}
	return nil
}

// resolveType picks the document type from the flag or the file name.
func resolveType(flag, path string) (domain.SourceType, error) {
	if flag != "" {
		return domain.ParseSourceType(flag)
	}
	if path == "-" {
		return "", fmt.Errorf("%w: --type is required when reading stdin", domain.ErrInvalidInput)
	}
	t, ok := domain.SourceTypeFromPath(path)
	if !ok {
		return "", fmt.Errorf("%w: cannot infer type of %s, use --type", domain.ErrUnsupportedType, path)
	}
	return t, nil
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}
