package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// now is replaced in tests.
var now = time.Now

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List monitored sources",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

var versionsCmd = &cobra.Command{
	Use:   "versions <source-id>",
	Short: "List the versions of a source, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersions,
}

var showCmd = &cobra.Command{
	Use:   "show <version-id>",
	Short: "Show one stored version",
	Long: `Show one stored version. The version is re-verified against its content
hash before it is displayed.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "List detected changes",
	Long: `List detected changes, oldest first.

--since accepts a duration (24h, 7d) or an RFC 3339 timestamp.

Examples:
  docwatch changes --since 7d
  docwatch changes --source acme-pricing --classification deprecation --diff`,
	Args: cobra.NoArgs,
	RunE: runChanges,
}

var compareCmd = &cobra.Command{
	Use:   "compare <old-version-id> <new-version-id>",
	Short: "Compare any two versions of a source",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompare,
}

var historyCmd = &cobra.Command{
	Use:   "history <source-id> <section-id>",
	Short: "Trace one section across the versions of a source",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistory,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [version-id...]",
	Short: "Re-check the integrity of stored versions",
	Long: `Re-check the integrity of stored versions.

With no arguments every version of every source (or of --source) is checked.
The command exits non-zero if any version fails verification.`,
	RunE: runVerify,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show version store statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	showCmd.Flags().Bool("sections", false, "list the version's sections")
	showCmd.Flags().Bool("bodies", false, "include section bodies (implies --sections)")

	changesCmd.Flags().String("source", "", "only changes of this source")
	changesCmd.Flags().String("since", "", "only changes detected since this duration or time")
	changesCmd.Flags().String("classification", "", "only changes with this classification")
	changesCmd.Flags().Float64("min-impact", 0, "only changes with at least this impact score")
	changesCmd.Flags().Bool("diff", false, "print each change's diff")

	compareCmd.Flags().Bool("diff", false, "print each change's diff")

	verifyCmd.Flags().String("source", "", "verify only the versions of this source")

	rootCmd.AddCommand(sourcesCmd, versionsCmd, showCmd, changesCmd, compareCmd, historyCmd, verifyCmd, statsCmd)
}

func requireLineage() error {
	if lineageService == nil {
		return errors.New("lineage service not configured")
	}
	return nil
}

func runSources(cmd *cobra.Command, _ []string) error {
	if err := requireLineage(); err != nil {
		return err
	}
	sources, err := lineageService.Sources(cmd.Context())
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	if jsonOutput(cmd) {
		out := make([]sourceView, len(sources))
		for i := range sources {
			out[i] = toSourceView(&sources[i])
		}
		return printJSON(cmd, out)
	}

	if len(sources) == 0 {
		cmd.Println("No sources yet. Use 'docwatch ingest' to add one.")
		return nil
	}
	for i := range sources {
		s := &sources[i]
		cmd.Printf("%-30s %-9s %s  %s\n", s.ID, s.Type, s.CreatedAt.Format(time.RFC3339), s.URL)
	}
	return nil
}

func runVersions(cmd *cobra.Command, args []string) error {
	if err := requireLineage(); err != nil {
		return err
	}
	versions, err := lineageService.Versions(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}

	if jsonOutput(cmd) {
		out := make([]versionView, len(versions))
		for i := range versions {
			out[i] = toVersionView(&versions[i], false, false)
		}
		return printJSON(cmd, out)
	}

	if len(versions) == 0 {
		cmd.Printf("No versions for %s\n", args[0])
		return nil
	}
	for i := range versions {
		v := &versions[i]
		cmd.Printf("%s  %s  %s  %d section(s)\n",
			v.ID, v.ExtractedAt.Format(time.RFC3339), shortHash(v.ContentHash), len(v.Sections))
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if err := requireLineage(); err != nil {
		return err
	}
	withBodies, _ := cmd.Flags().GetBool("bodies")
	withSections, _ := cmd.Flags().GetBool("sections")
	withSections = withSections || withBodies

	v, err := lineageService.Version(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get version: %w", err)
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, toVersionView(v, withSections, withBodies))
	}

	cmd.Printf("Version:   %s\n", v.ID)
	cmd.Printf("Source:    %s\n", v.SourceID)
	cmd.Printf("Extracted: %s\n", v.ExtractedAt.Format(time.RFC3339))
	cmd.Printf("Hash:      %s\n", v.ContentHash)
	cmd.Printf("Sections:  %d\n", len(v.Sections))
	keys := make([]string, 0, len(v.Metadata))
	for k := range v.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("  %s: %s\n", k, v.Metadata[k])
	}

	if withSections {
		cmd.Println()
		for _, s := range v.Sections {
			cmd.Printf("%s%s [%s]\n", strings.Repeat("  ", max(s.Level-1, 0)), headingOrUntitled(s.Heading), s.ID)
			if withBodies && s.Body != "" {
				for _, line := range strings.Split(s.Body, "\n") {
					cmd.Printf("    %s\n", line)
				}
			}
		}
	}
	return nil
}

func runChanges(cmd *cobra.Command, _ []string) error {
	if err := requireLineage(); err != nil {
		return err
	}
	sourceID, _ := cmd.Flags().GetString("source")
	sinceFlag, _ := cmd.Flags().GetString("since")
	classFlag, _ := cmd.Flags().GetString("classification")
	minImpact, _ := cmd.Flags().GetFloat64("min-impact")
	withDiff, _ := cmd.Flags().GetBool("diff")

	var since time.Time
	if sinceFlag != "" {
		var err error
		if since, err = parseSince(sinceFlag, now()); err != nil {
			return err
		}
	}
	var class domain.Classification
	if classFlag != "" {
		var err error
		if class, err = domain.ParseClassification(classFlag); err != nil {
			return err
		}
	}

	changes, err := lineageService.Changes(cmd.Context(), sourceID, since)
	if err != nil {
		return fmt.Errorf("list changes: %w", err)
	}
	filtered := make([]domain.Change, 0, len(changes))
	for _, c := range changes {
		if class != "" && c.Classification != class {
			continue
		}
		if c.ImpactScore < minImpact {
			continue
		}
		filtered = append(filtered, c)
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, toChangeViews(filtered))
	}

	if len(filtered) == 0 {
		cmd.Println("No changes found.")
		return nil
	}
	lastPair := ""
	for i := range filtered {
		c := &filtered[i]
		if pair := c.OldVersionID + c.NewVersionID; pair != lastPair {
			cmd.Printf("%s  %s -> %s  (%s)\n", c.SourceID, c.OldVersionID, c.NewVersionID, c.DetectedAt.Format(time.RFC3339))
			lastPair = pair
		}
		printChange(cmd, c, withDiff)
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	if err := requireLineage(); err != nil {
		return err
	}
	withDiff, _ := cmd.Flags().GetBool("diff")

	cmp, err := lineageService.Compare(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, struct {
			OldVersionID string       `json:"old_version_id"`
			NewVersionID string       `json:"new_version_id"`
			Added        int          `json:"added"`
			Removed      int          `json:"removed"`
			Modified     int          `json:"modified"`
			Unchanged    int          `json:"unchanged"`
			Changes      []changeView `json:"changes"`
		}{cmp.OldVersionID, cmp.NewVersionID, cmp.Added, cmp.Removed, cmp.Modified, cmp.Unchanged, toChangeViews(cmp.Changes)})
	}

	cmd.Printf("%s -> %s\n", cmp.OldVersionID, cmp.NewVersionID)
	cmd.Printf("added %d, removed %d, modified %d, unchanged %d\n", cmp.Added, cmp.Removed, cmp.Modified, cmp.Unchanged)
	for i := range cmp.Changes {
		printChange(cmd, &cmp.Changes[i], withDiff)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := requireLineage(); err != nil {
		return err
	}
	history, err := lineageService.SectionHistory(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("section history: %w", err)
	}

	if jsonOutput(cmd) {
		type revision struct {
			VersionID   string    `json:"version_id"`
			ExtractedAt time.Time `json:"extracted_at"`
			Heading     string    `json:"heading"`
			Body        string    `json:"body"`
			Changed     bool      `json:"changed"`
		}
		out := make([]revision, len(history))
		for i, r := range history {
			out[i] = revision{r.VersionID, r.ExtractedAt, r.Section.Heading, r.Section.Body, r.Changed}
		}
		return printJSON(cmd, out)
	}

	for _, r := range history {
		marker := " "
		if r.Changed {
			marker = "*"
		}
		cmd.Printf("%s %s  %s  %s\n", marker, r.VersionID, r.ExtractedAt.Format(time.RFC3339), headingOrUntitled(r.Section.Heading))
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := requireLineage(); err != nil {
		return err
	}
	sourceID, _ := cmd.Flags().GetString("source")

	ids := args
	if len(ids) == 0 {
		var err error
		if ids, err = allVersionIDs(cmd, sourceID); err != nil {
			return err
		}
	}

	var reports []*domain.IntegrityReport
	invalid := 0
	for _, id := range ids {
		r, err := lineageService.VerifyVersion(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("verify %s: %w", id, err)
		}
		if !r.Valid {
			invalid++
		}
		reports = append(reports, r)
	}

	if jsonOutput(cmd) {
		type verifyRow struct {
			VersionID string   `json:"version_id"`
			Valid     bool     `json:"valid"`
			Problems  []string `json:"problems,omitempty"`
		}
		rows := make([]verifyRow, len(reports))
		for i, r := range reports {
			rows[i] = verifyRow{r.VersionID, r.Valid, r.Problems}
		}
		if err := printJSON(cmd, rows); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			if r.Valid {
				cmd.Printf("OK       %s\n", r.VersionID)
				continue
			}
			cmd.Printf("CORRUPT  %s  %s\n", r.VersionID, strings.Join(r.Problems, "; "))
		}
		cmd.Printf("%d version(s) checked, %d corrupt\n", len(reports), invalid)
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d version(s) failed verification", domain.ErrCorruption, invalid)
	}
	return nil
}

func allVersionIDs(cmd *cobra.Command, sourceID string) ([]string, error) {
	sourceIDs := []string{sourceID}
	if sourceID == "" {
		sources, err := lineageService.Sources(cmd.Context())
		if err != nil {
			return nil, fmt.Errorf("list sources: %w", err)
		}
		sourceIDs = sourceIDs[:0]
		for _, s := range sources {
			sourceIDs = append(sourceIDs, s.ID)
		}
	}

	var ids []string
	for _, id := range sourceIDs {
		versions, err := lineageService.Versions(cmd.Context(), id)
		if err != nil {
			return nil, fmt.Errorf("list versions of %s: %w", id, err)
		}
		for _, v := range versions {
			ids = append(ids, v.ID)
		}
	}
	return ids, nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	if err := requireLineage(); err != nil {
		return err
	}
	stats, err := lineageService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, struct {
			Sources          int                           `json:"sources"`
			Versions         int                           `json:"versions"`
			Sections         int                           `json:"sections"`
			Changes          int                           `json:"changes"`
			ByClassification map[domain.Classification]int `json:"by_classification"`
			ByType           map[domain.ChangeType]int     `json:"by_type"`
		}{stats.Sources, stats.Versions, stats.Sections, stats.Changes, stats.ByClassification, stats.ByType})
	}

	cmd.Printf("Sources:  %d\n", stats.Sources)
	cmd.Printf("Versions: %d\n", stats.Versions)
	cmd.Printf("Sections: %d\n", stats.Sections)
	cmd.Printf("Changes:  %d\n", stats.Changes)
	if stats.Changes > 0 {
		cmd.Println()
		cmd.Println("By classification:")
		for _, c := range domain.AllClassifications() {
			if n := stats.ByClassification[c]; n > 0 {
				cmd.Printf("  %-14s %d\n", c, n)
			}
		}
		cmd.Println("By type:")
		for _, t := range []domain.ChangeType{domain.ChangeAdded, domain.ChangeRemoved, domain.ChangeModified} {
			if n := stats.ByType[t]; n > 0 {
				cmd.Printf("  %-14s %d\n", t, n)
			}
		}
	}
	return nil
}

// parseSince accepts a duration, a day count such as "7d", or an RFC 3339 time.
func parseSince(s string, ref time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return ref.AddDate(0, 0, -n), nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("%w: --since %q is not a duration or RFC 3339 time", domain.ErrInvalidInput, s)
	}
	return ref.Add(-d), nil
}

func headingOrUntitled(h string) string {
	if h == "" {
		return "(untitled)"
	}
	return h
}
