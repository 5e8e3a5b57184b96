package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/kbexport/internal/archive"
	"github.com/randalmurphal/kbexport/internal/export"
)

// manifestReport summarizes one collection manifest found in an archive.
type manifestReport struct {
	Entry       string `json:"entry"`
	Name        string `json:"name"`
	Documents   int    `json:"documents"`
	Attachments int    `json:"attachments"`
}

// verifyReport is the result of checking an archive.
type verifyReport struct {
	Format        archive.Format   `json:"format"`
	BackupVersion int64            `json:"backup_version"`
	Version       string           `json:"version"`
	Files         int              `json:"files"`
	Manifests     []manifestReport `json:"manifests"`
	Markdown      int              `json:"markdown_files"`
	Problems      []string         `json:"problems,omitempty"`
}

// newVerifyCmd creates the verify command
func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check the structure of an exported archive",
		Long: `Check an exported archive.

verify reads metadata.json, parses every collection manifest and checks that
each attachment a manifest references is present in the archive under its
key. The command fails when any problem is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contents, err := archive.Open(args[0])
			if err != nil {
				return err
			}

			report := verifyArchive(contents)
			if err := printVerifyReport(cmd.OutOrStdout(), args[0], report); err != nil {
				return err
			}
			if len(report.Problems) > 0 {
				return fmt.Errorf("archive failed verification: %d problem(s)", len(report.Problems))
			}
			return nil
		},
	}
}

func verifyArchive(c *archive.Contents) verifyReport {
	report := verifyReport{Format: c.Format}
	files := c.Files()
	report.Files = len(files)

	meta, ok := c.File(export.MetadataEntry)
	switch {
	case !ok:
		report.Problems = append(report.Problems, "missing "+export.MetadataEntry)
	case !gjson.ValidBytes(meta):
		report.Problems = append(report.Problems, export.MetadataEntry+" is not valid JSON")
	default:
		report.BackupVersion = gjson.GetBytes(meta, "backupVersion").Int()
		report.Version = gjson.GetBytes(meta, "version").String()
		if report.BackupVersion != export.BackupVersion {
			report.Problems = append(report.Problems,
				fmt.Sprintf("unsupported backupVersion %d", report.BackupVersion))
		}
	}

	for _, name := range files {
		if strings.HasSuffix(name, ".md") {
			report.Markdown++
			continue
		}
		if name == export.MetadataEntry || strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, _ := c.File(name)
		if !gjson.ValidBytes(data) {
			report.Problems = append(report.Problems, name+" is not valid JSON")
			continue
		}
		if !gjson.GetBytes(data, "documentStructure").Exists() {
			continue
		}
		report.Manifests = append(report.Manifests, verifyManifest(c, name, data, &report.Problems))
	}
	return report
}

func verifyManifest(c *archive.Contents, entry string, data []byte, problems *[]string) manifestReport {
	m := manifestReport{
		Entry:     entry,
		Name:      gjson.GetBytes(data, "name").String(),
		Documents: len(gjson.GetBytes(data, "documents").Map()),
	}

	attachments := gjson.GetBytes(data, "attachments").Map()
	m.Attachments = len(attachments)

	ids := make([]string, 0, len(attachments))
	for id := range attachments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		key := attachments[id].Get("key").String()
		if key == "" {
			*problems = append(*problems, fmt.Sprintf("%s: attachment %s has no key", entry, id))
			continue
		}
		if !c.Has(key) {
			*problems = append(*problems, fmt.Sprintf("%s: attachment %s missing from archive (%s)", entry, id, key))
		}
	}

	// Every document in the hierarchy that made it into the manifest must
	// carry its own id.
	for id, doc := range gjson.GetBytes(data, "documents").Map() {
		if doc.Get("id").String() != id {
			*problems = append(*problems, fmt.Sprintf("%s: document %s is keyed under the wrong id", entry, id))
		}
	}
	return m
}

func printVerifyReport(out io.Writer, path string, r verifyReport) error {
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(out, "%s (%s, %d files)\n", path, r.Format, r.Files)
	fmt.Fprintf(out, "  backupVersion: %d  version: %s\n", r.BackupVersion, r.Version)
	for _, m := range r.Manifests {
		fmt.Fprintf(out, "  %-30s %d documents, %d attachments\n", m.Name, m.Documents, m.Attachments)
	}
	if r.Markdown > 0 {
		fmt.Fprintf(out, "  %d markdown documents\n", r.Markdown)
	}
	if len(r.Problems) == 0 {
		if !quiet {
			fmt.Fprintln(out, "OK")
		}
		return nil
	}
	for _, p := range r.Problems {
		fmt.Fprintf(out, "  problem: %s\n", p)
	}
	return nil
}
