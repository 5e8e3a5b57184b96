package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/kbexport/internal/archive"
	"github.com/randalmurphal/kbexport/internal/db"
	kberrors "github.com/randalmurphal/kbexport/internal/errors"
	"github.com/randalmurphal/kbexport/internal/export"
	"github.com/randalmurphal/kbexport/internal/presenter"
	"github.com/randalmurphal/kbexport/internal/util"
)

// exportResult is what `export --json` prints.
type exportResult struct {
	Path    string       `json:"path"`
	Format  string       `json:"format"`
	Archive string       `json:"archive"`
	Size    int64        `json:"size"`
	Digest  string       `json:"digest"`
	Entries int          `json:"entries"`
	Stats   export.Stats `json:"stats"`
}

// newExportCmd creates the export command
func newExportCmd() *cobra.Command {
	var (
		collections   []string
		list          bool
		format        string
		archiveFormat string
		outputFile    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export collections into an archive",
		Long: `Export knowledge base collections into a single archive.

Without --collection every collection is exported. --collection accepts a
collection id or a glob on the collection name and may be repeated.

The archive holds metadata.json, one manifest per collection and every
attachment referenced by an exported document, stored under its key.

Examples:
  kbexport export --list                         # List collections
  kbexport export -o backup.zip                  # Everything, as zip
  kbexport export --collection 'Eng*' -o eng.tar.zst
  kbexport export --format markdown -o docs.zip  # One .md file per document`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := tc.Config
			if cmd.Flags().Changed("format") {
				cfg.Export.Format = format
			}
			if cmd.Flags().Changed("archive") {
				cfg.Export.Archive = archiveFormat
			} else if f, ok := archive.FormatFromPath(outputFile); ok {
				cfg.Export.Archive = string(f)
			}

			ctx, cancel := SetupSignalHandler()
			defer cancel()

			d, err := openDeps(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			all, err := d.store.ListCollections(ctx)
			if err != nil {
				return kberrors.ErrDocumentStore("list collections", err)
			}

			out := cmd.OutOrStdout()
			if list {
				return printCollections(out, all)
			}

			selected, err := export.SelectCollections(all, collections)
			if err != nil {
				return err
			}
			return runExport(ctx, out, d, selected, outputFile)
		},
	}

	cmd.Flags().StringArrayVarP(&collections, "collection", "c", nil, "collection id or name glob (repeatable)")
	cmd.Flags().BoolVar(&list, "list", false, "list collections instead of exporting")
	cmd.Flags().StringVarP(&format, "format", "f", "", "export format: json or markdown")
	cmd.Flags().StringVar(&archiveFormat, "archive", "", "archive format: zip or tar.zst")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output path (default kbexport-<timestamp>.<ext>)")

	return cmd
}

func runExport(ctx context.Context, out io.Writer, d *deps, collections []*db.Collection, outputFile string) error {
	cfg := d.cfg
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return kberrors.ErrConfigInvalid("export.format", err.Error())
	}
	archiveFormat, err := archive.ParseFormat(cfg.Export.Archive)
	if err != nil {
		return kberrors.ErrConfigInvalid("export.archive", err.Error())
	}

	exporter, err := export.New(format, d.exportDeps(), exportOptions(cfg, archiveFormat, nil))
	if err != nil {
		return err
	}

	handle, stats, err := exporter.ExportWithStats(ctx, collections)
	if err != nil {
		return err
	}
	defer func() { _ = handle.Cleanup() }()

	if outputFile == "" {
		outputFile = fmt.Sprintf("kbexport-%s%s", time.Now().Format("20060102-150405"), archiveFormat.Extension())
	}
	if abs, err := filepath.Abs(outputFile); err == nil {
		outputFile = abs
	}
	if err := util.MoveFile(handle.Path, outputFile); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	result := exportResult{
		Path:    outputFile,
		Format:  string(format),
		Archive: string(archiveFormat),
		Size:    handle.Size,
		Digest:  handle.Digest,
		Entries: handle.Entries,
		Stats:   stats,
	}
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if quiet {
		fmt.Fprintln(out, result.Path)
		return nil
	}

	fmt.Fprintf(out, "Exported %d collection(s) to %s\n", stats.Collections, result.Path)
	fmt.Fprintf(out, "  documents:   %d (%d skipped)\n", stats.Documents, stats.Skipped)
	fmt.Fprintf(out, "  attachments: %d", stats.Attachments)
	if stats.AttachmentFailures > 0 {
		fmt.Fprintf(out, " (%d failed, see log)", stats.AttachmentFailures)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  size:        %d bytes, %d entries\n", result.Size, result.Entries)
	fmt.Fprintf(out, "  blake3:      %s\n", result.Digest)
	return nil
}

func printCollections(out io.Writer, collections []*db.Collection) error {
	if jsonOut {
		list := make([]presenter.Collection, 0, len(collections))
		for _, c := range collections {
			list = append(list, presenter.PresentCollection(c))
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(collections) == 0 {
		fmt.Fprintln(out, "No collections found.")
		return nil
	}
	for _, c := range collections {
		fmt.Fprintf(out, "%-36s  %s\n", c.ID, c.Name)
	}
	return nil
}
