package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/kbexport/internal/blob"
	"github.com/randalmurphal/kbexport/internal/config"
	"github.com/randalmurphal/kbexport/internal/db"
)

// newSeedCmd creates the seed command
func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml|->",
		Short: "Load collections, documents and attachments from a YAML fixture",
		Long: `Load a YAML fixture into the configured document store.

Attachment content given inline in the fixture is written to the local blob
directory when blob.driver is "fs". Use "-" to read the fixture from stdin.

Example fixture:
  team_id: 5f0c...
  collections:
    - name: Engineering
      documents:
        - title: Onboarding
          text: "# Welcome"
          children:
            - title: Laptop setup
  attachments:
    - document_id: ...
      name: diagram.png
      content: "..."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := readFixture(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			tc, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := tc.Config
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := openStore(cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx, cancel := SetupSignalHandler()
			defer cancel()

			result, written, err := seed(ctx, store, cfg.Blob, fixture)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]int{
					"collections":  result.Collections,
					"documents":    result.Documents,
					"attachments":  result.Attachments,
					"blobsWritten": written,
				})
			}
			if !quiet {
				fmt.Fprintf(out, "Seeded %d collection(s), %d document(s), %d attachment(s); wrote %d blob(s)\n",
					result.Collections, result.Documents, result.Attachments, written)
			}
			return nil
		},
	}
}

func readFixture(stdin io.Reader, path string) (*db.Fixture, error) {
	if path == "-" {
		return db.LoadFixture(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()
	return db.LoadFixture(f)
}

// seed stores the fixture and writes inline attachment content to the
// local blob directory. It returns how many blobs were written.
func seed(ctx context.Context, store *db.Store, cfg config.BlobConfig, fixture *db.Fixture) (*db.SeedResult, int, error) {
	result, err := store.Seed(ctx, fixture)
	if err != nil {
		return nil, 0, err
	}

	if cfg.Driver != "fs" {
		slog.Warn("attachment content not written: blob driver is read-only", "driver", cfg.Driver)
		return result, 0, nil
	}
	fs, err := blob.NewFS(cfg.Dir)
	if err != nil {
		return nil, 0, err
	}

	written := 0
	for _, a := range fixture.Attachments {
		if a.Content == "" {
			continue
		}
		if err := fs.Put(ctx, a.Key, []byte(a.Content)); err != nil {
			return nil, written, fmt.Errorf("write attachment %s: %w", a.Key, err)
		}
		written++
	}
	return result, written, nil
}
