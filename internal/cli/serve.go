package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/kbexport/internal/api"
	"github.com/randalmurphal/kbexport/internal/archive"
	kberrors "github.com/randalmurphal/kbexport/internal/errors"
	"github.com/randalmurphal/kbexport/internal/export"
)

// newServeCmd creates the serve command for the API server
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the export API server",
		Long: `Start the kbexport API server.

Endpoints:
  GET  /api/health        Liveness
  GET  /api/collections   List collections
  POST /api/export        Build and download an archive
  GET  /metrics           Prometheus metrics

POST /api/export accepts {"collection_ids": [...], "format": "json",
"archive": "zip"}; every field is optional.

Example:
  kbexport serve              # Listen on server.host:server.port
  kbexport serve --port 3000  # Custom port`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := tc.Config
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host, _ = cmd.Flags().GetString("host")
			}

			archiveFormat, err := archive.ParseFormat(cfg.Export.Archive)
			if err != nil {
				return kberrors.ErrConfigInvalid("export.archive", err.Error())
			}

			ctx, cancel := SetupSignalHandler()
			defer cancel()

			d, err := openDeps(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := export.NewMetrics(registry)

			server := api.New(&api.Config{
				Addr:        cfg.Server.Addr(),
				Collections: d.store,
				Deps:        d.exportDeps(),
				Options:     exportOptions(cfg, archiveFormat, metrics),
				Gatherer:    registry,
			})

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Serving exports on http://%s (Ctrl+C to stop)\n", cfg.Server.Addr())
			}
			return server.StartContext(ctx)
		},
	}

	cmd.Flags().Int("port", 0, "port to listen on (default from server.port)")
	cmd.Flags().String("host", "", "host to bind (default from server.host)")

	return cmd
}
