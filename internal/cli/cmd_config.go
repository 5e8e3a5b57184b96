package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/kbexport/internal/config"
)

// newConfigCmd creates the config command with subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage kbexport configuration.

Configuration is loaded from multiple sources, later ones winning:
  1. Built-in defaults
  2. /etc/kbexport/config.yaml
  3. ~/.kbexport/config.yaml
  4. .kbexport/config.yaml (or --config)
  5. Environment variables (KBX_*)

Examples:
  kbexport config show             # Merged config as YAML
  kbexport config show --source    # With source annotations
  kbexport config init             # Write .kbexport/config.yaml`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

// newConfigShowCmd creates the 'config show' subcommand.
func newConfigShowCmd() *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show merged configuration",
		Long: `Show the merged configuration from all sources.

By default, outputs valid YAML. Use --source to see where each value comes from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case jsonOut:
				return printConfigAsJSON(out, tc)
			case showSource:
				return printConfigWithSources(out, tc)
			default:
				return printConfigAsYAML(out, tc.Config)
			}
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "Show source for each value")

	return cmd
}

// newConfigInitCmd creates the 'config init' subcommand.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default config file",
		Long: `Write .kbexport/config.yaml with default values under dir (default: current
directory). An existing file is kept unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := config.Init(dir, force)
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

func printConfigAsYAML(out io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func printConfigWithSources(out io.Writer, tc *config.TrackedConfig) error {
	entries, err := tc.Entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s = %v  (%s)\n", e.Path, e.Value, e.Source)
	}
	return nil
}

func printConfigAsJSON(out io.Writer, tc *config.TrackedConfig) error {
	entries, err := tc.Entries()
	if err != nil {
		return err
	}
	type jsonEntry struct {
		Path   string `json:"path"`
		Value  any    `json:"value"`
		Source string `json:"source"`
	}
	list := make([]jsonEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, jsonEntry{Path: e.Path, Value: e.Value, Source: e.Source.String()})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}
