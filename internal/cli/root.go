// Package cli implements the kbexport command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/kbexport/internal/config"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	jsonOut bool
)

// newRootCmd builds the command tree. Each call returns a fresh tree so
// tests can execute commands in isolation.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kbexport",
		Short: "Export knowledge base collections into portable archives",
		Long: `kbexport exports knowledge base collections into a single archive.

Each collection becomes a JSON manifest holding its documents as portable
content, and every attachment referenced by an exported document is copied
into the archive under its storage key.

Quick start:
  kbexport config init              Write .kbexport/config.yaml
  kbexport seed fixture.yaml        Load sample collections
  kbexport export -o backup.zip     Export every collection
  kbexport verify backup.zip        Check an archive`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
			setupLogging(os.Stderr)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .kbexport/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI and prints any error it returns.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		PrintError(err)
	}
	return err
}

// initConfig resolves which config file to use. KBX_CONFIG is honored when
// --config is not given; otherwise .kbexport/config.yaml is searched.
func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	_ = viper.BindEnv("config")

	if cfgFile == "" {
		cfgFile = viper.GetString("config")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.Dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig returns the layered configuration for the current invocation.
func loadConfig() (*config.TrackedConfig, error) {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
		}
	}
	tc, err := config.LoadWithSources(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return tc, nil
}
