package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time:
//
//	go build -ldflags "-X github.com/randalmurphal/kbexport/internal/cli.Version=v1.2.0"
var Version = "dev"

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show kbexport version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kbexport version %s\n", Version)
		},
	}
}
