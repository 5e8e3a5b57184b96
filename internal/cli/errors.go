package cli

import (
	"fmt"
	"io"
	"os"

	kberrors "github.com/randalmurphal/kbexport/internal/errors"
)

// PrintError prints an error to stderr. ExportErrors use their user-facing
// format; anything else is printed as is.
func PrintError(err error) {
	printError(os.Stderr, err)
}

func printError(w io.Writer, err error) {
	if exportErr := kberrors.AsExportError(err); exportErr != nil {
		fmt.Fprintln(w, exportErr.UserMessage())
		if verbose {
			fmt.Fprintf(w, "\nCode: %s\n", exportErr.Code)
			if exportErr.Cause != nil {
				fmt.Fprintf(w, "Cause: %v\n", exportErr.Cause)
			}
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
