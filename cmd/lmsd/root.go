// Command lmsd runs the LMS core: the media scanner, artwork cache, and
// recommendation engine, plus the control surface in internal/api.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var preamble = `lmsd is a self-hosted music library core: a media scanner, an
artwork cache, and a SOM-based recommendation engine, exposed over a small
HTTP control surface.`

var rootCmd = &cobra.Command{
	Use:   "lmsd",
	Short: "lmsd music library core",
	Long:  preamble,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	execute()
}
