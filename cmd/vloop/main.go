// The vloop command demonstrates and inspects deterministic event-loop
// runs.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use: "vloop",
	Short: "vloop demonstrates single-threaded event-loop scheduling on a " +
		"virtual clock",
	Long: `vloop runs the classic event-loop ordering demonstrations on a ` +
		`deterministic, virtually-clocked scheduler, and can inspect the ` +
		`recorded trace of a run.`,
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
