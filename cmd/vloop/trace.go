package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schedlab/vloop/tracerecording"
)

var traceCmd = &cobra.Command{
	Use:   "trace [file]",
	Short: "Print a recorded event-loop trace",
	Long: `Reads a SQLite trace recorded by a previous run and prints every ` +
		`executed unit of work in order, followed by the collected failures. ` +
		`The file argument names the trace without the .sqlite3 suffix.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		reader := tracerecording.NewReader(args[0])
		reader.Init()
		defer reader.Close()

		units, err := reader.ListUnits()
		if err != nil {
			return err
		}

		for _, u := range units {
			status := ""
			if u.Failed {
				status = "  FAILED"
			}
			fmt.Printf("%6d  %9.3f ms  %-9s  %s%s\n",
				u.Seq, u.TimeMs, u.Kind, u.UnitID, status)
		}

		failures, err := reader.ListErrors()
		if err != nil {
			return err
		}

		for _, f := range failures {
			fmt.Printf("error at %.3f ms (%s %s): %s\n",
				f.TimeMs, f.Kind, f.UnitID, f.Message)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
}
