package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

func main() {
	root := &cobra.Command{
		Use:           "valet",
		Short:         "Personal assistant daemon with provider fallback and feedback learning",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newAskCmd(),
		newStatsCmd(),
		newIngestCmd(),
		newConfigCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorize(colorRed, "error: ")+err.Error())
		os.Exit(1)
	}
}
