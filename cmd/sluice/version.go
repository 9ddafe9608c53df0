package main

import (
	"fmt"

	"github.com/aretw0/sluice"
	"github.com/aretw0/sluice/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sluice",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if tui.IsTerminal(out) {
			tui.PrintBanner(out, tui.Profile(out))
		}
		fmt.Fprintf(out, "sluice version %s\n", sluice.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
