package main

import (
	"github.com/aretw0/sluice/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <pipeline>",
	Short: "Run a pipeline once over every item of its source",
	Long: `Runs the pipeline, reusing checkpointed results, and purges cache entries
the run did not touch. Interrupt once to stop after the current item, twice to
exit immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.Run(cmd.Context(), env, args[0], cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-purge", false, "Keep stale cache entries after the run")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090)")
}
