package main

import (
	"github.com/aretw0/sluice/internal/cli"
	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <pipeline>",
	Short: "Delete cache entries that no current item needs",
	Long: `Keeps the valid cache entries of every item the source currently yields and
deletes everything else under the cache root, without running the pipeline.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.Purge(cmd.Context(), env, args[0], dryRun, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)

	purgeCmd.Flags().Bool("dry-run", false, "List stale files without deleting them")
}
