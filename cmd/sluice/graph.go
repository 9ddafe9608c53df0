package main

import (
	"github.com/aretw0/sluice/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <pipeline>",
	Short: "Export the pipeline graph visualization",
	Long:  `Compiles the pipeline and outputs a Mermaid diagram (graph TD) of its stages and routes.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetBool("status")
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.Graph(cmd.Context(), env, args[0], status, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().Bool("status", false, "Color checkpoints by cache progress")
}
