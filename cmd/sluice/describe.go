package main

import (
	"github.com/aretw0/sluice/internal/cli"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <pipeline>",
	Short: "Describe a pipeline's stages, checkpoints and flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.Describe(env, args[0], cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
