package main

import (
	"github.com/aretw0/sluice/internal/cli"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <pipeline>",
	Short: "Show how many items have passed each checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.Status(cmd.Context(), env, args[0], cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
