package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/sluice/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sluice",
	Short: "Sluice runs checkpointed item pipelines",
	Long: `Sluice streams the items of a source through a declarative graph of stages.
Checkpoints cache what each root item has already produced, so a rerun only
computes what changed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	sc := cli.NewSignalContext(context.Background())
	err := rootCmd.ExecuteContext(sc)
	sc.Stop()

	switch {
	case err == nil:
	case sc.Interrupted(err):
		fmt.Fprintln(os.Stderr, "interrupted")
		os.Exit(cli.ExitInterrupted)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cli.AddFlags(rootCmd.PersistentFlags())
}

// withEnv resolves the settings of cmd, builds the environment and runs fn
// with it.
func withEnv(cmd *cobra.Command, fn func(env *cli.Env) error) error {
	s, err := cli.LoadSettings(cmd.Flags())
	if err != nil {
		return err
	}
	env, err := cli.NewEnv(s)
	if err != nil {
		return err
	}
	defer func() {
		if err := env.Close(); err != nil {
			env.Logger.Warn("failed to release resources", "error", err)
		}
	}()
	return fn(env)
}
