// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/kusari-oss/triage/cmd/triage/cmd/plan"
	"github.com/kusari-oss/triage/internal/cli"
	"github.com/kusari-oss/triage/internal/version"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the triage root command
func NewRootCmd() *cobra.Command {
	env := &cli.Env{}

	rootCmd := &cobra.Command{
		Use:   "triage",
		Short: "Triage - automated incident analysis and low-risk remediation",
		Long: `Triage gathers recent telemetry and runbooks, asks a language model for a
root cause analysis and remediation plan, executes the low-risk actions of the
plan through the remediation guard and posts a summary card to the team channel.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.Load(cmd)
		},
	}

	env.BindFlags(rootCmd)

	rootCmd.AddCommand(newAnalyzeCmd(env))
	rootCmd.AddCommand(newServeCmd(env))
	rootCmd.AddCommand(plan.GetPlanCmd(env))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
