// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"

	"github.com/kusari-oss/triage/internal/cli"
	"github.com/kusari-oss/triage/internal/plan"
	"github.com/kusari-oss/triage/internal/policy"
	"github.com/spf13/cobra"
)

func getValidateCmd(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [plan-file]",
		Short: "Validate a plan and show how each action would be classified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}

			classifier, err := policy.New(env.Config.Remediation.ApprovalRules)
			if err != nil {
				return fmt.Errorf("error loading approval rules: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Plan is valid: %d actions, confidence %.2f\n", len(p.Actions), p.Confidence)
			for _, action := range p.Actions {
				decision := classifier.Classify(action).String()
				if action.IsResult() {
					decision = "recorded outcome"
				}
				fmt.Fprintf(out, "  %-24s risk=%-8s %s\n", action.Name, action.Risk, decision)
			}
			return nil
		},
	}
}
