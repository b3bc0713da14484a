// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"

	"github.com/kusari-oss/triage/internal/app"
	"github.com/kusari-oss/triage/internal/cli"
	"github.com/kusari-oss/triage/internal/core/format"
	"github.com/kusari-oss/triage/internal/plan"
	"github.com/kusari-oss/triage/internal/policy"
	"github.com/spf13/cobra"
)

func getDispatchCmd(env *cli.Env) *cobra.Command {
	var endpoint, output string
	var dryRun bool

	dispatchCmd := &cobra.Command{
		Use:   "dispatch [plan-file]",
		Short: "Dispatch the low-risk actions of a saved plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}

			if endpoint == "" {
				endpoint = env.Config.Remediation.URL
			}

			out := cmd.OutOrStdout()

			if dryRun {
				classifier, err := policy.New(env.Config.Remediation.ApprovalRules)
				if err != nil {
					return fmt.Errorf("error loading approval rules: %w", err)
				}
				fmt.Fprintln(out, "Running in dry-run mode - no actions will be executed")
				for _, action := range p.Actions {
					fmt.Fprintf(out, "  %-24s %s\n", action.Name, classifier.Classify(action))
				}
				return nil
			}

			dispatcher, err := app.NewDispatcher(env.Config, env.Logger)
			if err != nil {
				return err
			}

			enriched := plan.Enrich(p, dispatcher.Dispatch(cmd.Context(), p, endpoint))

			if output != "" {
				if err := plan.Save(output, enriched); err != nil {
					return fmt.Errorf("error saving plan: %w", err)
				}
				fmt.Fprintf(out, "Enriched plan written to %s\n", output)
				return nil
			}

			data, err := format.FormatData(enriched, !format.IsJSONFile(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprint(out, data)
			return nil
		},
	}

	dispatchCmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "Remediation endpoint (default from config)")
	dispatchCmd.Flags().StringVarP(&output, "output", "o", "", "Write the enriched plan to this file")
	dispatchCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Show how each action would be classified without executing")

	return dispatchCmd
}
