// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"github.com/kusari-oss/triage/internal/cli"
	"github.com/spf13/cobra"
)

// GetPlanCmd returns the plan command
func GetPlanCmd(env *cli.Env) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Work with saved analysis plans",
		Long:  `Validate saved plans and dispatch their low-risk actions without running the full pipeline.`,
	}

	planCmd.AddCommand(getValidateCmd(env))
	planCmd.AddCommand(getDispatchCmd(env))

	return planCmd
}
