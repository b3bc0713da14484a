// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/kusari-oss/triage/internal/agent"
	"github.com/kusari-oss/triage/internal/app"
	"github.com/kusari-oss/triage/internal/cli"
	"github.com/kusari-oss/triage/internal/core/format"
	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(env *cli.Env) *cobra.Command {
	var question, incidentFile string

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the incident pipeline once and print the response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := agent.Request{Question: question}
			if incidentFile != "" {
				var incident models.Incident
				if err := format.ParseFile(incidentFile, &incident); err != nil {
					return fmt.Errorf("error loading incident: %w", err)
				}
				req.Incident = &incident
			}

			flush, err := env.StartTracing(cmd, "triage")
			if err != nil {
				return err
			}
			defer flush()

			a, err := app.NewAgent(env.Config, env.Logger)
			if err != nil {
				return err
			}

			resp := a.Run(cmd.Context(), req)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(resp)
		},
	}

	analyzeCmd.Flags().StringVarP(&question, "question", "q", "", "Question to ask (default: "+agent.DefaultQuestion+")")
	analyzeCmd.Flags().StringVarP(&incidentFile, "incident", "i", "", "YAML or JSON file describing the incident")

	return analyzeCmd
}
