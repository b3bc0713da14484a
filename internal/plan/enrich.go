// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"github.com/kusari-oss/triage/internal/core/models"
)

// Enrich returns a copy of the plan with one result action appended per
// dispatch outcome. The original actions, summary, confidence and evidence
// are carried over untouched and the input plan is never modified.
// Result actions carry risk "n/a" so they are never dispatched themselves.
func Enrich(plan *models.Plan, outcomes []models.DispatchOutcome) *models.Plan {
	if plan == nil {
		plan = Fallback()
	}
	if len(outcomes) == 0 {
		return plan
	}

	enriched := plan.Clone()
	enriched.Actions = make([]models.Action, 0, len(plan.Actions)+len(outcomes))
	enriched.Actions = append(enriched.Actions, plan.Actions...)

	for _, outcome := range outcomes {
		enriched.Actions = append(enriched.Actions, models.Action{
			Name:   models.ResultPrefix + outcome.ActionName,
			Params: outcome.AsParams(),
			Risk:   models.RiskNotApplicable,
		})
	}

	return enriched
}
