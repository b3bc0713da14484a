// SPDX-License-Identifier: Apache-2.0

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction(t *testing.T) {
	t.Run("NormalizedRiskDoesNotMutate", func(t *testing.T) {
		action := Action{Name: "scale_db", Risk: "MeDiUm"}

		assert.Equal(t, "medium", action.NormalizedRisk())
		assert.Equal(t, "MeDiUm", action.Risk)
	})

	t.Run("MissingRisk", func(t *testing.T) {
		action := Action{Name: "scale_db"}
		assert.Equal(t, "", action.NormalizedRisk())
	})

	t.Run("IsResult", func(t *testing.T) {
		assert.True(t, Action{Name: "result:scale_db"}.IsResult())
		assert.False(t, Action{Name: "scale_db"}.IsResult())
	})
}

func TestPlanClone(t *testing.T) {
	plan := &Plan{
		Summary:    "disk pressure on db-01",
		Confidence: 0.8,
		Actions: []Action{
			{Name: "scale_db", Params: map[string]interface{}{"tier": "P2"}, Risk: "low"},
		},
		Evidence: Evidence{QueryName: "errors", Links: []string{"https://example.com/a"}},
	}

	clone := plan.Clone()
	clone.Actions = append(clone.Actions, Action{Name: "extra"})
	clone.Evidence.Links[0] = "changed"

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "https://example.com/a", plan.Evidence.Links[0])
	assert.Equal(t, plan.Summary, clone.Summary)
	assert.Equal(t, plan.Confidence, clone.Confidence)
}

func TestDispatchOutcomeAsParams(t *testing.T) {
	t.Run("WithStatusCode", func(t *testing.T) {
		outcome := DispatchOutcome{ActionName: "scale_db", Status: OutcomeExecuted, StatusCode: 200, Detail: "{}"}
		params := outcome.AsParams()

		assert.Equal(t, "scale_db", params["action_name"])
		assert.Equal(t, OutcomeExecuted, params["status"])
		assert.Equal(t, 200, params["status_code"])
		assert.Equal(t, "{}", params["detail"])
	})

	t.Run("WithoutStatusCode", func(t *testing.T) {
		outcome := DispatchOutcome{ActionName: "scale_db", Status: OutcomeSkipped, Detail: "risk too high"}
		params := outcome.AsParams()

		_, hasCode := params["status_code"]
		assert.False(t, hasCode)
		assert.Equal(t, "risk too high", params["detail"])
	})
}

func TestDefaultIncident(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	incident := DefaultIncident(now)

	assert.Equal(t, "Service latency spike", incident.Title)
	assert.Equal(t, "unknown-service", incident.ServiceName)
	assert.Equal(t, "INC-XXXXX", incident.ID)
	assert.Equal(t, "2026-03-14T09:26:53", incident.StartTimeLocal)
}
