// SPDX-License-Identifier: Apache-2.0

package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kusari-oss/triage/internal/agent"
	"github.com/kusari-oss/triage/internal/app"
	"github.com/kusari-oss/triage/internal/core/config"
	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/kusari-oss/triage/internal/guard"
	"github.com/kusari-oss/triage/internal/logging"
	"github.com/kusari-oss/triage/internal/plan"
	"github.com/kusari-oss/triage/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentUnconfigured(t *testing.T) {
	a, err := app.NewAgent(config.NewDefaultConfig(), logging.Discard())
	require.NoError(t, err)

	resp := a.Run(context.Background(), agent.Request{})

	assert.True(t, resp.OK)
	assert.Nil(t, resp.TeamsPostStatus)
	assert.Equal(t, plan.FallbackSummary, resp.Plan.Summary)
	assert.Empty(t, resp.KBDocsUsed)
}

func TestNewDispatcherInvalidRule(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Remediation.ApprovalRules = []string{"action.name =="}

	_, err := app.NewDispatcher(cfg, logging.Discard())
	assert.Error(t, err)
}

// The dispatcher and the guard talk to each other over HTTP.
func TestDispatcherAgainstGuard(t *testing.T) {
	cfg := config.NewDefaultConfig()

	g, err := app.NewGuard(cfg, logging.Discard())
	require.NoError(t, err)
	srv := httptest.NewServer(server.NewGuardHandler(g, server.Options{}))
	defer srv.Close()

	dispatcher, err := app.NewDispatcher(cfg, logging.Discard())
	require.NoError(t, err)

	p := &models.Plan{
		Summary: "x",
		Actions: []models.Action{
			{Name: "scale_db", Params: map[string]interface{}{"tier": "P4"}, Risk: "low"},
			{Name: "delete_everything", Risk: "medium"},
			{Name: "restart_service", Risk: "HIGH"},
		},
	}

	outcomes := dispatcher.Dispatch(context.Background(), p, srv.URL+"/api/remediate")
	require.Len(t, outcomes, 3)

	assert.Equal(t, models.OutcomeExecuted, outcomes[0].Status)
	assert.Equal(t, http.StatusOK, outcomes[0].StatusCode)
	assert.Contains(t, outcomes[0].Detail, guard.MessageSimulated)

	assert.Equal(t, models.OutcomeError, outcomes[1].Status)
	assert.Equal(t, http.StatusForbidden, outcomes[1].StatusCode)
	assert.Contains(t, outcomes[1].Detail, "unsafe or unknown action")

	assert.Equal(t, models.OutcomeSkipped, outcomes[2].Status)

	enriched := plan.Enrich(p, outcomes)
	again := dispatcher.Dispatch(context.Background(), enriched, srv.URL+"/api/remediate")
	for _, outcome := range again[3:] {
		assert.Equal(t, models.OutcomeSkipped, outcome.Status)
	}
}

func TestNewGuard(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Guard.Schemas = map[string]map[string]interface{}{
		"scale_db": {"type": "object", "required": []interface{}{"tier"}},
	}

	g, err := app.NewGuard(cfg, logging.Discard())
	require.NoError(t, err)

	status, _ := g.Evaluate(context.Background(), []byte(`{"action":"scale_db","params":{}}`))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestNewGuardRejectsUnlistedBindings(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Guard.Schemas = map[string]map[string]interface{}{"drop_db": {"type": "object"}}
	_, err := app.NewGuard(cfg, logging.Discard())
	assert.Error(t, err)

	cfg = config.NewDefaultConfig()
	cfg.Guard.Handlers = map[string]config.HandlerConfig{"drop_db": {Command: "echo"}}
	_, err = app.NewGuard(cfg, logging.Discard())
	assert.Error(t, err)

	cfg = config.NewDefaultConfig()
	cfg.Guard.AllowedActions = nil
	_, err = app.NewGuard(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestNewRateLimiter(t *testing.T) {
	assert.Nil(t, app.NewRateLimiter(0, 5))
	assert.True(t, app.NewRateLimiter(2, 5).Enabled())
}

func TestDispatcherStaysUnderGuardRateLimit(t *testing.T) {
	cfg := config.NewDefaultConfig()

	g, err := app.NewGuard(cfg, logging.Discard())
	require.NoError(t, err)
	limiter := app.NewRateLimiter(cfg.Guard.RateLimit, cfg.Guard.RateBurst)
	require.True(t, limiter.Enabled())
	srv := httptest.NewServer(server.NewGuardHandler(g, server.Options{RateLimiter: limiter}))
	defer srv.Close()

	dispatcher, err := app.NewDispatcher(cfg, logging.Discard())
	require.NoError(t, err)

	p := &models.Plan{Summary: "x"}
	for i := 0; i < 14; i++ {
		p.Actions = append(p.Actions, models.Action{
			Name:   "scale_db",
			Params: map[string]interface{}{"tier": "P4"},
			Risk:   "low",
		})
	}

	outcomes := dispatcher.Dispatch(context.Background(), p, srv.URL+"/api/remediate")
	require.Len(t, outcomes, 14)
	for i, outcome := range outcomes {
		assert.Equal(t, models.OutcomeExecuted, outcome.Status, "action %d: %s", i, outcome.Detail)
		assert.Equal(t, http.StatusOK, outcome.StatusCode)
	}
}
