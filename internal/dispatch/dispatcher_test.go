// SPDX-License-Identifier: Apache-2.0

package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/kusari-oss/triage/internal/dispatch"
	"github.com/kusari-oss/triage/internal/plan"
	"github.com/kusari-oss/triage/internal/policy"
	"github.com/kusari-oss/triage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const endpoint = "https://remediation.example.com/api/remediate"

func forAction(name string) interface{} {
	return mock.MatchedBy(func(req models.ActionRequest) bool { return req.Action == name })
}

func TestDispatchEndpointMissing(t *testing.T) {
	executor := new(testutil.MockActionExecutor)
	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{})

	p := &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Risk: "low"},
		{Name: "toggle_feature_flag", Risk: "medium"},
		{Name: "restart_service", Risk: "high"},
		{Name: "unknown"},
	}}

	outcomes := d.Dispatch(context.Background(), p, "")

	require.Len(t, outcomes, 4)
	for i, outcome := range outcomes {
		assert.Equal(t, p.Actions[i].Name, outcome.ActionName)
		assert.Equal(t, models.OutcomeSkipped, outcome.Status)
		assert.Contains(t, outcome.Detail, "remediation endpoint missing")
	}
	executor.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchRiskGating(t *testing.T) {
	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, forAction("scale_db")).
		Return(200, []byte(`{"status":"ok"}`), nil)
	executor.On("Invoke", mock.Anything, endpoint, forAction("toggle_feature_flag")).
		Return(200, []byte(`{"status":"ok"}`), nil)

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{})
	p := &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Params: map[string]interface{}{"tier": "P2"}, Risk: "LOW"},
		{Name: "restart_service", Risk: "high"},
		{Name: "toggle_feature_flag", Risk: "Medium"},
		{Name: "drop_table"},
	}}

	outcomes := d.Dispatch(context.Background(), p, endpoint)

	require.Len(t, outcomes, 4)
	assert.Equal(t, models.OutcomeExecuted, outcomes[0].Status)
	assert.Equal(t, 200, outcomes[0].StatusCode)
	assert.Equal(t, `{"status":"ok"}`, outcomes[0].Detail)

	assert.Equal(t, models.OutcomeSkipped, outcomes[1].Status)
	assert.Equal(t, dispatch.ReasonRiskTooHigh, outcomes[1].Detail)

	assert.Equal(t, models.OutcomeExecuted, outcomes[2].Status)

	assert.Equal(t, models.OutcomeSkipped, outcomes[3].Status)
	assert.Equal(t, dispatch.ReasonRiskTooHigh, outcomes[3].Detail)

	executor.AssertNumberOfCalls(t, "Invoke", 2)
}

func TestDispatchPassesParamsVerbatim(t *testing.T) {
	params := map[string]interface{}{
		"tier":   "P2",
		"nested": map[string]interface{}{"a": []interface{}{1.0, "two", nil}},
	}

	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, models.ActionRequest{Action: "scale_db", Params: params}).
		Return(200, []byte("ok"), nil)

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{})
	d.Dispatch(context.Background(), &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Params: params, Risk: "low"},
	}}, endpoint)

	executor.AssertExpectations(t)
}

func TestDispatchNilParamsSentAsEmptyObject(t *testing.T) {
	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, models.ActionRequest{Action: "scale_db", Params: map[string]interface{}{}}).
		Return(200, nil, nil)

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{})
	outcomes := d.Dispatch(context.Background(), &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Risk: "low"},
	}}, endpoint)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.OutcomeExecuted, outcomes[0].Status)
	executor.AssertExpectations(t)
}

func TestDispatchFailureIsolation(t *testing.T) {
	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, forAction("scale_db")).
		Return(200, []byte("scaled"), nil)
	executor.On("Invoke", mock.Anything, endpoint, forAction("toggle_feature_flag")).
		Return(0, nil, errors.New("dial tcp: connection refused"))

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{})
	p := &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Risk: "low"},
		{Name: "toggle_feature_flag", Risk: "low"},
		{Name: "restart_service", Risk: "high"},
	}}

	outcomes := d.Dispatch(context.Background(), p, endpoint)

	require.Len(t, outcomes, 3)
	assert.Equal(t, models.OutcomeExecuted, outcomes[0].Status)
	assert.Equal(t, models.OutcomeError, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Detail, "connection refused")
	assert.Equal(t, models.OutcomeSkipped, outcomes[2].Status)
}

func TestDispatchNon2xxIsError(t *testing.T) {
	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, forAction("scale_db")).
		Return(403, []byte(`{"status":"denied"}`), nil)
	executor.On("Invoke", mock.Anything, endpoint, forAction("restart_service")).
		Return(500, nil, nil)

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{})
	outcomes := d.Dispatch(context.Background(), &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Risk: "low"},
		{Name: "restart_service", Risk: "low"},
	}}, endpoint)

	require.Len(t, outcomes, 2)
	assert.Equal(t, models.OutcomeError, outcomes[0].Status)
	assert.Equal(t, 403, outcomes[0].StatusCode)
	assert.Equal(t, `{"status":"denied"}`, outcomes[0].Detail)

	assert.Equal(t, models.OutcomeError, outcomes[1].Status)
	assert.Equal(t, 500, outcomes[1].StatusCode)
	assert.Contains(t, outcomes[1].Detail, "status 500")
}

func TestDispatchTruncatesDetail(t *testing.T) {
	long := strings.Repeat("é", 1000)

	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, forAction("scale_db")).
		Return(200, []byte(long), nil)
	executor.On("Invoke", mock.Anything, endpoint, forAction("restart_service")).
		Return(0, nil, errors.New(long))

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{})
	outcomes := d.Dispatch(context.Background(), &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Risk: "low"},
		{Name: "restart_service", Risk: "low"},
	}}, endpoint)

	for _, outcome := range outcomes {
		assert.Equal(t, dispatch.MaxDetailLength, len([]rune(outcome.Detail)))
	}
}

func TestDispatchTimeout(t *testing.T) {
	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, forAction("scale_db")).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return(0, nil, context.DeadlineExceeded)

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{Timeout: 10 * time.Millisecond})
	outcomes := d.Dispatch(context.Background(), &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Risk: "low"},
	}}, endpoint)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.OutcomeError, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Detail, "deadline exceeded")
}

// slowExecutor completes requests in reverse order to prove that outcome
// order follows plan order rather than completion order.
type slowExecutor struct {
	mu    sync.Mutex
	delay map[string]time.Duration
	seen  []string
}

func (s *slowExecutor) Invoke(ctx context.Context, _ string, req models.ActionRequest) (int, []byte, error) {
	time.Sleep(s.delay[req.Action])
	s.mu.Lock()
	s.seen = append(s.seen, req.Action)
	s.mu.Unlock()
	return 200, []byte(req.Action), nil
}

func TestDispatchConcurrentPreservesOrder(t *testing.T) {
	executor := &slowExecutor{delay: map[string]time.Duration{
		"a": 60 * time.Millisecond,
		"b": 30 * time.Millisecond,
		"c": 0,
	}}

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{Concurrency: 3})
	outcomes := d.Dispatch(context.Background(), &models.Plan{Actions: []models.Action{
		{Name: "a", Risk: "low"},
		{Name: "b", Risk: "low"},
		{Name: "c", Risk: "low"},
	}}, endpoint)

	require.Len(t, outcomes, 3)
	assert.Equal(t, "a", outcomes[0].Detail)
	assert.Equal(t, "b", outcomes[1].Detail)
	assert.Equal(t, "c", outcomes[2].Detail)
	assert.Equal(t, []string{"c", "b", "a"}, executor.seen)
}

func TestDispatchWithApprovalRules(t *testing.T) {
	p, err := policy.New([]string{"action.name == 'restart_service'"})
	require.NoError(t, err)

	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, forAction("scale_db")).Return(200, []byte("ok"), nil)

	d := dispatch.NewDispatcher(executor, p, dispatch.Options{})
	outcomes := d.Dispatch(context.Background(), &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Risk: "low"},
		{Name: "restart_service", Risk: "low"},
	}}, endpoint)

	assert.Equal(t, models.OutcomeExecuted, outcomes[0].Status)
	assert.Equal(t, models.OutcomeSkipped, outcomes[1].Status)
	executor.AssertNumberOfCalls(t, "Invoke", 1)
}

func TestDispatchEmptyPlan(t *testing.T) {
	d := dispatch.NewDispatcher(new(testutil.MockActionExecutor), nil, dispatch.Options{})

	assert.Empty(t, d.Dispatch(context.Background(), &models.Plan{}, endpoint))
	assert.Empty(t, d.Dispatch(context.Background(), nil, endpoint))
}

func TestRedispatchEnrichedPlanNeverExecutesResults(t *testing.T) {
	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, forAction("scale_db")).Return(200, []byte("ok"), nil)

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{})
	original := &models.Plan{Actions: []models.Action{{Name: "scale_db", Risk: "low"}}}

	first := d.Dispatch(context.Background(), original, endpoint)
	enriched := plan.Enrich(original, first)

	second := d.Dispatch(context.Background(), enriched, endpoint)

	require.Len(t, second, 2)
	assert.Equal(t, models.OutcomeExecuted, second[0].Status)
	assert.Equal(t, "result:scale_db", second[1].ActionName)
	assert.Equal(t, models.OutcomeSkipped, second[1].Status)
	assert.Equal(t, dispatch.ReasonRiskTooHigh, second[1].Detail)
	executor.AssertNumberOfCalls(t, "Invoke", 2)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", dispatch.Truncate("abc", 5))
	assert.Equal(t, "ab", dispatch.Truncate("abc", 2))
	assert.Equal(t, "日本", dispatch.Truncate("日本語", 2))
	assert.Equal(t, "", dispatch.Truncate("", 2))
}

func TestDispatchPacedByLimiter(t *testing.T) {
	executor := new(testutil.MockActionExecutor)
	executor.On("Invoke", mock.Anything, endpoint, forAction("scale_db")).Return(200, []byte("ok"), nil)

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{
		Limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
	})

	start := time.Now()
	outcomes := d.Dispatch(context.Background(), &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Risk: "low"},
		{Name: "scale_db", Risk: "low"},
		{Name: "scale_db", Risk: "low"},
	}}, endpoint)

	require.Len(t, outcomes, 3)
	for _, outcome := range outcomes {
		assert.Equal(t, models.OutcomeExecuted, outcome.Status)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestDispatchLimiterCancelled(t *testing.T) {
	executor := new(testutil.MockActionExecutor)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := dispatch.NewDispatcher(executor, nil, dispatch.Options{Limiter: limiter})
	outcomes := d.Dispatch(ctx, &models.Plan{Actions: []models.Action{
		{Name: "scale_db", Risk: "low"},
	}}, endpoint)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.OutcomeError, outcomes[0].Status)
	executor.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}
