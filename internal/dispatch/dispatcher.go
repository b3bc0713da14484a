// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/kusari-oss/triage/internal/policy"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds each call to the action executor
	DefaultTimeout = 20 * time.Second

	// DefaultConcurrency is the number of actions dispatched at once
	DefaultConcurrency = 4

	// MaxDetailLength bounds the detail stored in an outcome
	MaxDetailLength = 300

	ReasonEndpointMissing = "remediation endpoint missing"
	ReasonRiskTooHigh     = "risk too high"
)

// ActionExecutor sends one remediation request to the remediation endpoint
type ActionExecutor interface {
	Invoke(ctx context.Context, endpoint string, req models.ActionRequest) (int, []byte, error)
}

// Classifier decides whether an action may run without approval
type Classifier interface {
	Classify(action models.Action) policy.Decision
}

// Options configures a Dispatcher. Limiter paces calls to the remediation
// endpoint and is shared by every Dispatch; nil means unpaced.
type Options struct {
	Timeout     time.Duration
	Concurrency int
	Limiter     *rate.Limiter
	Logger      *slog.Logger
}

// Dispatcher runs the auto-executable actions of a plan and records an
// outcome for every action
type Dispatcher struct {
	executor    ActionExecutor
	classifier  Classifier
	timeout     time.Duration
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewDispatcher creates a new dispatcher. A nil classifier falls back to
// the plain risk tier rule.
func NewDispatcher(executor ActionExecutor, classifier Classifier, options Options) *Dispatcher {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if classifier == nil {
		classifier = (*policy.Policy)(nil)
	}

	return &Dispatcher{
		executor:    executor,
		classifier:  classifier,
		timeout:     options.Timeout,
		concurrency: options.Concurrency,
		limiter:     options.Limiter,
		logger:      options.Logger,
	}
}

// Dispatch evaluates every action of the plan in order. Individual
// failures are captured as outcomes and never stop the remaining actions.
// Outcomes are returned in the order of plan.Actions regardless of when
// each call completes.
func (d *Dispatcher) Dispatch(ctx context.Context, plan *models.Plan, endpoint string) []models.DispatchOutcome {
	if plan == nil || len(plan.Actions) == 0 {
		return nil
	}

	if endpoint == "" {
		d.logger.Warn("remediation endpoint not configured, all actions skipped",
			slog.Int("actions", len(plan.Actions)))
	}

	outcomes := make([]models.DispatchOutcome, len(plan.Actions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i := range plan.Actions {
		action := plan.Actions[i]

		if endpoint == "" {
			outcomes[i] = skipped(action.Name, ReasonEndpointMissing)
			continue
		}

		if d.classifier.Classify(action) != policy.AutoExecute {
			d.logger.Info("action requires approval",
				slog.String("action", action.Name),
				slog.String("risk", action.Risk))
			outcomes[i] = skipped(action.Name, ReasonRiskTooHigh)
			continue
		}

		g.Go(func() error {
			if err := d.wait(gctx); err != nil {
				d.logger.Warn("remediation call not sent",
					slog.String("action", action.Name),
					slog.String("error", err.Error()))
				outcomes[i] = models.DispatchOutcome{
					ActionName: action.Name,
					Status:     models.OutcomeError,
					Detail:     Truncate(err.Error(), MaxDetailLength),
				}
				return nil
			}
			outcomes[i] = d.execute(gctx, endpoint, action)
			return nil
		})
	}

	// Workers never return errors; failures live in the outcomes.
	_ = g.Wait()

	return outcomes
}

// wait blocks until the limiter allows the next remediation call
func (d *Dispatcher) wait(ctx context.Context) error {
	if d.limiter == nil {
		return nil
	}
	return d.limiter.Wait(ctx)
}

// execute invokes the action executor for one action
func (d *Dispatcher) execute(ctx context.Context, endpoint string, action models.Action) models.DispatchOutcome {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	params := action.Params
	if params == nil {
		params = map[string]interface{}{}
	}

	start := time.Now()
	statusCode, body, err := d.executor.Invoke(callCtx, endpoint, models.ActionRequest{
		Action: action.Name,
		Params: params,
	})
	if err != nil {
		d.logger.Warn("remediation call failed",
			slog.String("action", action.Name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return models.DispatchOutcome{
			ActionName: action.Name,
			Status:     models.OutcomeError,
			Detail:     Truncate(err.Error(), MaxDetailLength),
		}
	}

	outcome := models.DispatchOutcome{
		ActionName: action.Name,
		Status:     models.OutcomeExecuted,
		StatusCode: statusCode,
		Detail:     Truncate(string(body), MaxDetailLength),
	}
	if statusCode < 200 || statusCode > 299 {
		outcome.Status = models.OutcomeError
		if outcome.Detail == "" {
			outcome.Detail = fmt.Sprintf("remediation endpoint returned status %d", statusCode)
		}
	}

	d.logger.Info("remediation call completed",
		slog.String("action", action.Name),
		slog.String("status", outcome.Status),
		slog.Int("status_code", statusCode),
		slog.Duration("duration", time.Since(start)))

	return outcome
}

func skipped(name, reason string) models.DispatchOutcome {
	return models.DispatchOutcome{
		ActionName: name,
		Status:     models.OutcomeSkipped,
		Detail:     reason,
	}
}

// Truncate shortens s to at most n runes
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
