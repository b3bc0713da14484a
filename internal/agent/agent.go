// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/kusari-oss/triage/internal/notify"
	"github.com/kusari-oss/triage/internal/plan"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultQuestion is asked when the request carries none
const DefaultQuestion = "Why did latency spike in the last 30 minutes?"

// DefaultTopDocuments is the number of knowledge documents retrieved
const DefaultTopDocuments = 5

const tracerName = "github.com/kusari-oss/triage/internal/agent"

// LogsSource returns recent telemetry rows
type LogsSource interface {
	Query(ctx context.Context) ([]models.LogRow, error)
}

// KnowledgeSource returns documents relevant to a query
type KnowledgeSource interface {
	Search(ctx context.Context, query string, top int) ([]models.KnowledgeDoc, error)
}

// PlanGenerator produces an analysis plan. It never returns nil on a
// failure; it returns the fallback plan instead.
type PlanGenerator interface {
	Generate(ctx context.Context, question string, logs []models.LogRow, docs []models.KnowledgeDoc) *models.Plan
}

// Dispatcher executes the auto-executable actions of a plan
type Dispatcher interface {
	Dispatch(ctx context.Context, plan *models.Plan, endpoint string) []models.DispatchOutcome
}

// Notifier posts a summary card and returns the post status, if any
type Notifier interface {
	Post(ctx context.Context, card map[string]interface{}) *int
}

// Request is one invocation of the agent
type Request struct {
	Question string           `json:"question,omitempty"`
	Incident *models.Incident `json:"incident,omitempty"`
}

// Response is the result of one invocation
type Response struct {
	OK              bool         `json:"ok"`
	RunID           string       `json:"run_id"`
	TeamsPostStatus *int         `json:"teams_post_status"`
	Plan            *models.Plan `json:"plan"`
	KBDocsUsed      []string     `json:"kb_docs_used"`
}

// Dependencies are the collaborators of the agent
type Dependencies struct {
	Logs       LogsSource
	Knowledge  KnowledgeSource
	Generator  PlanGenerator
	Dispatcher Dispatcher
	Notifier   Notifier
}

// Options configures an Agent
type Options struct {
	RemediationEndpoint string
	TopDocuments        int
	Logger              *slog.Logger
	Now                 func() time.Time

	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
}

// Agent runs the incident pipeline: telemetry, knowledge, plan, dispatch,
// enrichment and notification
type Agent struct {
	deps     Dependencies
	endpoint string
	top      int
	logger   *slog.Logger
	now      func() time.Time
	tracer   trace.Tracer
}

// New creates a new agent
func New(deps Dependencies, options Options) *Agent {
	if options.TopDocuments <= 0 {
		options.TopDocuments = DefaultTopDocuments
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.TracerProvider == nil {
		options.TracerProvider = otel.GetTracerProvider()
	}

	return &Agent{
		deps:     deps,
		endpoint: options.RemediationEndpoint,
		top:      options.TopDocuments,
		logger:   options.Logger,
		now:      options.Now,
		tracer:   options.TracerProvider.Tracer(tracerName),
	}
}

// Run executes the pipeline once. Collaborator failures degrade the
// response; they never fail it.
func (a *Agent) Run(ctx context.Context, req Request) Response {
	runID := uuid.NewString()
	logger := a.logger.With(slog.String("run_id", runID))

	ctx, span := a.tracer.Start(ctx, "agent.run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	question := req.Question
	if question == "" {
		question = DefaultQuestion
	}
	incident := models.DefaultIncident(a.now())
	if req.Incident != nil {
		incident = *req.Incident
	}
	logger.Info("agent run started", slog.String("incident", incident.ID))

	logs := a.queryLogs(ctx, logger)
	docs := a.searchKnowledge(ctx, logger, question)

	genCtx, genSpan := a.tracer.Start(ctx, "agent.generate_plan")
	p := a.deps.Generator.Generate(genCtx, question, logs, docs)
	if p == nil {
		p = plan.Fallback()
	}
	genSpan.SetAttributes(
		attribute.Int("plan.actions", len(p.Actions)),
		attribute.Float64("plan.confidence", p.Confidence))
	genSpan.End()

	dispatchCtx, dispatchSpan := a.tracer.Start(ctx, "agent.dispatch")
	outcomes := a.deps.Dispatcher.Dispatch(dispatchCtx, p, a.endpoint)
	executed := 0
	for _, outcome := range outcomes {
		if outcome.Status == models.OutcomeExecuted {
			executed++
		}
	}
	dispatchSpan.SetAttributes(
		attribute.Int("dispatch.outcomes", len(outcomes)),
		attribute.Int("dispatch.executed", executed))
	dispatchSpan.End()

	enriched := plan.Enrich(p, outcomes)

	notifyCtx, notifySpan := a.tracer.Start(ctx, "agent.notify")
	status := a.deps.Notifier.Post(notifyCtx, notify.BuildCard(enriched, incident))
	if status != nil {
		notifySpan.SetAttributes(attribute.Int("notify.status", *status))
	}
	notifySpan.End()

	titles := make([]string, 0, len(docs))
	for _, doc := range docs {
		titles = append(titles, doc.Title)
	}

	logger.Info("agent run completed",
		slog.Int("logs", len(logs)),
		slog.Int("documents", len(docs)),
		slog.Int("actions", len(p.Actions)),
		slog.Int("executed", executed))

	return Response{
		OK:              true,
		RunID:           runID,
		TeamsPostStatus: status,
		Plan:            enriched,
		KBDocsUsed:      titles,
	}
}

func (a *Agent) queryLogs(ctx context.Context, logger *slog.Logger) []models.LogRow {
	ctx, span := a.tracer.Start(ctx, "agent.query_logs")
	defer span.End()

	rows, err := a.deps.Logs.Query(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("telemetry unavailable", slog.String("error", err.Error()))
		return []models.LogRow{}
	}
	span.SetAttributes(attribute.Int("logs.rows", len(rows)))
	return rows
}

func (a *Agent) searchKnowledge(ctx context.Context, logger *slog.Logger, question string) []models.KnowledgeDoc {
	ctx, span := a.tracer.Start(ctx, "agent.search_knowledge")
	defer span.End()

	docs, err := a.deps.Knowledge.Search(ctx, question, a.top)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("knowledge unavailable", slog.String("error", err.Error()))
		return []models.KnowledgeDoc{}
	}
	span.SetAttributes(attribute.Int("knowledge.documents", len(docs)))
	return docs
}
