// SPDX-License-Identifier: Apache-2.0

// Package app builds the components of both binaries from a Config.
package app

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/kusari-oss/triage/internal/agent"
	"github.com/kusari-oss/triage/internal/core/config"
	"github.com/kusari-oss/triage/internal/dispatch"
	"github.com/kusari-oss/triage/internal/guard"
	"github.com/kusari-oss/triage/internal/llm"
	"github.com/kusari-oss/triage/internal/notify"
	"github.com/kusari-oss/triage/internal/policy"
	"github.com/kusari-oss/triage/internal/remediation/client"
	"github.com/kusari-oss/triage/internal/server"
	"github.com/kusari-oss/triage/internal/sources/knowledge"
	"github.com/kusari-oss/triage/internal/sources/logs"
	"golang.org/x/time/rate"
)

// NewDispatcher builds the dispatcher with its approval rules
func NewDispatcher(cfg *config.Config, logger *slog.Logger) (*dispatch.Dispatcher, error) {
	p, err := policy.New(cfg.Remediation.ApprovalRules)
	if err != nil {
		return nil, fmt.Errorf("error loading approval rules: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.Remediation.RateLimit > 0 {
		burst := cfg.Remediation.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Remediation.RateLimit), burst)
	}

	executor := client.NewHTTPExecutor().WithKey(cfg.Remediation.Key)
	return dispatch.NewDispatcher(executor, p, dispatch.Options{
		Timeout:     cfg.Remediation.Timeout,
		Concurrency: cfg.Remediation.Concurrency,
		Limiter:     limiter,
		Logger:      logger.With(slog.String("component", "dispatch")),
	}), nil
}

// NewAgent builds the agent and all its collaborators
func NewAgent(cfg *config.Config, logger *slog.Logger) (*agent.Agent, error) {
	dispatcher, err := NewDispatcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	logsClient, err := logs.NewClient(logs.Config{
		WorkspaceID: cfg.LogAnalytics.WorkspaceID,
		Token:       cfg.LogAnalytics.Token,
		Endpoint:    cfg.LogAnalytics.Endpoint,
		Query:       cfg.LogAnalytics.Query,
		Timespan:    cfg.LogAnalytics.Timespan,
	}, nil, nil, logger.With(slog.String("component", "logs")))
	if err != nil {
		return nil, err
	}

	deps := agent.Dependencies{
		Logs: logsClient,
		Knowledge: knowledge.NewClient(knowledge.Config{
			Endpoint:   cfg.Search.Endpoint,
			Index:      cfg.Search.Index,
			APIKey:     cfg.Search.APIKey,
			APIVersion: cfg.Search.APIVersion,
		}, nil, logger.With(slog.String("component", "knowledge"))),
		Generator: llm.NewGenerator(llm.Config{
			Endpoint:   cfg.OpenAI.Endpoint,
			APIKey:     cfg.OpenAI.APIKey,
			Deployment: cfg.OpenAI.Deployment,
			APIVersion: cfg.OpenAI.APIVersion,
		}, nil, logger.With(slog.String("component", "llm"))),
		Dispatcher: dispatcher,
		Notifier:   notify.NewTeamsNotifier(cfg.Teams.WebhookURL, nil, logger.With(slog.String("component", "notify"))),
	}

	return agent.New(deps, agent.Options{
		RemediationEndpoint: cfg.Remediation.URL,
		TopDocuments:        cfg.Search.Top,
		Logger:              logger.With(slog.String("component", "agent")),
	}), nil
}

// NewGuard builds the guard from the whitelist, handlers and schemas
func NewGuard(cfg *config.Config, logger *slog.Logger) (*guard.Guard, error) {
	whitelist := guard.NewWhitelist(cfg.Guard.AllowedActions)
	if whitelist.Len() == 0 {
		return nil, fmt.Errorf("guard requires at least one allowed action")
	}

	registry := guard.NewRegistry()
	if err := registry.Configure(cfg.Guard.Handlers, whitelist); err != nil {
		return nil, err
	}

	g := guard.New(whitelist, registry, logger.With(slog.String("component", "guard")))

	names := make([]string, 0, len(cfg.Guard.Schemas))
	for name := range cfg.Guard.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !whitelist.Contains(name) {
			return nil, fmt.Errorf("schema configured for action %q which is not whitelisted", name)
		}
		if err := g.SetSchema(name, cfg.Guard.Schemas[name]); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// NewRateLimiter builds a limiter from a rate and burst
func NewRateLimiter(rps float64, burst int) *server.RateLimiter {
	if rps <= 0 {
		return nil
	}
	return server.NewRateLimiter(rps, burst)
}
