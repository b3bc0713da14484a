// SPDX-License-Identifier: Apache-2.0

package models

import (
	"strings"
	"time"
)

// Risk tiers understood by the risk policy
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"

	// RiskNotApplicable marks synthesized result records; it is never auto-executed
	RiskNotApplicable = "n/a"
)

// Dispatch outcome statuses
const (
	OutcomeExecuted = "executed"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

// Guard result statuses
const (
	GuardOK     = "ok"
	GuardDenied = "denied"
	GuardError  = "error"
)

// DefaultActions is the guard whitelist used when none is configured
var DefaultActions = []string{"scale_db", "toggle_feature_flag", "restart_service"}

// ResultPrefix prefixes the name of every synthesized result action
const ResultPrefix = "result:"

// Action represents one proposed or executed remediation step
type Action struct {
	Name   string                 `json:"name" yaml:"name"`
	Params map[string]interface{} `json:"params" yaml:"params"`
	Risk   string                 `json:"risk,omitempty" yaml:"risk,omitempty"`
}

// NormalizedRisk returns the lowercase risk tag without modifying the action
func (a Action) NormalizedRisk() string {
	return strings.ToLower(a.Risk)
}

// IsResult reports whether the action is a synthesized result record
func (a Action) IsResult() bool {
	return strings.HasPrefix(a.Name, ResultPrefix)
}

// Evidence holds the supporting material the generator cites
type Evidence struct {
	QueryName    string   `json:"query_name,omitempty" yaml:"query_name,omitempty"`
	QuerySnippet string   `json:"query_snippet,omitempty" yaml:"query_snippet,omitempty"`
	Links        []string `json:"links,omitempty" yaml:"links,omitempty"`
}

// Plan is the analysis produced once per invocation by the plan generator
type Plan struct {
	Summary    string   `json:"summary" yaml:"summary"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Actions    []Action `json:"actions" yaml:"actions"`
	Evidence   Evidence `json:"evidence" yaml:"evidence"`
}

// Clone returns a copy of the plan whose action slice and links can be
// appended to without affecting the original. Params maps are shared.
func (p *Plan) Clone() *Plan {
	clone := *p
	clone.Actions = append([]Action(nil), p.Actions...)
	if p.Evidence.Links != nil {
		clone.Evidence.Links = append([]string(nil), p.Evidence.Links...)
	}
	return &clone
}

// ActionRequest is the payload exchanged between the dispatcher and the guard
type ActionRequest struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// DispatchOutcome records what happened to one action during dispatch
type DispatchOutcome struct {
	ActionName string `json:"action_name"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	Detail     string `json:"detail"`
}

// AsParams converts the outcome into a params map for audit records
func (o DispatchOutcome) AsParams() map[string]interface{} {
	params := map[string]interface{}{
		"action_name": o.ActionName,
		"status":      o.Status,
		"detail":      o.Detail,
	}
	if o.StatusCode != 0 {
		params["status_code"] = o.StatusCode
	}
	return params
}

// GuardResult is the structured answer of the action guard
type GuardResult struct {
	Status         string                 `json:"status"`
	Action         string                 `json:"action,omitempty"`
	Params         map[string]interface{} `json:"params,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	AllowedActions []string               `json:"allowed_actions,omitempty"`
	Output         map[string]interface{} `json:"output,omitempty"`
}

// KnowledgeDoc is a ranked document returned by the knowledge source
type KnowledgeDoc struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// LogRow maps column names to values for one telemetry record
type LogRow map[string]interface{}

// Incident describes the incident being analyzed, used for the summary card
type Incident struct {
	Title          string `json:"title" yaml:"title"`
	Environment    string `json:"environment" yaml:"environment"`
	Severity       string `json:"severity" yaml:"severity"`
	StartTimeLocal string `json:"start_time_local" yaml:"start_time_local"`
	ID             string `json:"id" yaml:"id"`
	ServiceName    string `json:"service_name" yaml:"service_name"`
	Region         string `json:"region" yaml:"region"`
	ChangeRef      string `json:"change_ref" yaml:"change_ref"`
	DashboardURL   string `json:"dashboard_url" yaml:"dashboard_url"`
	IncidentURL    string `json:"incident_url" yaml:"incident_url"`
}

// DefaultIncident returns the placeholder incident used when the caller supplies none
func DefaultIncident(now time.Time) Incident {
	return Incident{
		Title:          "Service latency spike",
		Environment:    "prod",
		Severity:       "Sev2",
		StartTimeLocal: now.Format("2006-01-02T15:04:05"),
		ID:             "INC-XXXXX",
		ServiceName:    "unknown-service",
		Region:         "unknown-region",
		ChangeRef:      "unknown-change",
		DashboardURL:   "https://portal.azure.com/",
		IncidentURL:    "https://dev.azure.com/",
	}
}
