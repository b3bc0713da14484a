// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kusari-oss/triage/internal/core/models"
)

// BuildCard renders the Adaptive Card summarising an analysis
func BuildCard(plan *models.Plan, incident models.Incident) map[string]interface{} {
	if plan == nil {
		plan = &models.Plan{}
	}

	lines := make([]string, 0, len(plan.Actions))
	for _, action := range plan.Actions {
		params := action.Params
		if params == nil {
			params = map[string]interface{}{}
		}
		encoded, err := json.Marshal(params)
		if err != nil {
			encoded = []byte("{}")
		}
		lines = append(lines, fmt.Sprintf("• %s %s", action.Name, encoded))
	}

	changeRef := incident.ChangeRef
	if changeRef == "" {
		changeRef = models.RiskNotApplicable
	}

	return map[string]interface{}{
		"$schema": "https://adaptivecards.io/schemas/adaptive-card.json",
		"type":    "AdaptiveCard",
		"version": "1.5",
		"msteams": map[string]interface{}{"width": "Full"},
		"body": []interface{}{
			textBlock(fmt.Sprintf("RCA: %s", incident.Title), map[string]interface{}{"size": "Large", "weight": "Bolder"}),
			textBlock(fmt.Sprintf("Environment: %s • Severity: %s • Started: %s",
				incident.Environment, incident.Severity, incident.StartTimeLocal), map[string]interface{}{"isSubtle": true}),
			map[string]interface{}{
				"type": "FactSet",
				"facts": []interface{}{
					fact("Incident ID", incident.ID),
					fact("Service", incident.ServiceName),
					fact("Region", incident.Region),
					fact("Change Correlation", changeRef),
				},
			},
			heading("Suspected Root Cause"),
			textBlock(plan.Summary, nil),
			heading("Actions Executed"),
			textBlock(strings.Join(lines, "\n"), nil),
			heading("Query & Evidence"),
			labelled("Query: ", plan.Evidence.QueryName),
			textBlock(plan.Evidence.QuerySnippet, map[string]interface{}{"fontType": "Monospace"}),
			labelled("Evidence: ", strings.Join(plan.Evidence.Links, ", ")),
		},
		"actions": []interface{}{
			openURL("View Dashboard", incident.DashboardURL),
			openURL("Open Incident", incident.IncidentURL),
		},
	}
}

func textBlock(text string, extra map[string]interface{}) map[string]interface{} {
	block := map[string]interface{}{"type": "TextBlock", "text": text, "wrap": true}
	for k, v := range extra {
		block[k] = v
	}
	return block
}

func heading(text string) map[string]interface{} {
	return map[string]interface{}{"type": "TextBlock", "text": text, "weight": "Bolder", "spacing": "Medium"}
}

func labelled(label, value string) map[string]interface{} {
	return map[string]interface{}{
		"type": "RichTextBlock",
		"inlines": []interface{}{
			map[string]interface{}{"type": "TextRun", "text": label, "weight": "Bolder"},
			map[string]interface{}{"type": "TextRun", "text": value, "isSubtle": true},
		},
	}
}

func fact(title, value string) map[string]interface{} {
	return map[string]interface{}{"title": title, "value": value}
}

func openURL(title, url string) map[string]interface{} {
	if url == "" {
		url = "https://"
	}
	return map[string]interface{}{"type": "Action.OpenUrl", "title": title, "url": url}
}
