// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	gotemplate "text/template"
	"unicode/utf8"

	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/kusari-oss/triage/internal/core/template"
)

const (
	// MaxSnippetLength bounds each knowledge document in the prompt
	MaxSnippetLength = 1000

	// MaxLogRows bounds the log sample in the prompt
	MaxLogRows = 20
)

// SystemPrompt describes the agent's responsibilities to the model
const SystemPrompt = `You are an incident response reasoning agent. You must:
1) Correlate metrics, logs and incidents.
2) Explain the likely root cause succinctly.
3) Propose a JSON plan with safe remediation actions.
Only return a JSON object in your final response.`

const userPromptText = `QUESTION:
{{.Question}}

CONTEXT_KB:
{{range $i, $doc := .Docs}}{{if $i}}

{{end}}TITLE: {{$doc.Title}}
CONTENT:
{{snippet $doc.Content}}{{end}}

CONTEXT_LOGS_SAMPLE:
{{.Logs}}

Return a strict JSON object with the following schema:
{
  "summary": "string summarising the suspected root cause",
  "confidence": number between 0 and 1,
  "actions": [
     {"name": "action_name", "params": {"key": "value"}, "risk": "low|medium|high"}
  ],
  "evidence": {"query_name": "string", "query_snippet": "string", "links": ["url"]}
}`

var userPrompt = template.Must("user", userPromptText, gotemplate.FuncMap{
	"snippet": func(s string) string { return truncate(s, MaxSnippetLength) },
})

// BuildPrompt returns the system and user messages for a question
func BuildPrompt(question string, logs []models.LogRow, docs []models.KnowledgeDoc) (string, string, error) {
	sample := logs
	if len(sample) > MaxLogRows {
		sample = sample[:MaxLogRows]
	}
	if sample == nil {
		sample = []models.LogRow{}
	}

	preview, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("error encoding log sample: %w", err)
	}

	var buf bytes.Buffer
	err = userPrompt.Execute(&buf, struct {
		Question string
		Docs     []models.KnowledgeDoc
		Logs     string
	}{
		Question: question,
		Docs:     docs,
		Logs:     string(preview),
	})
	if err != nil {
		return "", "", fmt.Errorf("error rendering prompt: %w", err)
	}

	return SystemPrompt, buf.String(), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
