// SPDX-License-Identifier: Apache-2.0

package plan

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kusari-oss/triage/internal/core/format"
	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/kusari-oss/triage/internal/core/schema"
)

// FallbackSummary is the summary of the plan used when no analysis could be produced
const FallbackSummary = "Unable to generate analysis due to error."

//go:embed plan.schema.json
var planSchema []byte

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// Fallback returns the structurally valid plan used when generation fails
func Fallback() *models.Plan {
	return &models.Plan{
		Summary:    FallbackSummary,
		Confidence: 0.0,
		Actions:    []models.Action{},
		Evidence:   models.Evidence{},
	}
}

// Validate checks a JSON document against the plan schema and decodes it.
// Confidence is not clamped and risk tags are not rewritten.
func Validate(data []byte) (*models.Plan, error) {
	validatorOnce.Do(func() {
		validator, validatorErr = schema.Compile(planSchema)
	})
	if validatorErr != nil {
		return nil, validatorErr
	}

	if err := validator.ValidateBytes(data); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	var p models.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("error decoding plan: %w", err)
	}
	if p.Actions == nil {
		p.Actions = []models.Action{}
	}

	return &p, nil
}

// ExtractJSON strips a surrounding Markdown code fence from model output
func ExtractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// Load reads a plan from a YAML or JSON file and validates it
func Load(filePath string) (*models.Plan, error) {
	var raw interface{}
	if err := format.ParseFile(filePath, &raw); err != nil {
		return nil, fmt.Errorf("error parsing plan file: %w", err)
	}

	data, err := json.Marshal(format.NormalizeYAML(raw))
	if err != nil {
		return nil, fmt.Errorf("error converting plan file: %w", err)
	}

	return Validate(data)
}

// Save writes a plan to a file, format determined by file extension
func Save(filePath string, p *models.Plan) error {
	if err := format.WriteFile(filePath, p); err != nil {
		return fmt.Errorf("error writing plan to file: %w", err)
	}
	return nil
}
