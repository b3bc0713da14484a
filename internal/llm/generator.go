// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/kusari-oss/triage/internal/plan"
)

const (
	// DefaultAPIVersion is the chat completions API version
	DefaultAPIVersion = "2024-02-01"

	// DefaultTemperature keeps answers close to deterministic
	DefaultTemperature = 0.2

	// DefaultTimeout bounds one completion call
	DefaultTimeout = 60 * time.Second
)

// ErrNotConfigured is returned when the endpoint, key or deployment is missing
var ErrNotConfigured = errors.New("language model not configured")

// Config holds the chat completion settings
type Config struct {
	Endpoint    string
	APIKey      string
	Deployment  string
	APIVersion  string
	Temperature float64
}

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generator asks a hosted chat model for an analysis plan
type Generator struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGenerator creates a new generator
func NewGenerator(config Config, httpClient *http.Client, logger *slog.Logger) *Generator {
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{config: config, httpClient: httpClient, logger: logger}
}

// Configured reports whether endpoint, key and deployment are all set
func (g *Generator) Configured() bool {
	return g.config.Endpoint != "" && g.config.APIKey != "" && g.config.Deployment != ""
}

// Generate returns the model's plan, or the fallback plan on any failure
func (g *Generator) Generate(ctx context.Context, question string, logs []models.LogRow, docs []models.KnowledgeDoc) *models.Plan {
	p, err := g.generate(ctx, question, logs, docs)
	if err != nil {
		g.logger.Warn("plan generation failed, using fallback plan", slog.String("error", err.Error()))
		return plan.Fallback()
	}
	g.logger.Info("plan generated",
		slog.Int("actions", len(p.Actions)),
		slog.Float64("confidence", p.Confidence))
	return p
}

func (g *Generator) generate(ctx context.Context, question string, logs []models.LogRow, docs []models.KnowledgeDoc) (*models.Plan, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	system, user, err := BuildPrompt(question, logs, docs)
	if err != nil {
		return nil, err
	}

	content, err := g.complete(ctx, []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, err
	}

	return plan.Validate([]byte(plan.ExtractJSON(content)))
}

// complete sends one chat completion request and returns the first choice
func (g *Generator) complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{Messages: messages, Temperature: g.config.Temperature})
	if err != nil {
		return "", fmt.Errorf("error encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(g.config.Endpoint, "/"), g.config.Deployment, g.config.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", g.config.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling language model: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("language model returned status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}

	return decoded.Choices[0].Message.Content, nil
}
