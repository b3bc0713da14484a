// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kusari-oss/triage/internal/core/models"
)

const (
	// DefaultAPIVersion is the search REST API version
	DefaultAPIVersion = "2023-11-01"

	// DefaultTop is the number of documents retrieved per query
	DefaultTop = 5
)

// Config holds the knowledge source settings
type Config struct {
	Endpoint   string
	Index      string
	APIKey     string
	APIVersion string
}

// Client searches a document index
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

type searchRequest struct {
	Search string `json:"search"`
	Top    int    `json:"top"`
}

type searchResponse struct {
	Value []map[string]interface{} `json:"value"`
}

// NewClient creates a new knowledge client
func NewClient(config Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{config: config, httpClient: httpClient, logger: logger}
}

// Configured reports whether both endpoint and index are set
func (c *Client) Configured() bool {
	return c.config.Endpoint != "" && c.config.Index != ""
}

// Search returns up to top documents ranked by relevance to query.
// Failures are logged and yield no documents.
func (c *Client) Search(ctx context.Context, query string, top int) ([]models.KnowledgeDoc, error) {
	if !c.Configured() {
		c.logger.Info("search index not configured, skipping knowledge retrieval")
		return []models.KnowledgeDoc{}, nil
	}
	if top <= 0 {
		top = DefaultTop
	}

	docs, err := c.search(ctx, query, top)
	if err != nil {
		c.logger.Warn("knowledge search failed", slog.String("error", err.Error()))
		return []models.KnowledgeDoc{}, nil
	}
	c.logger.Info("knowledge search completed", slog.Int("documents", len(docs)))
	return docs, nil
}

func (c *Client) search(ctx context.Context, query string, top int) ([]models.KnowledgeDoc, error) {
	payload, err := json.Marshal(searchRequest{Search: query, Top: top})
	if err != nil {
		return nil, fmt.Errorf("error encoding search: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		strings.TrimRight(c.config.Endpoint, "/"), c.config.Index, c.config.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("api-key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	docs := make([]models.KnowledgeDoc, 0, len(decoded.Value))
	for _, item := range decoded.Value {
		docs = append(docs, models.KnowledgeDoc{
			ID:      field(item, "id", "doc_id"),
			Title:   field(item, "title"),
			Content: field(item, "content", "chunk"),
			URL:     field(item, "url"),
		})
	}
	return docs, nil
}

// field returns the first non-empty string among keys
func field(item map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := item[key]; ok && value != nil {
			s, isString := value.(string)
			if !isString {
				s = fmt.Sprint(value)
			}
			if s != "" {
				return s
			}
		}
	}
	return ""
}
