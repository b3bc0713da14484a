// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kusari-oss/triage/internal/core/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// FunctionKeyHeader carries the remediation endpoint key
const FunctionKeyHeader = "x-functions-key"

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 1 << 20

// HTTPExecutor posts action requests to the remediation endpoint as JSON
type HTTPExecutor struct {
	key        string
	httpClient *http.Client
}

// NewHTTPExecutor creates a new executor using http.DefaultClient.
// Per-call deadlines come from the context.
func NewHTTPExecutor() *HTTPExecutor {
	return &HTTPExecutor{httpClient: http.DefaultClient}
}

// WithKey sets the key sent in the x-functions-key header
func (e *HTTPExecutor) WithKey(key string) *HTTPExecutor {
	e.key = key
	return e
}

// WithHTTPClient sets the underlying HTTP client
func (e *HTTPExecutor) WithHTTPClient(c *http.Client) *HTTPExecutor {
	if c != nil {
		e.httpClient = c
	}
	return e
}

// Invoke sends one request and returns the status code and response body.
// A non-2xx status is not an error here; the caller decides what it means.
func (e *HTTPExecutor) Invoke(ctx context.Context, endpoint string, req models.ActionRequest) (int, []byte, error) {
	if req.Params == nil {
		req.Params = map[string]interface{}{}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("error encoding action request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.key != "" {
		httpReq.Header.Set(FunctionKeyHeader, e.key)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("error calling remediation endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, body, fmt.Errorf("error reading response: %w", err)
	}

	return resp.StatusCode, body, nil
}
