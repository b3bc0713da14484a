// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds one webhook post
const DefaultTimeout = 15 * time.Second

// TeamsNotifier posts cards to an incoming webhook
type TeamsNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTeamsNotifier creates a new notifier. An empty webhook disables posting.
func NewTeamsNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *TeamsNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TeamsNotifier{webhookURL: webhookURL, httpClient: httpClient, logger: logger}
}

// Post sends the card and returns the response status. It returns nil when
// no webhook is configured or the post could not be made.
func (n *TeamsNotifier) Post(ctx context.Context, card map[string]interface{}) *int {
	if n.webhookURL == "" {
		n.logger.Warn("no teams webhook configured, skipping card post")
		return nil
	}

	payload, err := json.Marshal(card)
	if err != nil {
		n.logger.Error("failed to encode card", slog.String("error", err.Error()))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error("failed to create teams request", slog.String("error", err.Error()))
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("failed to post to teams", slog.String("error", err.Error()))
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	status := resp.StatusCode
	n.logger.Info("posted card to teams", slog.Int("status", status))
	return &status
}
