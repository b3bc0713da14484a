// SPDX-License-Identifier: Apache-2.0

package logs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/monitor/query/azlogs"
	"github.com/kusari-oss/triage/internal/core/models"
)

const (
	// DefaultEndpoint is the Log Analytics query API
	DefaultEndpoint = "https://api.loganalytics.io"

	// DefaultTimespan bounds the query window
	DefaultTimespan = "PT30M"

	// DefaultQuery is used when no KQL query is configured
	DefaultQuery = "AppTraces | where Timestamp > ago(30m) | take 100"
)

// Config holds the telemetry source settings. Token, when set, is sent as
// is instead of acquiring one from the Azure credential chain.
type Config struct {
	WorkspaceID string
	Token       string
	Endpoint    string
	Query       string
	Timespan    string
}

// QueryAPI is the part of the Azure Monitor Logs client used here
type QueryAPI interface {
	QueryWorkspace(ctx context.Context, workspaceID string, body azlogs.QueryBody, options *azlogs.QueryWorkspaceOptions) (azlogs.QueryWorkspaceResponse, error)
}

// Client queries a Log Analytics workspace
type Client struct {
	config Config
	api    QueryAPI
	logger *slog.Logger
}

// NewClient creates a telemetry client. A nil credential means the static
// token when one is configured, otherwise DefaultAzureCredential. Nothing
// is built when no workspace is configured.
func NewClient(config Config, credential azcore.TokenCredential, options *azlogs.ClientOptions, logger *slog.Logger) (*Client, error) {
	c := newClient(config, nil, logger)
	config = c.config
	if config.WorkspaceID == "" {
		return c, nil
	}

	if credential == nil {
		var err error
		credential, err = newCredential(config.Token)
		if err != nil {
			return nil, fmt.Errorf("error creating azure credential: %w", err)
		}
	}

	if options == nil {
		options = &azlogs.ClientOptions{}
	}
	if config.Endpoint != DefaultEndpoint && len(options.Cloud.Services) == 0 {
		options.Cloud = cloud.Configuration{
			Services: map[cloud.ServiceName]cloud.ServiceConfiguration{
				azlogs.ServiceName: {Audience: config.Endpoint, Endpoint: config.Endpoint},
			},
		}
	}

	api, err := azlogs.NewClient(credential, options)
	if err != nil {
		return nil, fmt.Errorf("error creating log analytics client: %w", err)
	}
	c.api = api
	return c, nil
}

// newClient applies defaults and wraps api
func newClient(config Config, api QueryAPI, logger *slog.Logger) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")
	if config.Query == "" {
		config.Query = DefaultQuery
	}
	if config.Timespan == "" {
		config.Timespan = DefaultTimespan
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{config: config, api: api, logger: logger}
}

func newCredential(token string) (azcore.TokenCredential, error) {
	if token != "" {
		return StaticToken(token), nil
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

// StaticToken is a credential that always returns the same bearer token
type StaticToken string

// GetToken returns the token
func (t StaticToken) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: string(t), ExpiresOn: time.Now().Add(time.Hour)}, nil
}

// Configured reports whether a workspace is set
func (c *Client) Configured() bool {
	return c.config.WorkspaceID != "" && c.api != nil
}

// Query runs the configured query. Failures are logged and yield no rows.
func (c *Client) Query(ctx context.Context) ([]models.LogRow, error) {
	if !c.Configured() {
		c.logger.Info("log analytics workspace not configured, skipping telemetry")
		return []models.LogRow{}, nil
	}

	query := c.config.Query
	timespan := azlogs.TimeInterval(c.config.Timespan)
	resp, err := c.api.QueryWorkspace(ctx, c.config.WorkspaceID, azlogs.QueryBody{
		Query:    &query,
		Timespan: &timespan,
	}, nil)
	if err != nil {
		c.logger.Warn("log analytics query failed", slog.String("error", err.Error()))
		return []models.LogRow{}, nil
	}
	if resp.Error != nil {
		c.logger.Warn("log analytics returned partial results", slog.String("error", resp.Error.Error()))
	}

	rows := toRows(resp.Tables)
	c.logger.Info("log analytics query completed", slog.Int("rows", len(rows)))
	return rows, nil
}

// toRows zips column names with row values of the first table
func toRows(tables []*azlogs.Table) []models.LogRow {
	rows := []models.LogRow{}
	if len(tables) == 0 || tables[0] == nil {
		return rows
	}

	table := tables[0]
	for _, values := range table.Rows {
		row := make(models.LogRow, len(table.Columns))
		for i, column := range table.Columns {
			if i < len(values) && column != nil && column.Name != nil {
				row[*column.Name] = values[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}
