// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/kusari-oss/triage/internal/core/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kusari-oss/triage/internal/guard"

const (
	MessageInvalidJSON   = "Invalid JSON."
	MessageParamsNotJSON = "Invalid parameters: params must be an object"
	ReasonUnknown        = "unsafe or unknown action"
)

// Guard validates remediation requests against the whitelist and runs the
// handler of every accepted action
type Guard struct {
	whitelist *Whitelist
	registry  *Registry
	schemas   map[string]*schema.Validator
	logger    *slog.Logger
}

// New creates a guard. A nil whitelist means DefaultWhitelist, a nil
// registry means simulation for every action.
func New(whitelist *Whitelist, registry *Registry, logger *slog.Logger) *Guard {
	if whitelist == nil {
		whitelist = DefaultWhitelist()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Guard{
		whitelist: whitelist,
		registry:  registry,
		schemas:   make(map[string]*schema.Validator),
		logger:    logger,
	}
}

// SetSchema sets the JSON schema the params of an action must satisfy
func (g *Guard) SetSchema(action string, paramSchema map[string]interface{}) error {
	validator, err := schema.CompileMap(paramSchema)
	if err != nil {
		return fmt.Errorf("error compiling schema for action %q: %w", action, err)
	}
	g.schemas[action] = validator
	return nil
}

// Whitelist returns the guard's whitelist
func (g *Guard) Whitelist() *Whitelist {
	return g.whitelist
}

// Evaluate decides on a raw request body and returns the HTTP status and result
func (g *Guard) Evaluate(ctx context.Context, body []byte) (int, models.GuardResult) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "guard.evaluate")
	defer span.End()

	status, result := g.evaluate(ctx, body)
	span.SetAttributes(
		attribute.String("guard.action", result.Action),
		attribute.String("guard.status", result.Status),
		attribute.Int("guard.status_code", status))
	if result.Status == models.GuardDenied {
		span.AddEvent("denied", trace.WithAttributes(attribute.String("reason", result.Reason)))
	}
	return status, result
}

func (g *Guard) evaluate(ctx context.Context, body []byte) (int, models.GuardResult) {
	req, err := parseRequest(body)
	if err != nil {
		g.logger.Warn("rejected malformed request", slog.String("error", err.Error()))
		return http.StatusBadRequest, models.GuardResult{
			Status:  models.GuardError,
			Message: MessageInvalidJSON,
		}
	}

	if req.Action == "" || !g.whitelist.Contains(req.Action) {
		g.logger.Warn("denied action", slog.String("action", req.Action))
		return http.StatusForbidden, models.GuardResult{
			Status:         models.GuardDenied,
			Reason:         ReasonUnknown,
			AllowedActions: g.whitelist.List(),
		}
	}

	if req.paramsErr != nil {
		g.logger.Warn("rejected invalid parameters",
			slog.String("action", req.Action),
			slog.String("error", req.paramsErr.Error()))
		return http.StatusBadRequest, models.GuardResult{
			Status:  models.GuardError,
			Action:  req.Action,
			Message: MessageParamsNotJSON,
		}
	}

	if validator, ok := g.schemas[req.Action]; ok {
		if err := validator.ValidateValue(req.Params); err != nil {
			g.logger.Warn("rejected invalid parameters",
				slog.String("action", req.Action),
				slog.String("error", err.Error()))
			return http.StatusBadRequest, models.GuardResult{
				Status:  models.GuardError,
				Action:  req.Action,
				Message: fmt.Sprintf("Invalid parameters: %s", err.Error()),
			}
		}
	}

	handler := g.registry.Lookup(req.Action)
	output, err := handler.Handle(ctx, req.Action, req.Params)
	if err != nil {
		g.logger.Error("action failed",
			slog.String("action", req.Action),
			slog.String("error", err.Error()))
		return http.StatusInternalServerError, models.GuardResult{
			Status:  models.GuardError,
			Action:  req.Action,
			Message: fmt.Sprintf("Action failed: %s", err.Error()),
		}
	}

	message := MessageExecuted
	if d, ok := handler.(Describer); ok {
		message = d.Message()
	}

	g.logger.Info("action executed", slog.String("action", req.Action))
	return http.StatusOK, models.GuardResult{
		Status:  models.GuardOK,
		Action:  req.Action,
		Params:  req.Params,
		Message: message,
		Output:  output,
	}
}

// request is a decoded remediation request. paramsErr is set when params
// is present but not an object.
type request struct {
	models.ActionRequest
	paramsErr error
}

// parseRequest requires a JSON object. An action that is not a string is
// left empty so it is denied like any unknown action.
func parseRequest(body []byte) (request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return request{}, err
	}
	if fields == nil {
		return request{}, fmt.Errorf("request body is not an object")
	}

	var req request
	if raw, ok := fields["action"]; ok {
		if err := json.Unmarshal(raw, &req.Action); err != nil {
			req.Action = ""
		}
	}
	if raw, ok := fields["params"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &req.Params); err != nil {
			req.Params = nil
			req.paramsErr = err
		}
	}
	if req.Params == nil {
		req.Params = map[string]interface{}{}
	}
	return req, nil
}
