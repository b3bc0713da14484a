// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"fmt"

	"github.com/kusari-oss/triage/internal/core/config"
	"github.com/kusari-oss/triage/internal/core/executor"
)

const (
	// MessageSimulated is reported by the simulation handler
	MessageSimulated = "Action executed (simulation)."

	// MessageExecuted is reported by handlers that perform real work
	MessageExecuted = "Action executed."
)

// Handler performs a whitelisted action
type Handler interface {
	Handle(ctx context.Context, action string, params map[string]interface{}) (map[string]interface{}, error)
}

// Describer is implemented by handlers that report their own success message
type Describer interface {
	Message() string
}

// SimulationHandler acknowledges an action without side effects
type SimulationHandler struct{}

// Handle returns no output
func (SimulationHandler) Handle(ctx context.Context, action string, params map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}

// Message returns MessageSimulated
func (SimulationHandler) Message() string {
	return MessageSimulated
}

// CommandHandler runs a templated command for an action
type CommandHandler struct {
	executor *executor.CommandExecutor
}

// NewCommandHandler creates a command handler from its configuration
func NewCommandHandler(hc config.HandlerConfig) (*CommandHandler, error) {
	if hc.Command == "" {
		return nil, fmt.Errorf("command is required for command handlers")
	}

	exec := executor.NewCommandExecutor(hc.Command, hc.Args).
		WithWorkingDir(hc.WorkingDir).
		WithEnvironment(hc.Environment)

	return &CommandHandler{executor: exec}, nil
}

// Handle runs the command and reports what was run
func (h *CommandHandler) Handle(ctx context.Context, action string, params map[string]interface{}) (map[string]interface{}, error) {
	result, err := h.executor.Execute(ctx, params)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"command":     result.Command,
		"args":        result.Args,
		"stdout":      string(result.Output),
		"exit_status": result.ExitStatus,
	}, nil
}

// Message returns MessageExecuted
func (h *CommandHandler) Message() string {
	return MessageExecuted
}
