// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kusari-oss/triage/internal/core/template"
)

// CommandExecutor runs a command whose arguments are templates over action params
type CommandExecutor struct {
	command     string
	args        []string
	workingDir  string
	environment []string
}

// CommandResult holds the result of command execution
type CommandResult struct {
	Command    string
	Args       []string
	Output     []byte
	Stderr     []byte
	ExitStatus int
}

// NewCommandExecutor creates a new command executor
func NewCommandExecutor(command string, args []string) *CommandExecutor {
	return &CommandExecutor{
		command: command,
		args:    args,
	}
}

// WithWorkingDir sets the working directory
func (e *CommandExecutor) WithWorkingDir(dir string) *CommandExecutor {
	e.workingDir = dir
	return e
}

// WithEnvironment adds environment variables on top of the process environment
func (e *CommandExecutor) WithEnvironment(env []string) *CommandExecutor {
	e.environment = env
	return e
}

// Render expands the command and argument templates with the given params
func (e *CommandExecutor) Render(params map[string]interface{}) (string, []string, error) {
	command, err := template.ProcessString(e.command, params)
	if err != nil {
		return "", nil, fmt.Errorf("error processing command: %w", err)
	}

	args := make([]string, 0, len(e.args))
	for _, arg := range e.args {
		processed, err := template.ProcessString(arg, params)
		if err != nil {
			return "", nil, fmt.Errorf("error processing argument: %w", err)
		}
		args = append(args, string(processed))
	}

	return string(command), args, nil
}

// Execute renders the templates and runs the command. The command is run
// directly, never through a shell.
func (e *CommandExecutor) Execute(ctx context.Context, params map[string]interface{}) (*CommandResult, error) {
	command, args, err := e.Render(params)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if e.workingDir != "" {
		cmd.Dir = e.workingDir
	}

	if len(e.environment) > 0 {
		cmd.Env = append(os.Environ(), e.environment...)
	}

	err = cmd.Run()

	result := &CommandResult{
		Command: command,
		Args:    args,
		Output:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		result.ExitStatus = exitError.ExitCode()
	}

	if err != nil {
		return result, fmt.Errorf("command %q failed: %w: %s", strings.Join(append([]string{command}, args...), " "), err, strings.TrimSpace(stderr.String()))
	}

	return result, nil
}
