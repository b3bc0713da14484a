// SPDX-License-Identifier: Apache-2.0

package executor_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/kusari-oss/triage/internal/core/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandExecutor(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping test on Windows")
	}

	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "test-file.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0644))

	tests := []struct {
		name        string
		command     string
		args        []string
		params      map[string]interface{}
		workingDir  string
		env         []string
		shouldError bool
		outputCheck func(t *testing.T, result *executor.CommandResult)
	}{
		{
			name:    "echo command",
			command: "echo",
			args:    []string{"restarting {{.service}}"},
			params:  map[string]interface{}{"service": "checkout"},
			outputCheck: func(t *testing.T, result *executor.CommandResult) {
				assert.Contains(t, string(result.Output), "restarting checkout")
				assert.Equal(t, []string{"restarting checkout"}, result.Args)
			},
		},
		{
			name:       "working directory",
			command:    "pwd",
			workingDir: tempDir,
			params:     map[string]interface{}{},
			outputCheck: func(t *testing.T, result *executor.CommandResult) {
				resolved, err := filepath.EvalSymlinks(tempDir)
				require.NoError(t, err)
				assert.Contains(t, string(result.Output), resolved)
			},
		},
		{
			name:    "environment",
			command: "sh",
			args:    []string{"-c", "echo $TRIAGE_TEST_VALUE"},
			env:     []string{"TRIAGE_TEST_VALUE=from-env"},
			params:  map[string]interface{}{},
			outputCheck: func(t *testing.T, result *executor.CommandResult) {
				assert.Contains(t, string(result.Output), "from-env")
			},
		},
		{
			name:    "params are not shell interpreted",
			command: "echo",
			args:    []string{"{{.value}}"},
			params:  map[string]interface{}{"value": "$(touch " + filepath.Join(tempDir, "pwned") + ")"},
			outputCheck: func(t *testing.T, result *executor.CommandResult) {
				_, err := os.Stat(filepath.Join(tempDir, "pwned"))
				assert.True(t, os.IsNotExist(err))
			},
		},
		{
			name:        "nonexistent command",
			command:     "thiscommanddoesnotexist",
			params:      map[string]interface{}{},
			shouldError: true,
		},
		{
			name:        "failing command",
			command:     "ls",
			args:        []string{filepath.Join(tempDir, "missing")},
			params:      map[string]interface{}{},
			shouldError: true,
			outputCheck: func(t *testing.T, result *executor.CommandResult) {
				require.NotNil(t, result)
				assert.NotEqual(t, 0, result.ExitStatus)
			},
		},
		{
			name:        "missing template parameter",
			command:     "echo",
			args:        []string{"{{.service}}"},
			params:      map[string]interface{}{},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := executor.NewCommandExecutor(tt.command, tt.args).
				WithWorkingDir(tt.workingDir).
				WithEnvironment(tt.env)

			result, err := exec.Execute(context.Background(), tt.params)
			if tt.shouldError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			if tt.outputCheck != nil {
				tt.outputCheck(t, result)
			}
		})
	}
}

func TestCommandExecutorContextCancel(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping test on Windows")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := executor.NewCommandExecutor("sleep", []string{"5"}).Execute(ctx, map[string]interface{}{})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	command, args, err := executor.NewCommandExecutor("kubectl", []string{"scale", "--replicas={{.replicas}}", "deploy/{{.service}}"}).
		Render(map[string]interface{}{"replicas": 4, "service": "orders"})

	require.NoError(t, err)
	assert.Equal(t, "kubectl", command)
	assert.Equal(t, []string{"scale", "--replicas=4", "deploy/orders"}, args)
}
