// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"

	"github.com/kusari-oss/triage/internal/core/models"
	"github.com/stretchr/testify/mock"
)

// MockActionExecutor mocks the remediation endpoint client
type MockActionExecutor struct {
	mock.Mock
}

// Invoke mocks the Invoke method
func (m *MockActionExecutor) Invoke(ctx context.Context, endpoint string, req models.ActionRequest) (int, []byte, error) {
	args := m.Called(ctx, endpoint, req)
	var body []byte
	if b := args.Get(1); b != nil {
		body = b.([]byte)
	}
	return args.Int(0), body, args.Error(2)
}

// MockLogsSource mocks the telemetry source
type MockLogsSource struct {
	mock.Mock
}

// Query mocks the Query method
func (m *MockLogsSource) Query(ctx context.Context) ([]models.LogRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LogRow), args.Error(1)
}

// MockKnowledgeSource mocks the document search source
type MockKnowledgeSource struct {
	mock.Mock
}

// Search mocks the Search method
func (m *MockKnowledgeSource) Search(ctx context.Context, query string, top int) ([]models.KnowledgeDoc, error) {
	args := m.Called(ctx, query, top)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.KnowledgeDoc), args.Error(1)
}

// MockPlanGenerator mocks the language model plan generator
type MockPlanGenerator struct {
	mock.Mock
}

// Generate mocks the Generate method
func (m *MockPlanGenerator) Generate(ctx context.Context, question string, logs []models.LogRow, docs []models.KnowledgeDoc) *models.Plan {
	args := m.Called(ctx, question, logs, docs)
	return args.Get(0).(*models.Plan)
}

// MockNotifier mocks the chat notification sink
type MockNotifier struct {
	mock.Mock
}

// Post mocks the Post method
func (m *MockNotifier) Post(ctx context.Context, card map[string]interface{}) *int {
	args := m.Called(ctx, card)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*int)
}

// MockHandler mocks a guard action handler
type MockHandler struct {
	mock.Mock
}

// Handle mocks the Handle method
func (m *MockHandler) Handle(ctx context.Context, action string, params map[string]interface{}) (map[string]interface{}, error) {
	args := m.Called(ctx, action, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
