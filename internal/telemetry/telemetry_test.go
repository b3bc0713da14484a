// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func restoreGlobal(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		otel.SetTextMapPropagator(prevPropagator)
	})
}

func TestSetupDisabled(t *testing.T) {
	restoreGlobal(t)
	before := otel.GetTracerProvider()

	for _, exporter := range []string{"", ExporterNone, "NONE"} {
		p, err := Setup(context.Background(), Config{Exporter: exporter}, nil, nil)
		require.NoError(t, err)
		assert.False(t, p.Enabled())
		assert.NotNil(t, p.TracerProvider())
		assert.NoError(t, p.Shutdown(context.Background()))
	}
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetupUnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{Exporter: "zipkin"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zipkin")
	assert.False(t, ValidExporter("zipkin"))
}

func TestSetupStdout(t *testing.T) {
	restoreGlobal(t)

	var buf bytes.Buffer
	p, err := Setup(context.Background(), Config{
		Exporter:       ExporterStdout,
		SampleRate:     1,
		ServiceName:    "triage",
		ServiceVersion: "test",
	}, &buf, nil)
	require.NoError(t, err)
	require.True(t, p.Enabled())
	assert.Same(t, p.TracerProvider(), otel.GetTracerProvider())

	_, span := otel.Tracer("test").Start(context.Background(), "agent.run")
	assert.True(t, span.IsRecording())
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"agent.run"`)
	assert.Contains(t, buf.String(), "triage")
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
