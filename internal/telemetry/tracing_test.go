package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestTracerProviderExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	tp, err := NewTracerProvider("leadintel-test", &buf)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "provider.chat", AttrProvider.String("chat-provider"))
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "provider.chat")
	assert.Contains(t, buf.String(), "chat-provider")
}
