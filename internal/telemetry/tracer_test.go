package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := InitTracer("reeldiary-test", "test", &buf)
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := Tracer().Start(context.Background(), "hydrate")
	span.End()

	ShutdownTracer(context.Background())
	assert.Contains(t, buf.String(), "hydrate")
}
