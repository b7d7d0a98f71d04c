package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "lendloop"}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-1))
	assert.Equal(t, 1.0, clamp(4))
	assert.Equal(t, 0.25, clamp(0.25))
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions("collector:4318"), 2)
	assert.Len(t, exporterOptions("https://collector.example.com/v1/traces"), 1)
}
