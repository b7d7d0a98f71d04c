package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "WARN", Encoding: "json"}, &buf)

	l.Info("dropped")
	l.Warn("kept")
	require.NoError(t, l.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "warn", line["level"])
}

func TestUnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "loud", Encoding: "console"}, &buf)

	l.Debug("dropped")
	l.Info("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
