package clog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, cfg *Config) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := New(cfg, WithWriter(buf))
	require.NoError(t, err)
	return logger, buf
}

func TestNewValidation(t *testing.T) {
	_, err := New(&Config{Level: "bogus"})
	assert.Error(t, err)

	_, err = New(&Config{Format: "xml"})
	assert.Error(t, err)

	logger, err := New(nil, WithWriter(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestJSONOutput(t *testing.T) {
	logger, buf := newTestLogger(t, &Config{Level: "debug", Format: "json"})

	logger.Info("hello", String("key", "value"), Int("count", 3))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "value", record["key"])
	assert.Equal(t, float64(3), record["count"])
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(t, &Config{Level: "warn", Format: "json"})

	logger.Debug("dropped")
	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestWithNamespace(t *testing.T) {
	logger, buf := newTestLogger(t, &Config{Level: "info", Format: "json"})

	child := logger.WithNamespace("registry").WithNamespace("heartbeat")
	child.Info("tick")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "registry.heartbeat", record["namespace"])
}

func TestWithFields(t *testing.T) {
	logger, buf := newTestLogger(t, &Config{Level: "info", Format: "json"})

	child := logger.With(String("service", "user-service"))
	child.Info("registered")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "user-service", record["service"])
}

func TestDiscard(t *testing.T) {
	// 不应 panic
	Discard().Info("ignored", Error(nil))
}
