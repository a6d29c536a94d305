package common

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerContext(t *testing.T) {
	assert.Equal(t, logrus.StandardLogger(), Logger(context.Background()))

	logger := logrus.New().WithField("request", "1")
	ctx := WithLogger(context.Background(), logger)
	assert.Equal(t, logger, Logger(ctx))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, true, false)
	logger.Debug("hidden")
	logger.WithField("module", "test").Info("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "test", entry["module"])

	buf.Reset()
	logger = NewLogger(&buf, false, true)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.NotContains(t, buf.String(), "\x1b[", "no colors when not a terminal")
}
