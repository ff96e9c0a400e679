package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_Production(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "production", "debug")

	logger.WithField("key", "1700000000000-a.pdf").Info("issued upload url")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "issued upload url", entry["msg"])
	assert.Equal(t, "1700000000000-a.pdf", entry["key"])
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewWithOutput_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "development", "chatty")

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	_, isText := logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}
