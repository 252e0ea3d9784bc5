package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"lending-backoffice/internal/config"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewHandler(t *testing.T) {
	t.Run("writes json records at or above the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(newHandler(&buf, config.LoggerConfig{Level: "warn", Encoding: "json"}))

		logger.InfoContext(context.Background(), "dropped")
		logger.WarnContext(context.Background(), "kept", "loan_id", 42)

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "kept", record["msg"])
		assert.Equal(t, float64(42), record["loan_id"])
	})

	t.Run("writes text records when configured", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(newHandler(&buf, config.LoggerConfig{Level: "info", Encoding: "text"}))

		logger.Info("hello")

		assert.Contains(t, buf.String(), "msg=hello")
	})
}
