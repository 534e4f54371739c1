package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "production", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("asset uploaded", "asset_id", "a1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "asset uploaded", entry["msg"])
	assert.Equal(t, "a1", entry["asset_id"])
}

func TestNewDevelopmentIsText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "development", slog.LevelDebug)
	logger.Debug("cart line changed", "line_id", "l1")

	assert.Contains(t, buf.String(), "cart line changed")
	assert.Contains(t, buf.String(), "l1")
}
