package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildJSON(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, zerolog.InfoLevel, "json", "")

	l.Debug().Msg("hidden")
	l.Info().Str("symbol", "BTC/USDT").Msg("cycle")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cycle", line["message"])
	assert.Equal(t, "BTC/USDT", line["symbol"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "time")
}

func TestBuildConsole(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, zerolog.DebugLevel, "console", "")
	l.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "DBG")
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	l, closer, err := New(Config{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info().Msg("dropped")
	l.Warn().Msg("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNewBadLevel(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}
