package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	buf := new(bytes.Buffer)
	InitWithWriter(buf, "WARN", "text")
	t.Cleanup(func() { InitWithWriter(os.Stdout, "INFO", "text") })

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestJSONFormatWithFields(t *testing.T) {
	buf := new(bytes.Buffer)
	InitWithWriter(buf, "debug", "json")
	t.Cleanup(func() { InitWithWriter(os.Stdout, "INFO", "text") })

	With(KeySessionID, "abc").Info("login", KeyUsername, "alice", Err(errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "login", entry["msg"])
	assert.Equal(t, "abc", entry[KeySessionID])
	assert.Equal(t, "alice", entry[KeyUsername])
	assert.Equal(t, "boom", entry[KeyError])
}

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	t.Cleanup(func() { require.NoError(t, Init(Config{Output: "stdout", Level: "INFO"})) })

	Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestInitBadOutput(t *testing.T) {
	err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
