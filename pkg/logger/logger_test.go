package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	require.Error(t, err)
}

func TestLoggerWritesJSONFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	l.With(String("component", "lifecycle")).Warn("reload failed",
		String("model_key", "user:42"),
		Float64("ratio", 0.5),
		Error(errors.New("boom")),
	)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(b)
	assert.True(t, strings.Contains(line, `"component":"lifecycle"`), line)
	assert.True(t, strings.Contains(line, `"model_key":"user:42"`), line)
	assert.True(t, strings.Contains(line, `"error":"boom"`), line)
	assert.True(t, strings.Contains(line, `"level":"warn"`), line)
}

func TestFieldKeyValues(t *testing.T) {
	k, v := Duration("took", 1500*1000*1000).GetKeyValue()
	assert.Equal(t, "took", k)
	assert.Equal(t, 1500, v)

	k, v = Strings("cats", []string{"a", "b"}).GetKeyValue()
	assert.Equal(t, "cats", k)
	assert.Equal(t, "a, b", v)
}
