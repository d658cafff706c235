package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DOLLAR_BACKEND_URL", "DOLLAR_RECOGNIZER", "DOLLAR_HTTP_TIMEOUT", "DOLLAR_SPEAK", "DOLLAR_SOCKET"} {
		t.Setenv(k, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, "whisper", cfg.Recognizer)
	assert.Equal(t, 120*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.Speak)
	assert.Equal(t, DefaultSocketPath, cfg.SocketPath)
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("DOLLAR_BACKEND_URL", "")
	t.Setenv("DOLLAR_SPEAK", "")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOLLAR_BACKEND_URL=http://localhost:8000\nDOLLAR_SPEAK=false\n"), 0o644))
	// godotenv never overrides variables that are already set, even empty.
	require.NoError(t, os.Unsetenv("DOLLAR_BACKEND_URL"))
	require.NoError(t, os.Unsetenv("DOLLAR_SPEAK"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.False(t, cfg.Speak)
}

func TestLoad_BadValues(t *testing.T) {
	t.Setenv("DOLLAR_HTTP_TIMEOUT", "soon")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("DOLLAR_HTTP_TIMEOUT", "")
	t.Setenv("DOLLAR_SPEAK", "maybe")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{BackendURL: "http://x", Recognizer: "openai"}
	assert.Error(t, cfg.Validate(), "openai without key")

	cfg.OpenAIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	cfg.Recognizer = "vosk"
	assert.Error(t, cfg.Validate())

	cfg = Config{Recognizer: "whisper", WhisperModel: "m.bin"}
	assert.Error(t, cfg.Validate(), "empty backend")
}
