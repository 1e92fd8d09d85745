package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 9090,
		"database_url": "postgres://localhost/recap",
		"storage_root": "/var/lib/recap",
		"token_ttl_hours": 48
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://localhost/recap", cfg.DatabaseURL)
	assert.Equal(t, "/var/lib/recap", cfg.StorageRoot)
	assert.Equal(t, 48, cfg.TokenTTLHours)
}

func TestFromEnv_FillsGapsOnly(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg := &Config{GeminiAPIKey: "file-key"}
	merged := cfg.FromEnv()

	assert.Equal(t, "postgres://env/db", merged.DatabaseURL)
	assert.Equal(t, "file-key", merged.GeminiAPIKey) // file value wins
}

func TestValidate(t *testing.T) {
	valid := &Config{DatabaseURL: "postgres://localhost/recap", StorageRoot: "/tmp/recap"}
	assert.NoError(t, valid.Validate())

	missingDB := &Config{StorageRoot: "/tmp/recap"}
	assert.Error(t, missingDB.Validate())

	missingStorage := &Config{DatabaseURL: "postgres://localhost/recap"}
	assert.Error(t, missingStorage.Validate())

	badPort := &Config{DatabaseURL: "x", StorageRoot: "y", Port: 70000}
	assert.Error(t, badPort.Validate())

	negativeTTL := &Config{DatabaseURL: "x", StorageRoot: "y", TokenTTLHours: -1}
	assert.Error(t, negativeTTL.Validate())
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{}
	merged := cfg.MergeWithDefaults()

	assert.Equal(t, 8080, merged.Port)
	assert.Equal(t, "http://localhost:8080", merged.LinkBaseURL)
	assert.Equal(t, 24, merged.TokenTTLHours)

	custom := Config{Port: 9000, TokenTTLHours: 1, LinkBaseURL: "https://recap.example.com"}
	merged = custom.MergeWithDefaults()
	assert.Equal(t, 9000, merged.Port)
	assert.Equal(t, 1, merged.TokenTTLHours)
	assert.Equal(t, "https://recap.example.com", merged.LinkBaseURL)
}
