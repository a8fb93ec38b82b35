package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434/api/chat", cfg.OllamaURL)
	assert.Equal(t, "gemma2:27b", cfg.OllamaModel)
	assert.Equal(t, 5, cfg.ThreadCount)
	assert.Equal(t, 20, cfg.QueueSize)
	assert.False(t, cfg.PipelineMode)
	assert.True(t, cfg.UseRAMDisk)
	assert.Equal(t, ProviderLLM, cfg.TranslationProvider)
	assert.Equal(t, 10, cfg.SentencesPerOutputFile)
	assert.False(t, cfg.IncludeTransliteration)
	assert.True(t, cfg.GenerateAudio)
	assert.True(t, cfg.GenerateVideo)
	assert.True(t, cfg.OutputHTML)
	assert.False(t, cfg.OutputPDF)
	assert.Equal(t, 2, cfg.JobMaxWorkers)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	want := Default()
	want.WorkingDir = "/srv/ebook"
	want.OllamaModel = "llama3.1:8b"
	want.ThreadCount = 9
	want.BatchSize = 12
	want.PipelineMode = true
	want.OutputPDF = true
	want.TranslationProvider = ProviderGoogleTrans

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EBOOK_OLLAMA_MODEL", "mistral:7b")
	t.Setenv("EBOOK_THREAD_COUNT", "3")
	t.Setenv("EBOOK_PIPELINE_MODE", "true")
	t.Setenv("EBOOK_QUEUE_SIZE", "not-a-number") // ignored with a warning

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mistral:7b", cfg.OllamaModel)
	assert.Equal(t, 3, cfg.ThreadCount)
	assert.True(t, cfg.PipelineMode)
	assert.Equal(t, 20, cfg.QueueSize)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thread_count: [not an int\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.TranslationProvider = "deepl"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.TranslationProvider = "google_cloud"
	assert.NoError(t, cfg.Validate(), "google-prefixed providers are accepted")

	cfg = Default()
	cfg.ThreadCount = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LLMBackend = "claude"
	assert.Error(t, cfg.Validate())
}

func TestBatchingEnabled(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.BatchingEnabled(), "unset batch size disables batching")
	cfg.BatchSize = 1
	assert.False(t, cfg.BatchingEnabled())
	cfg.BatchSize = 2
	assert.True(t, cfg.BatchingEnabled())
}

func TestResolveSecretPrecedence(t *testing.T) {
	vault := filepath.Join(t.TempDir(), "vault.json")
	data, _ := json.Marshal(map[string]string{SecretTMDBAPIKey: "from-vault"})
	require.NoError(t, os.WriteFile(vault, data, 0o600))
	t.Setenv("EBOOK_VAULT_FILE", vault)

	got, err := ResolveSecret(SecretTMDBAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-vault", got)

	// Environment beats the vault.
	t.Setenv("EBOOK_TMDB_API_KEY", "from-env")
	got, err = ResolveSecret(SecretTMDBAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestResolveSecretMalformedVault(t *testing.T) {
	vault := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, os.WriteFile(vault, []byte("{broken"), 0o600))
	t.Setenv("EBOOK_VAULT_FILE", vault)

	_, err := ResolveSecret(SecretOMDbAPIKey)
	assert.Error(t, err)
}
