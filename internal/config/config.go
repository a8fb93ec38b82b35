// Package config loads, saves, and overrides the run configuration. The
// precedence is defaults < YAML file < environment, with secrets resolved
// separately through a vault file or the OS keyring.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/files"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// Translation provider ids.
const (
	ProviderLLM         = "llm"
	ProviderGoogleTrans = "googletrans"
)

// LLM backend ids.
const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

// Config is the full set of recognized options. Zero values are replaced
// by defaults in Load; a round trip through Save and Load preserves every
// field.
type Config struct {
	WorkingDir string `yaml:"working_dir"`
	OutputDir  string `yaml:"output_dir"`
	TmpDir     string `yaml:"tmp_dir"`
	BooksDir   string `yaml:"books_dir"`

	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
	LLMBackend  string `yaml:"llm_backend"`
	GeminiModel string `yaml:"gemini_model"`

	ThreadCount  int  `yaml:"thread_count"`
	QueueSize    int  `yaml:"queue_size"`
	PipelineMode bool `yaml:"pipeline_mode"`
	UseRAMDisk   bool `yaml:"use_ramdisk"`

	TranslationProvider    string `yaml:"translation_provider"`
	BatchSize              int    `yaml:"batch_size"`
	SentencesPerOutputFile int    `yaml:"sentences_per_output_file"`
	IncludeTransliteration bool   `yaml:"include_transliteration"`

	GenerateAudio bool `yaml:"generate_audio"`
	GenerateVideo bool `yaml:"generate_video"`
	OutputHTML    bool `yaml:"output_html"`
	OutputPDF     bool `yaml:"output_pdf"`

	JobMaxWorkers int `yaml:"job_max_workers"`

	MetadataCacheDir string `yaml:"metadata_cache_dir"`
	JobsDir          string `yaml:"jobs_dir"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		OllamaURL:              "http://localhost:11434/api/chat",
		OllamaModel:            "gemma2:27b",
		LLMBackend:             BackendOllama,
		GeminiModel:            "gemini-2.0-flash",
		ThreadCount:            5,
		QueueSize:              20,
		PipelineMode:           false,
		UseRAMDisk:             true,
		TranslationProvider:    ProviderLLM,
		SentencesPerOutputFile: 10,
		IncludeTransliteration: false,
		GenerateAudio:          true,
		GenerateVideo:          true,
		OutputHTML:             true,
		OutputPDF:              false,
		JobMaxWorkers:          2,
	}
}

// Load reads the YAML file at path (missing file means defaults), then
// applies EBOOK_* environment overrides. A .env file in the working
// directory is honored before the environment is read.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, apperrors.Config(fmt.Errorf("parse %s: %w", path, err))
			}
		case os.IsNotExist(err):
			logger.Debug("No config file, using defaults", "path", path)
		default:
			return cfg, apperrors.Config(fmt.Errorf("read %s: %w", path, err))
		}
	}

	// Ignore a missing .env; only the environment matters after this.
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as YAML atomically.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return apperrors.Config(fmt.Errorf("marshal config: %w", err))
	}
	if err := files.EnsureDir(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return files.AtomicWrite(path, data, 0o644)
}

// Validate rejects configurations no run can start with.
func (c Config) Validate() error {
	switch c.TranslationProvider {
	case ProviderLLM, ProviderGoogleTrans:
	default:
		if !strings.HasPrefix(c.TranslationProvider, "google") {
			return apperrors.Config(fmt.Errorf("unknown translation_provider %q", c.TranslationProvider))
		}
	}
	switch c.LLMBackend {
	case BackendOllama, BackendGemini:
	default:
		return apperrors.Config(fmt.Errorf("unknown llm_backend %q", c.LLMBackend))
	}
	if c.ThreadCount < 1 {
		return apperrors.Config(fmt.Errorf("thread_count must be >= 1, got %d", c.ThreadCount))
	}
	if c.QueueSize < 1 {
		return apperrors.Config(fmt.Errorf("queue_size must be >= 1, got %d", c.QueueSize))
	}
	if c.SentencesPerOutputFile < 1 {
		return apperrors.Config(fmt.Errorf("sentences_per_output_file must be >= 1, got %d", c.SentencesPerOutputFile))
	}
	if c.JobMaxWorkers < 1 {
		return apperrors.Config(fmt.Errorf("job_max_workers must be >= 1, got %d", c.JobMaxWorkers))
	}
	return nil
}

// BatchingEnabled reports whether LLM batching is on. Sizes below 2
// disable it.
func (c Config) BatchingEnabled() bool { return c.BatchSize >= 2 }

// envPrefix is the namespace for environment overrides.
const envPrefix = "EBOOK_"

func applyEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			logger.Warn("Ignoring non-integer env override", "key", envPrefix+key)
			return
		}
		*dst = n
	}
	setBool := func(key string, dst *bool) {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			logger.Warn("Ignoring non-boolean env override", "key", envPrefix+key)
			return
		}
		*dst = b
	}

	setStr("WORKING_DIR", &cfg.WorkingDir)
	setStr("OUTPUT_DIR", &cfg.OutputDir)
	setStr("TMP_DIR", &cfg.TmpDir)
	setStr("BOOKS_DIR", &cfg.BooksDir)
	setStr("OLLAMA_URL", &cfg.OllamaURL)
	setStr("OLLAMA_MODEL", &cfg.OllamaModel)
	setStr("LLM_BACKEND", &cfg.LLMBackend)
	setStr("GEMINI_MODEL", &cfg.GeminiModel)
	setStr("TRANSLATION_PROVIDER", &cfg.TranslationProvider)
	setStr("METADATA_CACHE_DIR", &cfg.MetadataCacheDir)
	setStr("JOBS_DIR", &cfg.JobsDir)

	setInt("THREAD_COUNT", &cfg.ThreadCount)
	setInt("QUEUE_SIZE", &cfg.QueueSize)
	setInt("BATCH_SIZE", &cfg.BatchSize)
	setInt("SENTENCES_PER_OUTPUT_FILE", &cfg.SentencesPerOutputFile)
	setInt("JOB_MAX_WORKERS", &cfg.JobMaxWorkers)

	setBool("PIPELINE_MODE", &cfg.PipelineMode)
	setBool("USE_RAMDISK", &cfg.UseRAMDisk)
	setBool("INCLUDE_TRANSLITERATION", &cfg.IncludeTransliteration)
	setBool("GENERATE_AUDIO", &cfg.GenerateAudio)
	setBool("GENERATE_VIDEO", &cfg.GenerateVideo)
	setBool("OUTPUT_HTML", &cfg.OutputHTML)
	setBool("OUTPUT_PDF", &cfg.OutputPDF)
}
