package config

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Config holds all process-level configuration
type Config struct {
	Env      string // "development" or "production"
	LogLevel string

	// External binaries
	FFmpegPath  string
	FFprobePath string

	// OpenAI-backed translator
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Collaborator deadlines
	TranslateTimeout time.Duration
	ExtractTimeout   time.Duration

	// Batch processing
	BatchWorkers int

	// Scratch space for extracted tracks
	TempDir string
}

var (
	cfg  *Config
	once sync.Once
)

// Get returns the global configuration (singleton)
func Get() *Config {
	once.Do(func() {
		cfg = load()
	})
	return cfg
}

// load reads configuration from environment variables
func load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("BILISUB_LOG_LEVEL", "info"),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		TranslateTimeout: getEnvDuration("BILISUB_TRANSLATE_TIMEOUT", 30*time.Second),
		ExtractTimeout:   getEnvDuration("BILISUB_EXTRACT_TIMEOUT", 900*time.Second),

		BatchWorkers: getEnvInt("BILISUB_BATCH_WORKERS", defaultWorkers()),

		TempDir: getEnv("BILISUB_TEMP_DIR", os.TempDir()),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		return 4
	}
	if n < 1 {
		return 1
	}
	return n
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
