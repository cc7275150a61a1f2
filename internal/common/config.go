package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Extract   ExtractConfig
	Anthropic AnthropicConfig
	Pipeline  PipelineConfig
}

// DatabaseConfig holds database-related configuration. An empty DSN selects
// the in-memory job store.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// ExtractConfig holds extraction-engine configuration.
type ExtractConfig struct {
	Pdftotext        string
	Pdftoppm         string
	Tesseract        string
	TesseractLang    string
	TessdataDir      string
	DPI              int
	MaxPages         int
	ArtifactCacheDir string
	CallTimeout      time.Duration
}

// AnthropicConfig holds configuration for the Claude-backed analysis step.
type AnthropicConfig struct {
	Model       string
	APIKey      string
	MaxTokens   int64
	Temperature float64
	CallTimeout time.Duration
}

// PipelineConfig holds orchestrator tuning.
type PipelineConfig struct {
	Workers              int
	QueueSize            int
	JobTimeout           time.Duration
	AnalysisMaxAttempts  int
	AnalysisBackoff      time.Duration
	MinFoundConfidence   int
	ReviewableConfidence int
	MinRequiredConf      int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Extract: ExtractConfig{
			Pdftotext:        getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang:    getEnv("TESSERACT_LANG", "tur+eng"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			DPI:              getEnvAsInt("OCR_DPI", 300),
			MaxPages:         getEnvAsInt("OCR_MAX_PAGES", 0),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			CallTimeout:      getEnvAsDuration("EXTRACT_TIMEOUT", 60*time.Second),
		},
		Anthropic: AnthropicConfig{
			Model:       getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			APIKey:      getEnv("ANTHROPIC_API_KEY", ""),
			MaxTokens:   int64(getEnvAsInt("ANTHROPIC_MAX_TOKENS", 4096)),
			Temperature: getEnvAsFloat64("ANTHROPIC_TEMPERATURE", 0.0),
			CallTimeout: getEnvAsDuration("ANTHROPIC_TIMEOUT", 45*time.Second),
		},
		Pipeline: PipelineConfig{
			Workers:              getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:            getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			JobTimeout:           getEnvAsDuration("PIPELINE_JOB_TIMEOUT", 3*time.Minute),
			AnalysisMaxAttempts:  getEnvAsInt("ANALYSIS_MAX_ATTEMPTS", 3),
			AnalysisBackoff:      getEnvAsDuration("ANALYSIS_BACKOFF", 500*time.Millisecond),
			MinFoundConfidence:   getEnvAsInt("MIN_FOUND_CONFIDENCE", 50),
			ReviewableConfidence: getEnvAsInt("REVIEWABLE_CONFIDENCE", 80),
			MinRequiredConf:      getEnvAsInt("MIN_REQUIRED_CONFIDENCE", 60),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "ANTHROPIC_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Pipeline.AnalysisMaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "ANALYSIS_MAX_ATTEMPTS must be >= 1", ErrInvalidInput)
	}
	return nil
}
