package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	OCR        OCRConfig
	Render     RenderConfig
	LLM        LLMConfig
	Divergency DivergencyConfig
	Cache      CacheConfig
	Ingest     IngestConfig
	Log        LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	RequestTimeout time.Duration
	MaxUploadBytes int64
	CORSOrigins    []string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine      string // "gosseract" | "cli"
	Language    string
	Tesseract   string
	TessdataDir string
}

// RenderConfig holds page rendering limits
type RenderConfig struct {
	MaxPages int
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	VisionModel   string
	Temperature   float32
	Timeout       time.Duration
	RatePerMinute int
}

// DivergencyConfig selects the divergency comparison strategy
type DivergencyConfig struct {
	Mode string // "rules" | "llm"
}

// CacheConfig holds record cache configuration
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// IngestConfig holds inbox watcher configuration
type IngestConfig struct {
	InboxDir string
	Workers  int
	Debounce time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "text" | "json"
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored; values already present in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return NewAppError(CodeConfig, "load "+p, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":3001"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":9090"),
			RequestTimeout: getEnvAsDuration("HTTP_REQUEST_TIMEOUT", 10*time.Minute),
			MaxUploadBytes: getEnvAsInt64("HTTP_MAX_UPLOAD_BYTES", 64<<20),
			CORSOrigins:    strings.Split(getEnv("CORS_ORIGIN", "*"), ","),
		},
		OCR: OCRConfig{
			Engine:      strings.ToLower(getEnv("OCR_ENGINE", "gosseract")),
			Language:    getEnv("OCR_LANG", "por"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
		},
		Render: RenderConfig{
			MaxPages: getEnvAsInt("RENDER_MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			APIKey:        getEnv("OPENAI_API_KEY", ""),
			BaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			VisionModel:   getEnv("OPENAI_VISION_MODEL", ""),
			Temperature:   getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("OPENAI_TIMEOUT", 90*time.Second),
			RatePerMinute: getEnvAsInt("LLM_RATE_PER_MINUTE", 60),
		},
		Divergency: DivergencyConfig{
			Mode: strings.ToLower(getEnv("DIVERGENCY_MODE", "rules")),
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		},
		Ingest: IngestConfig{
			InboxDir: getEnv("INBOX_DIR", ""),
			Workers:  getEnvAsInt("QUEUE_WORKERS", 1),
			Debounce: getEnvAsDuration("INBOX_DEBOUNCE", 2*time.Second),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

// Validate checks the settings every binary needs. Database checks only
// apply when persistence is requested.
func (c *Config) Validate(requireDB bool) error {
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "gosseract", "cli":
	default:
		return NewAppError(CodeConfig, "OCR_ENGINE must be gosseract or cli", ErrInvalidInput)
	}
	switch c.Divergency.Mode {
	case "rules", "llm":
	default:
		return NewAppError(CodeConfig, "DIVERGENCY_MODE must be rules or llm", ErrInvalidInput)
	}
	if requireDB {
		switch c.Database.Driver {
		case "postgres", "sqlite":
		default:
			return NewAppError(CodeConfig, "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
		}
		if c.Database.DSN == "" {
			return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
		}
	}
	return nil
}
