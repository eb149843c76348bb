package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	OCR       OCRConfig
	LLM       LLMConfig
	Artifacts ArtifactConfig
	Watch     WatchConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration. Driver is "sqlite"
// (default, file-backed) or "postgres".
type DatabaseConfig struct {
	Driver      string
	DSN         string
	DialTimeout time.Duration
}

// OCRConfig holds OCR tool configuration.
type OCRConfig struct {
	Tesseract     string
	Pdftotext     string
	Pdftoppm      string
	TesseractLang string
	TessdataDir   string
	DPI           int
	MaxPages      int
	PSM           int
}

// LLMConfig holds AI extraction configuration. Provider selects the
// client: "openai", "groq" (OpenAI-compatible) or "gemini". An empty
// APIKey disables the AI path entirely; extraction then always takes
// the deterministic route.
type LLMConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// ArtifactConfig holds raw/curated artifact storage configuration.
type ArtifactConfig struct {
	Dir string
}

// WatchConfig holds drop-directory ingestion configuration. An empty
// Dir disables watching.
type WatchConfig struct {
	Dir         string
	Debounce    time.Duration
	InitialScan bool
}

// LoadConfig loads configuration from a .env file (if present) and the
// environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8000"),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "sqlite"),
			DSN:         getEnv("DB_URL", "file:receipts.db?_pragma=foreign_keys(1)"),
			DialTimeout: getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
			PSM:           getEnvAsInt("OCR_PSM", 6),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", "groq"),
			APIKey:      getEnv("LLM_API_KEY", os.Getenv("GROQ_API_KEY")),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Model:       getEnv("LLM_MODEL", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Artifacts: ArtifactConfig{
			Dir: getEnv("DATA_DIR", "data"),
		},
		Watch: WatchConfig{
			Dir:         getEnv("WATCH_DIR", ""),
			Debounce:    getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
			InitialScan: getEnvAsBool("WATCH_INITIAL_SCAN", true),
		},
	}
}

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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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
