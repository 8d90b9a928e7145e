// Package config loads captionkit settings from .env and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLM provider names accepted in LLM_PROVIDER.
const (
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

const (
	DefaultEndpoint   = "http://localhost:8080"
	DefaultPort       = "8080"
	DefaultDailyLimit = 20
	DefaultTimeout    = 60 * time.Second
)

// Config holds everything the wizard and the caption service read from the environment.
type Config struct {
	// Client side
	Endpoint        string
	Token           string
	DownloadDir     string
	DailyLimit      int
	HandwrittenFont string
	RequestTimeout  time.Duration
	Debug           bool
	LogMode         string

	// LLM providers
	Provider        string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureModel      string
	AzureAPIVersion string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string

	// Service side
	Port          string
	CORSOrigins   []string
	JWTSecret     string
	AuthDisabled  bool
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Blob store
	GCSBucket    string
	GCSCDNDomain string
	BlobDir      string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	// missing .env is fine
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	home, _ := os.UserHomeDir()
	defaultDownloads := filepath.Join(home, "Downloads")

	return &Config{
		Endpoint:        strings.TrimSuffix(getEnv("CAPTIONKIT_ENDPOINT", DefaultEndpoint), "/"),
		Token:           os.Getenv("CAPTIONKIT_TOKEN"),
		DownloadDir:     getEnv("CAPTIONKIT_DOWNLOAD_DIR", defaultDownloads),
		DailyLimit:      getInt("CAPTIONKIT_DAILY_LIMIT", DefaultDailyLimit),
		HandwrittenFont: os.Getenv("CAPTIONKIT_HANDWRITTEN_FONT"),
		RequestTimeout:  getDuration("CAPTIONKIT_TIMEOUT", DefaultTimeout),
		Debug:           getBool("CAPTIONKIT_DEBUG"),
		LogMode:         getEnv("CAPTIONKIT_LOG_MODE", "dev"),

		Provider:        strings.ToLower(getEnv("LLM_PROVIDER", ProviderAzure)),
		AzureEndpoint:   strings.TrimSuffix(os.Getenv("AZURE_OPENAI_ENDPOINT"), "/"),
		AzureAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureModel:      os.Getenv("AZURE_OPENAI_MODEL"),
		AzureAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-08-01-preview"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		GeminiAPIKey:    firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		Port:          getEnv("PORT", DefaultPort),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AuthDisabled:  getBool("AUTH_DISABLED"),
		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		GCSBucket:    os.Getenv("GCS_BUCKET"),
		GCSCDNDomain: os.Getenv("GCS_CDN_DOMAIN"),
		BlobDir:      os.Getenv("BLOB_DIR"),
	}
}

// CheckClient validates the settings the wizard needs.
func (c *Config) CheckClient() error {
	if c.Endpoint == "" {
		return fmt.Errorf("CAPTIONKIT_ENDPOINT not set")
	}
	if c.DailyLimit <= 0 {
		return fmt.Errorf("CAPTIONKIT_DAILY_LIMIT must be positive, got %d", c.DailyLimit)
	}
	return nil
}

// CheckServer validates the settings the caption service needs.
func (c *Config) CheckServer() error {
	switch c.Provider {
	case ProviderAzure:
		if c.AzureEndpoint == "" {
			return fmt.Errorf("AZURE_OPENAI_ENDPOINT not set")
		}
		if c.AzureAPIKey == "" {
			return fmt.Errorf("AZURE_OPENAI_API_KEY not set")
		}
		if c.AzureModel == "" {
			return fmt.Errorf("AZURE_OPENAI_MODEL not set")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY not set")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (want azure, anthropic or gemini)", c.Provider)
	}
	if !c.AuthDisabled && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set (or set AUTH_DISABLED=1 for local use)")
	}
	if c.DailyLimit <= 0 {
		return fmt.Errorf("CAPTIONKIT_DAILY_LIMIT must be positive, got %d", c.DailyLimit)
	}
	return nil
}

// Help returns setup help text.
func Help() string {
	return `captionkit reads its settings from a .env file or the environment.

Wizard:
  export CAPTIONKIT_ENDPOINT="https://captions.example.com"  # caption service URL
  export CAPTIONKIT_TOKEN="<jwt>"                            # bearer token, if the service requires one
  export CAPTIONKIT_DOWNLOAD_DIR="$HOME/Downloads"           # optional
  export CAPTIONKIT_HANDWRITTEN_FONT="/path/to/script.ttf"   # optional

Caption service (captionkit serve):
  export LLM_PROVIDER=azure            # azure | anthropic | gemini
  export AZURE_OPENAI_ENDPOINT="https://your-resource.openai.azure.com"
  export AZURE_OPENAI_API_KEY="your-api-key"
  export AZURE_OPENAI_MODEL="gpt-4o"
  export ANTHROPIC_API_KEY="..."       # when LLM_PROVIDER=anthropic
  export GEMINI_API_KEY="..."          # when LLM_PROVIDER=gemini
  export JWT_SECRET="..."              # or AUTH_DISABLED=1
  export REDIS_ADDRESS="localhost:6379" # optional, in-memory quota otherwise
  export GCS_BUCKET="my-bucket"        # optional blob store for shared artifacts`
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
