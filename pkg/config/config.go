// Package config loads gateway settings from the environment. Every
// knob has a TRAPWIRE_-prefixed variable and a default that works for
// local development.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds global settings for the trapwire gateway.
type Config struct {
	// === HTTP Surface ===
	Port   int    // Listen port (default: 8080)
	APIKey string // Shared secret for X-API-Key auth (REQUIRED in production)

	// === Callback Delivery ===
	CallbackURL           string        // Final-report endpoint; empty disables delivery
	CallbackMaxAttempts   int           // Retries per report before giving up (default: 3)
	CallbackTurnThreshold int           // Conversation length that forces a report (default: 8)
	CallbackTimeout       time.Duration // Wall-clock budget for one delivery (default: 30s)

	// === Generative Persona ===
	LLMProvider string // "groq", "openrouter", "ollama", or "none" (canned replies only)
	LLMAPIKey   string
	LLMModel    string        // Provider-specific model id; empty picks the provider default
	LLMBaseURL  string        // Override for self-hosted OpenAI-compatible endpoints
	LLMTimeout  time.Duration // Per-generation deadline before falling back (default: 8s)

	// === Detection ===
	ConfigDir       string // Directory holding detector_weights.yaml overrides
	EnableSemantics bool   // Embedding-similarity aux signal (requires Ollama)
	OllamaURL       string // Embedding server base URL
	EmbedModel      string // Embedding model name

	// === Session Storage ===
	SessionTTL time.Duration // Idle eviction age (default: 1h)
	RedisAddr  string        // host:port; empty selects the in-process store

	// === Report Archive ===
	DatabaseURL string // Postgres DSN; empty disables archival
}

// NewDefaultConfig reads the environment and fills in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Port:   GetEnvInt("TRAPWIRE_PORT", 8080),
		APIKey: GetEnv("TRAPWIRE_API_KEY", ""),

		CallbackURL:           GetEnv("TRAPWIRE_CALLBACK_URL", ""),
		CallbackMaxAttempts:   clampInt(GetEnvInt("TRAPWIRE_CALLBACK_MAX_ATTEMPTS", 3), 1, 10),
		CallbackTurnThreshold: GetEnvInt("TRAPWIRE_CALLBACK_TURN_THRESHOLD", 8),
		CallbackTimeout:       time.Duration(GetEnvInt("TRAPWIRE_CALLBACK_TIMEOUT_MS", 30000)) * time.Millisecond,

		LLMProvider: detectLLMProvider(),
		LLMAPIKey:   GetEnv("TRAPWIRE_LLM_API_KEY", GetEnv("GROQ_API_KEY", os.Getenv("OPENROUTER_API_KEY"))),
		LLMModel:    GetEnv("TRAPWIRE_LLM_MODEL", ""),
		LLMBaseURL:  GetEnv("TRAPWIRE_LLM_BASE_URL", ""),
		LLMTimeout:  time.Duration(GetEnvInt("TRAPWIRE_LLM_TIMEOUT_MS", 8000)) * time.Millisecond,

		ConfigDir:       GetEnv("TRAPWIRE_CONFIG_DIR", ""),
		EnableSemantics: GetEnvBool("TRAPWIRE_ENABLE_SEMANTICS", false),
		OllamaURL:       GetEnv("TRAPWIRE_OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:      GetEnv("TRAPWIRE_EMBED_MODEL", "nomic-embed-text"),

		SessionTTL: time.Duration(GetEnvInt("TRAPWIRE_SESSION_TTL_SECONDS", 3600)) * time.Second,
		RedisAddr:  GetEnv("TRAPWIRE_REDIS_ADDR", ""),

		DatabaseURL: GetEnv("TRAPWIRE_DATABASE_URL", os.Getenv("DATABASE_URL")),
	}
}

func detectLLMProvider() string {
	if p := os.Getenv("TRAPWIRE_LLM_PROVIDER"); p != "" {
		return p
	}
	if os.Getenv("GROQ_API_KEY") != "" {
		return "groq"
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" {
		return "openrouter"
	}
	return "none"
}

func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func isProduction() bool {
	env := strings.ToLower(os.Getenv("TRAPWIRE_ENV"))
	return env == "production" || env == "prod"
}

// Validate checks that required configuration is present. In production
// mode missing secrets are an error; in development they log a warning
// so local runs stay frictionless.
func (c *Config) Validate() error {
	var missing []string

	if c.APIKey == "" {
		if isProduction() {
			missing = append(missing, "TRAPWIRE_API_KEY (shared secret for X-API-Key auth)")
		} else {
			log.Printf("[STARTUP] Warning: TRAPWIRE_API_KEY not set - API auth disabled")
		}
	}
	if c.CallbackURL == "" {
		log.Printf("[STARTUP] Warning: TRAPWIRE_CALLBACK_URL not set - final reports will not be delivered")
	}
	if c.LLMProvider != "none" && c.LLMProvider != "ollama" && c.LLMAPIKey == "" {
		if isProduction() {
			missing = append(missing, "TRAPWIRE_LLM_API_KEY (required for provider "+c.LLMProvider+")")
		} else {
			log.Printf("[STARTUP] Warning: no API key for LLM provider %q - falling back to canned replies", c.LLMProvider)
		}
	}
	if c.CallbackTurnThreshold < 1 {
		return fmt.Errorf("TRAPWIRE_CALLBACK_TURN_THRESHOLD must be >= 1, got %d", c.CallbackTurnThreshold)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// MustValidate calls Validate and fatally exits if validation fails.
// Call this at startup before starting the server.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: Configuration validation failed: %v", err)
	}
	log.Println("[STARTUP] Configuration validated successfully")
}
