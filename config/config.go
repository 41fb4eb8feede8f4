// Package config loads application configuration from the environment,
// grounded on the teacher's config/config.go (getEnvString/Int/Bool
// helpers, typed sub-structs, a single Load entrypoint).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	HTTP     HTTPConfig
	Store    StoreConfig
	LLM      LLMConfig
	Session  SessionConfig
	Scoring  ScoringConfig
	LogLevel string
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host         string
	Port         int
	CORSOrigins  []string
	MaxBodyBytes int64
}

// StoreBackend selects which store.SessionStore implementation Load wires.
type StoreBackend string

const (
	StoreBackendMemory  StoreBackend = "memory"
	StoreBackendSQLite  StoreBackend = "sqlite"
	StoreBackendMongoDB StoreBackend = "mongodb"
)

// StoreConfig holds persistence backend configuration.
type StoreConfig struct {
	Backend    StoreBackend
	DSN        string // sqlite file path, or mongodb URI
	Database   string // mongodb database name
	TLSEnabled bool
}

// LLMConfig holds LLM gateway configuration.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// SessionConfig holds session-token signing configuration.
type SessionConfig struct {
	Secret string // must be >= 32 bytes
}

// ScoringConfig holds ScoringEngine wiring.
type ScoringConfig struct {
	CataloguePath         string
	NeuralEnabled         bool
	NeuralModelPath       string
	NeuralStandardizePath string
	MatchTopK             int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Host:         getEnvString("LOANADVISOR_HTTP_HOST", "0.0.0.0"),
			Port:         getEnvInt("LOANADVISOR_HTTP_PORT", 8080),
			CORSOrigins:  getEnvStringList("LOANADVISOR_CORS_ORIGINS", nil),
			MaxBodyBytes: int64(getEnvInt("LOANADVISOR_MAX_BODY_BYTES", 10<<20)), // 10 MiB
		},
		Store: StoreConfig{
			Backend:    StoreBackend(getEnvString("LOANADVISOR_STORE_BACKEND", string(StoreBackendMemory))),
			DSN:        getEnvString("LOANADVISOR_STORE_DSN", "./loanmatchmaker.db"),
			Database:   getEnvString("LOANADVISOR_STORE_DATABASE", "loanmatchmaker"),
			TLSEnabled: getEnvBool("LOANADVISOR_STORE_TLS", false),
		},
		LLM: LLMConfig{
			APIKey:  getEnvString("LOANADVISOR_LLM_API_KEY", ""),
			BaseURL: getEnvString("LOANADVISOR_LLM_BASE_URL", ""),
			Model:   getEnvString("LOANADVISOR_LLM_MODEL", "gpt-4o-mini"),
		},
		Session: SessionConfig{
			Secret: getEnvString("LOANADVISOR_SESSION_SECRET", ""),
		},
		Scoring: ScoringConfig{
			CataloguePath:         getEnvString("LOANADVISOR_CATALOGUE_PATH", "./configs/lenders.yaml"),
			NeuralEnabled:         getEnvBool("LOANADVISOR_NEURAL_SCORING_ENABLED", false),
			NeuralModelPath:       getEnvString("LOANADVISOR_NEURAL_MODEL_PATH", "./configs/neural_model.json"),
			NeuralStandardizePath: getEnvString("LOANADVISOR_NEURAL_STANDARDIZE_PATH", "./configs/neural_standardize.json"),
			MatchTopK:             getEnvInt("LOANADVISOR_MATCH_TOP_K", 5),
		},
		LogLevel: getEnvString("LOANADVISOR_LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("config: LOANADVISOR_SESSION_SECRET must be at least 32 characters, got %d", len(c.Session.Secret))
	}
	switch c.Store.Backend {
	case StoreBackendMemory, StoreBackendSQLite, StoreBackendMongoDB:
	default:
		return fmt.Errorf("config: unknown LOANADVISOR_STORE_BACKEND %q", c.Store.Backend)
	}
	return nil
}

// Address returns the HTTP server's listen address.
func (c HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvStringList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
