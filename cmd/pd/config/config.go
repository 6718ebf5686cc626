package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config controls the pd CLI runtime.
type Config struct {
	PersonaDir string
	MinScore   float64
	FallbackID string
	SessionID  string

	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Load reads configuration from environment variables. Anthropic
// credentials are optional here; the dispatch command validates them.
func Load() (Config, error) {
	maxTokens, err := intEnvStrict("ANTHROPIC_MAX_TOKENS", 0)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		PersonaDir: trimmedEnv("PD_PERSONA_DIR"),
		FallbackID: trimmedEnv("PD_DEFAULT_PERSONA"),
		SessionID:  trimmedEnv("PD_SESSION"),
		APIKey:     trimmedEnv("ANTHROPIC_API_KEY"),
		Model:      trimmedEnv("ANTHROPIC_MODEL"),
		MaxTokens:  maxTokens,
	}
	if cfg.PersonaDir == "" {
		cfg.PersonaDir = "personas"
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "default"
	}
	if cfg.MaxTokens < 0 {
		return Config{}, errors.New("config: ANTHROPIC_MAX_TOKENS must be zero or greater")
	}

	cfg.MinScore, err = floatEnvStrict("PD_MIN_SCORE", 0)
	if err != nil {
		return Config{}, err
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return Config{}, errors.New("config: PD_MIN_SCORE must be between 0 and 1")
	}

	cfg.Temperature, err = floatEnvStrict("ANTHROPIC_TEMPERATURE", 0)
	if err != nil {
		return Config{}, err
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return Config{}, errors.New("config: ANTHROPIC_TEMPERATURE must be between 0 and 1")
	}

	return cfg, nil
}

// RequireAnthropic validates the fields the dispatch command needs.
func (c Config) RequireAnthropic() error {
	if c.APIKey == "" {
		return errors.New("config: ANTHROPIC_API_KEY is required")
	}
	if c.Model == "" {
		return errors.New("config: ANTHROPIC_MODEL is required")
	}
	return nil
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func intEnvStrict(key string, fallback int) (int, error) {
	value := trimmedEnv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return parsed, nil
}

func floatEnvStrict(key string, fallback float64) (float64, error) {
	value := trimmedEnv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return parsed, nil
}
