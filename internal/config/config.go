package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"elevator-game/internal/session"
)

// Config holds the application configuration.
type Config struct {
	GeminiAPIKey  string
	Model         string
	TranscriptDir string
	BaseDelay     time.Duration
	StepDelay     time.Duration
	Verbose       bool
}

// Load reads configuration from the environment, with an optional
// .env file (missing file is fine).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		Model:         envOr("ELEVATOR_MODEL", "gemini-2.5-flash"),
		TranscriptDir: envOr("ELEVATOR_TRANSCRIPT_DIR", ".transcripts"),
		BaseDelay:     session.DefaultBaseDelay,
		StepDelay:     session.DefaultStepDelay,
	}

	if v := os.Getenv("ELEVATOR_BASE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ELEVATOR_BASE_DELAY: %w", err)
		}
		cfg.BaseDelay = d
	}
	if v := os.Getenv("ELEVATOR_STEP_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ELEVATOR_STEP_DELAY: %w", err)
		}
		cfg.StepDelay = d
	}

	return cfg, nil
}

// RequireAPIKey errors unless a Gemini key is configured. Only the
// online game needs it; the offline simulator does not.
func (c *Config) RequireAPIKey() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}
	return nil
}

// NewLogger builds the process logger. The TUI owns the terminal, so
// logs go to a file rather than stderr.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Verbose {
		zc = zap.NewDevelopmentConfig()
	}
	zc.OutputPaths = []string{"elevator.log"}
	zc.ErrorOutputPaths = []string{"elevator.log"}
	return zc.Build()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
