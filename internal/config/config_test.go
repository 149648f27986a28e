package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ELEVATOR_MODEL", "")
	t.Setenv("ELEVATOR_BASE_DELAY", "")
	t.Setenv("ELEVATOR_STEP_DELAY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Error(t, cfg.RequireAPIKey())
}

func TestLoadDelayOverrides(t *testing.T) {
	t.Setenv("ELEVATOR_BASE_DELAY", "1s")
	t.Setenv("ELEVATOR_STEP_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.StepDelay)
}

func TestLoadRejectsBadDelay(t *testing.T) {
	t.Setenv("ELEVATOR_BASE_DELAY", "soonish")

	_, err := Load()
	assert.Error(t, err)
}

func TestRequireAPIKeyPresent(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireAPIKey())
}
