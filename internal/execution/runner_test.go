package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approbe/internal/config"
)

func TestNewRunner(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	cfg.ReadyPattern = `compiled`
	cfg.StartupTimeout = 3 * time.Second

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	assert.Equal(t, cfg.Command, runner.Command)
	assert.Equal(t, cfg.ConfigFile, runner.ConfigFile)
	assert.Equal(t, 3*time.Second, runner.StartupTimeout)
	require.NotNil(t, runner.ReadyPattern)
	assert.True(t, runner.ReadyPattern.MatchString("compiled client"))
	require.NotNil(t, runner.Journal)

	runner.Command[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Command[0])
}

func TestNewRunner_InvalidPattern(t *testing.T) {
	cfg := config.New()
	cfg.ReadyPattern = `(`
	_, err := NewRunner(cfg)
	assert.Error(t, err)
}
