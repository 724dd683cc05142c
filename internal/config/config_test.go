package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_GetTestPath(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{
			name: "default path",
			config: &Config{
				ProjectPath: ".",
				TestPath:    ".",
				Flags:       Flags{},
			},
			expected: ".",
		},
		{
			name: "with test path flag",
			config: &Config{
				ProjectPath: "/project",
				TestPath:    ".",
				Flags: Flags{
					TestPath: "scenarios",
				},
			},
			expected: "/project/scenarios",
		},
		{
			name: "absolute test path",
			config: &Config{
				ProjectPath: "/project",
				TestPath:    ".",
				Flags: Flags{
					TestPath: "/absolute/path",
				},
			},
			expected: "/absolute/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.GetTestPath()
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.ProjectPath != DefaultProjectPath {
		t.Errorf("expected ProjectPath %s, got %s", DefaultProjectPath, cfg.ProjectPath)
	}

	if cfg.Processors != DefaultProcessors {
		t.Errorf("expected Processors %d, got %d", DefaultProcessors, cfg.Processors)
	}

	if len(cfg.PathsToIgnore) != len(DefaultPathsToIgnore) {
		t.Errorf("expected %d paths to ignore, got %d", len(DefaultPathsToIgnore), len(cfg.PathsToIgnore))
	}

	cfg.Command[0] = "mutated"
	if DefaultCommand[0] == "mutated" {
		t.Error("New must copy DefaultCommand")
	}
}

func TestConfig_OutputPaths(t *testing.T) {
	cfg := New()
	cfg.ProjectPath = "/project"

	if got, want := cfg.GetOutputPath(), filepath.Join("/project", DefaultOutputJSONDir, DefaultOutputJSONFile); got != want {
		t.Errorf("GetOutputPath() = %s, want %s", got, want)
	}
	if got, want := cfg.GetHistoryPath(), filepath.Join("/project", DefaultOutputJSONDir, DefaultHistoryFile); got != want {
		t.Errorf("GetHistoryPath() = %s, want %s", got, want)
	}
	if got, want := cfg.GetJournalDir(), filepath.Join("/project", DefaultOutputJSONDir, DefaultJournalDir); got != want {
		t.Errorf("GetJournalDir() = %s, want %s", got, want)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("APPROBE_READY_PATTERN=booted\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("APPROBE_COMMAND", "node server.js {port}")
	t.Setenv("APPROBE_STARTUP_TIMEOUT", "2s")
	t.Setenv("APPROBE_PROCESSORS", "7")
	// godotenv.Load never overrides variables that are already set.
	t.Setenv("APPROBE_READY_PATTERN", "")
	os.Unsetenv("APPROBE_READY_PATTERN")

	cfg := New()
	cfg.ProjectPath = dir
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if len(cfg.Command) != 3 || cfg.Command[2] != "{port}" {
		t.Errorf("unexpected command %v", cfg.Command)
	}
	if cfg.StartupTimeout != 2*time.Second {
		t.Errorf("StartupTimeout = %v, want 2s", cfg.StartupTimeout)
	}
	if cfg.Processors != 7 {
		t.Errorf("Processors = %d, want 7", cfg.Processors)
	}
	if cfg.ReadyPattern != "booted" {
		t.Errorf("ReadyPattern = %q, want value from .env", cfg.ReadyPattern)
	}
	os.Unsetenv("APPROBE_READY_PATTERN")
}

func TestConfig_ApplyEnv_InvalidDuration(t *testing.T) {
	t.Setenv("APPROBE_STARTUP_TIMEOUT", "soon")
	cfg := New()
	cfg.ProjectPath = t.TempDir()
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestConfig_ApplyFlags(t *testing.T) {
	cfg := New()
	cfg.ApplyFlags(Flags{Processors: 2, Debug: true})
	if cfg.Processors != 2 {
		t.Errorf("Processors = %d, want 2", cfg.Processors)
	}
	if !cfg.Debug {
		t.Error("Debug flag not applied")
	}

	cfg.ApplyFlags(Flags{})
	if cfg.Processors != 2 {
		t.Errorf("zero flag must not reset Processors, got %d", cfg.Processors)
	}
}
