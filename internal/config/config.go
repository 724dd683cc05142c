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

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath string
	TestPath    string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string
	HistoryFile    string
	JournalDir     string

	// Execution settings
	Processors int

	// Harness settings
	Command        []string
	ConfigFile     string
	ReadyPattern   string
	StartupTimeout time.Duration
	KillTimeout    time.Duration
	ProbeTimeout   time.Duration

	// Logging
	Debug     bool
	DebugFile string

	// Paths to ignore when scanning
	PathsToIgnore []string

	// Command flags
	Flags Flags
}

// Flags holds command-line flags
type Flags struct {
	Processors   int
	TestPath     string
	NameFilter   string
	Scenarios    bool
	FailFast     bool
	OnlyFailed   bool
	Watch        bool
	OpenFailures bool
	HistoryLimit int
	HistoryRun   string
	Debug        bool
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:    DefaultProjectPath,
		TestPath:       DefaultTestPath,
		OutputJSONFile: DefaultOutputJSONFile,
		OutputJSONDir:  DefaultOutputJSONDir,
		HistoryFile:    DefaultHistoryFile,
		JournalDir:     DefaultJournalDir,
		Processors:     DefaultProcessors,
		ConfigFile:     DefaultConfigFile,
		ReadyPattern:   DefaultReadyPattern,
		StartupTimeout: DefaultStartupTimeout,
		KillTimeout:    DefaultKillTimeout,
		ProbeTimeout:   DefaultProbeTimeout,
		Flags:          Flags{Processors: DefaultProcessors},
	}
	cfg.Command = make([]string, len(DefaultCommand))
	copy(cfg.Command, DefaultCommand)
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load creates a config, applies the project's .env and environment
// overrides, then applies flags.
func Load(flags Flags) (*Config, error) {
	cfg := New()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyFlags(flags)
	return cfg, nil
}

// ApplyFlags copies parsed flags into the config
func (c *Config) ApplyFlags(flags Flags) {
	c.Flags = flags
	if flags.Processors > 0 {
		c.Processors = flags.Processors
	}
	if flags.Debug {
		c.Debug = true
	}
}

// ApplyEnv loads <project>/.env (missing file is fine) and reads APPROBE_*
// overrides from the environment.
func (c *Config) ApplyEnv() error {
	envPath := filepath.Join(c.ProjectPath, ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}

	if v := os.Getenv("APPROBE_COMMAND"); v != "" {
		c.Command = strings.Fields(v)
	}
	if v := os.Getenv("APPROBE_CONFIG_FILE"); v != "" {
		c.ConfigFile = v
	}
	if v := os.Getenv("APPROBE_READY_PATTERN"); v != "" {
		c.ReadyPattern = v
	}
	if v := os.Getenv("APPROBE_STARTUP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("APPROBE_STARTUP_TIMEOUT: %w", err)
		}
		c.StartupTimeout = d
	}
	if v := os.Getenv("APPROBE_PROCESSORS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("APPROBE_PROCESSORS: %w", err)
		}
		c.Processors = n
	}
	if os.Getenv("APPROBE_DEBUG") == "1" {
		c.Debug = true
	}
	if v := os.Getenv("APPROBE_DEBUG_FILE"); v != "" {
		c.DebugFile = v
	}
	return nil
}

// GetTestPath returns the scenario search path, using flag if provided
func (c *Config) GetTestPath() string {
	if c.Flags.TestPath != "" {
		if filepath.IsAbs(c.Flags.TestPath) {
			return c.Flags.TestPath
		}
		return filepath.Join(c.ProjectPath, c.Flags.TestPath)
	}

	// Default: combine project path and test path
	return filepath.Join(c.ProjectPath, c.TestPath)
}

// GetOutputPath returns the absolute path to the output JSON file so run and
// failures always read/write the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	return c.absUnderOutput(c.OutputJSONFile)
}

// GetHistoryPath returns the path to the SQLite run history
func (c *Config) GetHistoryPath() string {
	return c.absUnderOutput(c.HistoryFile)
}

// GetJournalDir returns the directory holding pending config snapshots
func (c *Config) GetJournalDir() string {
	return c.absUnderOutput(c.JournalDir)
}

func (c *Config) absUnderOutput(name string) string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, name)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
