package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultTestPath is the default scenario search path
	DefaultTestPath = "."
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "scenario-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = ".approbe"
	// DefaultHistoryFile is the SQLite run history database name
	DefaultHistoryFile = "history.db"
	// DefaultJournalDir holds config snapshots of in-flight scenarios
	DefaultJournalDir = "journal"
	// DefaultProcessors is the default number of processors
	DefaultProcessors = 4
	// DefaultConfigFile is the fixture config file rewritten per scenario
	DefaultConfigFile = "next.config.js"
	// DefaultReadyPattern matches the readiness line of most dev servers
	DefaultReadyPattern = `(?i)\b(ready|listening|started server)\b`
	// DefaultStartupTimeout bounds how long a launch waits for readiness
	DefaultStartupTimeout = 30 * time.Second
	// DefaultKillTimeout bounds how long a kill waits after SIGTERM
	DefaultKillTimeout = 5 * time.Second
	// DefaultProbeTimeout bounds a single HTTP probe
	DefaultProbeTimeout = 10 * time.Second
)

// DefaultCommand launches a Next.js dev server on the allocated port.
var DefaultCommand = []string{"npx", "next", "dev", "{dir}", "-p", "{port}"}

// DefaultPathsToIgnore are the default directories to ignore when scanning for scenarios
var DefaultPathsToIgnore = []string{
	"vendor",
	"node_modules",
	".next",
	"out",
	"public",
	"storage",
	".approbe",
}
