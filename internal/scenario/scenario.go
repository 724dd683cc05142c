// Package scenario loads declarative probe scenarios from YAML and runs
// them through a harness Session.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Startup is the expected outcome of launching the app.
type Startup string

const (
	// StartupReady expects the app to report readiness.
	StartupReady Startup = "ready"
	// StartupExit expects the app to reject its configuration and exit.
	StartupExit Startup = "exit"
	// StartupAny accepts either.
	StartupAny Startup = "any"
)

// ErrInvalidScenario wraps every validation failure reported by Load.
var ErrInvalidScenario = errors.New("invalid scenario")

// Probe is one HTTP request issued once the app is ready.
type Probe struct {
	Method       string            `yaml:"method"`
	Path         string            `yaml:"path"`
	Query        map[string]string `yaml:"query"`
	Headers      map[string]string `yaml:"headers"`
	Body         string            `yaml:"body"`
	ExpectStatus int               `yaml:"expect_status"`
	BodyContains []string          `yaml:"body_contains"`
}

// Expect lists assertions on the captured output, checked after the app
// has been stopped.
type Expect struct {
	StdoutContains    []string `yaml:"stdout_contains"`
	StderrContains    []string `yaml:"stderr_contains"`
	OutputNotContains []string `yaml:"output_not_contains"`
	StderrNotContains []string `yaml:"stderr_not_contains"`
}

// Scenario is one config + launch + probe + assert case.
type Scenario struct {
	Name       string            `yaml:"name"`
	Fixture    string            `yaml:"fixture"`
	ConfigFile string            `yaml:"config_file"`
	Config     map[string]any    `yaml:"config"`
	Files      map[string]string `yaml:"files"`
	Command    []string          `yaml:"command"`
	Env        map[string]string `yaml:"env"`
	Startup    Startup           `yaml:"startup"`
	Probes     []Probe           `yaml:"probes"`
	Expect     Expect            `yaml:"expect"`

	// Source is the file the scenario was loaded from.
	Source string `yaml:"-"`
}

// File is a parsed scenario file.
type File struct {
	Path      string
	Scenarios []*Scenario
}

// rawFile holds either a single scenario or shared fields plus a list.
type rawFile struct {
	Scenario  `yaml:",inline"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Load reads and validates a scenario file. Fixture paths are resolved
// relative to the file's directory.
func Load(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve scenario path %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read scenario file %s: %w", path, err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse scenario file %s: %w", path, err)
	}

	var list []Scenario
	if len(raw.Scenarios) == 0 {
		single := raw.Scenario
		if single.Name == "" {
			single.Name = BaseName(abs)
		}
		list = []Scenario{single}
	} else {
		for _, sc := range raw.Scenarios {
			list = append(list, inherit(sc, raw.Scenario))
		}
	}

	file := &File{Path: abs}
	seen := make(map[string]bool)
	for i := range list {
		sc := list[i]
		sc.Source = abs
		sc.Fixture = resolveFixture(filepath.Dir(abs), sc.Fixture)
		if sc.Startup == "" {
			sc.Startup = StartupReady
		}
		if err := sc.validate(); err != nil {
			return nil, fmt.Errorf("%s: scenario %d: %w", path, i+1, err)
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("%s: %w: duplicate name %q", path, ErrInvalidScenario, sc.Name)
		}
		seen[sc.Name] = true
		file.Scenarios = append(file.Scenarios, &sc)
	}
	return file, nil
}

// BaseName strips the scenario suffix from a file name.
func BaseName(path string) string {
	name := filepath.Base(path)
	for _, suffix := range []string{".scenario.yaml", ".scenario.yml", ".yaml", ".yml"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

func inherit(sc, shared Scenario) Scenario {
	if sc.Fixture == "" {
		sc.Fixture = shared.Fixture
	}
	if sc.ConfigFile == "" {
		sc.ConfigFile = shared.ConfigFile
	}
	if len(sc.Command) == 0 {
		sc.Command = shared.Command
	}
	if sc.Startup == "" {
		sc.Startup = shared.Startup
	}
	if len(shared.Env) > 0 {
		env := make(map[string]string, len(shared.Env)+len(sc.Env))
		for k, v := range shared.Env {
			env[k] = v
		}
		for k, v := range sc.Env {
			env[k] = v
		}
		sc.Env = env
	}
	return sc
}

func resolveFixture(base, fixture string) string {
	if fixture == "" {
		return base
	}
	if filepath.IsAbs(fixture) {
		return filepath.Clean(fixture)
	}
	return filepath.Join(base, fixture)
}

func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidScenario)
	}
	switch sc.Startup {
	case StartupReady, StartupExit, StartupAny:
	default:
		return fmt.Errorf("%w: %q: unknown startup %q (want ready, exit or any)", ErrInvalidScenario, sc.Name, sc.Startup)
	}
	if sc.Startup == StartupExit && len(sc.Probes) > 0 {
		return fmt.Errorf("%w: %q: probes need a running app but startup is %q", ErrInvalidScenario, sc.Name, sc.Startup)
	}
	for i, p := range sc.Probes {
		if p.Path == "" {
			return fmt.Errorf("%w: %q: probe %d has no path", ErrInvalidScenario, sc.Name, i+1)
		}
	}
	for rel := range sc.Files {
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			return fmt.Errorf("%w: %q: file %q escapes the fixture", ErrInvalidScenario, sc.Name, rel)
		}
	}
	return nil
}

// EnvList returns Env as sorted KEY=VALUE pairs.
func (sc *Scenario) EnvList() []string {
	keys := make([]string, 0, len(sc.Env))
	for k := range sc.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+sc.Env[k])
	}
	return env
}

// ID is unique across a run: the source file plus the scenario name.
func (sc *Scenario) ID() string {
	return sc.Source + "#" + sc.Name
}
