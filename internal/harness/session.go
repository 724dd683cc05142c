package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"approbe/internal/configfile"
	"approbe/internal/logging"
	"approbe/internal/ports"
	"approbe/internal/probe"
	"approbe/internal/process"
)

// DefaultConfigFile is the config file rewritten by RunDev.
const DefaultConfigFile = "next.config.js"

// ErrNotRunning is returned by Fetch before RunDev has launched an app.
var ErrNotRunning = errors.New("no app launched in this session")

// ErrOutsideFixture is returned by AddFile and AddDir for paths that would
// leave the fixture directory.
var ErrOutsideFixture = errors.New("path escapes the fixture directory")

// Options configures a Session.
type Options struct {
	// ConfigFile is relative to the fixture directory.
	ConfigFile string
	// Launch is the template for every launch. Command must be set.
	Launch process.Options
	// Journal, when set, records config snapshots for crash recovery.
	Journal *configfile.Journal
	// Port picks the port for the next launch. Defaults to ports.FindFreePort.
	Port func() (int, error)
}

// Run is one launch of the app.
type Run struct {
	Port int
	App  *process.App
	// StartErr wraps process.ErrExitedBeforeReady when the app rejected its
	// configuration during startup. The captured output is complete then.
	StartErr error
}

// Stdout returns the output captured so far.
func (r *Run) Stdout() string { return r.App.Stdout() }

// Stderr returns the error output captured so far.
func (r *Run) Stderr() string { return r.App.Stderr() }

// Output returns stdout followed by stderr.
func (r *Run) Output() string { return r.App.Stdout() + r.App.Stderr() }

// Session is the state of a single test case against one fixture directory.
type Session struct {
	Dir string

	opts   Options
	config *configfile.File

	mu    sync.Mutex
	run   *Run
	added []*configfile.File
	dirs  []string

	teardownOnce sync.Once
}

// NewSession snapshots the fixture's config file. The caller owns the
// returned Session and must call Teardown.
func NewSession(dir string, opts Options) (*Session, error) {
	if opts.ConfigFile == "" {
		opts.ConfigFile = DefaultConfigFile
	}
	if opts.Port == nil {
		opts.Port = ports.FindFreePort
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve fixture dir: %w", err)
	}

	var fileOpts []configfile.Option
	if opts.Journal != nil {
		fileOpts = append(fileOpts, configfile.WithJournal(opts.Journal))
	}
	cfg, err := configfile.Attach(filepath.Join(abs, opts.ConfigFile), fileOpts...)
	if err != nil {
		return nil, err
	}
	return &Session{Dir: abs, opts: opts, config: cfg}, nil
}

// Attach creates a Session for tb and registers its teardown as a cleanup.
// Teardown errors are logged, never reported as failures.
func Attach(tb testing.TB, dir string, opts Options) *Session {
	tb.Helper()
	s, err := NewSession(dir, opts)
	if err != nil {
		tb.Fatalf("attach fixture %s: %v", dir, err)
	}
	tb.Cleanup(func() {
		for _, err := range s.Teardown() {
			tb.Logf("teardown: %v", err)
		}
	})
	return s
}

// ConfigPath returns the absolute path of the managed config file.
func (s *Session) ConfigPath() string {
	return s.config.Path()
}

// fixturePath resolves rel inside the session directory. Absolute paths
// and paths climbing out with ".." are rejected.
func (s *Session) fixturePath(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrOutsideFixture, rel)
	}
	return filepath.Join(s.Dir, local), nil
}

// AddFile writes a fixture file relative to the session directory. Missing
// parent directories are created. Teardown restores or removes both.
func (s *Session) AddFile(rel string, content string) error {
	path, err := s.fixturePath(rel)
	if err != nil {
		return err
	}
	if err := s.AddDir(filepath.Dir(rel)); err != nil {
		return err
	}
	f, err := configfile.Attach(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.added = append(s.added, f)
	s.mu.Unlock()
	return f.Write(content)
}

// AddDir creates a fixture directory and any missing parents. Teardown
// removes the directories this call created.
func (s *Session) AddDir(rel string) error {
	if rel == "" || rel == "." {
		return nil
	}
	path, err := s.fixturePath(rel)
	if err != nil {
		return err
	}

	// Find the topmost missing ancestor; that is what teardown removes.
	top := ""
	for p := path; p != s.Dir && p != filepath.Dir(p); p = filepath.Dir(p) {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			top = p
		} else {
			break
		}
	}
	if top == "" {
		return nil
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create fixture dir %s: %w", rel, err)
	}
	s.mu.Lock()
	s.dirs = append(s.dirs, top)
	s.mu.Unlock()
	return nil
}

// RunDev writes config, picks a port and launches the app. A startup
// rejection (the app exiting before it became ready) is not an error: it
// is reported in Run.StartErr with the output still readable. Any previous
// app of this session is killed first.
func (s *Session) RunDev(ctx context.Context, config any) (*Run, error) {
	if err := s.Stop(); err != nil {
		return nil, err
	}
	if config != nil {
		if err := s.config.Write(config); err != nil {
			return nil, err
		}
	}
	port, err := s.opts.Port()
	if err != nil {
		return nil, fmt.Errorf("find port: %w", err)
	}

	app, err := process.Launch(ctx, s.Dir, port, s.opts.Launch)
	if app != nil {
		s.mu.Lock()
		s.run = &Run{Port: port, App: app}
		s.mu.Unlock()
	}
	switch {
	case err == nil:
	case errors.Is(err, process.ErrExitedBeforeReady):
		s.run.StartErr = err
		logging.Logger.Debug("app rejected startup",
			zap.String("dir", s.Dir),
			zap.Int("exit_code", app.ExitCode()),
		)
	default:
		return nil, err
	}
	return s.run, nil
}

// Current returns the latest run, or nil.
func (s *Session) Current() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Fetch probes the current run's port.
func (s *Session) Fetch(ctx context.Context, path string, query url.Values, opts *probe.RequestOptions) (*probe.Response, error) {
	run := s.Current()
	if run == nil {
		return nil, ErrNotRunning
	}
	return probe.FetchViaHTTP(ctx, run.Port, path, query, opts)
}

// Stop kills the current app and waits for its output to drain. The config
// file stays as written until Teardown.
func (s *Session) Stop() error {
	run := s.Current()
	if run == nil {
		return nil
	}
	if err := run.App.Kill(); err != nil {
		return fmt.Errorf("stop app on port %d: %w", run.Port, err)
	}
	return nil
}

// Teardown kills the app, removes added fixture files and restores the
// config file. Only the first call does any work; later calls return nil.
// Every step runs even when an earlier one fails.
func (s *Session) Teardown() []error {
	var errs []error
	s.teardownOnce.Do(func() {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}

		s.mu.Lock()
		added, dirs := s.added, s.dirs
		s.mu.Unlock()

		for i := len(added) - 1; i >= 0; i-- {
			if err := added[i].Restore(); err != nil {
				errs = append(errs, err)
			}
		}
		for i := len(dirs) - 1; i >= 0; i-- {
			if err := os.RemoveAll(dirs[i]); err != nil {
				errs = append(errs, fmt.Errorf("remove fixture dir: %w", err))
			}
		}
		if err := s.config.Restore(); err != nil {
			errs = append(errs, err)
		}

		logging.Logger.Debug("session torn down",
			zap.String("dir", s.Dir),
			zap.Int("errors", len(errs)),
		)
	})
	return errs
}
