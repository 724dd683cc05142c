package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"approbe/internal/logging"
	"approbe/internal/probe"
)

const (
	defaultStartupTimeout = 30 * time.Second
	defaultKillTimeout    = 5 * time.Second
	healthPollInterval    = 100 * time.Millisecond
)

// DefaultReadyPattern matches the readiness line printed by common dev servers.
var DefaultReadyPattern = regexp.MustCompile(`(?i)\b(ready|listening|started server)\b`)

// Options configures Launch.
type Options struct {
	// Command is the argv to run. "{port}" and "{dir}" are substituted.
	Command []string
	// Env is appended to the inherited environment, after the fixture's
	// .env file and PORT, so it wins on conflicts.
	Env []string

	// Stdout and Stderr mirror the child's streams to the parent's.
	Stdout bool
	Stderr bool
	// OnStdout and OnStderr receive every chunk of their stream.
	OnStdout func(string)
	OnStderr func(string)

	// TTY runs the child under a pseudo-terminal. Both streams then arrive
	// on Stdout.
	TTY bool

	// ReadyPattern is matched against each output line. Nil uses
	// DefaultReadyPattern.
	ReadyPattern *regexp.Regexp
	// HealthPath, when set, is polled over HTTP until any response arrives.
	HealthPath string

	StartupTimeout time.Duration
	KillTimeout    time.Duration
}

// Launch starts the app in dir bound to port and returns once it signals
// readiness. When the process was started the App is returned even with an
// error: after ErrExitedBeforeReady its output is complete, after
// ErrStartupTimeout or context cancellation it has already been killed.
func Launch(ctx context.Context, dir string, port int, opts Options) (*App, error) {
	if len(opts.Command) == 0 {
		return nil, ErrNoCommand
	}
	startupTimeout := opts.StartupTimeout
	if startupTimeout <= 0 {
		startupTimeout = defaultStartupTimeout
	}
	killTimeout := opts.KillTimeout
	if killTimeout <= 0 {
		killTimeout = defaultKillTimeout
	}
	readyRe := opts.ReadyPattern
	if readyRe == nil {
		readyRe = DefaultReadyPattern
	}

	argv := ExpandCommand(opts.Command, dir, port)
	env, err := buildEnv(dir, port, opts.Env)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.WaitDelay = killTimeout

	app := newApp(dir, port, readyRe, killTimeout)
	app.cmd = cmd
	attachObservers(app, opts)

	if opts.TTY {
		err = startTTY(cmd, app)
	} else {
		cmd.Stdout = &streamWriter{app: app, stream: Stdout}
		cmd.Stderr = &streamWriter{app: app, stream: Stderr}
		setProcessGroup(cmd)
		err = cmd.Start()
	}
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}
	go app.wait()

	logging.Logger.Debug("launched app",
		zap.Strings("argv", argv),
		zap.String("dir", dir),
		zap.Int("port", port),
		zap.Int("pid", cmd.Process.Pid),
	)

	if err := app.awaitReady(ctx, startupTimeout, opts.HealthPath); err != nil {
		return app, err
	}
	return app, nil
}

func attachObservers(app *App, opts Options) {
	if opts.Stdout || opts.OnStdout != nil {
		app.Subscribe(func(c Chunk) {
			if c.Stream != Stdout {
				return
			}
			if opts.Stdout {
				os.Stdout.WriteString(c.Data)
			}
			if opts.OnStdout != nil {
				opts.OnStdout(c.Data)
			}
		})
	}
	if opts.Stderr || opts.OnStderr != nil {
		app.Subscribe(func(c Chunk) {
			if c.Stream != Stderr {
				return
			}
			if opts.Stderr {
				os.Stderr.WriteString(c.Data)
			}
			if opts.OnStderr != nil {
				opts.OnStderr(c.Data)
			}
		})
	}
}

func (a *App) awaitReady(ctx context.Context, timeout time.Duration, healthPath string) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	var healthy <-chan struct{}
	if healthPath != "" {
		healthy = a.pollHealth(pollCtx, healthPath)
	}

	select {
	case <-a.ready:
		logging.Logger.Debug("app ready", zap.Int("port", a.Port), zap.String("signal", "output"))
		return nil
	case <-healthy:
		a.markReady()
		logging.Logger.Debug("app ready", zap.Int("port", a.Port), zap.String("signal", "health"))
		return nil
	case <-a.done:
		// Output may have carried the readiness line right before exiting.
		if a.Ready() {
			return nil
		}
		return fmt.Errorf("%w (exit code %d)", ErrExitedBeforeReady, a.ExitCode())
	case <-timer.C:
		_ = a.Kill()
		return fmt.Errorf("%w after %s", ErrStartupTimeout, timeout)
	case <-ctx.Done():
		_ = a.Kill()
		return ctx.Err()
	}
}

func (a *App) pollHealth(ctx context.Context, path string) <-chan struct{} {
	healthy := make(chan struct{})
	go func() {
		ticker := time.NewTicker(healthPollInterval)
		defer ticker.Stop()
		for {
			resp, err := probe.FetchViaHTTP(ctx, a.Port, path, nil, &probe.RequestOptions{Timeout: time.Second})
			if err == nil && resp != nil {
				close(healthy)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-a.done:
				return
			case <-ticker.C:
			}
		}
	}()
	return healthy
}

// Kill terminates the process group: SIGTERM, a bounded wait, then SIGKILL.
// It is a no-op returning nil for a nil App, an App that never started, or
// one that already exited, and may be called any number of times.
func (a *App) Kill() error {
	if a == nil || a.cmd == nil || a.cmd.Process == nil {
		return nil
	}

	select {
	case <-a.done:
		a.sweep()
		return nil
	default:
	}

	pid := a.cmd.Process.Pid
	a.signal(a.cmd, sigTerm)
	select {
	case <-a.done:
		logging.Logger.Debug("app stopped", zap.Int("pid", pid))
		a.sweep()
		return nil
	case <-time.After(a.killTimeout):
	}

	logging.Logger.Debug("app ignored SIGTERM, killing", zap.Int("pid", pid))
	a.swept.Do(func() { a.signal(a.cmd, sigKill) })
	select {
	case <-a.done:
		return nil
	case <-time.After(a.killTimeout):
		return fmt.Errorf("process %d did not exit after kill", pid)
	}
}

// sweep kills stragglers left in the group once the leader has exited. It
// runs at most once per App.
func (a *App) sweep() {
	a.swept.Do(func() { a.signal(a.cmd, sigKill) })
}

// ExpandCommand substitutes {port} and {dir} in every argument.
func ExpandCommand(command []string, dir string, port int) []string {
	r := strings.NewReplacer("{port}", strconv.Itoa(port), "{dir}", dir)
	argv := make([]string, len(command))
	for i, arg := range command {
		argv[i] = r.Replace(arg)
	}
	return argv
}

func buildEnv(dir string, port int, extra []string) ([]string, error) {
	env := os.Environ()

	dotenv := filepath.Join(dir, ".env")
	vars, err := godotenv.Read(dotenv)
	switch {
	case err == nil:
		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+vars[k])
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", dotenv, err)
	}

	env = append(env, "PORT="+strconv.Itoa(port))
	return append(env, extra...), nil
}
