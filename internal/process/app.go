// Package process launches the application under test as a child process,
// captures its output streams and tears it down.
package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Stream identifies one of the child's output streams.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Chunk is one piece of output as delivered by the OS.
type Chunk struct {
	Stream Stream
	Data   string
}

var (
	// ErrStartupTimeout is returned when the app shows no readiness signal
	// within the startup timeout. The process has been killed.
	ErrStartupTimeout = errors.New("server failed to start before timeout")
	// ErrExitedBeforeReady is returned when the app exits during startup.
	// The App is still returned so its captured output can be inspected.
	ErrExitedBeforeReady = errors.New("server exited before becoming ready")
	// ErrExited is returned by WaitFor when the process is gone and the
	// pattern never matched.
	ErrExited = errors.New("process exited")
	// ErrNoCommand is returned when Options.Command is empty.
	ErrNoCommand = errors.New("no command configured")
)

// App is a running (or finished) application process. It is owned by the
// caller that launched it; Kill must be called before the next launch.
type App struct {
	Port int
	Dir  string

	cmd         *exec.Cmd
	killTimeout time.Duration
	// signal delivers a signal to the child's process group.
	signal func(*exec.Cmd, syscall.Signal)
	// swept guards the one group-wide SIGKILL sent after the leader is
	// gone; the group id may be reused once the group is empty.
	swept sync.Once

	// tty is set when the app runs under a pseudo-terminal; ttyDone closes
	// when the reader has drained it.
	tty     *os.File
	ttyDone chan struct{}

	mu       sync.Mutex
	buffers  [2]strings.Builder
	partial  [2]string
	subs     []*Subscription
	nextSub  int
	exitErr  error
	exited   bool
	isReady  bool
	readyRe  *regexp.Regexp
	ready    chan struct{}
	done     chan struct{}
	readyOne sync.Once
}

func newApp(dir string, port int, readyRe *regexp.Regexp, killTimeout time.Duration) *App {
	return &App{
		Port:        port,
		Dir:         dir,
		killTimeout: killTimeout,
		signal:      signalGroup,
		readyRe:     readyRe,
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Subscription is a detachable output observer.
type Subscription struct {
	app *App
	id  int
	fn  func(Chunk)
}

// Subscribe registers fn for every chunk captured from now on. Callbacks run
// on the goroutine copying that stream, in arrival order for that stream;
// callbacks for stdout and stderr may run concurrently and must not block.
func (a *App) Subscribe(fn func(Chunk)) *Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextSub++
	sub := &Subscription{app: a, id: a.nextSub, fn: fn}
	a.subs = append(a.subs, sub)
	return sub
}

// Close detaches the subscription. Other observers keep receiving chunks.
func (s *Subscription) Close() {
	if s == nil || s.app == nil {
		return
	}
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, sub := range a.subs {
		if sub.id == s.id {
			a.subs = append(a.subs[:i:i], a.subs[i+1:]...)
			return
		}
	}
}

// record appends a chunk, checks the readiness pattern and fans out.
func (a *App) record(stream Stream, data string) {
	a.mu.Lock()
	a.buffers[stream].WriteString(data)

	line := a.partial[stream] + data
	if idx := strings.LastIndexByte(line, '\n'); idx >= 0 {
		a.partial[stream] = line[idx+1:]
	} else {
		a.partial[stream] = line
	}
	matched := a.readyRe != nil && a.readyRe.MatchString(line)

	subs := make([]*Subscription, len(a.subs))
	copy(subs, a.subs)
	a.mu.Unlock()

	if matched {
		a.markReady()
	}
	chunk := Chunk{Stream: stream, Data: data}
	for _, sub := range subs {
		sub.fn(chunk)
	}
}

func (a *App) markReady() {
	a.readyOne.Do(func() {
		a.mu.Lock()
		a.isReady = true
		a.mu.Unlock()
		close(a.ready)
	})
}

type streamWriter struct {
	app    *App
	stream Stream
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.app.record(w.stream, string(p))
	return len(p), nil
}

// Output returns everything captured so far on the stream.
func (a *App) Output(stream Stream) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffers[stream].String()
}

// Stdout returns the captured standard output.
func (a *App) Stdout() string { return a.Output(Stdout) }

// Stderr returns the captured standard error.
func (a *App) Stderr() string { return a.Output(Stderr) }

// Pid returns the child's process id, or 0 if it never started.
func (a *App) Pid() int {
	if a == nil || a.cmd == nil || a.cmd.Process == nil {
		return 0
	}
	return a.cmd.Process.Pid
}

// Ready reports whether a readiness signal was observed.
func (a *App) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isReady
}

// Done is closed once the process has exited and its streams are drained.
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Exited reports whether the process has exited.
func (a *App) Exited() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exited
}

// ExitErr returns the error from waiting on the process (nil for exit 0).
func (a *App) ExitErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exitErr
}

// ExitCode returns the exit code, or -1 while running or when killed by a signal.
func (a *App) ExitCode() int {
	if !a.Exited() || a.cmd.ProcessState == nil {
		return -1
	}
	return a.cmd.ProcessState.ExitCode()
}

// WaitFor blocks until the captured output of stream matches pattern.
func (a *App) WaitFor(ctx context.Context, stream Stream, pattern *regexp.Regexp) error {
	notify := make(chan struct{}, 1)
	sub := a.Subscribe(func(c Chunk) {
		if c.Stream != stream {
			return
		}
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer sub.Close()

	for {
		if pattern.MatchString(a.Output(stream)) {
			return nil
		}
		select {
		case <-notify:
		case <-a.done:
			if pattern.MatchString(a.Output(stream)) {
				return nil
			}
			return ErrExited
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *App) wait() {
	err := a.cmd.Wait()
	if a.tty != nil {
		select {
		case <-a.ttyDone:
		case <-time.After(a.killTimeout):
		}
		a.tty.Close()
	}

	a.mu.Lock()
	a.exitErr = err
	a.exited = true
	a.mu.Unlock()
	close(a.done)
}
