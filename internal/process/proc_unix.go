//go:build !windows

package process

import (
	"io"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

const (
	sigTerm = unix.SIGTERM
	sigKill = unix.SIGKILL
)

// setProcessGroup puts the child in its own process group so a kill
// reaches everything it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// signalGroup signals the child's process group. The child leads its group
// (Setpgid, or Setsid under a pty) so the group id equals its pid.
// ESRCH and friends are expected once the group is gone.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	pid := cmd.Process.Pid
	_ = unix.Kill(-pid, sig)
	_ = cmd.Process.Signal(sig)
}

// startTTY starts cmd under a new pseudo-terminal. pty.Start makes the
// child a session leader, which also gives it its own process group.
func startTTY(cmd *exec.Cmd, app *App) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	app.tty = ptmx
	app.ttyDone = make(chan struct{})
	go func() {
		defer close(app.ttyDone)
		// Reading ends with EIO once the child side closes.
		_, _ = io.Copy(&streamWriter{app: app, stream: Stdout}, ptmx)
	}()
	return nil
}
