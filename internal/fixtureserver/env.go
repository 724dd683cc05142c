package fixtureserver

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
)

// RunIfRequested turns the current binary into a fixture server when
// APPROBE_FIXTURE_SERVER=1, serving the working directory on $PORT, and
// exits. Test binaries call it first thing in TestMain so they can be
// launched as the app under test.
func RunIfRequested() {
	if os.Getenv(EnvVar) != "1" {
		return
	}
	os.Exit(runFromEnv())
}

func runFromEnv() int {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid PORT: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, Options{Dir: dir, Port: port, ConfigFile: os.Getenv("APPROBE_FIXTURE_CONFIG")}); err != nil {
		return 1
	}
	return 0
}

// SelfCommand returns the argv and extra environment that launch the
// running binary as a fixture server.
func SelfCommand() ([]string, []string) {
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}
	return []string{self}, []string{EnvVar + "=1"}
}
