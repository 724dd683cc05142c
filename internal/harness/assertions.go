package harness

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approbe/internal/probe"
	"approbe/internal/process"
)

// OutputSettle bounds how long stream assertions wait for output that a
// still-running app has not flushed yet.
var OutputSettle = 2 * time.Second

func awaitOutput(run *Run, stream process.Stream, expected string) {
	if run == nil || run.App == nil || run.App.Exited() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), OutputSettle)
	defer cancel()
	_ = run.App.WaitFor(ctx, stream, regexp.MustCompile(regexp.QuoteMeta(expected)))
}

// AssertStderrContains verifies stderr contains the expected string.
func AssertStderrContains(tb testing.TB, run *Run, expected string) {
	tb.Helper()
	require.NotNil(tb, run, "no run to inspect")
	awaitOutput(run, process.Stderr, expected)
	assert.Contains(tb, run.Stderr(), expected,
		"Expected stderr to contain %q.\nActual stderr: %s",
		expected, run.Stderr())
}

// AssertStdoutContains verifies stdout contains the expected string.
func AssertStdoutContains(tb testing.TB, run *Run, expected string) {
	tb.Helper()
	require.NotNil(tb, run, "no run to inspect")
	awaitOutput(run, process.Stdout, expected)
	assert.Contains(tb, run.Stdout(), expected,
		"Expected stdout to contain %q.\nActual stdout: %s",
		expected, run.Stdout())
}

// AssertOutputNotContains verifies neither stream contains the string.
// Call it after Session.Stop so the output is complete.
func AssertOutputNotContains(tb testing.TB, run *Run, unexpected string) {
	tb.Helper()
	require.NotNil(tb, run, "no run to inspect")
	assert.NotContains(tb, run.Output(), unexpected,
		"Expected output NOT to contain %q.\nStdout: %s\nStderr: %s",
		unexpected, run.Stdout(), run.Stderr())
}

// AssertStatus verifies the probe response status.
func AssertStatus(tb testing.TB, resp *probe.Response, expected int) {
	tb.Helper()
	require.NotNil(tb, resp, "no response to inspect")
	assert.Equal(tb, expected, resp.Status,
		"Expected status %d from %s, got %d.\nBody: %s",
		expected, resp.URL, resp.Status, resp.Text())
}

// AssertExitedBeforeReady verifies the app rejected its startup.
func AssertExitedBeforeReady(tb testing.TB, run *Run) {
	tb.Helper()
	require.NotNil(tb, run, "no run to inspect")
	assert.ErrorIs(tb, run.StartErr, process.ErrExitedBeforeReady,
		"Expected the app to exit during startup.\nStdout: %s\nStderr: %s",
		run.Stdout(), run.Stderr())
}

// SnapshotDir maps every regular file under dir, by slash-separated
// relative path, to the hex SHA-256 of its content.
func SnapshotDir(dir string) (map[string]string, error) {
	snap := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." {
				snap[filepath.ToSlash(rel)+"/"] = ""
			}
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		snap[filepath.ToSlash(rel)] = hex.EncodeToString(sum[:])
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	return snap, err
}

// AssertDirUnchanged compares dir against an earlier SnapshotDir.
func AssertDirUnchanged(tb testing.TB, before map[string]string, dir string) {
	tb.Helper()
	after, err := SnapshotDir(dir)
	require.NoError(tb, err)
	if diff := cmp.Diff(before, after); diff != "" {
		assert.Fail(tb, "fixture directory changed", "%s (-before +after):\n%s", dir, diff)
	}
}

// ExpectDirRestored snapshots dir now and checks it again after every
// cleanup registered later has run. Call it before Attach.
func ExpectDirRestored(tb testing.TB, dir string) {
	tb.Helper()
	before, err := SnapshotDir(dir)
	require.NoError(tb, err)
	tb.Cleanup(func() {
		AssertDirUnchanged(tb, before, dir)
	})
}
