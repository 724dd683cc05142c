package harness

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approbe/internal/configfile"
	"approbe/internal/fixtureserver"
	"approbe/internal/process"
)

var fixture = filepath.Join("testdata", "config-output-export")

func fixtureOptions() Options {
	command, env := fixtureserver.SelfCommand()
	return Options{
		Launch: process.Options{
			Command:        command,
			Env:            env,
			StartupTimeout: 20 * time.Second,
			KillTimeout:    2 * time.Second,
		},
	}
}

func newSession(t *testing.T) *Session {
	t.Helper()
	ExpectDirRestored(t, fixture)
	return Attach(t, fixture, fixtureOptions())
}

func TestConfigOutputExport_RejectedKeys(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"i18n", map[string]any{"locales": []string{"en"}, "defaultLocale": "en"}},
		{"rewrites", []map[string]any{{"source": "/from", "destination": "/to"}}},
		{"redirects", []map[string]any{{"source": "/from", "destination": "/to", "permanent": true}}},
		{"headers", []map[string]any{{
			"source":  "/foo",
			"headers": []map[string]string{{"key": "x-foo", "value": "val"}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s := newSession(t)
			run, err := s.RunDev(context.Background(), map[string]any{
				"output": "export",
				tt.key:   tt.value,
			})
			require.NoError(t, err)

			AssertExitedBeforeReady(t, run)
			AssertStderrContains(t, run, `Specified "`+tt.key+`" cannot but used with "output: export".`)
		})
	}
}

func TestConfigOutputExport_APIRoutes(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.AddFile("pages/api/wow.js", `export default (_, res) => res.end("wow")`))

	run, err := s.RunDev(context.Background(), map[string]any{"output": "export"})
	require.NoError(t, err)
	resp, err := s.Fetch(context.Background(), "/api/wow", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	AssertStatus(t, resp, 404)
	AssertStderrContains(t, run, fixtureserver.APIRoutesError)
}

func TestConfigOutputExport_Middleware(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.AddFile("middleware.js", `export function middleware(req) { console.log("[mw]",request.url) }`))

	run, err := s.RunDev(context.Background(), map[string]any{"output": "export"})
	require.NoError(t, err)
	resp, err := s.Fetch(context.Background(), "/api/mw", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	AssertStatus(t, resp, 404)
	AssertOutputNotContains(t, run, fixtureserver.MiddlewareMarker)
	AssertStderrContains(t, run, fixtureserver.MiddlewareError)
}

func TestMiddlewareRunsWithoutExport(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.AddFile("middleware.js", `export function middleware(req) {}`))

	run, err := s.RunDev(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.NoError(t, run.StartErr)

	resp, err := s.Fetch(context.Background(), "/", nil, nil)
	require.NoError(t, err)
	AssertStatus(t, resp, 200)
	AssertStdoutContains(t, run, fixtureserver.MiddlewareMarker+" /")
}

func TestSession_FetchBeforeRun(t *testing.T) {
	s := newSession(t)
	_, err := s.Fetch(context.Background(), "/", nil, nil)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.NoError(t, s.Stop())
}

func TestSession_RunDevReplacesPreviousApp(t *testing.T) {
	s := newSession(t)
	first, err := s.RunDev(context.Background(), map[string]any{})
	require.NoError(t, err)
	second, err := s.RunDev(context.Background(), map[string]any{})
	require.NoError(t, err)

	assert.True(t, first.App.Exited(), "previous app must be killed before relaunch")
	assert.False(t, second.App.Exited())
	assert.Same(t, second, s.Current())
}

func TestSession_TeardownExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSession(dir, fixtureOptions())
	require.NoError(t, err)

	run, err := s.RunDev(context.Background(), map[string]any{"reactStrictMode": true})
	require.NoError(t, err)
	require.FileExists(t, s.ConfigPath())

	assert.Empty(t, s.Teardown())
	assert.True(t, run.App.Exited())
	assert.NoFileExists(t, s.ConfigPath())

	// A second teardown must not touch files written since.
	require.NoError(t, os.WriteFile(s.ConfigPath(), []byte("module.exports = {}"), 0644))
	assert.Empty(t, s.Teardown())
	assert.FileExists(t, s.ConfigPath())
}

func TestSession_AddFileRestoresFixture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("original"), 0644))
	before, err := SnapshotDir(dir)
	require.NoError(t, err)

	s, err := NewSession(dir, fixtureOptions())
	require.NoError(t, err)
	require.NoError(t, s.AddFile("existing.txt", "changed"))
	require.NoError(t, s.AddFile("nested/deep/new.txt", "new"))
	require.NoError(t, s.AddDir("empty/dir"))

	data, err := os.ReadFile(filepath.Join(dir, "existing.txt"))
	require.NoError(t, err)
	assert.Equal(t, "changed", string(data))
	assert.DirExists(t, filepath.Join(dir, "empty", "dir"))

	assert.Empty(t, s.Teardown())
	AssertDirUnchanged(t, before, dir)
}

func TestSession_AddFileStaysInsideFixture(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "fixture")
	require.NoError(t, os.Mkdir(dir, 0755))

	s, err := NewSession(dir, fixtureOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Teardown() })

	for _, rel := range []string{"../outside.js", "pages/../../outside.js", "/tmp/outside.js"} {
		assert.ErrorIs(t, s.AddFile(rel, "x"), ErrOutsideFixture, rel)
	}
	assert.ErrorIs(t, s.AddDir("../sibling"), ErrOutsideFixture)
	assert.NoFileExists(t, filepath.Join(parent, "outside.js"))
	assert.NoDirExists(t, filepath.Join(parent, "sibling"))

	require.NoError(t, s.AddFile("..env.js", "x"))
	assert.FileExists(t, filepath.Join(dir, "..env.js"))
}

// cleanupRecorder captures cleanups so a test can run them itself.
type cleanupRecorder struct {
	testing.TB
	cleanups []func()
	logs     []string
}

func (r *cleanupRecorder) Cleanup(fn func()) { r.cleanups = append(r.cleanups, fn) }

func (r *cleanupRecorder) Logf(format string, args ...any) {
	r.logs = append(r.logs, format)
}

func (r *cleanupRecorder) runCleanups() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}

func TestAttach_TeardownAfterFailedBody(t *testing.T) {
	dir := t.TempDir()
	rec := &cleanupRecorder{TB: t}

	s := Attach(rec, dir, fixtureOptions())
	run, err := s.RunDev(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.NoError(t, s.AddFile("pages/api/x.js", "x"))
	require.Len(t, rec.cleanups, 1)

	// The body "fails" here; only the registered cleanup remains.
	rec.runCleanups()

	assert.True(t, run.App.Exited())
	assert.NoFileExists(t, s.ConfigPath())
	assert.NoDirExists(t, filepath.Join(dir, "pages"))
	assert.Empty(t, rec.logs)
}

func TestSession_StartupTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	s := Attach(t, dir, Options{Launch: process.Options{
		Command:        []string{"sh", "-c", "exec sleep 30"},
		StartupTimeout: 200 * time.Millisecond,
		KillTimeout:    time.Second,
	}})

	run, err := s.RunDev(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, process.ErrStartupTimeout)
	assert.Nil(t, run)
	require.NotNil(t, s.Current())
	assert.True(t, s.Current().App.Exited())
}

func TestSession_JournalClearedAfterTeardown(t *testing.T) {
	dir := t.TempDir()
	journal := configfile.NewJournal(filepath.Join(t.TempDir(), "journal"))
	opts := fixtureOptions()
	opts.Journal = journal

	s, err := NewSession(dir, opts)
	require.NoError(t, err)
	_, err = s.RunDev(context.Background(), map[string]any{})
	require.NoError(t, err)

	pending, err := journal.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	assert.Empty(t, s.Teardown())
	pending, err = journal.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}
