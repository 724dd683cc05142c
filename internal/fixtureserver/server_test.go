package fixtureserver

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approbe/internal/ports"
	"approbe/internal/probe"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// serve runs the fixture server in-process until the test ends.
func serve(t *testing.T, dir string) (int, *syncBuffer, *syncBuffer) {
	t.Helper()
	port, err := ports.FindFreePort()
	require.NoError(t, err)

	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Dir: dir, Port: port, Stdout: stdout, Stderr: stderr})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "ready - started server")
	}, 5*time.Second, 10*time.Millisecond)
	return port, stdout, stderr
}

func TestRun_RejectsExportIncompatibleKeys(t *testing.T) {
	for _, key := range exportIncompatible {
		t.Run(key, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, DefaultConfigFile),
				`module.exports = {"output":"export","`+key+`":[]}`)

			var stdout, stderr bytes.Buffer
			err := Run(context.Background(), Options{Dir: dir, Port: 0, Stdout: &stdout, Stderr: &stderr})
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, stderr.String(), ExportError(key))
			assert.NotContains(t, stdout.String(), "ready")
		})
	}
}

func TestRun_APIRoutesInExportMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DefaultConfigFile), `module.exports = {"output":"export"}`)
	writeFile(t, filepath.Join(dir, "pages", "api", "wow.js"), `export default (_, res) => res.end("wow")`)

	port, _, stderr := serve(t, dir)

	resp, err := probe.FetchViaHTTP(context.Background(), port, "/api/wow", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, stderr.String(), APIRoutesError)
}

func TestRun_APIRoutesWithoutExport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pages", "api", "wow.js"), `export default (_, res) => res.end("wow")`)

	port, _, stderr := serve(t, dir)

	resp, err := probe.FetchViaHTTP(context.Background(), port, "/api/wow", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, stderr.String())
}

func TestRun_Middleware(t *testing.T) {
	t.Run("export mode never runs middleware", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, DefaultConfigFile), `module.exports = {"output":"export"}`)
		writeFile(t, filepath.Join(dir, "middleware.js"), `export function middleware(req) {}`)

		port, stdout, stderr := serve(t, dir)

		resp, err := probe.FetchViaHTTP(context.Background(), port, "/api/mw", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
		assert.NotContains(t, stdout.String()+stderr.String(), MiddlewareMarker)
		assert.Contains(t, stderr.String(), MiddlewareError)
	})

	t.Run("server mode logs the marker", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "middleware.js"), `export function middleware(req) {}`)

		port, stdout, _ := serve(t, dir)

		_, err := probe.FetchViaHTTP(context.Background(), port, "/api/mw", nil, nil)
		require.NoError(t, err)
		assert.Contains(t, stdout.String(), MiddlewareMarker+" /api/mw")
	})
}

func TestRun_ServesIndexAndPages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pages", "about.js"), `export default () => "about"`)

	port, _, _ := serve(t, dir)
	ctx := context.Background()

	resp, err := probe.FetchViaHTTP(ctx, port, "/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp, err = probe.FetchViaHTTP(ctx, port, "/about", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Text(), "about")

	resp, err = probe.FetchViaHTTP(ctx, port, "/missing", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
