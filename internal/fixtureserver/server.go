// Package fixtureserver is a minimal stand-in for a framework dev server.
// It exists so the harness can be exercised end to end without a
// JavaScript toolchain: it reads a next.config.js style file, rejects
// static-export-incompatible settings with the framework's messages and
// serves a tiny page tree.
package fixtureserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"approbe/internal/configfile"
)

// EnvVar switches a binary into fixture server mode (see RunIfRequested).
const EnvVar = "APPROBE_FIXTURE_SERVER"

// DefaultConfigFile is read from the working directory.
const DefaultConfigFile = "next.config.js"

// MiddlewareMarker prefixes the line printed whenever middleware runs.
const MiddlewareMarker = "[mw]"

// ErrInvalidConfig is returned when the config cannot be served.
var ErrInvalidConfig = errors.New("invalid configuration")

// exportIncompatible lists config keys rejected with output: export, in
// the order they are reported.
var exportIncompatible = []string{"i18n", "rewrites", "redirects", "headers"}

// Options configures Run.
type Options struct {
	Dir        string
	Port       int
	ConfigFile string
	Stdout     io.Writer
	Stderr     io.Writer
}

// ExportError is the message printed for a rejected config key.
func ExportError(key string) string {
	return fmt.Sprintf("Specified %q cannot but used with \"output: export\".", key)
}

// APIRoutesError is printed when API routes exist in export mode.
const APIRoutesError = `API Routes cannot be used with "output: export".`

// MiddlewareError is printed when a middleware file exists in export mode.
const MiddlewareError = `Middleware cannot be used with "output: export".`

type site struct {
	export     bool
	middleware bool
	pagesDir   string
	stdout     io.Writer
}

// Run validates the fixture and serves it until ctx is done.
func Run(ctx context.Context, opts Options) error {
	if opts.ConfigFile == "" {
		opts.ConfigFile = DefaultConfigFile
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	cfg, err := readConfig(filepath.Join(opts.Dir, opts.ConfigFile))
	if err != nil {
		fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
		return err
	}

	s := &site{
		export:   cfg["output"] == "export",
		pagesDir: filepath.Join(opts.Dir, "pages"),
		stdout:   opts.Stdout,
	}
	_, statErr := os.Stat(filepath.Join(opts.Dir, "middleware.js"))
	s.middleware = statErr == nil

	if s.export {
		var rejected bool
		for _, key := range exportIncompatible {
			if _, ok := cfg[key]; ok {
				fmt.Fprintf(opts.Stderr, "Error: %s\n", ExportError(key))
				rejected = true
			}
		}
		if rejected {
			return ErrInvalidConfig
		}
		if hasFiles(filepath.Join(s.pagesDir, "api")) {
			fmt.Fprintf(opts.Stderr, "Error: %s\n", APIRoutesError)
		}
		if s.middleware {
			fmt.Fprintf(opts.Stderr, "Error: %s\n", MiddlewareError)
		}
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
		return err
	}
	srv := &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}

	fmt.Fprintf(opts.Stdout, "ready - started server on 0.0.0.0:%d, url: http://localhost:%d\n", opts.Port, opts.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func readConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	return configfile.Decode(path, data)
}

func hasFiles(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.middleware {
		// Export mode never runs middleware.
		if s.export {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(s.stdout, "%s %s\n", MiddlewareMarker, r.URL.String())
	}

	route := strings.Trim(r.URL.Path, "/")
	if route == "" {
		route = "index"
	}
	if strings.HasPrefix(route, "api/") && s.export {
		http.NotFound(w, r)
		return
	}

	page := filepath.Join(s.pagesDir, filepath.FromSlash(route)+".js")
	if _, err := os.Stat(page); err != nil {
		if route == "index" {
			fmt.Fprint(w, "<html><body>index</body></html>")
			return
		}
		http.NotFound(w, r)
		return
	}
	fmt.Fprintf(w, "<html><body>%s</body></html>", route)
}
