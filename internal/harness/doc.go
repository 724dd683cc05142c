// Package harness drives one application instance per test case: it
// rewrites the fixture's config file, launches the app on a free port,
// probes it over HTTP and tears everything down afterwards.
//
// Each test case works through its own Session. Attach registers the
// teardown with testing.TB.Cleanup so that, even when the test body fails,
//   - the app process group is killed,
//   - fixture files added with AddFile/AddDir are removed,
//   - the config file is restored to its original content (or removed).
//
// Sessions that share a fixture directory must not run in parallel.
package harness
