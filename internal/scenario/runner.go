package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"approbe/internal/configfile"
	"approbe/internal/domain"
	"approbe/internal/harness"
	"approbe/internal/logging"
	"approbe/internal/probe"
	"approbe/internal/process"
)

// Runner runs scenarios. Zero values fall back to the process defaults.
type Runner struct {
	Command        []string
	Env            []string
	ConfigFile     string
	ReadyPattern   *regexp.Regexp
	StartupTimeout time.Duration
	KillTimeout    time.Duration
	ProbeTimeout   time.Duration
	Journal        *configfile.Journal
}

// Run executes sc against an app bound to port. It never returns early
// without tearing the fixture down; teardown problems land in Warnings.
func (r *Runner) Run(ctx context.Context, sc *Scenario, port int) (result domain.ScenarioResult) {
	start := time.Now()
	result = domain.ScenarioResult{
		Name:     sc.Name,
		FilePath: sc.Source,
		Fixture:  sc.Fixture,
		Port:     port,
	}
	defer func() {
		result.Duration = time.Since(start)
		result.Success = result.Error == nil && len(result.Failures) == 0
	}()

	s, err := harness.NewSession(sc.Fixture, r.sessionOptions(sc, port))
	if err != nil {
		result.Error = err
		return result
	}
	defer func() {
		for _, err := range s.Teardown() {
			result.Warnings = append(result.Warnings, err.Error())
		}
	}()

	for _, rel := range sortedKeys(sc.Files) {
		if err := s.AddFile(rel, sc.Files[rel]); err != nil {
			result.Error = err
			return result
		}
	}

	var config any
	if sc.Config != nil {
		config = sc.Config
	}
	run, err := s.RunDev(ctx, config)
	if err != nil {
		result.Error = err
		return result
	}

	fail := func(expectation, expected, format string, args ...any) {
		result.Failures = append(result.Failures, domain.ScenarioFailure{
			Scenario:    sc.Name,
			FilePath:    sc.Source,
			Fixture:     sc.Fixture,
			Expectation: expectation,
			Expected:    expected,
			Message:     fmt.Sprintf(format, args...),
		})
	}

	started := run.StartErr == nil
	switch {
	case sc.Startup == StartupReady && !started:
		fail("startup", string(StartupReady), "app exited before becoming ready (exit code %d)", run.App.ExitCode())
	case sc.Startup == StartupExit && started:
		fail("startup", string(StartupExit), "app started on port %d but was expected to reject its configuration", port)
	}

	for _, p := range sc.Probes {
		if !started {
			// Nothing is listening; an unanswered probe is still a failed one.
			fail("probe", probeTarget(p), "%s: app not running (exit code %d)", probeTarget(p), run.App.ExitCode())
			continue
		}
		r.probe(ctx, p, port, fail)
	}

	if err := s.Stop(); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.Stdout = run.Stdout()
	result.Stderr = run.Stderr()
	checkOutput(sc.Expect, result.Stdout, result.Stderr, fail)

	logging.Logger.Debug("scenario finished",
		zap.String("scenario", sc.Name),
		zap.String("fixture", sc.Fixture),
		zap.Int("port", port),
		zap.Int("failures", len(result.Failures)),
	)
	return result
}

func (r *Runner) sessionOptions(sc *Scenario, port int) harness.Options {
	command := sc.Command
	if len(command) == 0 {
		command = r.Command
	}
	env := append(append([]string{}, r.Env...), sc.EnvList()...)
	return harness.Options{
		ConfigFile: firstNonEmpty(sc.ConfigFile, r.ConfigFile),
		Journal:    r.Journal,
		Port:       func() (int, error) { return port, nil },
		Launch: process.Options{
			Command:        command,
			Env:            env,
			ReadyPattern:   r.ReadyPattern,
			StartupTimeout: r.StartupTimeout,
			KillTimeout:    r.KillTimeout,
		},
	}
}

func (r *Runner) probe(ctx context.Context, p Probe, port int, fail func(string, string, string, ...any)) {
	target := probeTarget(p)

	query := url.Values{}
	for _, k := range sortedKeys(p.Query) {
		query.Set(k, p.Query[k])
	}
	opts := &probe.RequestOptions{
		Method:  p.Method,
		Headers: p.Headers,
		Timeout: r.ProbeTimeout,
	}
	if p.Body != "" {
		opts.Body = []byte(p.Body)
	}

	resp, err := probe.FetchViaHTTP(ctx, port, p.Path, query, opts)
	if err != nil {
		msg := err.Error()
		if probe.IsConnRefused(err) {
			msg = "connection refused"
		} else if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		fail("probe", target, "%s: %s", target, msg)
		return
	}
	if p.ExpectStatus != 0 && resp.Status != p.ExpectStatus {
		fail("status", strconv.Itoa(p.ExpectStatus), "%s returned %d, expected %d", target, resp.Status, p.ExpectStatus)
	}
	body := resp.Text()
	for _, want := range p.BodyContains {
		if !strings.Contains(body, want) {
			fail("body_contains", want, "%s body does not contain %q", target, want)
		}
	}
}

// probeTarget formats p as "GET /path".
func probeTarget(p Probe) string {
	return strings.ToUpper(firstNonEmpty(p.Method, "GET")) + " " + p.Path
}

func checkOutput(e Expect, stdout, stderr string, fail func(string, string, string, ...any)) {
	for _, want := range e.StdoutContains {
		if !strings.Contains(stdout, want) {
			fail("stdout_contains", want, "stdout does not contain %q", want)
		}
	}
	for _, want := range e.StderrContains {
		if !strings.Contains(stderr, want) {
			fail("stderr_contains", want, "stderr does not contain %q", want)
		}
	}
	for _, unwanted := range e.OutputNotContains {
		if strings.Contains(stdout+stderr, unwanted) {
			fail("output_not_contains", unwanted, "output contains %q", unwanted)
		}
	}
	for _, unwanted := range e.StderrNotContains {
		if strings.Contains(stderr, unwanted) {
			fail("stderr_not_contains", unwanted, "stderr contains %q", unwanted)
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
