package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approbe/internal/config"
	"approbe/internal/configfile"
	"approbe/internal/discovery"
	"approbe/internal/domain"
	"approbe/internal/fixtureserver"
	"approbe/internal/storage"
	"approbe/internal/ui"
)

const siteScenarios = `fixture: site
scenarios:
  - name: rejects i18n
    startup: exit
    config:
      output: export
      i18n:
        locales: [en]
        defaultLocale: en
    expect:
      stderr_contains:
        - 'Specified "i18n" cannot but used with "output: export".'

  - name: serves index
    probes:
      - path: /
        expect_status: 200
        body_contains: [not on the page]
`

// newProject lays out a project with one fixture and one scenario file
// holding a passing and a failing scenario.
func newProject(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	site := filepath.Join(dir, "e2e", "site")
	require.NoError(t, os.MkdirAll(filepath.Join(site, "pages"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(site, "next.config.js"), []byte("module.exports = {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "pages", "index.js"), []byte("export default () => 'index'\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "e2e", "site.scenario.yaml"), []byte(siteScenarios), 0644))

	command, env := fixtureserver.SelfCommand()
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		t.Setenv(k, v)
	}

	cfg := config.New()
	cfg.ProjectPath = dir
	cfg.Command = command
	cfg.StartupTimeout = 20 * time.Second
	cfg.KillTimeout = 2 * time.Second
	cfg.ProbeTimeout = 5 * time.Second
	cfg.Processors = 2
	return cfg, site
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

type recordingViewer struct {
	viewed *domain.ResultsOutput
}

func (v *recordingViewer) View(output *domain.ResultsOutput) error {
	v.viewed = output
	return nil
}

func newRun(cfg *config.Config, viewer *recordingViewer) *RunCommand {
	cmds := NewCommands(cfg)
	cmds.Run.viewer = viewer
	return cmds.Run
}

func TestRun_RecordsResultsAndHistory(t *testing.T) {
	cfg, site := newProject(t)
	viewer := &recordingViewer{}
	cfg.Flags.OpenFailures = true

	err := newRun(cfg, viewer).Execute(testCommand(), nil)

	var failed *FailedError
	require.True(t, errors.As(err, &failed), "got %v", err)
	assert.Equal(t, 1, failed.Failed)
	assert.Equal(t, 2, failed.Total)

	output, err := storage.NewJSONStorage(cfg).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, output.Meta.TotalScenarios)
	assert.Equal(t, 1, output.Meta.PassedScenarios)
	require.NotEmpty(t, output.Details)
	for _, d := range output.Details {
		assert.Equal(t, "serves index", d.Scenario)
	}
	require.NotNil(t, viewer.viewed)
	assert.Equal(t, output.Meta.RunID, viewer.viewed.Meta.RunID)

	h, err := storage.OpenHistory(cfg.GetHistoryPath())
	require.NoError(t, err)
	defer h.Close()
	runs, err := h.Recent(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Failed)

	cfg.Flags.HistoryRun = output.Meta.RunID[:8]
	assert.NoError(t, NewHistoryCommand(cfg, ui.NewFormatter(cfg, discovery.NewParser())).Execute(testCommand(), nil))
	cfg.Flags.HistoryRun = "no-such-run"
	assert.ErrorIs(t, NewHistoryCommand(cfg, ui.NewFormatter(cfg, discovery.NewParser())).Execute(testCommand(), nil), storage.ErrRunNotFound)

	data, err := os.ReadFile(filepath.Join(site, "next.config.js"))
	require.NoError(t, err)
	assert.Equal(t, "module.exports = {}\n", string(data), "fixture config must be restored")

	pending, err := configfile.NewJournal(cfg.GetJournalDir()).Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRun_OnlyFailed(t *testing.T) {
	cfg, _ := newProject(t)
	viewer := &recordingViewer{}

	err := newRun(cfg, viewer).Execute(testCommand(), nil)
	require.Error(t, err)
	assert.Nil(t, viewer.viewed, "viewer only opens with --open-failures")

	cfg.Flags.OnlyFailed = true
	err = newRun(cfg, viewer).Execute(testCommand(), nil)

	var failed *FailedError
	require.True(t, errors.As(err, &failed), "got %v", err)
	assert.Equal(t, 1, failed.Total)
}

func TestRun_Filter(t *testing.T) {
	cfg, _ := newProject(t)
	cfg.Flags.NameFilter = "*i18n*"

	err := newRun(cfg, &recordingViewer{}).Execute(testCommand(), nil)
	require.NoError(t, err)

	output, err := storage.NewJSONStorage(cfg).Load()
	require.NoError(t, err)
	assert.Equal(t, 1, output.Meta.TotalScenarios)
	assert.Equal(t, 0, output.Meta.FailedScenarios)
}

func TestRun_NothingToRun(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()

	err := newRun(cfg, &recordingViewer{}).Execute(testCommand(), nil)
	assert.NoError(t, err)
}

func TestRun_OnlyFailedWithoutPreviousRun(t *testing.T) {
	cfg, _ := newProject(t)
	cfg.Flags.OnlyFailed = true

	err := newRun(cfg, &recordingViewer{}).Execute(testCommand(), nil)
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	cfg, site := newProject(t)
	configPath := filepath.Join(site, "next.config.js")

	journal := configfile.NewJournal(cfg.GetJournalDir())
	require.NoError(t, journal.Record(configPath, configfile.Snapshot{Existed: true, Content: []byte("module.exports = {}\n"), Mode: 0644}))
	require.NoError(t, os.WriteFile(configPath, []byte(`module.exports = {"output":"export"}`), 0644))

	require.NoError(t, NewRestoreCommand(cfg).Execute(testCommand(), nil))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "module.exports = {}\n", string(data))

	pending, err := journal.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Nothing left: a second restore is a no-op.
	require.NoError(t, NewRestoreCommand(cfg).Execute(testCommand(), nil))
}

func TestListAndHistory(t *testing.T) {
	cfg, _ := newProject(t)
	cfg.Flags.Scenarios = true
	cmds := NewCommands(cfg)

	assert.NoError(t, cmds.List.Execute(testCommand(), nil))
	assert.NoError(t, cmds.History.Execute(testCommand(), nil))
}

func TestFailures_NoResults(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()

	err := NewFailuresCommand(cfg, storage.NewJSONStorage(cfg), &recordingViewer{}).Execute(testCommand(), nil)
	assert.Error(t, err)
}

func TestFixtureServer_RequiresPort(t *testing.T) {
	t.Setenv("PORT", "")
	err := NewFixtureServerCommand().Execute(testCommand(), t.TempDir(), 0, "")
	assert.Error(t, err)
}
