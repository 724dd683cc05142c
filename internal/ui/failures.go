package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"approbe/internal/domain"
	"approbe/internal/logging"
	"approbe/internal/storage"
)

const maxDiagnosticsShown = 10

// FailureViewer displays scenario failures in an interactive TUI
type FailureViewer struct {
	storage storage.Storage
}

// NewFailureViewer creates a new FailureViewer
func NewFailureViewer(st storage.Storage) *FailureViewer {
	return &FailureViewer{storage: st}
}

// View shows the failures of results. Toggling a failure resolved with R is
// written back through storage straight away.
func (fv *FailureViewer) View(results *domain.ResultsOutput) error {
	if len(results.Details) == 0 {
		green.Println("✓ No scenario failures found!")
		return nil
	}

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	for i := range results.Details {
		list.AddItem(listItemText(results.Details[i], i), "", 0, nil)
	}
	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan)

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)
	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)

	detailsContainer := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(detailsView, 0, 1, false).
		AddItem(tview.NewBox(), 2, 0, false)
	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsContainer, 0, 1, false)
	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	updateHeader := func() {
		headerView.SetText(headerText(results.Details))
	}
	updateDetails := func() {
		index := list.GetCurrentItem()
		if index < 0 || index >= len(results.Details) {
			return
		}
		failure := results.Details[index]
		statsView.SetText(formatFailureStats(failure, index+1))
		detailsView.SetText(formatFailureDetails(failure))
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() != 'r' && event.Rune() != 'R' {
				return event
			}
			index := list.GetCurrentItem()
			if index < 0 || index >= len(results.Details) {
				return nil
			}
			results.Details[index].Resolved = !results.Details[index].Resolved
			list.SetItemText(index, listItemText(results.Details[index], index), "")
			updateHeader()
			updateDetails()
			if err := fv.storage.SaveOutput(results); err != nil {
				logging.Logger.Warn("failed to persist resolved state", zap.Error(err))
			}
			return nil
		}
		return event
	})

	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(list)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})

	list.SetChangedFunc(func(int, string, string, rune) {
		updateDetails()
	})

	updateHeader()
	updateDetails()

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(body, 0, 1, true)

	if err := app.SetRoot(layout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func listItemText(failure domain.ScenarioFailure, index int) string {
	name := failure.Scenario
	if name == "" {
		name = fmt.Sprintf("Scenario %d", index+1)
	}
	label := fmt.Sprintf("%s [gray](%s)", tview.Escape(name), failure.Expectation)
	if failure.Resolved {
		return fmt.Sprintf("[gray]✓ [yellow]%d.[gray] %s[white]", index+1, label)
	}
	return fmt.Sprintf("[yellow]%d.[white] %s[white]", index+1, label)
}

func headerText(details []domain.ScenarioFailure) string {
	unresolved := 0
	for _, d := range details {
		if !d.Resolved {
			unresolved++
		}
	}
	return fmt.Sprintf(" Scenario Failures (%d total, %d unresolved) | ↑↓ navigate, [yellow]R[white] mark resolved, → details, ← back, Ctrl+C exit ",
		len(details), unresolved)
}

// formatFailureDetails renders a failure with tview color tags.
func formatFailureDetails(failure domain.ScenarioFailure) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[red]✗ Scenario: %s[white]\n\n", tview.Escape(failure.Scenario))
	fmt.Fprintf(&b, "[cyan]File: %s[white]\n", tview.Escape(failure.FilePath))
	if failure.Fixture != "" {
		fmt.Fprintf(&b, "[cyan]Fixture: %s[white]\n", tview.Escape(failure.Fixture))
	}
	b.WriteString("\n")

	if failure.Expectation != "" {
		fmt.Fprintf(&b, "[yellow]Expectation:[white] %s\n", failure.Expectation)
	}
	if failure.Expected != "" {
		fmt.Fprintf(&b, "[yellow]Expected:[white] %s\n", tview.Escape(failure.Expected))
	}
	if failure.Message != "" {
		fmt.Fprintf(&b, "\n[yellow]Message:[white]\n%s\n", tview.Escape(failure.Message))
	}

	if len(failure.Diagnostics) > 0 {
		b.WriteString("\n[yellow]Diagnostics:[white]\n")
		for i, line := range failure.Diagnostics {
			if i == maxDiagnosticsShown {
				fmt.Fprintf(&b, "  [gray]... and %d more lines[white]\n", len(failure.Diagnostics)-maxDiagnosticsShown)
				break
			}
			fmt.Fprintf(&b, "  %s\n", tview.Escape(line))
		}
	}
	return b.String()
}

// formatFailureStats renders the one-line header above the details.
func formatFailureStats(failure domain.ScenarioFailure, number int) string {
	path := failure.FilePath
	if path == "" {
		path = "Unknown path"
	}
	name := failure.Scenario
	if name == "" {
		name = fmt.Sprintf("Scenario %d", number)
	}
	return fmt.Sprintf("[cyan]path:[white] [yellow]%s[white] # [yellow]%s[white]\n", tview.Escape(path), tview.Escape(name))
}
