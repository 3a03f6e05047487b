// Package cli implements the contribute command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/robinvdvleuten/contribute/output"
	"github.com/robinvdvleuten/contribute/telemetry"
)

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D7D7", Dark: "#00D7D7"})
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		successStyle.Render(successSymbol),
		message,
	)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		errorStyle.Render(errorSymbol),
		errorStyle.Render(message),
	)
}

func printInfof(w io.Writer, format string, args ...interface{}) {
	formatted := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "%s %s\n",
		infoStyle.Render(infoSymbol),
		formatted,
	)
}

// promptYesNo prompts the user with a yes/no question.
// Returns false by default if stdin is not a terminal.
func promptYesNo(ctx *kong.Context, question string) (bool, error) {
	if !isTerminal() {
		return false, nil
	}

	var confirm bool

	form := huh.NewConfirm().
		Title(question).
		WithButtonAlignment(lipgloss.Left).
		Value(&confirm)

	err := form.Run()
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	return confirm, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// terminalWidth returns the width of stdout, or fallback when stdout is not
// a terminal.
func terminalWidth(fallback int) int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}

// startTelemetry installs a timing collector on ctx when the telemetry flag
// is set. The returned function ends the root timer and prints the timing
// tree to w; it is safe to call when telemetry is off.
func startTelemetry(ctx context.Context, globals *Globals, w io.Writer, name string) (context.Context, func()) {
	if !globals.Telemetry {
		return ctx, func() {}
	}

	collector := telemetry.NewTimingCollector()
	ctx = telemetry.WithCollector(ctx, collector)
	timer := collector.Start(name)
	ctx = telemetry.WithRootTimer(ctx, timer)

	return ctx, func() {
		timer.End()
		_, _ = fmt.Fprintln(w)
		collector.Report(w, output.NewStyles(w))
	}
}

// column is one column of a table printed by printTable.
type column struct {
	title string
	right bool
}

// cell is a table value: text is measured, styled (when set) is printed.
type cell struct {
	text   string
	styled string
}

func plain(text string) cell { return cell{text: text} }

// printTable writes rows aligned on display width. Styling is applied after
// padding so escape sequences do not count towards the width.
func printTable(w io.Writer, columns []column, rows [][]cell) {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = runewidth.StringWidth(c.title)
	}
	for _, row := range rows {
		for i, c := range row {
			if n := runewidth.StringWidth(c.text); n > widths[i] {
				widths[i] = n
			}
		}
	}

	pad := func(text string, i int) string {
		if columns[i].right {
			return runewidth.FillLeft(text, widths[i])
		}
		return runewidth.FillRight(text, widths[i])
	}

	for i, c := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(w, "  ")
		}
		_, _ = fmt.Fprint(w, headerStyle.Render(pad(c.title, i)))
	}
	_, _ = fmt.Fprintln(w)

	for _, row := range rows {
		for i, c := range row {
			if i > 0 {
				_, _ = fmt.Fprint(w, "  ")
			}
			padded := pad(c.text, i)
			if c.styled != "" {
				padded = strings.Replace(padded, c.text, c.styled, 1)
			}
			_, _ = fmt.Fprint(w, padded)
		}
		_, _ = fmt.Fprintln(w)
	}
}
