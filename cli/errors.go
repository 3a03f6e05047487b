package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/robinvdvleuten/contribute/errors"
)

var errContextStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#808080", Dark: "#808080"})

// ErrorRenderer renders errors with terminal styling: the message first,
// then the ids and fields the error carries as dimmed context lines.
type ErrorRenderer struct {
	formatter *errors.TextFormatter
}

// NewErrorRenderer creates a renderer. Error codes are shown when codes is
// set.
func NewErrorRenderer(codes bool) *ErrorRenderer {
	var opts []errors.TextFormatterOption
	if codes {
		opts = append(opts, errors.WithCodes())
	}
	return &ErrorRenderer{formatter: errors.NewTextFormatter(opts...)}
}

// Render formats a single error with styling and context.
func (r *ErrorRenderer) Render(err error) string {
	text := strings.TrimRight(r.formatter.Format(err), "\n")
	message, details, found := strings.Cut(text, "\n\n")

	var buf strings.Builder
	buf.WriteString(errorStyle.Render(message))
	if !found {
		return buf.String()
	}

	buf.WriteString("\n\n")
	lines := strings.Split(details, "\n")
	for i, line := range lines {
		buf.WriteString(errContextStyle.Render(line))
		if i < len(lines)-1 {
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// RenderAll formats multiple errors, separating them with blank lines.
// Errors joining several errors are expanded.
func (r *ErrorRenderer) RenderAll(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var flat []error
	for _, err := range errs {
		flat = append(flat, errors.Flatten(err)...)
	}

	var buf strings.Builder
	for i, err := range flat {
		buf.WriteString(r.Render(err))

		if i < len(flat)-1 {
			buf.WriteString("\n\n")
		}
	}

	return buf.String()
}
