package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type    ResultType        // Success, failure, or warning
	Title   string            // e.g., "Connected to Home_Net"
	Details map[string]string // Key-value details to display
	Error   error             // Error (for failure results)
	Hints   []string          // Troubleshooting tips (for failure results)
	Width   int               // Terminal width
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, hints []string) *Result {
	return &Result{Type: ResultFailure, Title: title, Error: err, Hints: hints, Width: GetTerminalWidth()}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

// Render returns the styled box
func (r *Result) Render() string {
	var lines []string
	lines = append(lines, "")

	switch r.Type {
	case ResultSuccess:
		lines = append(lines, SuccessTitleStyle.Render(SuccessMarker+"  SUCCESS  ─  "+r.Title))
	case ResultFailure:
		lines = append(lines, ErrorTitleStyle.Render(FailureMarker+"  FAILED  ─  "+r.Title))
	default:
		lines = append(lines, WarningTitleStyle.Render(WarningMarker+"  WARNING  ─  "+r.Title))
	}
	lines = append(lines, "")

	// Sorted so output is stable
	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, KeyStyle.Render(k+":")+" "+ValueStyle.Render(r.Details[k]))
	}
	if len(keys) > 0 {
		lines = append(lines, "")
	}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("Error: "+r.Error.Error()), "")
	}
	if len(r.Hints) > 0 {
		lines = append(lines, HintStyle.Render("Troubleshooting:"))
		for _, h := range r.Hints {
			lines = append(lines, HintStyle.Render("  • "+h))
		}
		lines = append(lines, "")
	}

	content := strings.Join(lines, "\n")
	switch r.Type {
	case ResultSuccess:
		return BoxStyle(r.Width, lipgloss.DoubleBorder(), SuccessColor).Render(content)
	case ResultFailure:
		return BoxStyle(r.Width, lipgloss.DoubleBorder(), ErrorColor).Render(content)
	default:
		return BoxStyle(r.Width, lipgloss.RoundedBorder(), WarningColor).Render(content)
	}
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// Printer writes UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w, width: GetTerminalWidth()}
}

// PrintHeader prints a command title and the command line under it
func (p *Printer) PrintHeader(title, command string) {
	_, _ = fmt.Fprintln(p.out, TitleStyle.Render(strings.ToUpper(title)))
	_, _ = fmt.Fprintln(p.out, CommandStyle.Render(command))
	_, _ = fmt.Fprintln(p.out)
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	r := NewSuccessResult(title, details)
	r.Width = p.width
	_, _ = fmt.Fprintln(p.out, r.Render())
}

// PrintFailure prints a failure result box with troubleshooting tips
func (p *Printer) PrintFailure(title string, err error, hints []string) {
	r := NewFailureResult(title, err, hints)
	r.Width = p.width
	_, _ = fmt.Fprintln(p.out, r.Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details map[string]string) {
	r := NewWarningResult(title, details)
	r.Width = p.width
	_, _ = fmt.Fprintln(p.out, r.Render())
}
