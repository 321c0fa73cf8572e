package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm shows a warning box on out and asks the user to type phrase on in.
// Returns true only on an exact match.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, phrase string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(WarningMarker + "  WARNING  ─  " + title), ""}
	for _, w := range warnings {
		lines = append(lines, ValueStyle.Render("• "+w))
	}
	lines = append(lines, "")

	box := BoxStyle(width, lipgloss.DoubleBorder(), WarningColor).Render(strings.Join(lines, "\n"))
	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", phrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == phrase {
		return true
	}

	_, _ = fmt.Fprintln(out, HintStyle.Render("  Operation cancelled."))
	return false
}

// EraseConfirmation asks before destroying the stored credential record.
func EraseConfirmation(in io.Reader, out io.Writer, path string) bool {
	return Confirm(in, out, "ERASE CREDENTIALS", []string{
		"The stored network name and password in " + path + " will be overwritten and deleted",
		"On its next start the device will open its setup access point",
	}, "erase")
}
