package diagnostics

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// RenderTerminal writes the diagnostics to w with ANSI colors, one block per
// diagnostic, followed by a summary line.
func RenderTerminal(w io.Writer, l List) {
	errorColor := color.New(color.FgRed, color.Bold)
	warningColor := color.New(color.FgYellow, color.Bold)
	dimColor := color.New(color.Faint)
	suggestionColor := color.New(color.FgCyan)

	errorCount := 0
	warningCount := 0

	for _, d := range l {
		header := warningColor
		if d.IsError() {
			header = errorColor
			errorCount++
		} else {
			warningCount++
		}

		header.Fprintf(w, "%s[%s]", d.Severity, d.Code)
		if d.Component != "" {
			fmt.Fprintf(w, " %s", d.Component)
			if d.Scope != "" {
				dimColor.Fprintf(w, " (in %s)", d.Scope)
			}
		}
		fmt.Fprintf(w, ": %s\n", d.Message)

		if d.Type != "" {
			fmt.Fprintf(w, "  type: %s\n", d.Type)
		}
		for _, link := range d.Chain {
			dimColor.Fprintf(w, "    -> %s\n", link)
		}
		if d.Suggestion != "" {
			suggestionColor.Fprintf(w, "  suggestion: %s\n", d.Suggestion)
		}
		fmt.Fprintln(w)
	}

	switch {
	case errorCount > 0:
		errorColor.Fprintf(w, "%d error(s), %d warning(s)\n", errorCount, warningCount)
	case warningCount > 0:
		warningColor.Fprintf(w, "%d warning(s)\n", warningCount)
	}
}
