package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a diagnostic.
type ErrorLevel string

const (
	Error   ErrorLevel = "error"
	Warning ErrorLevel = "warning"
	Note    ErrorLevel = "note"
)

// Diagnostic is a formatted message with optional context notes.
type Diagnostic struct {
	Level   ErrorLevel
	Message string
	Notes   []string
}

// FormatDiagnostic renders a diagnostic with the CLI's coloring.
func FormatDiagnostic(d Diagnostic) string {
	var result strings.Builder

	levelColor := getLevelColor(d.Level)
	result.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Level)), d.Message))

	noteColor := color.New(color.FgBlue).SprintFunc()
	for _, note := range d.Notes {
		result.WriteString(fmt.Sprintf("  %s %s\n", noteColor("note:"), note))
	}
	return result.String()
}

// FormatICE renders an internal compiler error the way users should see
// one: loudly, with a pointer at the bug tracker.
func FormatICE(ice *InternalCompilerError) string {
	return FormatDiagnostic(Diagnostic{
		Level:   Error,
		Message: ice.Error(),
		Notes: []string{
			"the compiler unexpectedly broke an IR invariant",
			"this is a bug in sable, please report it",
		},
	})
}

func getLevelColor(level ErrorLevel) func(...interface{}) string {
	switch level {
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}
