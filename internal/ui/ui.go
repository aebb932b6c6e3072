// Package ui prints human-facing progress output for the text mode.
//
// All helpers are silent when a structured output format is active, and
// unstyled when stdout is not a terminal.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")

	stepStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	successStyle = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
)

// UI writes progress messages. Silent suppresses everything, for
// structured output modes where only the final document may print.
type UI struct {
	w      io.Writer
	silent bool
	styled bool
}

// New builds a UI writing to w. Styling is enabled only when w is a
// terminal.
func New(w io.Writer, silent bool) *UI {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &UI{w: w, silent: silent, styled: styled}
}

func (u *UI) render(style lipgloss.Style, s string) string {
	if !u.styled {
		return s
	}
	return style.Render(s)
}

func (u *UI) println(style lipgloss.Style, format string, args ...any) {
	if u.silent {
		return
	}
	fmt.Fprintln(u.w, u.render(style, fmt.Sprintf(format, args...)))
}

// Step announces a new phase of the operation.
func (u *UI) Step(format string, args ...any) {
	if u.silent {
		return
	}
	fmt.Fprintln(u.w, u.render(stepStyle, "==> "+fmt.Sprintf(format, args...)))
}

// Info prints a plain progress line.
func (u *UI) Info(format string, args ...any) {
	u.println(lipgloss.NewStyle(), "  "+format, args...)
}

// Dim prints a de-emphasized line.
func (u *UI) Dim(format string, args ...any) {
	u.println(dimStyle, "  "+format, args...)
}

// Val prints an aligned label/value pair.
func (u *UI) Val(label, value string) {
	if u.silent {
		return
	}
	fmt.Fprintf(u.w, "  %s %s\n", u.render(labelStyle, fmt.Sprintf("%-16s", label+":")), value)
}

// Success prints a completion line.
func (u *UI) Success(format string, args ...any) {
	u.println(successStyle, format, args...)
}

// Warn prints a non-fatal problem. In silent mode warnings stay
// suppressed like everything else; the result document carries them
// instead.
func (u *UI) Warn(format string, args ...any) {
	u.println(warnStyle, "warning: "+format, args...)
}

// Error prints a failure line. Errors print even in silent mode; the
// caller decides which stream u writes to.
func (u *UI) Error(format string, args ...any) {
	fmt.Fprintln(u.w, u.render(errorStyle, "error: "+fmt.Sprintf(format, args...)))
}
