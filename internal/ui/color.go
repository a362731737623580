// Package ui holds the lipgloss styles used for CLI output.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Renderer is the lipgloss renderer bound to stdout.
// lipgloss v1.x auto-detects TrueColor but doesn't apply it without
// an explicit SetColorProfile call on some terminals.
var Renderer = newRenderer()

func newRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(os.Stdout)
	if termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
		return r
	}
	r.SetColorProfile(termenv.TrueColor)
	return r
}

// Predefined styles for consistent CLI output.
var (
	Green  = Renderer.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	Cyan   = Renderer.NewStyle().Foreground(lipgloss.Color("14"))
	Red    = Renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	Yellow = Renderer.NewStyle().Foreground(lipgloss.Color("11"))
	White  = Renderer.NewStyle().Foreground(lipgloss.Color("15"))
	Dim    = Renderer.NewStyle().Foreground(lipgloss.Color("245"))
)

// Status renders an installation status in its color.
func Status(s string) string {
	switch s {
	case "installed":
		return Green.Render(s)
	case "installing":
		return Yellow.Render(s)
	case "failed":
		return Red.Render(s)
	}
	return Dim.Render(s)
}

// Check and Cross prefix success and failure lines.
func Check() string { return Green.Render("✓") }
func Cross() string { return Red.Render("✗") }

// Field renders an aligned "label: value" line.
func Field(label, value string) string {
	return Dim.Render(label) + White.Render(value)
}
