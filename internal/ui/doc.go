// Package ui styles the command line's human-readable output with lipgloss.
//
// A [Palette] holds the title, success, error, warning and help styles. The package functions
// render with the default palette; lipgloss drops the colors when the output is not a terminal.
package ui
