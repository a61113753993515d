package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render("✓ " + s) }
func (p *Palette) Err(s string) string   { return p.err.Render("✗ " + s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render("! " + s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

// Title renders a section heading.
func Title(format string, args ...any) string { return styles.Title(fmt.Sprintf(format, args...)) }

// OK renders a success line.
func OK(format string, args ...any) string { return styles.OK(fmt.Sprintf(format, args...)) }

// Err renders a failure line.
func Err(format string, args ...any) string { return styles.Err(fmt.Sprintf(format, args...)) }

// Warn renders a warning line.
func Warn(format string, args ...any) string { return styles.Warn(fmt.Sprintf(format, args...)) }

// Help renders a hint.
func Help(format string, args ...any) string { return styles.Help(fmt.Sprintf(format, args...)) }
