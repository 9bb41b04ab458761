package formatter

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/popetl/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style

	header     lipgloss.Style
	cell       lipgloss.Style
	border     lipgloss.Style
	categories map[models.PopularityCategory]lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		header: NewBold(t).Padding(0, 1),
		cell:   lipgloss.NewStyle().Padding(0, 1),
		border: NewStyle(h),
		categories: map[models.PopularityCategory]lipgloss.Style{
			models.Unknown:    NewStyle(h).Padding(0, 1),
			models.Low:        NewStyle(w).Padding(0, 1),
			models.High:       NewStyle(s).Padding(0, 1),
			models.Overplayed: NewBold(e).Padding(0, 1),
		},
	}
}

// Title renders s as a heading
func (p *Palette) Title(s string) string { return p.title.Render(s) }

// OK renders a success line
func (p *Palette) OK(s string) string { return p.ok.Render(s) }

// Err renders a failure line
func (p *Palette) Err(s string) string { return p.err.Render(s) }

// Warn renders a warning line
func (p *Palette) Warn(s string) string { return p.warn.Render(s) }

// Help renders muted hint text
func (p *Palette) Help(s string) string { return p.help.Render(s) }

func (p *Palette) category(c models.PopularityCategory) lipgloss.Style {
	if s, ok := p.categories[c]; ok {
		return s
	}
	return p.cell
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

// Styles returns the default palette
func Styles() *Palette {
	return styles
}
