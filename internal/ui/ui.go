// Package ui renders tasks, notices and status lines for the terminal.
// Color is used only when the output is a terminal and NO_COLOR is unset.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 100

// Palette.
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#0B5FAA", Dark: "#5FAFFF"}
	colorPass   = lipgloss.AdaptiveColor{Light: "#1E7B34", Dark: "#5FD75F"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#FFD75F"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#B31D28", Dark: "#FF5F5F"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6A737D", Dark: "#8A8A8A"}
)

// Printer writes styled output to one destination.
type Printer struct {
	w     io.Writer
	r     *lipgloss.Renderer
	width int

	accent, pass, warn, fail, muted, bold lipgloss.Style
}

// NewPrinter detects whether w is a color-capable terminal.
func NewPrinter(w io.Writer) *Printer {
	profile := termenv.Ascii
	width := DefaultWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if os.Getenv("NO_COLOR") == "" {
			profile = termenv.NewOutput(f).EnvColorProfile()
		}
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}
	return NewPrinterWithProfile(w, profile, width)
}

// NewPrinterWithProfile uses an explicit color profile and width. Tests pass
// termenv.Ascii to get plain text.
func NewPrinterWithProfile(w io.Writer, profile termenv.Profile, width int) *Printer {
	r := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	r.SetColorProfile(profile)
	if width <= 0 {
		width = DefaultWidth
	}
	return &Printer{
		w:      w,
		r:      r,
		width:  width,
		accent: r.NewStyle().Foreground(colorAccent).Bold(true),
		pass:   r.NewStyle().Foreground(colorPass),
		warn:   r.NewStyle().Foreground(colorWarn),
		fail:   r.NewStyle().Foreground(colorFail).Bold(true),
		muted:  r.NewStyle().Foreground(colorMuted),
		bold:   r.NewStyle().Bold(true),
	}
}

// Writer returns the destination.
func (p *Printer) Writer() io.Writer { return p.w }

// Width returns the usable line width.
func (p *Printer) Width() int { return p.width }

func (p *Printer) RenderAccent(s string) string { return p.accent.Render(s) }
func (p *Printer) RenderPass(s string) string   { return p.pass.Render(s) }
func (p *Printer) RenderWarn(s string) string   { return p.warn.Render(s) }
func (p *Printer) RenderFail(s string) string   { return p.fail.Render(s) }
func (p *Printer) RenderMuted(s string) string  { return p.muted.Render(s) }
func (p *Printer) RenderBold(s string) string   { return p.bold.Render(s) }

// Println writes s and a newline.
func (p *Printer) Println(s string) {
	_, _ = io.WriteString(p.w, s+"\n")
}
