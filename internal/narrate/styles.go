package narrate

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray
	blueColor      = lipgloss.Color("#60A5FA") // Blue
	borderColor    = lipgloss.Color("#6B7280") // Gray
)

// Styles holds the lipgloss styles used for narration.
type Styles struct {
	Title   lipgloss.Style
	Peer    [3]lipgloss.Style // indexed by peer id
	Chooser lipgloss.Style
	Guesser lipgloss.Style
	Correct lipgloss.Style
	Wrong   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles returns colored styles, or plain ones when color is false.
func NewStyles(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{
			Title:   plain,
			Peer:    [3]lipgloss.Style{plain, plain, plain},
			Chooser: plain,
			Guesser: plain,
			Correct: plain,
			Wrong:   plain,
			Warning: plain,
			Muted:   plain,
			Box:     plain.Border(lipgloss.NormalBorder()).Padding(0, 1),
		}
	}
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		Peer: [3]lipgloss.Style{
			lipgloss.NewStyle(),
			lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
			lipgloss.NewStyle().Bold(true).Foreground(blueColor),
		},
		Chooser: lipgloss.NewStyle().Foreground(primaryColor),
		Guesser: lipgloss.NewStyle().Foreground(blueColor),
		Correct: lipgloss.NewStyle().Bold(true).Foreground(secondaryColor),
		Wrong:   lipgloss.NewStyle().Foreground(errorColor),
		Warning: lipgloss.NewStyle().Foreground(warningColor),
		Muted:   lipgloss.NewStyle().Foreground(mutedColor),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or fallback when f is not a terminal.
func TerminalWidth(f *os.File, fallback int) int {
	if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
		return width
	}
	return fallback
}
