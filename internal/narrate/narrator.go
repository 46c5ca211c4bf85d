// Package narrate renders duel progress for humans. A Narrator subscribes to
// the event bus and writes one line per role assignment, attempt, verdict
// and round result, followed by a summary box per peer.
package narrate

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/game"
	"github.com/Iron-Ham/numduel/internal/round"
)

// Narrator writes event narration to w.
type Narrator struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	quiet  bool
	width  int
	rounds int
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithColor enables or disables styled output.
func WithColor(color bool) Option {
	return func(n *Narrator) { n.styles = NewStyles(color) }
}

// WithQuiet suppresses per-attempt lines.
func WithQuiet(quiet bool) Option {
	return func(n *Narrator) { n.quiet = quiet }
}

// WithWidth caps the summary box width.
func WithWidth(width int) Option {
	return func(n *Narrator) { n.width = width }
}

// New creates a Narrator writing to w.
func New(w io.Writer, opts ...Option) *Narrator {
	n := &Narrator{w: w, styles: NewStyles(false), width: 80}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Attach subscribes the narrator to bus and returns a function that
// unsubscribes it.
func (n *Narrator) Attach(bus *event.Bus) func() {
	id := bus.SubscribeAll(n.Handle)
	return func() { bus.Unsubscribe(id) }
}

// Handle renders one event. Unknown events are ignored.
func (n *Narrator) Handle(e event.Event) {
	var line string
	switch ev := e.(type) {
	case event.DuelStartedEvent:
		n.mu.Lock()
		n.rounds = ev.Rounds
		n.mu.Unlock()
		line = n.styles.Title.Render(fmt.Sprintf("numduel: %s binding, secrets in [1, %d], %d rounds",
			ev.Binding, ev.Max, ev.Rounds))
	case event.RoundStartedEvent:
		line = fmt.Sprintf("%s %s as %s", n.peer(ev.Peer), n.roundLabel(ev.Round), n.role(ev.Role))
	case event.GuessSentEvent:
		if n.quiet {
			return
		}
		line = fmt.Sprintf("%s   attempt %d: guessed %d", n.peer(ev.Peer), ev.Attempt, ev.Value)
	case event.VerdictReceivedEvent:
		if n.quiet {
			return
		}
		line = fmt.Sprintf("%s   %d is %s", n.peer(ev.Peer), ev.Guess, n.verdict(ev.Verdict))
	case event.RoundCompletedEvent:
		if ev.Role != string(game.RoleChooser) {
			return
		}
		line = fmt.Sprintf("%s %s solved in %d %s (%s)", n.peer(ev.Peer), n.roundLabel(ev.Round),
			ev.Attempts, plural(ev.Attempts, "attempt"), formatDuration(ev.Duration))
	case event.NotificationDiscardedEvent:
		line = n.styles.Warning.Render(fmt.Sprintf("%s discarded %s(%d): %s",
			n.peerText(ev.Peer), ev.Kind, ev.Payload, ev.Reason))
	case event.PeerTerminatedEvent:
		line = fmt.Sprintf("%s %s", n.peer(ev.Peer), n.styles.Muted.Render("stopped by remote peer"))
	case event.DuelFinishedEvent:
		line = fmt.Sprintf("%s finished: %d %s, %d %s, %s", n.peer(ev.Peer),
			ev.RoundsPlayed, plural(ev.RoundsPlayed, "round"),
			ev.TotalAttempts, plural(ev.TotalAttempts, "attempt"), formatDuration(ev.Duration))
	default:
		return
	}
	n.println(line)
}

// Summary renders a boxed per-round table for s.
func (n *Narrator) Summary(s round.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", n.styles.Title.Render(fmt.Sprintf("peer %d summary", int(s.Peer))))
	for _, r := range s.Rounds {
		fmt.Fprintf(&b, "round %-3d %-8s %3d %-8s %s\n", r.Round+1, r.Role,
			r.Attempts, plural(r.Attempts, "attempt"), formatDuration(r.Duration()))
	}
	fmt.Fprintf(&b, "total: %d %s over %d %s, avg %.2f",
		s.TotalAttempts(), plural(s.TotalAttempts(), "attempt"),
		s.Played(), plural(s.Played(), "round"), s.AverageAttempts())
	if s.Terminated {
		b.WriteString("\n" + n.styles.Muted.Render("stopped by remote peer"))
	}

	box := n.styles.Box
	if n.width > 4 {
		box = box.MaxWidth(n.width)
	}
	return box.Render(b.String())
}

// PrintSummary writes Summary(s) to the narrator's writer.
func (n *Narrator) PrintSummary(s round.Summary) {
	n.println(n.Summary(s))
}

func (n *Narrator) println(line string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintln(n.w, line)
}

func (n *Narrator) peerText(peer int) string {
	return fmt.Sprintf("[peer %d]", peer)
}

func (n *Narrator) peer(peer int) string {
	style := lipgloss.NewStyle()
	if peer >= 1 && peer <= 2 {
		style = n.styles.Peer[peer]
	}
	return style.Render(n.peerText(peer))
}

func (n *Narrator) roundLabel(i int) string {
	n.mu.Lock()
	total := n.rounds
	n.mu.Unlock()
	if total > 0 {
		return fmt.Sprintf("round %d/%d", i+1, total)
	}
	return fmt.Sprintf("round %d", i+1)
}

func (n *Narrator) role(role string) string {
	if role == string(game.RoleChooser) {
		return n.styles.Chooser.Render(role)
	}
	return n.styles.Guesser.Render(role)
}

func (n *Narrator) verdict(v string) string {
	if v == game.VerdictCorrect.String() {
		return n.styles.Correct.Render(v)
	}
	return n.styles.Wrong.Render(v)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return d.Round(time.Millisecond).String()
	}
}
