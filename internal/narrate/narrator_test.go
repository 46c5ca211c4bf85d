package narrate

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/numduel/internal/event"
	"github.com/Iron-Ham/numduel/internal/game"
	"github.com/Iron-Ham/numduel/internal/notify"
	"github.com/Iron-Ham/numduel/internal/round"
)

func TestNarrator_Attach(t *testing.T) {
	var buf bytes.Buffer
	bus := event.NewBus()
	n := New(&buf)
	detach := n.Attach(bus)

	bus.Publish(event.NewDuelStartedEvent("signal", 10, 10))
	bus.Publish(event.NewRoundStartedEvent(1, 0, "chooser"))
	bus.Publish(event.NewGuessSentEvent(2, 0, 1, 4))
	bus.Publish(event.NewVerdictReceivedEvent(2, 0, 4, game.VerdictIncorrect.String()))
	bus.Publish(event.NewRoundCompletedEvent(1, 0, "chooser", 3, 2*time.Millisecond))
	bus.Publish(event.NewRoundCompletedEvent(2, 0, "guesser", 3, 2*time.Millisecond))

	detach()
	bus.Publish(event.NewRoundStartedEvent(1, 1, "guesser"))
	assert.Equal(t, 0, bus.SubscriptionCount())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "numduel: signal binding, secrets in [1, 10], 10 rounds", lines[0])
	assert.Equal(t, "[peer 1] round 1/10 as chooser", lines[1])
	assert.Equal(t, "[peer 2]   attempt 1: guessed 4", lines[2])
	assert.Equal(t, "[peer 2]   4 is incorrect", lines[3])
	assert.Equal(t, "[peer 1] round 1/10 solved in 3 attempts (2.0ms)", lines[4])
}

func TestNarrator_Quiet(t *testing.T) {
	var buf bytes.Buffer
	n := New(&buf, WithQuiet(true))

	n.Handle(event.NewGuessSentEvent(2, 0, 1, 4))
	n.Handle(event.NewVerdictReceivedEvent(2, 0, 4, "correct"))
	assert.Empty(t, buf.String())

	n.Handle(event.NewRoundStartedEvent(2, 0, "guesser"))
	assert.Equal(t, "[peer 2] round 1 as guesser\n", buf.String())
}

func TestNarrator_DiscardAndTermination(t *testing.T) {
	var buf bytes.Buffer
	n := New(&buf)

	n.Handle(event.NewNotificationDiscardedEvent(1, 3, "guess", 0, "payload out of range"))
	n.Handle(event.NewPeerTerminatedEvent(2, "terminate"))
	n.Handle(event.NewDuelFinishedEvent(2, 1, 1, 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "[peer 1] discarded guess(0): payload out of range")
	assert.Contains(t, out, "[peer 2] stopped by remote peer")
	assert.Contains(t, out, "[peer 2] finished: 1 round, 1 attempt, 1.5s")
}

func TestNarrator_Summary(t *testing.T) {
	start := time.Now()
	s := round.Summary{
		Peer: notify.Peer1,
		Rounds: []round.Stats{
			{Round: 0, Role: game.RoleChooser, Attempts: 2, Start: start, End: start.Add(time.Millisecond), Solved: true},
			{Round: 1, Role: game.RoleGuesser, Attempts: 1, Start: start, End: start.Add(time.Millisecond), Solved: true},
		},
	}
	n := New(&bytes.Buffer{}, WithWidth(100))
	out := n.Summary(s)

	assert.Contains(t, out, "peer 1 summary")
	assert.Contains(t, out, "chooser")
	assert.Contains(t, out, "guesser")
	assert.Contains(t, out, "total: 3 attempts over 2 rounds, avg 1.50")
	assert.NotContains(t, out, "stopped by remote peer")

	s.Terminated = true
	assert.Contains(t, n.Summary(s), "stopped by remote peer")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Microsecond, "500µs"},
		{1500 * time.Microsecond, "1.5ms"},
		{2500 * time.Millisecond, "2.5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestNewStyles_Plain(t *testing.T) {
	s := NewStyles(false)
	assert.Equal(t, "chooser", s.Chooser.Render("chooser"))
	assert.Equal(t, "[peer 1]", s.Peer[1].Render("[peer 1]"))
}
