// Package round drives a fixed number of rounds for one peer, alternating
// roles and collecting per-round statistics.
package round

import (
	"time"

	"github.com/Iron-Ham/numduel/internal/game"
	"github.com/Iron-Ham/numduel/internal/notify"
)

// RoleFor returns peer's role in round i. Peer 1 chooses on even rounds and
// peer 2 on odd rounds, so the two roles are complementary in every round
// and each peer's role flips every round.
func RoleFor(peer notify.PeerID, i int) game.Role {
	even := i%2 == 0
	if (peer == notify.Peer1) == even {
		return game.RoleChooser
	}
	return game.RoleGuesser
}

// Stats is one peer's record of one round.
type Stats struct {
	Round    int
	Role     game.Role
	Attempts int
	Start    time.Time
	End      time.Time
	Solved   bool
}

// Duration returns the wall time the round took.
func (s Stats) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Summary aggregates a peer's rounds.
type Summary struct {
	Peer       notify.PeerID
	Rounds     []Stats
	Terminated bool // stopped on a remote request
}

// Played returns the number of completed rounds.
func (s Summary) Played() int {
	return len(s.Rounds)
}

// TotalAttempts sums attempts over all rounds.
func (s Summary) TotalAttempts() int {
	total := 0
	for _, r := range s.Rounds {
		total += r.Attempts
	}
	return total
}

// TotalDuration sums round durations.
func (s Summary) TotalDuration() time.Duration {
	var total time.Duration
	for _, r := range s.Rounds {
		total += r.Duration()
	}
	return total
}

// AverageAttempts returns the mean attempts per round, or 0 with no rounds.
func (s Summary) AverageAttempts() float64 {
	if len(s.Rounds) == 0 {
		return 0
	}
	return float64(s.TotalAttempts()) / float64(len(s.Rounds))
}

// RoundsAs returns the rounds this peer played in role.
func (s Summary) RoundsAs(role game.Role) []Stats {
	var out []Stats
	for _, r := range s.Rounds {
		if r.Role == role {
			out = append(out, r)
		}
	}
	return out
}
