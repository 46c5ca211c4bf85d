package game

import "github.com/Iron-Ham/numduel/internal/notify"

// Role is a peer's part in a round.
type Role string

const (
	// RoleChooser holds the secret and answers guesses.
	RoleChooser Role = "chooser"
	// RoleGuesser proposes guesses until one is correct.
	RoleGuesser Role = "guesser"
)

// Opposite returns the complementary role.
func (r Role) Opposite() Role {
	if r == RoleChooser {
		return RoleGuesser
	}
	return RoleChooser
}

// State is the machine's position within a round.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingRoundStart State = "awaiting_round_start"
	StatePreparingSecret    State = "preparing_secret"
	StateActive             State = "active"
	StateRoundComplete      State = "round_complete"
)

// Verdict is what the chooser tells the guesser. The numeric values match
// the queue binding's wire encoding.
type Verdict int

const (
	VerdictIncorrect  Verdict = 0
	VerdictCorrect    Verdict = 1
	VerdictRoundStart Verdict = 2
)

// String returns the lower-case verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictIncorrect:
		return "incorrect"
	case VerdictCorrect:
		return "correct"
	case VerdictRoundStart:
		return "round_start"
	default:
		return "unknown"
	}
}

// Kind returns the notification kind carrying v.
func (v Verdict) Kind() notify.Kind {
	switch v {
	case VerdictCorrect:
		return notify.KindCorrect
	case VerdictRoundStart:
		return notify.KindRoundStart
	default:
		return notify.KindIncorrect
	}
}

// VerdictOf maps a verdict notification kind back to a Verdict.
func VerdictOf(k notify.Kind) (Verdict, bool) {
	switch k {
	case notify.KindCorrect:
		return VerdictCorrect, true
	case notify.KindIncorrect:
		return VerdictIncorrect, true
	case notify.KindRoundStart:
		return VerdictRoundStart, true
	default:
		return 0, false
	}
}

// Result summarizes one round from one peer's point of view.
type Result struct {
	Round    int
	Role     Role
	Attempts int
	// Secret is set for the chooser only.
	Secret int
	// Guesses lists the guesser's own attempts in order; empty for the chooser.
	Guesses []int
	Solved  bool
}
