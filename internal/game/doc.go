// Package game implements the per-round guessing state machine.
//
// A [Machine] plays one role per round over a notify.Link:
//
//	chooser: Idle -> PreparingSecret -> Active -> RoundComplete
//	guesser: Idle -> AwaitingRoundStart -> Active -> RoundComplete
//
// The chooser draws a secret, sends RoundStart, then answers each guess with
// Correct or Incorrect. The guesser waits for RoundStart, then sends guesses
// it has not tried yet until one is answered Correct. The guesser never sees
// the secret.
//
// [SharedRoundState] holds the counters and flags written on the arrival
// path. Links report into it through notify.Observer, so attempt counts and
// the completion flag are settled before the round loop observes the
// notification that changed them.
package game
