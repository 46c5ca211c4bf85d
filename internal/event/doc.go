// Package event provides a pub-sub event bus that decouples the peers of a
// duel from whoever renders or records their progress.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Duel lifecycle:
//   - [DuelStartedEvent], [DuelFinishedEvent], [PeerTerminatedEvent]
//
// Rounds:
//   - [RoundStartedEvent], [RoundCompletedEvent]
//
// Exchange:
//   - [GuessSentEvent], [VerdictSentEvent], [VerdictReceivedEvent]
//   - [NotificationDiscardedEvent]: an inbound payload outside the protocol domain
//
// Events carry roles and verdicts as strings so this package stays a leaf.
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Both peers of a local duel publish
// on the same bus from their own goroutines. Handlers are called synchronously
// on the publisher's goroutine and protected against panics.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	bus.Subscribe(event.TypeRoundCompleted, func(e event.Event) {
//	    done := e.(event.RoundCompletedEvent)
//	    fmt.Printf("round %d took %d attempts\n", done.Round, done.Attempts)
//	})
//
//	bus.Publish(event.NewRoundCompletedEvent(1, 0, "chooser", 2, time.Second))
package event
