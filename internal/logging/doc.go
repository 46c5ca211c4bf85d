// Package logging provides structured logging for numduel peers.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation for debugging a duel after the fact. Both peers of a
// local run usually share one logger and are told apart by the peer attribute.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/tmp/numduel", "", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	peerLog := logger.WithPeer(1).WithBinding("queue")
//	peerLog.WithRound(0).WithRole("chooser").Info("secret drawn")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"secret drawn","peer":1,"binding":"queue","round":0,"role":"chooser"}
//
// The secret itself is never logged above DEBUG level.
//
// # Testing
//
// Use [NopLogger] to discard all log output, or [NewWriterLogger] with a
// bytes.Buffer to assert on emitted entries.
//
// # Log Levels
//
// The package defines four log levels: [LevelDebug], [LevelInfo] (default),
// [LevelWarn] and [LevelError]. Use [ValidLevels] to list them.
package logging
