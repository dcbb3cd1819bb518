// Package logging provides structured logging for the FleetCore scheduler.
//
// The package wraps Go's log/slog to emit JSON lines. A [Logger] either
// appends to {dir}/fleetcore.log or writes to stderr when no directory is
// configured.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/fleetcore", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("dispatch tick", "admitted", 3)
//
// # Child Loggers
//
// Child loggers carry persistent attributes:
//
//	poolLog := logger.WithComponent("pool")
//	taskLog := poolLog.WithTask("t-123", "simulate")
//	taskLog.Warn("handler failed", "error", err)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"handler failed","component":"pool","task_id":"t-123","task_type":"simulate","error":"..."}
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a buffer to
// assert on emitted lines.
package logging
