// Package rlog is the ambient structured-logging facade shared by the
// compiler and runtime: a thin wrapper over logiface.Logger[*stumpy.Event]
// naming the handful of call sites the scheduler and the regelum façade
// use. It is operational visibility, not the user-facing report —
// that remains diag.Sink.
package rlog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger wraps a logiface.Logger[*stumpy.Event] with the named call sites
// this module emits. Embedding the concrete logger keeps Level()/Err()/etc.
// available for callers that want a lower-level escape hatch.
type Logger struct {
	*logiface.Logger[*stumpy.Event]
}

// New constructs a Logger writing newline-delimited JSON to w.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		Logger: stumpy.L.New(
			stumpy.L.WithStumpy(),
			stumpy.L.WithWriter(w),
		),
	}
}

// Default is a ready-to-use logger writing to stderr, for call sites that
// do not thread a configured Logger through (e.g. package-level helpers).
var Default = New(os.Stderr)

// CompileStart logs the beginning of a compile pass over a graph with the
// given node count.
func (l *Logger) CompileStart(correlationID string, nodeCount int) {
	l.Info().Str("event", "compile_start").Str("correlation_id", correlationID).Int("nodes", nodeCount).Log("compile started")
}

// CompileEnd logs the outcome of a compile pass.
func (l *Logger) CompileEnd(correlationID string, ok bool, errorCount int) {
	b := l.Info()
	if !ok {
		b = l.Warning()
	}
	b.Str("event", "compile_end").Str("correlation_id", correlationID).Bool("ok", ok).Int("errors", errorCount).Log("compile finished")
}

// SCCEntered logs entry into a microstep loop for an SCC.
func (l *Logger) SCCEntered(correlationID string, members []string, limit int) {
	l.Debug().Str("event", "scc_entered").Str("correlation_id", correlationID).Int("members", len(members)).Int("limit", limit).Log("entering microstep loop")
}

// SCCConverged logs a microstep loop reaching its fixed point.
func (l *Logger) SCCConverged(correlationID string, members []string, iterations int) {
	l.Debug().Str("event", "scc_converged").Str("correlation_id", correlationID).Int("members", len(members)).Int("iterations", iterations).Log("microstep loop converged")
}

// TickCommitted logs a successful tick commit.
func (l *Logger) TickCommitted(correlationID string, tick int64, updatedVars int) {
	l.Info().Str("event", "tick_committed").Str("correlation_id", correlationID).Int64("tick", tick).Int("updated_vars", updatedVars).Log("tick committed")
}

// ZenoGuardTripped logs a microstep loop hitting its iteration cap without
// converging, just before the caller turns this into a ZenoRuntimeError.
func (l *Logger) ZenoGuardTripped(correlationID string, members []string, limit int) {
	l.Err().Str("event", "zeno_guard_tripped").Str("correlation_id", correlationID).Int("members", len(members)).Int("limit", limit).Log("microstep loop did not converge")
}

// PolicyConflict logs a write-policy merge failure (e.g. ErrorPolicy double
// write).
func (l *Logger) PolicyConflict(correlationID, variable string, err error) {
	l.Err().Str("event", "policy_conflict").Str("correlation_id", correlationID).Str("variable", variable).Err(err).Log("variable write policy conflict")
}
