package rlog_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/regelum-go/regelum/internal/rlog"
	"github.com/stretchr/testify/assert"
)

func TestNewWritesNewlineDelimitedEvents(t *testing.T) {
	var buf bytes.Buffer
	l := rlog.New(&buf)

	l.CompileStart("corr-1", 3)
	l.CompileEnd("corr-1", true, 0)
	l.SCCEntered("corr-1", []string{"A", "B"}, 20)
	l.SCCConverged("corr-1", []string{"A", "B"}, 4)
	l.TickCommitted("corr-1", 1, 2)
	l.ZenoGuardTripped("corr-1", []string{"A", "B"}, 2)
	l.PolicyConflict("corr-1", "Hub.total", errors.New("multiple writers"))

	out := buf.String()
	for _, want := range []string{
		"compile_start", "compile_end", "scc_entered", "scc_converged",
		"tick_committed", "zeno_guard_tripped", "policy_conflict",
		"corr-1", "Hub.total",
	} {
		assert.Contains(t, out, want)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 7)
}

func TestNewDefaultsToStderrOnNilWriter(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = rlog.New(nil)
	})
}

func TestCompileEndLogsWarningOnFailure(t *testing.T) {
	var buf bytes.Buffer
	l := rlog.New(&buf)
	l.CompileEnd("corr-2", false, 3)
	assert.Contains(t, buf.String(), "compile_end")
}
