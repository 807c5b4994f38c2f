// Package diag defines the compiler's diagnostic report: a severity-typed,
// stable-coded message with a location, accumulated by every static pass
// into a single sink.
package diag

import "fmt"

// Severity is error or warning. Warnings never fail compilation; any
// error diagnostic does.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Diagnostic is one reported finding. Code is a stable identifier with one
// of the prefixes STRUCT, TYPE, WRITE, CAUS, INIT, ZEN, SDF, CT.
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Location string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s %s] %s (%s)", d.Severity, d.Code, d.Message, d.Location)
}

// Sink accumulates diagnostics across all passes. A pass runs in
// isolation and only annotates the sink; it never mutates the IR's
// semantics.
type Sink struct {
	diagnostics []Diagnostic
}

// NewSink constructs an empty sink.
func NewSink() *Sink { return &Sink{} }

// Error records an error-severity diagnostic.
func (s *Sink) Error(code, message, location string) {
	s.diagnostics = append(s.diagnostics, Diagnostic{Severity: Error, Code: code, Message: message, Location: location})
}

// Warning records a warning-severity diagnostic.
func (s *Sink) Warning(code, message, location string) {
	s.diagnostics = append(s.diagnostics, Diagnostic{Severity: Warning, Code: code, Message: message, Location: location})
}

// Diagnostics returns all recorded diagnostics in recording order.
func (s *Sink) Diagnostics() []Diagnostic {
	return s.diagnostics
}

// HasErrors reports whether any error-severity diagnostic was recorded;
// the compile pipeline succeeds iff this is false.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Merge appends other's diagnostics onto s, preserving order.
func (s *Sink) Merge(other *Sink) {
	s.diagnostics = append(s.diagnostics, other.diagnostics...)
}
