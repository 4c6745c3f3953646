package wgconf

import (
	"fmt"
	"strings"
)

// ParseError is one problem found while reading a configuration.
//
// Line is 1-based; 0 means the error is not tied to a line (field validation
// errors). Section, Property and LineText are empty when unknown. Context
// holds the source lines surrounding Line for display; ContextStart is the
// line number of Context[0], or 0 to centre Context on Line.
type ParseError struct {
	Line         int
	Message      string
	Property     string
	Section      string
	LineText     string
	Context      []string
	ContextStart int
}

func (e ParseError) Error() string {
	return e.String()
}

// String formats the error for humans:
//
//	Line 5: Unknown property 'Foo' (in [Interface] section) [Property: Foo]
//
//	Context:
//	       3: ListenPort = 51820
//	>>>    5: Foo = bar
func (e ParseError) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Line %d: %s", e.Line, e.Message)
	if e.Section != "" {
		fmt.Fprintf(&b, " (in [%s] section)", e.Section)
	}
	if e.Property != "" {
		fmt.Fprintf(&b, " [Property: %s]", e.Property)
	}

	if len(e.Context) > 0 {
		b.WriteString("\n\nContext:\n")
		start := e.ContextStart
		if start == 0 {
			start = e.Line - len(e.Context)/2
		}
		for i, text := range e.Context {
			n := start + i
			marker := "    "
			if n == e.Line {
				marker = ">>> "
			}
			fmt.Fprintf(&b, "%s%4d: %s\n", marker, n, text)
		}
	}
	return b.String()
}

// ConfigurationError is returned by the failing entry points and carries
// every error collected during one parse.
type ConfigurationError struct {
	Errors []ParseError
}

func (e *ConfigurationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "Configuration parsing failed"
	case 1:
		return "Configuration parsing failed with 1 error:\n" + e.Errors[0].String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Configuration parsing failed with %d errors:\n\n", len(e.Errors))
	for i, pe := range e.Errors {
		fmt.Fprintf(&b, "Error %d:\n%s\n\n", i+1, pe.String())
	}
	return b.String()
}

// Unwrap exposes the individual errors to errors.Is / errors.As.
func (e *ConfigurationError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		out[i] = pe
	}
	return out
}
