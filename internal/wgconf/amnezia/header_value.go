package amnezia

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/exeteres/wgconf/internal/wgconf"
)

var (
	ErrEqualBounds    = errors.New("Use constructor with single parameter to initialize a single-value HeaderValue")
	ErrReversedBounds = errors.New("end cannot be less than start")
)

// HeaderValue is an H1..H4 packet header: either one value or an inclusive
// start-end range with start < end.
type HeaderValue struct {
	Start   uint64
	End     uint64
	IsRange bool
}

// NewHeaderValue returns a single-value header.
func NewHeaderValue(v uint64) HeaderValue {
	return HeaderValue{Start: v}
}

// NewHeaderRange rejects equal bounds; use NewHeaderValue for those.
func NewHeaderRange(start, end uint64) (HeaderValue, error) {
	if start == end {
		return HeaderValue{}, ErrEqualBounds
	}
	if end < start {
		return HeaderValue{}, ErrReversedBounds
	}
	return HeaderValue{Start: start, End: end, IsRange: true}, nil
}

// ParseHeaderValue accepts "n" or "start-end". Whitespace around either
// part is ignored; signs are not accepted.
func ParseHeaderValue(s string) (HeaderValue, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "-") {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return HeaderValue{}, formatError("Invalid integer value in HeaderValue: '%s'", s)
		}
		return NewHeaderValue(v), nil
	}

	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return HeaderValue{}, formatError("Header value should consist of exactly 2 unsigned long integers")
	}
	start, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return HeaderValue{}, formatError("Could not parse the first part of HeaderValue")
	}
	end, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return HeaderValue{}, formatError("Could not parse the second part of HeaderValue")
	}

	hv, err := NewHeaderRange(start, end)
	if err != nil {
		return HeaderValue{}, &wgconf.FormatError{Msg: err.Error()}
	}
	return hv, nil
}

// MustParseHeaderValue is like ParseHeaderValue but panics on error.
func MustParseHeaderValue(s string) HeaderValue {
	hv, err := ParseHeaderValue(s)
	if err != nil {
		panic(err)
	}
	return hv
}

func (h HeaderValue) String() string {
	if h.IsRange {
		return strconv.FormatUint(h.Start, 10) + "-" + strconv.FormatUint(h.End, 10)
	}
	return strconv.FormatUint(h.Start, 10)
}

func formatError(format string, args ...any) *wgconf.FormatError {
	return &wgconf.FormatError{Msg: fmt.Sprintf(format, args...)}
}
