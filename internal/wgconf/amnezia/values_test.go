package amnezia

import (
	"errors"
	"testing"

	"github.com/exeteres/wgconf/internal/wgconf"
)

func TestParseHeaderValue(t *testing.T) {
	tests := []struct {
		in   string
		want HeaderValue
	}{
		{"25", HeaderValue{Start: 25}},
		{" 42 ", HeaderValue{Start: 42}},
		{"25-30", HeaderValue{Start: 25, End: 30, IsRange: true}},
		{" 10 - 20 ", HeaderValue{Start: 10, End: 20, IsRange: true}},
		{"1000000-2000000", HeaderValue{Start: 1000000, End: 2000000, IsRange: true}},
		{"18446744073709551614-18446744073709551615", HeaderValue{Start: 18446744073709551614, End: 18446744073709551615, IsRange: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHeaderValue(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("unexpected value: %#v", got)
			}
		})
	}
}

func TestParseHeaderValue_Invalid(t *testing.T) {
	tests := []struct {
		in      string
		wantMsg string
	}{
		{"", "Invalid integer value in HeaderValue: ''"},
		{"abc", "Invalid integer value in HeaderValue: 'abc'"},
		{"-10", "Could not parse the first part of HeaderValue"},
		{"-10-5", "Header value should consist of exactly 2 unsigned long integers"},
		{"1-2-3", "Header value should consist of exactly 2 unsigned long integers"},
		{"x-5", "Could not parse the first part of HeaderValue"},
		{"5-x", "Could not parse the second part of HeaderValue"},
		{"5-5", ErrEqualBounds.Error()},
		{"30-25", ErrReversedBounds.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseHeaderValue(tt.in)
			var ferr *wgconf.FormatError
			if !errors.As(err, &ferr) || ferr.Msg != tt.wantMsg {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewHeaderRange(t *testing.T) {
	if _, err := NewHeaderRange(5, 5); !errors.Is(err, ErrEqualBounds) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewHeaderRange(30, 25); !errors.Is(err, ErrReversedBounds) {
		t.Fatalf("unexpected error: %v", err)
	}
	hv, err := NewHeaderRange(1, 2)
	if err != nil || hv.String() != "1-2" {
		t.Fatalf("unexpected value: %v %v", hv, err)
	}
	if s := NewHeaderValue(7).String(); s != "7" {
		t.Fatalf("unexpected string: %q", s)
	}
}

func TestHeaderValueRoundTrip(t *testing.T) {
	for _, s := range []string{"25", "25-30", "0-18446744073709551615"} {
		if got := MustParseHeaderValue(s).String(); got != s {
			t.Fatalf("round trip %q: got %q", s, got)
		}
	}
}

func TestParseIntegerRange(t *testing.T) {
	tests := []struct {
		in   string
		want IntegerRange
	}{
		{"10-20", IntegerRange{Start: 10, End: 20}},
		{"5-5", IntegerRange{Start: 5, End: 5}},
		{"30-25", IntegerRange{Start: 30, End: 25}},
		{"-10-5", IntegerRange{Start: -10, End: 5}},
		{" 10 - 20 ", IntegerRange{Start: 10, End: 20}},
		{"1000000-2000000", IntegerRange{Start: 1000000, End: 2000000}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIntegerRange(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("unexpected value: %#v", got)
			}
		})
	}
}

func TestParseIntegerRange_Invalid(t *testing.T) {
	tests := []struct {
		in      string
		wantMsg string
	}{
		{"", "IntegerRange must contain '-' separator (format: 'start-end')"},
		{"10", "IntegerRange must contain '-' separator (format: 'start-end')"},
		{"-10", "IntegerRange must contain '-' separator (format: 'start-end')"},
		{"abc-10", "Invalid start value in IntegerRange: 'abc'"},
		{"10-abc", "Invalid end value in IntegerRange: 'abc'"},
		{"10-3000000000", "Invalid end value in IntegerRange: '3000000000'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseIntegerRange(tt.in)
			var ferr *wgconf.FormatError
			if !errors.As(err, &ferr) || ferr.Msg != tt.wantMsg {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestIntegerRangeString(t *testing.T) {
	for _, s := range []string{"10-20", "-10-5", "-20-10"} {
		if got := MustParseIntegerRange(s).String(); got != s {
			t.Fatalf("round trip %q: got %q", s, got)
		}
	}
}
