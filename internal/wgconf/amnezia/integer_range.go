package amnezia

import (
	"strconv"
	"strings"
)

// IntegerRange is a signed "start-end" pair. Unlike HeaderValue it always
// has both bounds and does not order them.
type IntegerRange struct {
	Start int32
	End   int32
}

// ParseIntegerRange splits on the last '-', so a negative start such as
// "-10-5" is accepted.
func ParseIntegerRange(s string) (IntegerRange, error) {
	i := strings.LastIndexByte(s, '-')
	if i <= 0 {
		return IntegerRange{}, formatError("IntegerRange must contain '-' separator (format: 'start-end')")
	}

	startText := strings.TrimSpace(s[:i])
	start, err := strconv.ParseInt(startText, 10, 32)
	if err != nil {
		return IntegerRange{}, formatError("Invalid start value in IntegerRange: '%s'", startText)
	}
	endText := strings.TrimSpace(s[i+1:])
	end, err := strconv.ParseInt(endText, 10, 32)
	if err != nil {
		return IntegerRange{}, formatError("Invalid end value in IntegerRange: '%s'", endText)
	}

	return IntegerRange{Start: int32(start), End: int32(end)}, nil
}

func MustParseIntegerRange(s string) IntegerRange {
	r, err := ParseIntegerRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r IntegerRange) String() string {
	return strconv.FormatInt(int64(r.Start), 10) + "-" + strconv.FormatInt(int64(r.End), 10)
}
