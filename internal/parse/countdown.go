package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Mode selects how ParseCountdown treats text it does not understand.
type Mode int

const (
	// Lenient ignores unrecognised segments; they count as zero.
	Lenient Mode = iota
	// Strict rejects any segment that is not a well-formed token.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// ParseMode maps a configuration value onto a Mode. An empty value is Lenient.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	}
	return Lenient, fmt.Errorf("unknown countdown parse mode %q", s)
}

// FormatError reports countdown text rejected in Strict mode.
type FormatError struct {
	Text    string
	Segment string
	Reason  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed countdown %q at %q: %s", e.Text, e.Segment, e.Reason)
}

var tokenRe = regexp.MustCompile(`^(\d+)([hms])`)

var units = map[string]struct {
	rank int
	size time.Duration
}{
	"h": {0, time.Hour},
	"m": {1, time.Minute},
	"s": {2, time.Second},
}

// ParseCountdown converts text such as "00h 09m 32s" into a duration.
// Each of the h, m and s tokens is optional and missing ones count as zero.
func ParseCountdown(text string, mode Mode) (time.Duration, error) {
	var total time.Duration
	lastRank := -1
	rest := strings.TrimSpace(text)

	for rest != "" {
		loc := tokenRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			segment := rest
			if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
				segment = rest[:i]
			}
			if mode == Strict {
				return 0, &FormatError{Text: text, Segment: segment, Reason: "expected <digits><h|m|s>"}
			}
			rest = strings.TrimSpace(rest[len(segment):])
			continue
		}

		digits, unit := rest[loc[2]:loc[3]], rest[loc[4]:loc[5]]
		segment := rest[:loc[1]]
		rest = strings.TrimSpace(rest[loc[1]:])

		u := units[unit]
		if mode == Strict && u.rank <= lastRank {
			return 0, &FormatError{Text: text, Segment: segment, Reason: "units must appear once, in h m s order"}
		}
		lastRank = u.rank

		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || n > math.MaxInt64/int64(u.size) || total > math.MaxInt64-time.Duration(n)*u.size {
			if mode == Strict {
				return 0, &FormatError{Text: text, Segment: segment, Reason: "value out of range"}
			}
			continue
		}
		total += time.Duration(n) * u.size
	}
	return total, nil
}

// FormatCountdown renders d as "HHh MMm SSs". Hours are not wrapped at 24 and
// negative durations render as zero.
func FormatCountdown(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	h, rem := total/3600, total%3600
	m, s := rem/60, rem%60
	return fmt.Sprintf("%02dh %02dm %02ds", h, m, s)
}
