// Package timeofday converts between "HH:MM" wall-clock strings and
// minute-of-day integers, and holds the single interval overlap predicate
// used across the scheduler.
package timeofday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the exclusive upper bound of a minute-of-day value.
const MinutesPerDay = 24 * 60

// ErrMalformed is returned by Parse for anything that is not a valid
// 24-hour wall-clock time.
var ErrMalformed = errors.New("timeofday: malformed time")

// Parse converts "HH:MM" (or "H:MM") into hours*60+minutes. Hours must be
// 0-23 and minutes exactly two digits 00-59; signs and spaces inside the
// fields are rejected.
func Parse(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || !digits(h, 1, 2) || !digits(m, 2, 2) {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	hours, _ := strconv.Atoi(h)
	mins, _ := strconv.Atoi(m)
	if hours >= 24 || mins >= 60 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return hours*60 + mins, nil
}

func digits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Minutes is the lenient form of Parse used inside the scheduling core.
// Malformed input yields -1 instead of an error; well-formed values are
// guaranteed by upstream validation.
func Minutes(s string) int {
	n, err := Parse(s)
	if err != nil {
		return -1
	}
	return n
}

// Format renders minutes in [0, MinutesPerDay) as zero-padded "HH:MM".
// Values outside that range are formatted without wraparound.
func Format(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Overlap reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any minute. Back-to-back intervals do not overlap.
func Overlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
