// Package schedule contains the pure scheduling primitives: daily
// time-window clamping and per-group cadence resolution. Nothing in this
// package performs I/O; all functions operate on explicit timestamps so
// they can be tested with fixed zoned inputs.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseHHMM parses a "HH:MM" clock string into hour and minute.
func ParseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time %q out of range", s)
	}
	return hour, minute, nil
}

// ClampToWindow snaps t into the daily sending window [from, to].
//
// For a non-crossing window (from <= to): a timestamp before the window
// start snaps to today's start, one after the window end snaps to
// tomorrow's start, anything inside passes through unchanged.
//
// For a crossing-midnight window (from > to, e.g. 21:00-06:00): the
// timestamp is valid in the evening segment (>= start today) and in the
// morning segment (<= end today); in the daytime dead zone it snaps
// forward to today's evening opening.
//
// Malformed window strings leave t unchanged. The result is idempotent:
// clamping an already-clamped timestamp is a no-op.
func ClampToWindow(t time.Time, from, to string) time.Time {
	fh, fm, errFrom := ParseHHMM(from)
	th, tm, errTo := ParseHHMM(to)
	if errFrom != nil || errTo != nil {
		return t
	}

	start := time.Date(t.Year(), t.Month(), t.Day(), fh, fm, 0, 0, t.Location())
	end := time.Date(t.Year(), t.Month(), t.Day(), th, tm, 0, 0, t.Location())

	if !start.After(end) {
		// Plain daytime window.
		if t.Before(start) {
			return start
		}
		if t.After(end) {
			return start.AddDate(0, 0, 1)
		}
		return t
	}

	// Window crosses midnight. The morning segment belongs to the previous
	// day's window but is compared same-day because callers already work in
	// local time.
	if !t.Before(start) || !t.After(end) {
		return t
	}
	return start
}

// NextFixedTime returns the next occurrence of the daily clock time hhmm
// strictly after base: today's occurrence if it is still in the future,
// otherwise tomorrow's. A malformed hhmm returns base unchanged.
func NextFixedTime(base time.Time, hhmm string) time.Time {
	h, m, err := ParseHHMM(hhmm)
	if err != nil {
		return base
	}
	next := time.Date(base.Year(), base.Month(), base.Day(), h, m, 0, 0, base.Location())
	if next.After(base) {
		return next
	}
	return next.AddDate(0, 0, 1)
}
