package schedule

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CadenceKind classifies a group's send_time descriptor.
type CadenceKind int

const (
	// CadenceNone means the group has no cadence of its own; the wave
	// planner's shared sequential cursor decides its slot.
	CadenceNone CadenceKind = iota
	// CadenceFixed anchors the group to a daily clock time.
	CadenceFixed
	// CadenceInterval spaces the group's sends by a random offset drawn
	// from [MinMinutes, MaxMinutes].
	CadenceInterval
)

// Cadence is a parsed send_time descriptor.
type Cadence struct {
	Kind       CadenceKind
	HHMM       string // fixed only
	MinMinutes int    // interval only
	MaxMinutes int    // interval only
}

var (
	clockRe        = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	minuteRangeRe  = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)\s*(?:minutes?|mins?|m)$`)
	hourRangeRe    = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)\s*(?:hours?|hrs?|h)$`)
	minuteSingleRe = regexp.MustCompile(`^(\d+)\s*(?:minutes?|mins?|m)$`)
	hourSingleRe   = regexp.MustCompile(`^(\d+)\s*(?:hours?|hrs?|h)$`)
)

// ParseSendTime parses a group's send_time descriptor. Recognized forms:
// "HH:MM" (fixed daily time), "2-5 minutes", "1-2 hours", "30 minutes",
// "6 hours". Empty or unrecognized descriptors yield CadenceNone.
func ParseSendTime(s string) Cadence {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Cadence{Kind: CadenceNone}
	}

	if clockRe.MatchString(s) {
		if _, _, err := ParseHHMM(s); err == nil {
			return Cadence{Kind: CadenceFixed, HHMM: s}
		}
		return Cadence{Kind: CadenceNone}
	}

	if m := minuteRangeRe.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return Cadence{Kind: CadenceInterval, MinMinutes: lo, MaxMinutes: hi}
	}
	if m := hourRangeRe.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return Cadence{Kind: CadenceInterval, MinMinutes: lo * 60, MaxMinutes: hi * 60}
	}
	if m := minuteSingleRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Cadence{Kind: CadenceInterval, MinMinutes: n, MaxMinutes: n}
	}
	if m := hourSingleRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Cadence{Kind: CadenceInterval, MinMinutes: n * 60, MaxMinutes: n * 60}
	}

	return Cadence{Kind: CadenceNone}
}

// RandBetween returns a uniform random integer in [min, max] inclusive.
// Reversed bounds are swapped; min == max returns min.
func RandBetween(min, max int) int {
	if min > max {
		min, max = max, min
	}
	if min == max {
		return min
	}
	return min + rand.Intn(max-min+1)
}

// Resolver assigns concrete slots for groups with their own cadence and
// tracks a per-group "next available" watermark so that later templates in
// the same wave do not collide on the same group. The watermark advances
// by an inter-template delay for fixed cadences and by another draw of the
// group's own interval for interval cadences, so a busy group's sends
// stagger across the whole day.
type Resolver struct {
	from, to string
	// Inter-template spacing (minutes) applied to fixed-cadence watermarks.
	betweenTemplatesMin int
	betweenTemplatesMax int

	nextAvail map[string]time.Time
}

// NewResolver creates a cadence resolver for one wave.
func NewResolver(from, to string, betweenTemplatesMin, betweenTemplatesMax int) *Resolver {
	return &Resolver{
		from:                from,
		to:                  to,
		betweenTemplatesMin: betweenTemplatesMin,
		betweenTemplatesMax: betweenTemplatesMax,
		nextAvail:           make(map[string]time.Time),
	}
}

// Next resolves the slot for groupID under cadence c, relative to the wave
// base time. ok is false for CadenceNone: those groups follow the planner's
// shared cursor instead.
func (r *Resolver) Next(groupID string, c Cadence, base time.Time) (slot time.Time, ok bool) {
	switch c.Kind {
	case CadenceFixed:
		anchor := NextFixedTime(base, c.HHMM)
		if w, reserved := r.nextAvail[groupID]; reserved && w.After(anchor) {
			anchor = w
		}
		slot = ClampToWindow(anchor, r.from, r.to)
		gap := RandBetween(r.betweenTemplatesMin, r.betweenTemplatesMax)
		r.nextAvail[groupID] = slot.Add(time.Duration(gap) * time.Minute)
		return slot, true

	case CadenceInterval:
		anchor := base
		if w, reserved := r.nextAvail[groupID]; reserved {
			anchor = w
		}
		offset := RandBetween(c.MinMinutes, c.MaxMinutes)
		slot = ClampToWindow(anchor.Add(time.Duration(offset)*time.Minute), r.from, r.to)
		gap := RandBetween(c.MinMinutes, c.MaxMinutes)
		r.nextAvail[groupID] = slot.Add(time.Duration(gap) * time.Minute)
		return slot, true

	default:
		return time.Time{}, false
	}
}

// NextAvailable returns the group's reserved watermark, if any. Exposed for
// the planner's tests.
func (r *Resolver) NextAvailable(groupID string) (time.Time, bool) {
	t, reserved := r.nextAvail[groupID]
	return t, reserved
}
