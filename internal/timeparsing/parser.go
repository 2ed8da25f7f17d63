// Package timeparsing turns user-supplied time expressions into instants.
//
// Layers are tried in order, first match wins:
//  1. Compact duration (+6h, -1d, +2w)
//  2. Absolute timestamp (RFC3339, 2006-01-02, 2006-01-02 15:04)
//  3. Natural language (yesterday, last monday, 3 days ago)
package timeparsing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnrecognized is returned when no layer understands the input.
var ErrUnrecognized = errors.New("unrecognized time expression")

// compactDurationRe matches [+-]?(\d+)([hdwmy]), e.g. +6h, -1d, 3m.
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// ParseCompactDuration applies a compact duration to now. Units are
// h(ours), d(ays), w(eeks), m(onths) and y(ears); no sign means positive.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	matches := compactDurationRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}
	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}
	return applyDuration(now, amount, matches[3]), nil
}

func applyDuration(base time.Time, amount int, unit string) time.Time {
	switch unit {
	case "h":
		return base.Add(time.Duration(amount) * time.Hour)
	case "d":
		return base.AddDate(0, 0, amount)
	case "w":
		return base.AddDate(0, 0, amount*7)
	case "m":
		return base.AddDate(0, amount, 0)
	case "y":
		return base.AddDate(amount, 0, 0)
	}
	return base
}

// IsCompactDuration reports whether s uses compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseAbsolute parses a timestamp in one of the accepted layouts. Layouts
// without a zone are read in loc.
func ParseAbsolute(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an absolute time: %q", s)
}

var (
	parserOnce sync.Once
	nlParser   *when.Parser
)

func naturalParser() *when.Parser {
	parserOnce.Do(func() {
		nlParser = when.New(nil)
		nlParser.Add(en.All...)
		nlParser.Add(common.All...)
	})
	return nlParser
}

// ParseNaturalLanguage understands English expressions relative to now.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	r, err := naturalParser().Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognized, s)
	}
	return r.Time, nil
}

// ParseRelativeTime runs every layer in order and returns the first match.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrUnrecognized)
	}
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	if t, err := ParseAbsolute(s, now.Location()); err == nil {
		return t, nil
	}
	return ParseNaturalLanguage(strings.ToLower(s), now)
}
