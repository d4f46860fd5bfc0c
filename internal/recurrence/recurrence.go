// Package recurrence turns a chore's recurrence pattern and a date range into
// the calendar dates on which an instance should exist. It is pure: "now" is
// never read here, only supplied by callers through the range.
package recurrence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tillgrange/choreboard/internal/domain"
)

type Kind string

const (
	KindNone    Kind = "none"
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
)

// Pattern is a validated recurrence pattern. The zero value is KindNone.
// Construct with None, Daily, Weekly, Monthly, or Parse; invalid day sets
// cannot be represented.
type Pattern struct {
	kind      Kind
	weekdays  []int // weekly: 0=Sunday .. 6=Saturday, sorted, unique
	monthDays []int // monthly: 1..31, sorted, unique
}

func None() Pattern  { return Pattern{kind: KindNone} }
func Daily() Pattern { return Pattern{kind: KindDaily} }

// Weekly builds a weekly pattern from weekday numbers (0=Sunday).
func Weekly(days ...int) (Pattern, error) {
	cleaned, err := cleanDays(days, 0, 6)
	if err != nil {
		return Pattern{}, domain.Errf(domain.CodePatternInvalid, "weekly pattern: %v", err)
	}
	return Pattern{kind: KindWeekly, weekdays: cleaned}, nil
}

// Monthly builds a monthly pattern from days of month (1..31). Days past the
// end of a short month clamp to that month's last day.
func Monthly(days ...int) (Pattern, error) {
	cleaned, err := cleanDays(days, 1, 31)
	if err != nil {
		return Pattern{}, domain.Errf(domain.CodePatternInvalid, "monthly pattern: %v", err)
	}
	return Pattern{kind: KindMonthly, monthDays: cleaned}, nil
}

func cleanDays(days []int, min, max int) ([]int, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("day set must not be empty")
	}
	seen := make(map[int]bool, len(days))
	var cleaned []int
	for _, d := range days {
		if d < min || d > max {
			return nil, fmt.Errorf("day %d out of range %d-%d", d, min, max)
		}
		if !seen[d] {
			seen[d] = true
			cleaned = append(cleaned, d)
		}
	}
	sort.Ints(cleaned)
	return cleaned, nil
}

// Parse parses a serialized pattern like "daily", "weekly:1,3,5", or
// "monthly:1,15". An empty string is treated as "none".
func Parse(s string) (Pattern, error) {
	kind, rest, hasDays := strings.Cut(strings.TrimSpace(s), ":")
	switch Kind(kind) {
	case KindNone, "":
		if hasDays {
			return Pattern{}, domain.Errf(domain.CodePatternInvalid, "pattern %q: none takes no day list", s)
		}
		return None(), nil
	case KindDaily:
		if hasDays {
			return Pattern{}, domain.Errf(domain.CodePatternInvalid, "pattern %q: daily takes no day list", s)
		}
		return Daily(), nil
	case KindWeekly:
		days, err := parseDayList(rest)
		if err != nil {
			return Pattern{}, domain.Errf(domain.CodePatternInvalid, "pattern %q: %v", s, err)
		}
		return Weekly(days...)
	case KindMonthly:
		days, err := parseDayList(rest)
		if err != nil {
			return Pattern{}, domain.Errf(domain.CodePatternInvalid, "pattern %q: %v", s, err)
		}
		return Monthly(days...)
	}
	return Pattern{}, domain.Errf(domain.CodePatternInvalid, "unknown pattern kind %q", kind)
}

func parseDayList(s string) ([]int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing day list")
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid day %q", part)
		}
		days = append(days, n)
	}
	return days, nil
}

func (p Pattern) Kind() Kind { return p.kind }

// String serializes the pattern back to its compact form.
func (p Pattern) String() string {
	switch p.kind {
	case KindWeekly:
		return string(KindWeekly) + ":" + joinDays(p.weekdays)
	case KindMonthly:
		return string(KindMonthly) + ":" + joinDays(p.monthDays)
	case KindDaily:
		return string(KindDaily)
	}
	return string(KindNone)
}

func joinDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// Describe returns a human-readable description of the pattern.
func (p Pattern) Describe() string {
	switch p.kind {
	case KindDaily:
		return "Repeats daily"
	case KindWeekly:
		var names []string
		for _, d := range p.weekdays {
			names = append(names, time.Weekday(d).String()[:3])
		}
		return "Repeats weekly on " + strings.Join(names, ", ")
	case KindMonthly:
		return "Repeats monthly on day " + joinDays(p.monthDays)
	}
	return "Does not repeat"
}

// Day normalizes t to midnight UTC. All due dates are compared at day
// granularity.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Matches reports whether the pattern produces an occurrence on the given
// date. KindNone never matches; fixed-date chores are handled by Dates.
func (p Pattern) Matches(date time.Time) bool {
	date = Day(date)
	switch p.kind {
	case KindDaily:
		return true
	case KindWeekly:
		wd := int(date.Weekday())
		for _, d := range p.weekdays {
			if d == wd {
				return true
			}
		}
	case KindMonthly:
		day := date.Day()
		last := daysInMonth(date.Year(), date.Month())
		for _, d := range p.monthDays {
			if d == day {
				return true
			}
			// Month-end clamping: day 31 in a 30-day month lands on the
			// 30th. A single clamped occurrence per month, never two.
			if d > last && day == last {
				return true
			}
		}
	}
	return false
}

// Dates returns the ordered, deduplicated dates matching the pattern within
// [start, end] inclusive. For KindNone, fixed supplies the chore's start
// date: the result is that single date if it falls in range, else nothing.
// Identical inputs always yield identical output.
func (p Pattern) Dates(start, end time.Time, fixed *time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}

	if p.kind == KindNone {
		if fixed == nil {
			return nil
		}
		d := Day(*fixed)
		if d.Before(start) || d.After(end) {
			return nil
		}
		return []time.Time{d}
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if p.Matches(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
