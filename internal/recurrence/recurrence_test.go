package recurrence

import (
	"testing"
	"time"

	"github.com/tillgrange/choreboard/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseKinds(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
	}{
		{"none", KindNone},
		{"", KindNone},
		{"daily", KindDaily},
		{"weekly:0,3", KindWeekly},
		{"monthly:1,15", KindMonthly},
	}

	for _, tt := range tests {
		p, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.input, err)
			continue
		}
		if p.Kind() != tt.kind {
			t.Errorf("Parse(%q).Kind() = %q, want %q", tt.input, p.Kind(), tt.kind)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"weekly",       // missing day list
		"weekly:",      // empty day list
		"weekly:7",     // weekday out of range
		"weekly:-1",    // weekday out of range
		"monthly",      // missing day list
		"monthly:0",    // day out of range
		"monthly:32",   // day out of range
		"monthly:1,x",  // not a number
		"daily:1",      // daily takes no days
		"hourly",       // unknown kind
	}

	for _, input := range tests {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
			continue
		}
		if !domain.HasCode(err, domain.CodePatternInvalid) {
			t.Errorf("Parse(%q) error code = %q, want pattern_invalid", input, domain.CodeOf(err))
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"none", "daily", "weekly:1,3,5", "monthly:1,15,31"} {
		p, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if p.String() != s {
			t.Errorf("Parse(%q).String() = %q", s, p.String())
		}
	}
}

func TestWeeklySortsAndDedupes(t *testing.T) {
	p, err := Weekly(5, 1, 5, 3)
	if err != nil {
		t.Fatalf("Weekly: %v", err)
	}
	if p.String() != "weekly:1,3,5" {
		t.Errorf("String() = %q, want weekly:1,3,5", p.String())
	}
}

func TestDailyDates(t *testing.T) {
	dates := Daily().Dates(date(2025, time.January, 1), date(2025, time.January, 3), nil)
	if len(dates) != 3 {
		t.Fatalf("got %d dates, want 3", len(dates))
	}
	for i, want := range []int{1, 2, 3} {
		if dates[i].Day() != want {
			t.Errorf("dates[%d] = %v, want Jan %d", i, dates[i], want)
		}
	}
}

func TestWeeklyDates(t *testing.T) {
	// Jan 2025: the 1st is a Wednesday. Sundays: 5, 12, 19, 26.
	p, _ := Weekly(0)
	dates := p.Dates(date(2025, time.January, 1), date(2025, time.January, 31), nil)
	want := []int{5, 12, 19, 26}
	if len(dates) != len(want) {
		t.Fatalf("got %d dates, want %d", len(dates), len(want))
	}
	for i, d := range dates {
		if d.Day() != want[i] {
			t.Errorf("dates[%d].Day() = %d, want %d", i, d.Day(), want[i])
		}
		if d.Weekday() != time.Sunday {
			t.Errorf("dates[%d] is a %v, want Sunday", i, d.Weekday())
		}
	}
}

func TestMonthlyDates(t *testing.T) {
	p, _ := Monthly(1, 15)
	dates := p.Dates(date(2025, time.March, 1), date(2025, time.April, 30), nil)
	want := []time.Time{
		date(2025, time.March, 1), date(2025, time.March, 15),
		date(2025, time.April, 1), date(2025, time.April, 15),
	}
	if len(dates) != len(want) {
		t.Fatalf("got %d dates, want %d", len(dates), len(want))
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Errorf("dates[%d] = %v, want %v", i, dates[i], want[i])
		}
	}
}

func TestMonthlyClampsToMonthEnd(t *testing.T) {
	// Day 31 lands on Feb 28 in a non-leap year, exactly once.
	p, _ := Monthly(31)
	dates := p.Dates(date(2025, time.February, 1), date(2025, time.February, 28), nil)
	if len(dates) != 1 {
		t.Fatalf("got %d dates in February, want 1", len(dates))
	}
	if !dates[0].Equal(date(2025, time.February, 28)) {
		t.Errorf("clamped date = %v, want Feb 28", dates[0])
	}

	// Leap year clamps to the 29th.
	dates = p.Dates(date(2024, time.February, 1), date(2024, time.February, 29), nil)
	if len(dates) != 1 || !dates[0].Equal(date(2024, time.February, 29)) {
		t.Errorf("leap year dates = %v, want [Feb 29]", dates)
	}

	// A 30-day month clamps to the 30th.
	dates = p.Dates(date(2025, time.April, 1), date(2025, time.April, 30), nil)
	if len(dates) != 1 || !dates[0].Equal(date(2025, time.April, 30)) {
		t.Errorf("April dates = %v, want [Apr 30]", dates)
	}
}

func TestMonthlyClampDoesNotDuplicate(t *testing.T) {
	// Both 30 and 31 overflow February; the clamp must yield one date, and a
	// configured day that matches directly must not double up with the clamp.
	p, _ := Monthly(28, 30, 31)
	dates := p.Dates(date(2025, time.February, 1), date(2025, time.February, 28), nil)
	if len(dates) != 1 {
		t.Fatalf("got %d dates in February, want 1", len(dates))
	}
}

func TestNoneDatesUseFixedDate(t *testing.T) {
	fixed := date(2025, time.June, 10)

	dates := None().Dates(date(2025, time.June, 1), date(2025, time.June, 30), &fixed)
	if len(dates) != 1 || !dates[0].Equal(fixed) {
		t.Errorf("dates = %v, want [Jun 10]", dates)
	}

	// Out of range: nothing.
	dates = None().Dates(date(2025, time.July, 1), date(2025, time.July, 31), &fixed)
	if len(dates) != 0 {
		t.Errorf("out-of-range dates = %v, want none", dates)
	}

	// No fixed date at all: nothing (the generator handles "anytime").
	dates = None().Dates(date(2025, time.June, 1), date(2025, time.June, 30), nil)
	if len(dates) != 0 {
		t.Errorf("no-fixed dates = %v, want none", dates)
	}
}

func TestDatesDeterministic(t *testing.T) {
	p, _ := Weekly(1, 4)
	a := p.Dates(date(2025, time.January, 1), date(2025, time.March, 31), nil)
	b := p.Dates(date(2025, time.January, 1), date(2025, time.March, 31), nil)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Errorf("run mismatch at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestDatesEmptyRange(t *testing.T) {
	dates := Daily().Dates(date(2025, time.March, 10), date(2025, time.March, 9), nil)
	if dates != nil {
		t.Errorf("inverted range dates = %v, want nil", dates)
	}
}

func TestDescribe(t *testing.T) {
	p, _ := Weekly(1, 3)
	if got := p.Describe(); got != "Repeats weekly on Mon, Wed" {
		t.Errorf("Describe() = %q", got)
	}
	if got := None().Describe(); got != "Does not repeat" {
		t.Errorf("Describe() = %q", got)
	}
}
