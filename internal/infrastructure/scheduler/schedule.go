package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSchedule accepts "@every <duration>" or a 5-field cron expression.
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", rest, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("interval must be positive: %s", d)
		}
		return NewIntervalSchedule(d), nil
	}
	return ParseCronExpression(spec)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON
// ══════════════════════════════════════════════════════════════════════════════

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
//	"*/15 * * * *"  every 15 minutes
//	"0 3 * * *"     every day at 03:00
type CronExpression struct {
	raw      string
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)
}

// ParseCronExpression parses a cron expression.
// Supports *, */n, n, n-m, n-m/s and n,m,o.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	ce := &CronExpression{raw: expr}
	targets := []struct {
		name     string
		dst      *[]int
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 6},
	}
	for i, t := range targets {
		values, err := parseField(fields[i], t.min, t.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", t.name, err)
		}
		*t.dst = values
	}
	return ce, nil
}

// parseField expands one comma-separated cron field into a value set.
func parseField(field string, min, max int) ([]int, error) {
	seen := make([]bool, max+1)
	for _, part := range strings.Split(field, ",") {
		if err := expandPart(part, min, max, seen); err != nil {
			return nil, err
		}
	}

	var out []int
	for v := min; v <= max; v++ {
		if seen[v] {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty field: %s", field)
	}
	return out, nil
}

func expandPart(part string, min, max int, seen []bool) error {
	step := 1
	if base, s, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step value: %s", s)
		}
		step = n
		part = base
	}

	start, end := min, max
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err error
		if start, err = strconv.Atoi(lo); err != nil {
			return fmt.Errorf("invalid range start: %s", lo)
		}
		if end, err = strconv.Atoi(hi); err != nil {
			return fmt.Errorf("invalid range end: %s", hi)
		}
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid value: %s", part)
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	if start < min || end > max || start > end {
		return fmt.Errorf("value out of range [%d-%d]: %s", min, max, part)
	}
	for v := start; v <= end; v += step {
		seen[v] = true
	}
	return nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time,
// or the zero time if nothing matches within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Add(time.Minute).Truncate(time.Minute)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return contains(ce.minutes, t.Minute()) &&
		contains(ce.hours, t.Hour()) &&
		contains(ce.days, t.Day()) &&
		contains(ce.months, int(t.Month())) &&
		contains(ce.weekdays, int(t.Weekday()))
}

func contains(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}
