package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronSpec is a parsed five-field POSIX cron expression: one boolean set
// per field, plus a wildcard flag for day-of-month and day-of-week since
// those two combine with OR semantics only when both are restricted.
type cronSpec struct {
	minute, hour, month map[int]bool
	dom, dow            map[int]bool
	domWildcard         bool
	dowWildcard         bool
}

var monthAliases = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var weekdayAliases = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// parseCron parses a five-field cron expression: minute hour dayOfMonth
// month dayOfWeek.
func parseCron(minute, hour, dom, month, dow string) (*cronSpec, error) {
	spec := &cronSpec{}

	var err error
	spec.minute, err = parseField(minute, 0, 59, nil)
	if err != nil {
		return nil, fmt.Errorf("minute: %w", err)
	}
	spec.hour, err = parseField(hour, 0, 23, nil)
	if err != nil {
		return nil, fmt.Errorf("hour: %w", err)
	}
	spec.dom, err = parseField(dom, 1, 31, nil)
	if err != nil {
		return nil, fmt.Errorf("day of month: %w", err)
	}
	spec.domWildcard = strings.TrimSpace(dom) == "*"

	spec.month, err = parseField(month, 1, 12, monthAliases)
	if err != nil {
		return nil, fmt.Errorf("month: %w", err)
	}
	spec.dow, err = parseField(dow, 0, 6, weekdayAliases)
	if err != nil {
		return nil, fmt.Errorf("day of week: %w", err)
	}
	spec.dowWildcard = strings.TrimSpace(dow) == "*"

	return spec, nil
}

// parseField parses one cron field: "*", "a", "a,b,c", "a-b", "*/n", or
// "a-b/n", with optional name aliases substituted before numeric parsing.
func parseField(field string, min, max int, aliases map[string]int) (map[int]bool, error) {
	field = strings.TrimSpace(strings.ToLower(field))
	set := make(map[int]bool)

	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		step := 1
		rangePart := part
		if idx := strings.IndexByte(part, '/'); idx >= 0 {
			rangePart = part[:idx]
			s, err := strconv.Atoi(part[idx+1:])
			if err != nil || s <= 0 {
				return nil, fmt.Errorf("invalid step in %q", part)
			}
			step = s
		}

		var lo, hi int
		switch {
		case rangePart == "*":
			lo, hi = min, max
		case strings.Contains(rangePart, "-"):
			bounds := strings.SplitN(rangePart, "-", 2)
			var err error
			lo, err = resolveValue(bounds[0], aliases)
			if err != nil {
				return nil, err
			}
			hi, err = resolveValue(bounds[1], aliases)
			if err != nil {
				return nil, err
			}
		default:
			v, err := resolveValue(rangePart, aliases)
			if err != nil {
				return nil, err
			}
			lo, hi = v, v
		}

		if lo < min || hi > max || lo > hi {
			return nil, fmt.Errorf("value out of range in %q (want %d-%d)", part, min, max)
		}
		for v := lo; v <= hi; v += step {
			set[v] = true
		}
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("empty field %q", field)
	}
	return set, nil
}

func resolveValue(s string, aliases map[string]int) (int, error) {
	s = strings.TrimSpace(s)
	if aliases != nil {
		if v, ok := aliases[s]; ok {
			return v, nil
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

// matches reports whether t (already in the job's timezone) satisfies the
// cron spec. dayOfMonth and dayOfWeek combine with OR semantics when both
// are explicitly restricted, matching classic cron.
func (s *cronSpec) matches(t time.Time) bool {
	if !s.minute[t.Minute()] {
		return false
	}
	if !s.hour[t.Hour()] {
		return false
	}
	if !s.month[int(t.Month())] {
		return false
	}

	domOK := s.domWildcard || s.dom[t.Day()]
	dowOK := s.dowWildcard || s.dow[int(t.Weekday())]

	switch {
	case s.domWildcard && s.dowWildcard:
		return true
	case s.domWildcard:
		return dowOK
	case s.dowWildcard:
		return domOK
	default:
		return domOK || dowOK
	}
}

// nextCronRun walks forward minute-by-minute from the minute after `after`
// for at most two years, looking for a match in loc. Returns ok=false if
// none is found within that window (an impossible expression, e.g.
// "0 0 30 2 *").
func nextCronRun(spec *cronSpec, after time.Time, loc *time.Location) (time.Time, bool) {
	t := after.In(loc).Truncate(time.Minute).Add(time.Minute)
	limit := after.AddDate(2, 0, 0)
	for t.Before(limit) {
		if spec.matches(t) {
			return t, true
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, false
}
