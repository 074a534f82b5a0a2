package job

import (
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/cockroachdb/errors"
)

// cron field positions, as understood by gronx.SegmentChecker.
const (
	posSecond = iota
	posMinute
	posHour
	posDay
	posMonth
	posWeekday
	posYear
)

// searchYears bounds the search of an expression without a last year. Every
// day/month/weekday combination recurs within a 400 year Gregorian cycle.
const searchYears = 400

// CronSchedule is a cron expression with a seconds field and an optional
// trailing year field:
//
//	sec min hour day-of-month month day-of-week [year]
//
// When both day-of-month and day-of-week are restricted a day must match
// both of them.
type CronSchedule struct {
	expr     string
	segments [7]string
	// lastYear is the last year the year field can match, 0 when unbounded.
	lastYear int
}

// ParseCron validates spec and returns its schedule.
func ParseCron(spec string) (*CronSchedule, error) {
	fields := strings.Fields(spec)
	if len(fields) < 6 || len(fields) > 7 {
		return nil, errors.Mark(errors.Newf("cron expression %q has %d fields, want 6 or 7", spec, len(fields)), ErrInvalidDefinition)
	}
	if len(fields) == 6 {
		fields = append(fields, "*")
	}

	// Segments upper-cases and replaces month and weekday names. With seven
	// fields it never prepends a seconds field.
	segments, err := gronx.Segments(strings.Join(fields, " "))
	if err != nil || len(segments) != 7 || !gronx.IsValid(strings.Join(segments, " ")) {
		return nil, errors.Mark(errors.Newf("invalid cron expression %q", spec), ErrInvalidDefinition)
	}

	c := &CronSchedule{expr: strings.Join(segments, " ")}
	copy(c.segments[:], segments)
	c.lastYear = lastYear(c.segments[posYear])

	if !c.dayExists() {
		return nil, errors.Mark(errors.Newf("cron expression %q names no existing day", spec), ErrInvalidDefinition)
	}
	return c, nil
}

// Next re-derives the activation after t from the expression on every call;
// no cursor is kept. It returns the zero time once no activation remains,
// which happens with a year field in the past.
func (c *CronSchedule) Next(t time.Time) time.Time {
	loc := t.Location()
	next := t.Truncate(time.Second).Add(time.Second)

	limit := c.lastYear
	if limit == 0 {
		limit = next.Year() + searchYears
	}

	checker := &gronx.SegmentChecker{}
	for next.Year() <= limit {
		checker.SetRef(next)
		y, m, d := next.Date()
		hh, mm, _ := next.Clock()

		var step time.Time
		switch {
		case !c.due(checker, posYear):
			step = time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc)
		case !c.due(checker, posMonth):
			step = time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
		case !c.dayDue(checker):
			step = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		case !c.due(checker, posHour):
			step = time.Date(y, m, d, hh+1, 0, 0, 0, loc)
		case !c.due(checker, posMinute):
			step = time.Date(y, m, d, hh, mm+1, 0, 0, loc)
		case !c.due(checker, posSecond):
			step = next.Add(time.Second)
		default:
			return next
		}

		// Wall clock arithmetic can fall back across a DST change.
		if !step.After(next) {
			step = next.Add(time.Second)
		}
		next = step
	}
	return time.Time{}
}

func (c *CronSchedule) String() string {
	return c.expr
}

func (c *CronSchedule) due(checker *gronx.SegmentChecker, pos int) bool {
	seg := c.segments[pos]
	if seg == "*" || seg == "?" {
		return true
	}
	due, err := checker.CheckDue(seg, pos)
	return err == nil && due
}

// dayDue requires both day fields to match the checker's reference.
func (c *CronSchedule) dayDue(checker *gronx.SegmentChecker) bool {
	return c.due(checker, posDay) && c.due(checker, posWeekday)
}

// dayExists reports whether some month allowed by the expression has a day
// allowed by its day-of-month field. Leap years are taken into account.
func (c *CronSchedule) dayExists() bool {
	checker := &gronx.SegmentChecker{}
	const leapYear = 2032
	for m := time.January; m <= time.December; m++ {
		checker.SetRef(time.Date(leapYear, m, 1, 0, 0, 0, 0, time.UTC))
		if !c.due(checker, posMonth) {
			continue
		}
		days := time.Date(leapYear, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
		for d := 1; d <= days; d++ {
			checker.SetRef(time.Date(leapYear, m, d, 0, 0, 0, 0, time.UTC))
			if c.due(checker, posDay) {
				return true
			}
		}
	}
	return false
}

// lastYear returns the greatest year a year field can match, or 0 when the
// field has no upper bound (`*`, `?`, `*/n`, `2030/2`).
func lastYear(seg string) int {
	last := 0
	for _, offset := range strings.Split(seg, ",") {
		base, _, stepped := strings.Cut(offset, "/")
		if strings.Contains(base, "*") || strings.Contains(base, "?") {
			return 0
		}
		from, to, ranged := strings.Cut(base, "-")
		if stepped && !ranged {
			return 0
		}
		if !ranged {
			to = from
		}
		year, err := strconv.Atoi(to)
		if err != nil {
			return 0
		}
		if year > last {
			last = year
		}
	}
	return last
}
