// Package timeutil holds the calendar primitives the scheduler works with:
// zone-free calendar dates, minute-precision times of day, and half-open
// interval arithmetic.
package timeutil

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	DateLayout = "2006-01-02"

	MinutesPerDay = 24 * 60
	// EndOfDay is "24:00", valid only as the exclusive end of an interval.
	EndOfDay TimeOfDay = MinutesPerDay
)

// Date is a calendar day without a time-of-day or zone component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), time.UTC)
}

// DateOf returns the calendar day t falls on in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, errors.Wrapf(err, "parse date %q", s)
	}
	return DateOf(t, time.UTC), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool { return d == Date{} }

// Time returns midnight of d in UTC. It is the representation used for
// DATE columns.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n), time.UTC)
}

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

func (d Date) Compare(o Date) int {
	if c := cmp.Compare(d.Year, o.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(d.Month, o.Month); c != 0 {
		return c
	}
	return cmp.Compare(d.Day, o.Day)
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// DaysUntil is the number of calendar days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay counts minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts HH:MM in 24-hour form. "24:00" is accepted and
// yields EndOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, errors.Newf("parse time of day %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, errors.Wrapf(err, "parse time of day %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, errors.Wrapf(err, "parse time of day %q", s)
	}
	if h == 24 && m == 0 {
		return EndOfDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errors.Newf("parse time of day %q: out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf truncates t, seen in loc, to the minute.
func TimeOfDayOf(t time.Time, loc *time.Location) TimeOfDay {
	if loc != nil {
		t = t.In(loc)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Valid() bool { return t >= 0 && t <= EndOfDay }

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Combine resolves a local date and time of day in loc to an instant.
func Combine(d Date, t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, int(t), 0, 0, loc)
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Touching
// intervals do not overlap.
func Overlaps[T cmp.Ordered](s1, e1, s2, e2 T) bool {
	return s1 < e2 && s2 < e1
}

// OverlapsTime is Overlaps for instants.
func OverlapsTime(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Contains reports whether [outerStart,outerEnd) fully covers [start,end).
func Contains[T cmp.Ordered](outerStart, outerEnd, start, end T) bool {
	return outerStart <= start && end <= outerEnd
}

// HoursUntil returns the fractional hours from now until t; negative when t
// has passed.
func HoursUntil(now, t time.Time) float64 {
	return t.Sub(now).Hours()
}

// LocalSpan projects [start, start+d) onto a single local calendar day.
// from rounds down and to rounds up to the minute, so the span always
// covers the real interval. ok is false when the span crosses midnight
// (ending exactly at midnight is allowed and reported as EndOfDay).
func LocalSpan(start time.Time, d time.Duration, loc *time.Location) (day Date, from, to TimeOfDay, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	startLocal := start.In(loc)
	endLocal := start.Add(d).In(loc)
	day = DateOf(startLocal, loc)
	from = TimeOfDayOf(startLocal, loc)

	switch endDay := DateOf(endLocal, loc); {
	case endDay == day:
		to = TimeOfDayOf(endLocal, loc)
		if endLocal.Second() != 0 || endLocal.Nanosecond() != 0 {
			to++
		}
	case endDay == day.AddDays(1) && endLocal.Equal(Combine(endDay, 0, loc)):
		to = EndOfDay
	default:
		return day, from, 0, false
	}
	return day, from, to, true
}
