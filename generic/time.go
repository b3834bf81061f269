/*
time.go - Calendar days, wall-clock times and the calendar classifier

PURPOSE:
  Every rule in the engine works on whole calendar days (attendance dates,
  leave ranges, payroll cycles) or on wall-clock times within a day
  (punches, shift boundaries). Both are modelled as small value types so
  that nothing downstream has to reason about time zones.

KEY TYPES:
  TimePoint:  A calendar day, always normalized to midnight UTC
  ClockTime:  Seconds since midnight, parsed from "HH:MM" or "HH:MM:SS"
  Holiday:    A declared non-working date
  Calendar:   Classifies a day as workday, weekend or holiday

CLASSIFICATION ORDER:
  1. Declared holiday  -> DayHoliday (also when it falls on a weekend)
  2. Saturday/Sunday   -> DayWeekend
  3. Anything else     -> DayWorkday

SEE ALSO:
  - period.go: Inclusive date ranges
  - attendance/rules.go: Uses Calendar for the first resolution rule
  - payroll/summary.go: Uses Calendar for OT buckets and working days
*/
package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// =============================================================================
// TIME POINT - A calendar day
// =============================================================================

// TimePoint is a calendar day. The zero value means "no date".
type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint { return DateOf(time.Now()) }

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: %w", s, ErrInvalidInput)
	}
	return TimePoint{Time: t}, nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// IsWeekend reports whether the day is a Saturday or Sunday.
func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// StartOfDay returns the instant the day begins in loc.
func (tp TimePoint) StartOfDay(loc *time.Location) time.Time {
	return time.Date(tp.Year(), tp.Month(), tp.Day(), 0, 0, 0, 0, loc)
}

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

func (tp TimePoint) MarshalJSON() ([]byte, error) {
	if tp.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(tp.String())
}

func (tp *TimePoint) UnmarshalJSON(data []byte) error {
	var s string
	if string(data) == "null" {
		*tp = TimePoint{}
		return nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*tp = TimePoint{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// DaysBetween returns the number of days from `from` to `to` (negative if to is earlier).
func DaysBetween(from, to TimePoint) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return TimePoint{Time: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

// =============================================================================
// CLOCK TIME - Wall-clock time within a day
// =============================================================================

// ClockTime is a wall-clock time stored as seconds since midnight.
type ClockTime int

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*3600 + minute*60)
}

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q: %w", s, ErrInvalidInput)
}

// ParseClockPtr parses s, returning nil for a blank string.
func ParseClockPtr(s string) (*ClockTime, error) {
	if s == "" {
		return nil, nil
	}
	c, err := ParseClock(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (c ClockTime) Hour() int   { return int(c) / 3600 }
func (c ClockTime) Minute() int { return int(c) % 3600 / 60 }

// MinutesUntil returns whole minutes from c to other, truncated toward zero.
func (c ClockTime) MinutesUntil(other ClockTime) int {
	return (int(other) - int(c)) / 60
}

func (c ClockTime) String() string {
	if sec := int(c) % 60; sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), sec)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c ClockTime) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a declared non-working date.
type Holiday struct {
	ID     string    `json:"id"`
	Date   TimePoint `json:"date"`
	Name   string    `json:"name"`
	Region string    `json:"region,omitempty"`
}

// HolidaySource loads declared holidays.
type HolidaySource interface {
	// HolidaysBetween returns holidays with from <= date <= to.
	HolidaysBetween(ctx context.Context, from, to TimePoint) ([]Holiday, error)
}

// DayKind is the classification of a calendar day.
type DayKind int

const (
	DayWorkday DayKind = iota
	DayWeekend
	DayHoliday
)

func (k DayKind) String() string {
	switch k {
	case DayWeekend:
		return "weekend"
	case DayHoliday:
		return "holiday"
	default:
		return "workday"
	}
}

// Calendar classifies days against a fixed holiday set.
// It is a pure value: build it once per operation with LoadCalendar.
type Calendar struct {
	holidays map[string]Holiday
}

func NewCalendar(holidays []Holiday) Calendar {
	c := Calendar{holidays: make(map[string]Holiday, len(holidays))}
	for _, h := range holidays {
		c.holidays[h.Date.String()] = h
	}
	return c
}

// LoadCalendar builds a Calendar holding every holiday within p.
func LoadCalendar(ctx context.Context, src HolidaySource, p Period) (Calendar, error) {
	if src == nil {
		return NewCalendar(nil), nil
	}
	holidays, err := src.HolidaysBetween(ctx, p.Start, p.End)
	if err != nil {
		return Calendar{}, fmt.Errorf("load holidays %s: %w", p, err)
	}
	return NewCalendar(holidays), nil
}

func (c Calendar) IsWeekend(d TimePoint) bool { return d.IsWeekend() }

func (c Calendar) IsHoliday(d TimePoint) bool {
	_, ok := c.holidays[d.String()]
	return ok
}

// Classify returns DayHoliday before DayWeekend.
func (c Calendar) Classify(d TimePoint) DayKind {
	if c.IsHoliday(d) {
		return DayHoliday
	}
	if d.IsWeekend() {
		return DayWeekend
	}
	return DayWorkday
}

func (c Calendar) IsNonWorking(d TimePoint) bool { return c.Classify(d) != DayWorkday }

// WorkingDays counts weekdays in p that are not holidays.
func (c Calendar) WorkingDays(p Period) int {
	n := 0
	for _, d := range p.Days() {
		if !c.IsNonWorking(d) {
			n++
		}
	}
	return n
}

// Holidays returns the holiday set in no particular order.
func (c Calendar) Holidays() []Holiday {
	out := make([]Holiday, 0, len(c.holidays))
	for _, h := range c.holidays {
		out = append(out, h)
	}
	return out
}
