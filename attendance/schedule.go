package attendance

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/warp/hr-engine/generic"
)

// ScheduleID is the id of the single schedule record.
const ScheduleID = "default"

// Default values filled in by UpdateSchedule for missing fields.
const (
	DefaultBreakMinutes      = 60
	DefaultGraceLateMinutes  = 5
	DefaultGraceEarlyMinutes = 0
	DefaultOTAfterMinutes    = 30
	DefaultOTRoundToMinutes  = 15
)

var (
	DefaultStartTime = generic.NewClockTime(9, 0)
	DefaultEndTime   = generic.NewClockTime(18, 0)
)

// WorkSchedule is the standard shift.
type WorkSchedule struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	StartTime         generic.ClockTime `json:"startTime"`
	EndTime           generic.ClockTime `json:"endTime"`
	BreakMinutes      int               `json:"breakMinutes"`
	GraceLateMinutes  int               `json:"graceLateMinutes"`
	GraceEarlyMinutes int               `json:"graceEarlyMinutes"`
	// OT only counts once this many minutes past EndTime.
	OTAfterMinutes int `json:"otAfterMinutes"`
	// Overtime is rounded up to a multiple of this.
	OTRoundToMinutes int       `json:"otRoundToMinutes"`
	WorkingDays      Weekdays  `json:"workingDays"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DefaultSchedule is 09:00-18:00, Monday to Friday.
func DefaultSchedule() WorkSchedule {
	return WorkSchedule{
		ID:                ScheduleID,
		Name:              "Default",
		StartTime:         DefaultStartTime,
		EndTime:           DefaultEndTime,
		BreakMinutes:      DefaultBreakMinutes,
		GraceLateMinutes:  DefaultGraceLateMinutes,
		GraceEarlyMinutes: DefaultGraceEarlyMinutes,
		OTAfterMinutes:    DefaultOTAfterMinutes,
		OTRoundToMinutes:  DefaultOTRoundToMinutes,
		WorkingDays:       DefaultWorkingDays(),
	}
}

func DefaultWorkingDays() Weekdays {
	return Weekdays{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

func (s WorkSchedule) Validate() error {
	if s.StartTime >= s.EndTime {
		return fmt.Errorf("schedule start %s must be before end %s: %w", s.StartTime, s.EndTime, generic.ErrInvalidInput)
	}
	for name, v := range map[string]int{
		"breakMinutes":      s.BreakMinutes,
		"graceLateMinutes":  s.GraceLateMinutes,
		"graceEarlyMinutes": s.GraceEarlyMinutes,
		"otAfterMinutes":    s.OTAfterMinutes,
		"otRoundToMinutes":  s.OTRoundToMinutes,
	} {
		if v < 0 {
			return fmt.Errorf("schedule %s must be >= 0, got %d: %w", name, v, generic.ErrInvalidInput)
		}
	}
	return nil
}

// ScheduleUpdate replaces the schedule. Nil fields take the default value.
type ScheduleUpdate struct {
	Name              *string
	StartTime         *generic.ClockTime
	EndTime           *generic.ClockTime
	BreakMinutes      *int
	GraceLateMinutes  *int
	GraceEarlyMinutes *int
	OTAfterMinutes    *int
	OTRoundToMinutes  *int
	WorkingDays       Weekdays
}

// Build fills missing fields with defaults and validates the result.
func (u ScheduleUpdate) Build() (WorkSchedule, error) {
	s := DefaultSchedule()
	if u.Name != nil && *u.Name != "" {
		s.Name = *u.Name
	}
	if u.StartTime != nil {
		s.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		s.EndTime = *u.EndTime
	}
	setInt(&s.BreakMinutes, u.BreakMinutes)
	setInt(&s.GraceLateMinutes, u.GraceLateMinutes)
	setInt(&s.GraceEarlyMinutes, u.GraceEarlyMinutes)
	setInt(&s.OTAfterMinutes, u.OTAfterMinutes)
	setInt(&s.OTRoundToMinutes, u.OTRoundToMinutes)
	if len(u.WorkingDays) > 0 {
		s.WorkingDays = u.WorkingDays.normalized()
	}
	if err := s.Validate(); err != nil {
		return WorkSchedule{}, err
	}
	return s, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// =============================================================================
// WEEKDAYS
// =============================================================================

// Weekdays is a set of days, serialized as upper-case English names.
type Weekdays []time.Weekday

func (w Weekdays) Contains(d time.Weekday) bool {
	for _, x := range w {
		if x == d {
			return true
		}
	}
	return false
}

// normalized sorts Monday first and removes duplicates.
func (w Weekdays) normalized() Weekdays {
	seen := make(map[time.Weekday]bool)
	out := make(Weekdays, 0, len(w))
	for _, d := range w {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return isoIndex(out[i]) < isoIndex(out[j]) })
	return out
}

func isoIndex(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func (w Weekdays) Names() []string {
	out := make([]string, len(w))
	for i, d := range w {
		out[i] = strings.ToUpper(d.String())
	}
	return out
}

func (w Weekdays) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Names())
}

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	days, err := ParseWeekdays(names)
	if err != nil {
		return err
	}
	*w = days
	return nil
}

// ParseWeekdays accepts full or three-letter names in any case.
func ParseWeekdays(names []string) (Weekdays, error) {
	out := make(Weekdays, 0, len(names))
	for _, n := range names {
		d, ok := parseWeekday(n)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q: %w", n, generic.ErrInvalidInput)
		}
		out = append(out, d)
	}
	return out.normalized(), nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || n == full[:3] {
			return d, true
		}
	}
	return 0, false
}
