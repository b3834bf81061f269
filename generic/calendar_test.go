package generic

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(s string) TimePoint {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func month(s string) Period {
	p, err := MonthPeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// =============================================================================
// PERIOD
// =============================================================================

func TestMonthPeriod(t *testing.T) {
	p := month("2024-02")
	assert.Equal(t, "2024-02-01", p.Start.String())
	assert.Equal(t, "2024-02-29", p.End.String())
	assert.Equal(t, 29, p.Len())
	assert.Equal(t, "2024-02", p.Month())

	_, err := MonthPeriod("2024/02")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewPeriod_RejectsInvertedRange(t *testing.T) {
	_, err := NewPeriod(date("2025-11-30"), date("2025-11-01"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	assert.True(t, IsClientError(err))

	p, err := NewPeriod(date("2025-11-05"), date("2025-11-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())
}

func TestPeriod_Intersect(t *testing.T) {
	nov := month("2025-11")

	got, ok := nov.Intersect(Period{Start: date("2025-10-28"), End: date("2025-11-03")})
	require.True(t, ok)
	assert.Equal(t, "2025-11-01", got.Start.String())
	assert.Equal(t, "2025-11-03", got.End.String())

	_, ok = nov.Intersect(month("2025-12"))
	assert.False(t, ok)
	assert.True(t, nov.Overlaps(Period{Start: date("2025-11-30"), End: date("2025-12-02")}))
}

func TestPeriod_Midpoint(t *testing.T) {
	tests := []struct {
		month string
		want  string
	}{
		{"2025-11", "2025-11-15"},
		{"2025-12", "2025-12-16"},
		{"2025-02", "2025-02-14"},
	}
	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			assert.Equal(t, tt.want, month(tt.month).Midpoint().String())
		})
	}
}

// =============================================================================
// CLOCK TIME
// =============================================================================

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:10")
	require.NoError(t, err)
	assert.Equal(t, 9, c.Hour())
	assert.Equal(t, 10, c.Minute())
	assert.Equal(t, "09:10", c.String())

	c, err = ParseClock("18:05:30")
	require.NoError(t, err)
	assert.Equal(t, "18:05:30", c.String())

	_, err = ParseClock("25:00")
	assert.ErrorIs(t, err, ErrInvalidInput)

	none, err := ParseClockPtr("")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestClockTime_MinutesUntil(t *testing.T) {
	start := NewClockTime(9, 0)
	assert.Equal(t, 10, start.MinutesUntil(NewClockTime(9, 10)))
	assert.Equal(t, -5, start.MinutesUntil(NewClockTime(8, 55)))

	// Seconds are truncated.
	in, _ := ParseClock("09:05:59")
	assert.Equal(t, 5, start.MinutesUntil(in))
}

func TestTimePoint_JSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Day  TimePoint  `json:"day"`
		None TimePoint  `json:"none"`
		At   *ClockTime `json:"at"`
	}{Day: date("2025-11-03")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2025-11-03","none":null,"at":null}`, string(raw))

	var back struct {
		Day TimePoint `json:"day"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2025-11-20"}`), &back))
	assert.Equal(t, time.Thursday, back.Day.Weekday())
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestCalendar_Classify(t *testing.T) {
	cal := NewCalendar([]Holiday{
		{Date: date("2025-11-20"), Name: "Company Day"},
		{Date: date("2025-11-22"), Name: "Falls on a Saturday"},
	})

	assert.Equal(t, DayWorkday, cal.Classify(date("2025-11-19")))
	assert.Equal(t, DayHoliday, cal.Classify(date("2025-11-20")))
	assert.Equal(t, DayWeekend, cal.Classify(date("2025-11-23")))
	// Holiday wins over weekend.
	assert.Equal(t, DayHoliday, cal.Classify(date("2025-11-22")))
	assert.True(t, cal.IsNonWorking(date("2025-11-22")))
}

func TestCalendar_WorkingDays(t *testing.T) {
	// November 2025 starts on a Saturday: 20 weekdays.
	assert.Equal(t, 20, NewCalendar(nil).WorkingDays(month("2025-11")))

	cal := NewCalendar([]Holiday{{Date: date("2025-11-20")}})
	assert.Equal(t, 19, cal.WorkingDays(month("2025-11")))

	weekend := Period{Start: date("2025-11-01"), End: date("2025-11-02")}
	assert.Zero(t, cal.WorkingDays(weekend))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		conflict bool
		client   bool
	}{
		{"not found", NotFound("employee", "E1"), true, false, false},
		{"unknown employee", fmt.Errorf("%w: X9", ErrUnknownEmployee), true, false, false},
		{"invalid state", &InvalidStateError{Entity: "cycle", ID: "2025-11", Current: "LOCKED", Action: "calculate"}, false, true, false},
		{"duplicate", ErrDuplicateEntry, false, true, false},
		{"conflict", ErrConflict, false, true, false},
		{"empty cycle", ErrEmptyCycle, false, false, true},
		{"no contract", ErrNoActiveContract, false, false, true},
		{"unknown type", ErrUnknownLeaveType, false, false, true},
		{"internal", errors.New("disk full"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.client, IsClientError(tt.err))
		})
	}
}

func TestRowError(t *testing.T) {
	err := &RowError{Row: 3, Err: fmt.Errorf("%w: X999", ErrUnknownEmployee)}
	assert.Equal(t, "Row 3: unknown employee: X999", err.Error())
	assert.ErrorIs(t, err, ErrUnknownEmployee)
}
