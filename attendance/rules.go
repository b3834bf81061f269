package attendance

import "github.com/warp/hr-engine/generic"

// =============================================================================
// RESOLUTION - Ordered status rules
// =============================================================================

// Resolution is the outcome of the first matching status rule.
type Resolution int

const (
	ResolveHoliday Resolution = iota
	ResolveLeave
	ResolveAbsent
	ResolveMissingPunch
	ResolvePresent
)

func (r Resolution) String() string {
	switch r {
	case ResolveHoliday:
		return "holiday"
	case ResolveLeave:
		return "leave"
	case ResolveAbsent:
		return "absent"
	case ResolveMissingPunch:
		return "missing_punch"
	default:
		return "present"
	}
}

type statusRule struct {
	resolution Resolution
	matches    func(rec Record, cal generic.Calendar) bool
}

// resolutionOrder is evaluated top to bottom; the first match wins.
var resolutionOrder = []statusRule{
	{ResolveHoliday, func(rec Record, cal generic.Calendar) bool { return cal.IsNonWorking(rec.Date) }},
	{ResolveLeave, func(rec Record, _ generic.Calendar) bool { return rec.Status == StatusLeave }},
	{ResolveAbsent, func(rec Record, _ generic.Calendar) bool { return rec.CheckIn == nil && rec.CheckOut == nil }},
	{ResolveMissingPunch, func(rec Record, _ generic.Calendar) bool { return rec.CheckIn == nil || rec.CheckOut == nil }},
	{ResolvePresent, func(Record, generic.Calendar) bool { return true }},
}

// Resolve returns the resolution for rec on cal.
func Resolve(rec Record, cal generic.Calendar) Resolution {
	for _, rule := range resolutionOrder {
		if rule.matches(rec, cal) {
			return rule.resolution
		}
	}
	return ResolvePresent
}

// =============================================================================
// METRICS
// =============================================================================

// Metrics are the three derived minute counts of a present day.
type Metrics struct {
	Late  int `json:"lateMinutes"`
	Early int `json:"earlyMinutes"`
	OT    int `json:"otMinutes"`
}

// ComputeMetrics measures a check-in/check-out pair against s.
//
//	late  = max(0, in - start - graceLate)
//	early = max(0, end - out - graceEarly)
//	ot    = roundUp(out - end - otAfter, otRoundTo) when positive
func ComputeMetrics(in, out generic.ClockTime, s WorkSchedule) Metrics {
	var m Metrics
	if late := s.StartTime.MinutesUntil(in) - s.GraceLateMinutes; late > 0 {
		m.Late = late
	}
	if early := out.MinutesUntil(s.EndTime) - s.GraceEarlyMinutes; early > 0 {
		m.Early = early
	}
	if raw := s.EndTime.MinutesUntil(out) - s.OTAfterMinutes; raw > 0 {
		m.OT = RoundUp(raw, s.OTRoundToMinutes)
	}
	return m
}

// RoundUp rounds minutes up to the next multiple of roundTo. Non-positive
// input yields 0; roundTo <= 1 leaves the value as is.
func RoundUp(minutes, roundTo int) int {
	if minutes <= 0 {
		return 0
	}
	if roundTo <= 1 {
		return minutes
	}
	return (minutes + roundTo - 1) / roundTo * roundTo
}

// =============================================================================
// APPLY
// =============================================================================

// ApplyRules derives status and metrics for rec. Punches are never modified.
func ApplyRules(rec Record, s WorkSchedule, cal generic.Calendar) Record {
	rec.zeroMetrics()
	switch Resolve(rec, cal) {
	case ResolveHoliday:
		rec.Status = StatusHoliday
	case ResolveLeave:
		rec.Status = StatusLeave
	case ResolveAbsent:
		rec.Status = StatusAbsent
	case ResolveMissingPunch:
		rec.Status = StatusMissingPunch
	case ResolvePresent:
		if rec.Status != StatusWFH {
			rec.Status = StatusPresent
		}
		m := ComputeMetrics(*rec.CheckIn, *rec.CheckOut, s)
		rec.LateMinutes, rec.EarlyMinutes, rec.OTMinutes = m.Late, m.Early, m.OT
	}
	return rec
}
