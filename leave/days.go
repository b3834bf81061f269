package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/hr-engine/generic"
)

// singleDayWeights maps a same-day (start, end) session pair to its weight.
// Pairs not listed count as a full day.
var singleDayWeights = map[[2]Session]decimal.Decimal{
	{SessionFull, SessionFull}: one,
	{SessionAM, SessionAM}:     half,
	{SessionPM, SessionPM}:     half,
	{SessionAM, SessionPM}:     one,
	{SessionFull, SessionAM}:   half,
	{SessionFull, SessionPM}:   half,
}

// Calculator converts a date range with session markers into chargeable days.
type Calculator struct {
	Calendar generic.Calendar
}

func NewCalculator(cal generic.Calendar) Calculator {
	return Calculator{Calendar: cal}
}

// Days returns the chargeable day count of [start, end]. Weekends and
// holidays contribute nothing; the start and end days contribute their
// session weight and every day in between counts as one.
func (c Calculator) Days(start, end generic.TimePoint, startSession, endSession Session) decimal.Decimal {
	if end.Before(start) {
		return decimal.Zero
	}
	if start.Equal(end) {
		if c.Calendar.IsNonWorking(start) {
			return decimal.Zero
		}
		if w, ok := singleDayWeights[[2]Session{startSession, endSession}]; ok {
			return w
		}
		return one
	}

	total := decimal.Zero
	for day := start; day.BeforeOrEqual(end); day = day.AddDays(1) {
		if c.Calendar.IsNonWorking(day) {
			continue
		}
		switch {
		case day.Equal(start):
			total = total.Add(startSession.Weight())
		case day.Equal(end):
			total = total.Add(endSession.Weight())
		default:
			total = total.Add(one)
		}
	}
	return total
}
