package payroll

import (
	"github.com/shopspring/decimal"
)

var (
	sixty       = decimal.NewFromInt(60)
	rateWeekday = decimal.RequireFromString("1.5")
	rateWeekend = decimal.RequireFromString("2.0")
	rateHoliday = decimal.RequireFromString("3.0")
)

// BuildItems computes the six canonical line items from sum, in catalog order.
func BuildItems(sum Summary, catalog []Component) []Item {
	label := labels(catalog)
	item := func(id string, amount decimal.Decimal) Item {
		return Item{ComponentID: id, Label: label[id], Kind: KindEarning, Amount: amount}
	}
	return []Item{
		item(ComponentBaseSalary, ProratedBase(sum)),
		item(ComponentOTWeekday, OvertimePay(sum.OTMinutesWeekday, sum.BaseHourly, rateWeekday)),
		item(ComponentOTWeekend, OvertimePay(sum.OTMinutesWeekend, sum.BaseHourly, rateWeekend)),
		item(ComponentOTHoliday, OvertimePay(sum.OTMinutesHoliday, sum.BaseHourly, rateHoliday)),
		item(ComponentAllowanceFixed, decimal.Zero),
		item(ComponentBonus, decimal.Zero),
	}
}

// ProratedBase is baseSalary * paid / inCycle, rounded half-up to a whole unit.
func ProratedBase(sum Summary) decimal.Decimal {
	if sum.WorkingDaysInCycle == 0 {
		return decimal.Zero
	}
	return sum.BaseSalary.
		Mul(decimal.NewFromInt(int64(sum.WorkingDaysPaid))).
		DivRound(decimal.NewFromInt(int64(sum.WorkingDaysInCycle)), 0)
}

// OvertimePay is round(minutes/60, 2) * hourly * rate, rounded to 2 places.
func OvertimePay(minutes int, hourly, rate decimal.Decimal) decimal.Decimal {
	hours := decimal.NewFromInt(int64(minutes)).DivRound(sixty, 2)
	return hours.Mul(hourly).Mul(rate).Round(2)
}

// Totals returns gross (earnings), deductions and net = gross - deductions.
func Totals(items []Item) (gross, deductions, net decimal.Decimal) {
	gross, deductions = decimal.Zero, decimal.Zero
	for _, it := range items {
		switch it.Kind {
		case KindEarning:
			gross = gross.Add(it.Amount)
		case KindDeduction:
			deductions = deductions.Add(it.Amount)
		}
	}
	return gross, deductions, gross.Sub(deductions)
}
