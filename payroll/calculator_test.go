package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProratedBase(t *testing.T) {
	tests := []struct {
		name          string
		base          string
		paid, inCycle int
		want          string
	}{
		{"full month", "20000000", 20, 20, "20000000"},
		{"rounds half up", "1000000", 10, 11, "909091"},
		{"two unpaid days", "10000000", 17, 19, "8947368"},
		{"nothing paid", "5000000", 0, 20, "0"},
		{"empty cycle", "5000000", 0, 0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProratedBase(Summary{
				BaseSalary:         decimal.RequireFromString(tt.base),
				WorkingDaysPaid:    tt.paid,
				WorkingDaysInCycle: tt.inCycle,
			})
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestOvertimePay(t *testing.T) {
	hourly := decimal.RequireFromString("6250")

	assert.Equal(t, "7031.25", OvertimePay(45, hourly, rateWeekday).String())
	assert.Equal(t, "25000", OvertimePay(120, hourly, rateWeekend).String())
	assert.Equal(t, "0", OvertimePay(0, hourly, rateHoliday).String())
	// 50 minutes is 0.83 hours after rounding.
	assert.Equal(t, "7781.25", OvertimePay(50, hourly, rateWeekday).String())
}

func TestBuildItems_CanonicalOrder(t *testing.T) {
	sum := Summary{
		BaseSalary:         decimal.NewFromInt(1000000),
		BaseHourly:         decimal.NewFromInt(6250),
		WorkingDaysInCycle: 20,
		WorkingDaysPaid:    18,
		OTMinutesWeekday:   45,
	}
	catalog := []Component{{ID: ComponentBonus, Label: "Tet bonus", Kind: KindEarning}}

	items := BuildItems(sum, catalog)
	require.Len(t, items, 6)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.ComponentID)
		assert.Equal(t, KindEarning, it.Kind)
	}
	assert.Equal(t, []string{
		ComponentBaseSalary, ComponentOTWeekday, ComponentOTWeekend,
		ComponentOTHoliday, ComponentAllowanceFixed, ComponentBonus,
	}, ids)
	assert.Equal(t, "900000", items[0].Amount.String())
	assert.Equal(t, "7031.25", items[1].Amount.String())
	assert.Equal(t, "Base salary", items[0].Label)
	assert.Equal(t, "Tet bonus", items[5].Label)

	gross, deductions, net := Totals(items)
	assert.Equal(t, "907031.25", gross.String())
	assert.True(t, deductions.IsZero())
	assert.True(t, net.Equal(gross))
}

func TestTotals_SubtractsDeductions(t *testing.T) {
	items := []Item{
		{Kind: KindEarning, Amount: decimal.NewFromInt(1000)},
		{Kind: KindEarning, Amount: decimal.NewFromInt(250)},
		{Kind: KindDeduction, Amount: decimal.NewFromInt(100)},
	}
	gross, deductions, net := Totals(items)
	assert.Equal(t, "1250", gross.String())
	assert.Equal(t, "100", deductions.String())
	assert.Equal(t, "1150", net.String())
}

func TestCycleStatus_Parse(t *testing.T) {
	st, err := ParseCycleStatus(" locked ")
	require.NoError(t, err)
	assert.Equal(t, CycleLocked, st)

	_, err = ParseCycleStatus("OPEN")
	assert.Error(t, err)
}
