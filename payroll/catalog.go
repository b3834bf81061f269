package payroll

// Canonical component ids produced by the calculator.
const (
	ComponentBaseSalary     = "BASE_SALARY"
	ComponentOTWeekday      = "OT_WEEKDAY"
	ComponentOTWeekend      = "OT_WEEKEND"
	ComponentOTHoliday      = "OT_HOLIDAY"
	ComponentAllowanceFixed = "ALLOWANCE_FIXED"
	ComponentBonus          = "BONUS"
)

// DefaultCatalog is seeded on boot when the catalog is empty.
func DefaultCatalog() []Component {
	return []Component{
		{ID: ComponentBaseSalary, Label: "Base salary", Kind: KindEarning, CalcType: CalcFormula, Expr: "base_salary_prorated", Priority: 10, Active: true},
		{ID: ComponentOTWeekday, Label: "Weekday overtime", Kind: KindEarning, CalcType: CalcFormula, Expr: "ot_minutes_weekday / 60 * base_hourly * 1.5", Priority: 20, Active: true},
		{ID: ComponentOTWeekend, Label: "Weekend overtime", Kind: KindEarning, CalcType: CalcFormula, Expr: "ot_minutes_weekend / 60 * base_hourly * 2.0", Priority: 21, Active: true},
		{ID: ComponentOTHoliday, Label: "Holiday overtime", Kind: KindEarning, CalcType: CalcFormula, Expr: "ot_minutes_holiday / 60 * base_hourly * 3.0", Priority: 22, Active: true},
		{ID: ComponentAllowanceFixed, Label: "Fixed allowance", Kind: KindEarning, CalcType: CalcFixed, Priority: 30, Active: true},
		{ID: ComponentBonus, Label: "Bonus", Kind: KindEarning, CalcType: CalcFixed, Priority: 40, Active: true},
	}
}

// labels maps component ids to display labels, falling back to the
// built-in catalog.
func labels(catalog []Component) map[string]string {
	out := make(map[string]string, len(catalog))
	for _, c := range DefaultCatalog() {
		out[c.ID] = c.Label
	}
	for _, c := range catalog {
		if c.Label != "" {
			out[c.ID] = c.Label
		}
	}
	return out
}
