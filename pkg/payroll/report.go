package payroll

import (
	"sort"
	"strings"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/carrotexpress/backoffice/pkg/xlsx"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the summary workbook.
const (
	SheetSummary    = "Summary"
	SheetTime       = "TimeEntries"
	SheetDictionary = "PayrollDictionary"
	SheetTips       = "Tips"
	SheetLocations  = "LocationPaySummary"
	SheetADP        = "ADPCargue"
	SheetDashboard  = "Dashboard"
)

// SummaryWorkbook writes the pay of every employee plus the inputs it came from.
func SummaryWorkbook(reg *mapping.Registry, dict *Dictionary, entries []TimeEntry, tips []Tip, res *Result, batches []Batch) (*excelize.File, error) {
	wb := xlsx.New()

	s := wb.Sheet(SheetSummary)
	s.Header(xlsx.LightBlue, "Location", "Employee", "Wage Basis", "Rate", "Total Hours", "Regular Hours",
		"OT Hours", "Holiday Hours", "Gross Pay", "Tips", "Gross + Tips", "Reimbursements")
	for _, p := range res.Pays {
		e := p.Employee
		band := xlsx.NoBand
		if p.NoHours {
			band = xlsx.Yellow
		}
		s.BandedRow(band,
			xlsx.Text(string(e.Location)),
			xlsx.Text(e.Name),
			xlsx.Text(string(e.Basis)),
			xlsx.Money(e.Rate),
			xlsx.Number(money.Float(p.Hours)),
			xlsx.Number(money.Float(p.Regular)),
			xlsx.Number(money.Float(p.OT)),
			xlsx.Number(money.Float(p.Holiday)),
			xlsx.Money(p.Gross()),
			xlsx.Money(p.Tips),
			xlsx.Money(p.GrossPlusTips()),
			xlsx.Money(e.Reimbursement),
		)
	}

	s = wb.Sheet(SheetTime)
	s.Header(xlsx.LightBlue, "Location", "Employee", "In Date", "Total Hours", "Holiday")
	for _, te := range entries {
		holiday := ""
		if dict.Holidays[te.Date] {
			holiday = "Yes"
		}
		s.Row(
			xlsx.Text(string(te.Location)),
			xlsx.Text(te.Employee),
			xlsx.Text(tabular.FormatDate(te.Date)),
			xlsx.Number(money.Float(te.Hours)),
			xlsx.Text(holiday),
		)
	}

	s = wb.Sheet(SheetDictionary)
	s.Header(xlsx.LightBlue, "Location", "Employee", "Co Code", "File #", "Wage Basis", "Rate", "PAY?",
		"Tip Adjustment", "Bonus", "Wage Owed", "Reimbursements")
	for _, e := range dict.Sorted(reg) {
		pay := "Yes"
		if !e.Pay {
			pay = "No"
		}
		s.Row(
			xlsx.Text(string(e.Location)),
			xlsx.Text(e.Name),
			xlsx.ID(e.CoCode),
			xlsx.ID(e.FileNumber),
			xlsx.Text(string(e.Basis)),
			xlsx.Money(e.Rate),
			xlsx.Text(pay),
			xlsx.Money(e.TipAdjustment),
			xlsx.Money(e.Bonus),
			xlsx.Money(e.WageOwed),
			xlsx.Money(e.Reimbursement),
		)
	}

	s = wb.Sheet(SheetTips)
	s.Header(xlsx.LightBlue, "Source", "Location", "Employee", "Tips")
	for _, t := range tips {
		s.Row(xlsx.Text(t.Source), xlsx.Text(string(t.Location)), xlsx.Text(t.Employee), xlsx.Money(t.Amount))
	}

	s = wb.Sheet(SheetLocations)
	s.Header(xlsx.LightGreen, "Location", "Employees", "Total Hours", "Gross Pay", "Tips", "Gross + Tips")
	for _, lt := range locationTotals(reg, res.Pays) {
		s.Row(
			xlsx.Text(string(lt.loc)),
			xlsx.Number(lt.employees),
			xlsx.Number(money.Float(lt.hours)),
			xlsx.Money(lt.gross),
			xlsx.Money(lt.tips),
			xlsx.Money(lt.grossTips),
		)
	}

	s = wb.Sheet(SheetADP)
	s.Header(xlsx.LightOrange, ADPHeader...)
	for _, b := range batches {
		for _, r := range b.Rows {
			rec := r.Record()
			cells := make([]xlsx.Cell, len(rec))
			for i, v := range rec {
				cells[i] = xlsx.ID(v)
			}
			s.Row(cells...)
		}
	}

	return wb.Finish()
}

type locationTotal struct {
	loc       mapping.Location
	employees int
	hours     decimal.Decimal
	gross     decimal.Decimal
	tips      decimal.Decimal
	grossTips decimal.Decimal
}

func locationTotals(reg *mapping.Registry, pays []*Pay) []*locationTotal {
	byLoc := make(map[mapping.Location]*locationTotal)
	var locs []mapping.Location
	for _, p := range pays {
		loc := p.Employee.Location
		lt := byLoc[loc]
		if lt == nil {
			lt = &locationTotal{loc: loc}
			byLoc[loc] = lt
			locs = append(locs, loc)
		}
		lt.employees++
		lt.hours = lt.hours.Add(p.Hours)
		lt.gross = lt.gross.Add(p.Gross())
		lt.tips = lt.tips.Add(p.Tips)
		lt.grossTips = lt.grossTips.Add(p.GrossPlusTips())
	}
	reg.SortLocations(locs)
	out := make([]*locationTotal, len(locs))
	for i, loc := range locs {
		out[i] = byLoc[loc]
	}
	return out
}

// EntityTotal is the gross pay of one legal entity for the workers' comp report.
type EntityTotal struct {
	Name      string
	Locations []mapping.Location
	Employees int
	Gross     decimal.Decimal
}

// WorkersComp totals gross pay per legal entity. The grouped family reports under
// its combined name.
func WorkersComp(reg *mapping.Registry, pays []*Pay) []EntityTotal {
	family := reg.GroupedFamily()
	byEntity := make(map[mapping.LegalEntity]*EntityTotal)
	first := make(map[mapping.LegalEntity]int)
	seen := make(map[mapping.LegalEntity]map[mapping.Location]bool)
	for _, p := range pays {
		loc := p.Employee.Location
		entity := reg.LegalEntityOf(loc)
		et := byEntity[entity]
		if et == nil {
			name := string(entity)
			if entity == family.LegalEntity && family.CombinedName != "" {
				name = family.CombinedName
			}
			et = &EntityTotal{Name: name}
			byEntity[entity] = et
			first[entity] = reg.SortIndex(loc)
			seen[entity] = make(map[mapping.Location]bool)
		}
		if !seen[entity][loc] {
			seen[entity][loc] = true
			et.Locations = append(et.Locations, loc)
		}
		if i := reg.SortIndex(loc); i < first[entity] {
			first[entity] = i
		}
		et.Employees++
		et.Gross = et.Gross.Add(p.Gross())
	}

	entities := make([]mapping.LegalEntity, 0, len(byEntity))
	for e := range byEntity {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		if first[entities[i]] != first[entities[j]] {
			return first[entities[i]] < first[entities[j]]
		}
		return entities[i] < entities[j]
	})
	out := make([]EntityTotal, len(entities))
	for i, e := range entities {
		et := byEntity[e]
		reg.SortLocations(et.Locations)
		out[i] = *et
	}
	return out
}

// WorkersCompWorkbook writes the per-entity totals with a grand total.
func WorkersCompWorkbook(totals []EntityTotal) (*excelize.File, error) {
	wb := xlsx.New()
	s := wb.Sheet("Workers Comp")
	s.Header(xlsx.LightBlue, "Legal Entity", "Locations", "Employees", "Gross Pay")
	employees, gross := 0, decimal.Zero
	for _, et := range totals {
		names := make([]string, len(et.Locations))
		for i, l := range et.Locations {
			names[i] = string(l)
		}
		s.Row(xlsx.Text(et.Name), xlsx.Text(strings.Join(names, ", ")), xlsx.Number(et.Employees), xlsx.Money(et.Gross))
		employees += et.Employees
		gross = gross.Add(et.Gross)
	}
	s.BandedRow(xlsx.LightGreen,
		xlsx.Text("TOTAL").Strong(),
		xlsx.Text(""),
		xlsx.Number(employees).Strong(),
		xlsx.Money(gross).Strong(),
	)
	return wb.Finish()
}

// WarningsWorkbook writes a dashboard of counts plus one sheet per class with findings.
func WarningsWorkbook(findings []Finding) (*excelize.File, error) {
	byClass := make(map[Class][]Finding)
	for _, f := range findings {
		byClass[f.Class] = append(byClass[f.Class], f)
	}

	wb := xlsx.New()
	d := wb.Sheet(SheetDashboard)
	d.Header(xlsx.LightBlue, "Warning", "Count")
	for _, c := range Classes {
		band := xlsx.NoBand
		if len(byClass[c]) > 0 {
			band = xlsx.SuperLightRed
		}
		d.BandedRow(band, xlsx.Text(string(c)), xlsx.Number(len(byClass[c])))
	}

	for _, c := range Classes {
		if len(byClass[c]) == 0 {
			continue
		}
		s := wb.Sheet(xlsx.SheetName(string(c)))
		s.Header(xlsx.LightOrange, "Location", "Employee", "Detail")
		for _, f := range byClass[c] {
			s.Row(xlsx.Text(string(f.Location)), xlsx.Text(f.Employee), xlsx.Text(f.Detail))
		}
	}
	return wb.Finish()
}
