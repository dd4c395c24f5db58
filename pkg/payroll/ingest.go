// Package payroll aggregates time entries against the payroll dictionary, computes
// regular, overtime and holiday pay, matches tips and emits the ADP batch files.
package payroll

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
)

// Basis is how an employee is paid.
type Basis string

const (
	Hourly Basis = "Hourly"
	Salary Basis = "Salary"
)

// ParseBasis reads the dictionary's Wage Basis column.
func ParseBasis(raw string) (Basis, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "hour"):
		return Hourly, true
	case strings.HasPrefix(s, "salar"):
		return Salary, true
	}
	return "", false
}

// Employee is one payroll dictionary row.
type Employee struct {
	Location      mapping.Location
	Name          string
	Rate          decimal.Decimal
	Basis         Basis
	CoCode        string
	FileNumber    string
	Pay           bool
	TipAdjustment decimal.Decimal
	Bonus         decimal.Decimal
	WageOwed      decimal.Decimal
	Reimbursement decimal.Decimal
}

// TimeEntry is one clock-in from the time entries export.
type TimeEntry struct {
	Location mapping.Location
	Employee string
	Date     time.Time
	Hours    decimal.Decimal
}

// Tip is a tip total from one of the tips exports. Location is empty when the export
// does not carry one.
type Tip struct {
	Location mapping.Location
	Employee string
	Amount   decimal.Decimal
	Source   string
}

// key identifies an employee at a location.
type key struct {
	Location mapping.Location
	Name     string
}

// nameKey folds case and collapses whitespace.
func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// looseKey drops whitespace entirely ("Ana  Maria" and "AnaMaria" match).
func looseKey(name string) string {
	return strings.ReplaceAll(nameKey(name), " ", "")
}

// excludedLogins are POS logins that are not people.
var excludedLogins = map[string]bool{
	"cashier":  true,
	"kds":      true,
	"kiosk":    true,
	"admin":    true,
	"login":    true,
	"training": true,
}

// IsExcludedLogin reports whether a time-entry name is a shared or device login.
func IsExcludedLogin(name string) bool {
	for _, tok := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == '#'
	}) {
		if excludedLogins[tok] {
			return true
		}
	}
	return false
}

// Dictionary is the parsed payroll dictionary.
type Dictionary struct {
	Employees map[key]*Employee
	Holidays  map[time.Time]bool
	loose     map[key]*Employee
}

// Lookup finds an employee by exact name, then ignoring whitespace.
func (d *Dictionary) Lookup(loc mapping.Location, name string) (*Employee, bool) {
	if e, ok := d.Employees[key{loc, nameKey(name)}]; ok {
		return e, true
	}
	e, ok := d.loose[key{loc, looseKey(name)}]
	return e, ok
}

// Sorted lists the dictionary in report order.
func (d *Dictionary) Sorted(reg *mapping.Registry) []*Employee {
	out := make([]*Employee, 0, len(d.Employees))
	for _, e := range d.Employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return less(reg, out[i].Location, out[i].Name, out[j].Location, out[j].Name)
	})
	return out
}

func less(reg *mapping.Registry, la mapping.Location, na string, lb mapping.Location, nb string) bool {
	if ia, ib := reg.SortIndex(la), reg.SortIndex(lb); ia != ib {
		return ia < ib
	}
	if la != lb {
		return la < lb
	}
	return nameKey(na) < nameKey(nb)
}

// reader resolves locations and reports bad cells.
type reader struct {
	reg  *mapping.Registry
	warn func(error)
}

func (r reader) location(raw string) (mapping.Location, bool) {
	loc, ok := r.reg.ResolveLocation(raw)
	if !ok {
		r.warn(r.reg.Miss(raw))
		return "", false
	}
	return loc, !r.reg.Excluded(loc)
}

func (r reader) amount(row tabular.Row, col string) (decimal.Decimal, bool) {
	v, err := row.Money(col)
	if err != nil {
		r.warn(err)
		return decimal.Zero, false
	}
	return v, true
}

// ReadDictionary parses the payroll dictionary. Every non-empty Holiday Date cell adds
// to the period's holiday set; cells may list several dates.
func ReadDictionary(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) *Dictionary {
	r := reader{reg: reg, warn: warn}
	d := &Dictionary{
		Employees: make(map[key]*Employee),
		Holidays:  make(map[time.Time]bool),
		loose:     make(map[key]*Employee),
	}
	for _, t := range tables {
		for _, row := range t.Rows {
			for _, raw := range strings.FieldsFunc(row.Get("Holiday Date"), func(r rune) bool {
				return r == ',' || r == ';' || r == '\n'
			}) {
				day, err := tabular.ParseDate(raw)
				if err != nil {
					warn(reconerr.ValueParse(row.File(), raw, err))
					continue
				}
				d.Holidays[tabular.Day(day)] = true
			}

			name := strings.Join(strings.Fields(row.Get("Employee")), " ")
			if name == "" {
				continue
			}
			loc, ok := r.location(row.Get("Location"))
			if !ok {
				continue
			}
			basis, ok := ParseBasis(row.Get("Wage Basis"))
			if !ok {
				warn(reconerr.ValueParse(row.File(), row.Get("Wage Basis"), fmt.Errorf("line %d: unknown wage basis", row.Line)))
				continue
			}
			e := &Employee{
				Location:   loc,
				Name:       name,
				Basis:      basis,
				CoCode:     strings.TrimSpace(row.Get("Co Code")),
				FileNumber: strings.TrimSpace(row.Get("File #")),
				Pay:        !strings.EqualFold(strings.TrimSpace(row.Get("PAY?")), "no"),
			}
			fields := []struct {
				col string
				dst *decimal.Decimal
			}{
				{"Rate", &e.Rate},
				{"Tip Adjustment", &e.TipAdjustment},
				{"Bonus", &e.Bonus},
				{"Wage Owed", &e.WageOwed},
				{"Reimbursements", &e.Reimbursement},
			}
			valid := true
			for _, f := range fields {
				if *f.dst, ok = r.amount(row, f.col); !ok {
					valid = false
					break
				}
			}
			if !valid {
				continue
			}
			d.Employees[key{loc, nameKey(name)}] = e
			d.loose[key{loc, looseKey(name)}] = e
		}
	}
	return d
}

// ReadTimeEntries parses the time entries export.
func ReadTimeEntries(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) []TimeEntry {
	r := reader{reg: reg, warn: warn}
	var out []TimeEntry
	for _, t := range tables {
		for _, row := range t.Rows {
			name := strings.Join(strings.Fields(row.Get("Employee")), " ")
			if name == "" {
				continue
			}
			loc, ok := r.location(row.Get("Location"))
			if !ok {
				continue
			}
			day, has, err := row.Date("In Date")
			if err != nil {
				warn(err)
				continue
			}
			if !has {
				warn(reconerr.ValueParse(row.File(), "", fmt.Errorf("line %d: empty In Date", row.Line)))
				continue
			}
			hours, ok := r.amount(row, "Total Hours")
			if !ok {
				continue
			}
			out = append(out, TimeEntry{Location: loc, Employee: name, Date: tabular.Day(day), Hours: hours})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Location != b.Location || nameKey(a.Employee) != nameKey(b.Employee) {
			return less(reg, a.Location, a.Employee, b.Location, b.Employee)
		}
		return a.Date.Before(b.Date)
	})
	return out
}

// ReadTips parses a tips export. Rows without a location column match the employee at
// any location.
func ReadTips(reg *mapping.Registry, tables []*tabular.Table, source string, warn func(error)) []Tip {
	r := reader{reg: reg, warn: warn}
	var out []Tip
	for _, t := range tables {
		for _, row := range t.Rows {
			name := strings.Join(strings.Fields(row.Get("Employee")), " ")
			if name == "" {
				continue
			}
			var loc mapping.Location
			if raw := row.Get("Location"); raw != "" {
				var ok bool
				if loc, ok = r.location(raw); !ok {
					continue
				}
			}
			amount, ok := r.amount(row, "Tips")
			if !ok {
				continue
			}
			out = append(out, Tip{Location: loc, Employee: name, Amount: amount, Source: source})
		}
	}
	return out
}
