package payroll

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/shopspring/decimal"
)

var (
	weeklyHours = decimal.NewFromInt(40)
	overtime    = decimal.NewFromFloat(1.5)
)

// Class groups the findings written to the warnings workbook.
type Class string

const (
	ClassNotPaid         Class = "Not Paid"
	ClassNotInDictionary Class = "Missing From Dictionary"
	ClassUnknownLocation Class = "Unknown Location"
	ClassUnmatchedTips   Class = "Unmatched Tips"
	ClassNoTimeEntries   Class = "No Time Entries"
	ClassMissingADPCode  Class = "Missing ADP Code"
	ClassExcludedCompany Class = "Excluded Company"
)

// Classes lists every class in dashboard order.
var Classes = []Class{
	ClassNotPaid,
	ClassNotInDictionary,
	ClassUnknownLocation,
	ClassUnmatchedTips,
	ClassNoTimeEntries,
	ClassMissingADPCode,
	ClassExcludedCompany,
}

func (c Class) kind() reconerr.Kind {
	switch c {
	case ClassNotInDictionary, ClassUnknownLocation, ClassUnmatchedTips:
		return reconerr.KindMappingMiss
	}
	return reconerr.KindValueParse
}

// Finding is one payroll exception.
type Finding struct {
	Class    Class
	Location mapping.Location
	Employee string
	Detail   string
}

// Pay is the computed pay of one employee for the period.
type Pay struct {
	Employee *Employee
	// Hours are the period totals; Holiday is the share worked on holidays.
	Hours   decimal.Decimal
	Holiday decimal.Decimal
	Regular decimal.Decimal
	OT      decimal.Decimal
	Tips    decimal.Decimal
	// NoHours marks a salaried employee paid without time entries.
	NoHours bool
}

// Gross is wages before tips and reimbursements.
func (p *Pay) Gross() decimal.Decimal {
	e := p.Employee
	if e.Basis == Salary {
		return money.Sum(e.Rate, e.WageOwed, e.Bonus)
	}
	ot := e.Rate.Mul(overtime)
	return money.Sum(
		p.Regular.Mul(e.Rate),
		p.OT.Mul(ot),
		p.Holiday.Mul(ot),
		e.WageOwed,
		e.Bonus,
	)
}

// GrossPlusTips is gross pay plus matched tips. Reimbursements are paid on their own
// earnings code and stay out of it.
func (p *Pay) GrossPlusTips() decimal.Decimal {
	return p.Gross().Add(p.Tips)
}

// Split divides a week's hours into regular and overtime. Holiday hours absorb
// overtime first; whatever part of the holiday is not absorbed comes out of the
// regular hours, which never exceed forty.
func Split(total, holiday decimal.Decimal) (regular, ot decimal.Decimal) {
	rawOT := decimal.Max(decimal.Zero, total.Sub(weeklyHours))
	ot = decimal.Max(decimal.Zero, rawOT.Sub(holiday))
	unabsorbed := decimal.Max(decimal.Zero, holiday.Sub(rawOT))
	regular = decimal.Min(weeklyHours, total.Sub(unabsorbed).Sub(ot))
	return regular, ot
}

// Result is the computed payroll.
type Result struct {
	Pays     []*Pay
	Findings []Finding
	// Logins counts time entries left out as shared or device logins.
	Logins int
}

// Count returns the findings of one class.
func (r *Result) Count(c Class) int {
	n := 0
	for _, f := range r.Findings {
		if f.Class == c {
			n++
		}
	}
	return n
}

type worked struct {
	loc     mapping.Location
	name    string
	hours   decimal.Decimal
	holiday decimal.Decimal
}

// Compute pays every dictionary employee with PAY? not set to "no" and reports each
// exception as a Finding.
func Compute(reg *mapping.Registry, dict *Dictionary, entries []TimeEntry, tips []Tip) *Result {
	res := &Result{}
	finding := func(c Class, loc mapping.Location, name, format string, args ...any) {
		res.Findings = append(res.Findings, Finding{Class: c, Location: loc, Employee: name, Detail: fmt.Sprintf(format, args...)})
	}

	var order []*worked
	byEmployee := make(map[*Employee]*worked)
	unknown := make(map[key]*worked)
	for _, te := range entries {
		if IsExcludedLogin(te.Employee) {
			res.Logins++
			continue
		}
		e, ok := dict.Lookup(te.Location, te.Employee)
		var w *worked
		if ok {
			w = byEmployee[e]
			if w == nil {
				w = &worked{loc: e.Location, name: e.Name}
				byEmployee[e] = w
			}
		} else {
			k := key{te.Location, nameKey(te.Employee)}
			w = unknown[k]
			if w == nil {
				w = &worked{loc: te.Location, name: te.Employee}
				unknown[k] = w
				order = append(order, w)
			}
		}
		w.hours = w.hours.Add(te.Hours)
		if dict.Holidays[te.Date] {
			w.holiday = w.holiday.Add(te.Hours)
		}
	}
	for _, w := range order {
		finding(ClassNotInDictionary, w.loc, w.name, "%s hours in time entries", w.hours.StringFixed(2))
	}

	idx := newTipIndex(tips)
	for _, e := range dict.Sorted(reg) {
		if IsExcludedLogin(e.Name) {
			continue
		}
		w := byEmployee[e]
		if !e.Pay {
			hours := decimal.Zero
			if w != nil {
				hours = w.hours
			}
			idx.take(e.Location, e.Name)
			finding(ClassNotPaid, e.Location, e.Name, "PAY? is no; %s hours not paid", hours.StringFixed(2))
			continue
		}
		p := &Pay{Employee: e}
		if w == nil {
			if e.Basis == Hourly {
				finding(ClassNoTimeEntries, e.Location, e.Name, "hourly employee without time entries")
				idx.take(e.Location, e.Name)
				continue
			}
			p.NoHours = true
		} else {
			p.Hours, p.Holiday = w.hours, w.holiday
			p.Regular, p.OT = Split(w.hours, w.holiday)
		}
		tip, _ := idx.take(e.Location, e.Name)
		p.Tips = tip.Add(e.TipAdjustment)
		res.Pays = append(res.Pays, p)
	}

	for _, t := range idx.unmatched() {
		finding(ClassUnmatchedTips, t.Location, t.Employee, "%s tips from %s", money.Format(t.Amount), t.Source)
	}
	return res
}

// tipIndex sums tips per employee and remembers which ones were claimed.
type tipIndex struct {
	totals []*Tip
	exact  map[key]*Tip
	loose  map[key]*Tip
	taken  map[*Tip]bool
}

func newTipIndex(tips []Tip) *tipIndex {
	idx := &tipIndex{
		exact: make(map[key]*Tip),
		loose: make(map[key]*Tip),
		taken: make(map[*Tip]bool),
	}
	for _, t := range tips {
		k := key{t.Location, nameKey(t.Employee)}
		if cur, ok := idx.exact[k]; ok {
			cur.Amount = cur.Amount.Add(t.Amount)
			continue
		}
		total := t
		idx.totals = append(idx.totals, &total)
		idx.exact[k] = &total
		idx.loose[key{t.Location, looseKey(t.Employee)}] = &total
	}
	return idx
}

// take claims the tips of an employee: exact name at the location, then the same
// name ignoring whitespace, then rows without a location.
func (idx *tipIndex) take(loc mapping.Location, name string) (decimal.Decimal, bool) {
	total, found := decimal.Zero, false
	for _, l := range []mapping.Location{loc, ""} {
		t, ok := idx.exact[key{l, nameKey(name)}]
		if !ok {
			t, ok = idx.loose[key{l, looseKey(name)}]
		}
		if !ok || idx.taken[t] {
			continue
		}
		idx.taken[t] = true
		total = total.Add(t.Amount)
		found = true
	}
	return total, found
}

func (idx *tipIndex) unmatched() []Tip {
	var out []Tip
	for _, t := range idx.totals {
		if !idx.taken[t] && !t.Amount.IsZero() {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Compare(string(out[i].Location), string(out[j].Location)) < 0
	})
	return out
}
