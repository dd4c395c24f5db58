// Package royalty computes per-location royalties, leadership fees and sales-tax
// cross-checks from the monthly P&L, and emits the royalty workbook plus the paired
// AR/AP invoices.
package royalty

import (
	"strings"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
)

// GL labels that carry the period's payable totals.
const (
	LabelSalesTaxPayable  = "Total Sales Tax Payable"
	LabelResortTaxPayable = "Total Resort Tax Payable"

	// salesTaxAccount is used when the GL export has no payable totals.
	salesTaxAccount = "23000"
)

// Sales is one location's P&L line. Values keep the export's sign.
type Sales struct {
	NetSales          decimal.Decimal
	DeliveryFee       decimal.Decimal
	UberEats          decimal.Decimal
	UberEatsTax       decimal.Decimal
	Ezcater           decimal.Decimal
	DoorDash          decimal.Decimal
	GrubHub           decimal.Decimal
	DoorDashDiscounts decimal.Decimal
	Promotions        decimal.Decimal
	PlantationPayable decimal.Decimal
}

var pnlColumns = []string{
	"Net Sales", "Delivery Fee", "UberEats Total", "UberEats Tax", "Ezcater", "DoorDash Total",
	"Grubhub Total", "DoorDash Discounts", "Promotions", "Plantation Walk Payable",
}

func (s *Sales) add(v []decimal.Decimal) {
	for i, p := range []*decimal.Decimal{
		&s.NetSales, &s.DeliveryFee, &s.UberEats, &s.UberEatsTax, &s.Ezcater, &s.DoorDash,
		&s.GrubHub, &s.DoorDashDiscounts, &s.Promotions, &s.PlantationPayable,
	} {
		*p = p.Add(v[i])
	}
}

// POSTotals is one location's POS group overview.
type POSTotals struct {
	NetSales   decimal.Decimal
	Tax        decimal.Decimal
	NonTaxable decimal.Decimal
	ResortTax  decimal.Decimal
}

// Payable is what the ERP shows as owed for a tax unit.
type Payable struct {
	SalesTax  decimal.Decimal
	ResortTax decimal.Decimal
}

// Inputs is everything the computation reads, keyed by canonical location or, for
// payables, by tax unit.
type Inputs struct {
	Sales    map[mapping.Location]*Sales
	POS      map[mapping.Location]*POSTotals
	Exempt   map[mapping.Location]decimal.Decimal
	Payables map[string]*Payable
}

// sumByLocation adds the named columns per location. Total rows are skipped.
func sumByLocation(reg *mapping.Registry, tables []*tabular.Table, cols []string, warn func(error)) map[mapping.Location][]decimal.Decimal {
	out := make(map[mapping.Location][]decimal.Decimal)
rows:
	for _, t := range tables {
		for _, row := range t.Rows {
			raw := row.Get("Location")
			if raw == "" || strings.HasPrefix(strings.ToLower(raw), "total") {
				continue
			}
			loc, ok := reg.ResolveLocation(raw)
			if !ok {
				warn(reg.Miss(raw))
				continue
			}
			if reg.Excluded(loc) {
				continue
			}
			vals := make([]decimal.Decimal, len(cols))
			for i, c := range cols {
				v, err := row.Money(c)
				if err != nil {
					warn(err)
					continue rows
				}
				vals[i] = v
			}
			if prev, ok := out[loc]; ok {
				for i := range vals {
					vals[i] = vals[i].Add(prev[i])
				}
			}
			out[loc] = vals
		}
	}
	return out
}

// ReadSales reads the P&L export.
func ReadSales(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) map[mapping.Location]*Sales {
	out := make(map[mapping.Location]*Sales)
	for loc, vals := range sumByLocation(reg, tables, pnlColumns, warn) {
		s := &Sales{}
		s.add(vals)
		out[loc] = s
	}
	return out
}

// ReadPOS reads the POS group overview.
func ReadPOS(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) map[mapping.Location]*POSTotals {
	out := make(map[mapping.Location]*POSTotals)
	cols := []string{"Net Sales", "Tax Amount", "Non Taxable", "Resort Tax"}
	for loc, v := range sumByLocation(reg, tables, cols, warn) {
		out[loc] = &POSTotals{NetSales: v[0], Tax: v[1], NonTaxable: v[2], ResortTax: v[3]}
	}
	return out
}

// ReadExempt reads the tax-exempt sales export.
func ReadExempt(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) map[mapping.Location]decimal.Decimal {
	out := make(map[mapping.Location]decimal.Decimal)
	for loc, v := range sumByLocation(reg, tables, []string{"Tax Exempt"}, warn) {
		out[loc] = v[0]
	}
	return out
}

// ReadPayables collects the ERP's sales and resort tax payable per tax unit. Rows whose
// Textbox49 or Textbox50 carries a payable label give the unit's ending balance; units
// without such rows fall back to the net credits of the sales tax account.
func ReadPayables(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) map[string]*Payable {
	totals := make(map[string]*Payable)
	fallback := make(map[string]decimal.Decimal)
	get := func(m map[string]*Payable, unit string) *Payable {
		p, ok := m[unit]
		if !ok {
			p = &Payable{}
			m[unit] = p
		}
		return p
	}

	for _, t := range tables {
		for _, row := range t.Rows {
			raw := row.Get("Location")
			unit, known := payableUnit(reg, raw)
			if !known {
				if raw != "" {
					warn(reg.Miss(raw))
				}
				continue
			}
			if unit == "" {
				continue
			}
			label := row.Get("Textbox49") + " " + row.Get("Textbox50")
			switch {
			case strings.Contains(label, LabelSalesTaxPayable):
				v, ok := endingBalance(row, warn)
				if ok {
					p := get(totals, unit)
					p.SalesTax = p.SalesTax.Add(v)
				}
			case strings.Contains(label, LabelResortTaxPayable):
				v, ok := endingBalance(row, warn)
				if ok {
					p := get(totals, unit)
					p.ResortTax = p.ResortTax.Add(v)
				}
			case strings.HasPrefix(strings.TrimSpace(row.Get("Account")), salesTaxAccount):
				credit, err := row.Money("Credit")
				if err != nil {
					warn(err)
					continue
				}
				debit, err := row.Money("Debit")
				if err != nil {
					warn(err)
					continue
				}
				fallback[unit] = fallback[unit].Add(credit).Sub(debit)
			}
		}
	}

	for unit, v := range fallback {
		if _, ok := totals[unit]; ok {
			continue
		}
		get(totals, unit).SalesTax = v
	}
	return totals
}

func endingBalance(row tabular.Row, warn func(error)) (decimal.Decimal, bool) {
	v, err := row.Money("Ending Balance")
	if err != nil {
		warn(err)
		return decimal.Zero, false
	}
	return v.Abs(), true
}

// payableUnit resolves a GL location, which may be a store or a legal entity. Known
// but excluded names resolve to an empty unit.
func payableUnit(reg *mapping.Registry, raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(raw), "total") {
		return "", true
	}
	if loc, ok := reg.ResolveLocation(raw); ok {
		if reg.Excluded(loc) {
			return "", true
		}
		return TaxUnit(reg, loc), true
	}
	entity, ok := reg.ResolveEntity(raw)
	if !ok {
		return "", false
	}
	locs := reg.LocationsOf(entity)
	if len(locs) == 0 || reg.Excluded(locs[0]) {
		return "", true
	}
	return TaxUnit(reg, locs[0]), true
}

// TaxUnit is the name sales tax is filed under: the combined name for the grouped
// family, the location otherwise.
func TaxUnit(reg *mapping.Registry, loc mapping.Location) string {
	if reg.IsGrouped(loc) {
		return reg.GroupedFamily().CombinedName
	}
	return string(loc)
}
