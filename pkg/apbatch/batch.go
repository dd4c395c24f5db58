// Package apbatch turns the ERP's AP payment-run export into the bank's ACH upload
// workbooks: one per location, plus a single combined workbook for the grouped family.
package apbatch

import (
	"fmt"
	"sort"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
)

// SECCode is the standard entry class of every vendor payment.
const SECCode = "CCD"

// Columns is the output column order.
var Columns = []string{
	"SEC Code", "Location Account Number", "Location Subsidiary", "Vendor Display Name",
	"Vendor Account Number", "Vendor Routing Number", "Inv. Date", "Invoice", "Payment Date",
	"Location", "Pay $",
}

// Payment is one normalized payment-run row.
type Payment struct {
	Location mapping.Location
	// RawLocation is kept for rows whose location did not resolve.
	RawLocation string
	Entity      mapping.LegalEntity
	BankAccount string
	Vendor      string
	Resolved    bool
	Account     string
	Routing     string
	InvDate     string
	Invoice     string
	PayDate     string
	Amount      decimal.Decimal
}

// LocationName is the canonical location, or the raw spelling when it did not resolve.
func (p Payment) LocationName() string {
	if p.Location != "" {
		return string(p.Location)
	}
	return p.RawLocation
}

// Workbook is the set of payments written to one output file.
type Workbook struct {
	Name     string
	Grouped  bool
	Payments []Payment
	sortKey  int
}

// Normalize reads payment rows. Blank rows are dropped, rows with unreadable amounts
// or non-positive payments are reported through warn and skipped. Unknown locations
// are reported and kept under their raw name with blank bank fields; unknown vendors
// are kept with blank account and routing and returned in the unresolved list.
func Normalize(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) ([]Payment, []string) {
	var payments []Payment
	unresolved := make(map[string]bool)

	for _, t := range tables {
		for _, row := range t.Rows {
			if row.IsEmpty() {
				continue
			}
			amount, err := row.Money("Pay $")
			if err != nil {
				warn(err)
				continue
			}
			if !amount.IsPositive() {
				warn(reconerr.ValueParse(t.Name, row.Get("Pay $"), fmt.Errorf("line %d: payment must be positive", row.Line)))
				continue
			}

			p := Payment{
				RawLocation: row.Get("Location"),
				Vendor:      row.Get("Vendor"),
				InvDate:     dateText(row.Get("Inv. Date")),
				Invoice:     row.Get("Invoice"),
				PayDate:     dateText(row.Get("Payment Date")),
				Amount:      amount,
			}
			if loc, ok := reg.ResolveLocation(p.RawLocation); ok {
				p.Location = loc
				p.Entity = reg.LegalEntityOf(loc)
				p.BankAccount, _ = reg.BankAccountFor(p.Entity, mapping.Checking)
			} else {
				warn(fmt.Errorf("%s line %d: %w", t.Name, row.Line, reconerr.MappingMiss(p.RawLocation)))
			}
			if v, ok := reg.VendorInfo(p.Vendor); ok {
				p.Vendor, p.Account, p.Routing, p.Resolved = v.Name, v.Account, v.Routing, true
			} else {
				unresolved[p.Vendor] = true
			}
			payments = append(payments, p)
		}
	}

	names := make([]string, 0, len(unresolved))
	for v := range unresolved {
		names = append(names, v)
	}
	sort.Strings(names)
	return payments, names
}

// dateText normalizes a date cell to MM/DD/YYYY, keeping unreadable text as is.
func dateText(raw string) string {
	if raw == "" {
		return ""
	}
	d, err := tabular.ParseDate(raw)
	if err != nil {
		return raw
	}
	return journal.FormatDate(d)
}

// Group splits payments into workbooks in registry order. Grouped-family locations
// share one workbook named after the family.
func Group(reg *mapping.Registry, payments []Payment) []*Workbook {
	family := reg.GroupedFamily()
	byName := make(map[string]*Workbook)
	var books []*Workbook

	for _, p := range payments {
		name := p.LocationName()
		grouped := p.Location != "" && reg.IsGrouped(p.Location)
		if grouped {
			name = family.CombinedName
		}
		wb, ok := byName[name]
		if !ok {
			wb = &Workbook{Name: name, Grouped: grouped, sortKey: reg.SortIndex(p.Location)}
			if grouped && len(family.Locations) > 0 {
				wb.sortKey = reg.SortIndex(family.Locations[0])
			}
			byName[name] = wb
			books = append(books, wb)
		}
		wb.Payments = append(wb.Payments, p)
	}

	sort.SliceStable(books, func(i, j int) bool {
		if books[i].sortKey != books[j].sortKey {
			return books[i].sortKey < books[j].sortKey
		}
		return books[i].Name < books[j].Name
	})
	for _, wb := range books {
		sort.SliceStable(wb.Payments, func(i, j int) bool {
			a, b := wb.Payments[i], wb.Payments[j]
			if ai, bi := reg.SortIndex(a.Location), reg.SortIndex(b.Location); ai != bi {
				return ai < bi
			}
			if a.LocationName() != b.LocationName() {
				return a.LocationName() < b.LocationName()
			}
			return a.Vendor < b.Vendor
		})
	}
	return books
}
