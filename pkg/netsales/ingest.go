// Package netsales reconciles POS order totals against the ERP's daily net sales after
// the GL's donation, gift-card and Plantation Walk adjustments.
package netsales

import (
	"fmt"
	"strings"
	"time"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
)

// GL account codes that adjust POS sales.
const (
	AccountDonation          = "21200"
	AccountGiftCardsOutstand = "25050"
	AccountGiftCards         = "73405"
	AccountPlantationPayable = "25101"
)

// NJTag marks the transaction numbers whose gift-card lines count.
const NJTag = "NJ"

// Key identifies one location-day.
type Key struct {
	Location mapping.Location
	Date     time.Time
}

// Day is one location-day across the three sources.
type Day struct {
	Key
	POS        decimal.Decimal
	Adjustment decimal.Decimal
	GiftCard   decimal.Decimal
	Plantation decimal.Decimal
	Export     decimal.Decimal
}

// Adjusted is POS minus the GL adjustment.
func (d *Day) Adjusted() decimal.Decimal {
	return d.POS.Sub(d.Adjustment)
}

// Difference is the adjusted POS amount minus the export's net sales.
func (d *Day) Difference() decimal.Decimal {
	return d.Adjusted().Sub(d.Export)
}

// Ledger collects location-days from every source.
type Ledger struct {
	days map[Key]*Day
	reg  *mapping.Registry
	warn func(error)
}

// NewLedger returns an empty ledger.
func NewLedger(reg *mapping.Registry) *Ledger {
	return &Ledger{days: make(map[Key]*Day), reg: reg, warn: func(error) {}}
}

// Len is the number of location-days seen.
func (l *Ledger) Len() int {
	return len(l.days)
}

func (l *Ledger) day(loc mapping.Location, date time.Time) *Day {
	k := Key{Location: loc, Date: tabular.Day(date)}
	d, ok := l.days[k]
	if !ok {
		d = &Day{Key: k}
		l.days[k] = d
	}
	return d
}

// location resolves a raw name; unknown names are reported, excluded ones dropped silently.
func (l *Ledger) location(raw string) (mapping.Location, bool) {
	loc, ok := l.reg.ResolveLocation(raw)
	if !ok {
		l.warn(l.reg.Miss(raw))
		return "", false
	}
	if l.reg.Excluded(loc) {
		return "", false
	}
	return loc, true
}

func (l *Ledger) date(row tabular.Row, col string) (time.Time, bool) {
	d, ok, err := row.Date(col)
	if err != nil {
		l.warn(err)
		return time.Time{}, false
	}
	if !ok {
		l.warn(reconerr.ValueParse(row.File(), "", fmt.Errorf("line %d: empty %s", row.Line, col)))
	}
	return d, ok
}

// AddOrders sums order Amount per location-day; warn receives skipped rows. An order
// seen in more than one file (same location, day, id and opened time) counts once.
func (l *Ledger) AddOrders(tables []*tabular.Table, warn func(error)) {
	l.warn = warn
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, row := range t.Rows {
			loc, ok := l.location(row.Get("Location"))
			if !ok {
				continue
			}
			opened, ok := l.date(row, "Opened")
			if !ok {
				continue
			}
			key := strings.Join([]string{
				string(loc), tabular.Compact(opened), row.Get("Order Id"), row.Get("Opened"),
			}, "|")
			if seen[key] {
				continue
			}
			amount, err := row.Money("Amount")
			if err != nil {
				l.warn(err)
				continue
			}
			seen[key] = true
			d := l.day(loc, opened)
			d.POS = d.POS.Add(amount)
		}
	}
}

// AddGL applies the adjusting GL lines:
// donation credits, NJ gift-card-outstanding credits, minus NJ gift-card debits,
// plus Plantation Walk payable credits.
func (l *Ledger) AddGL(tables []*tabular.Table, warn func(error)) {
	l.warn = warn
	for _, t := range tables {
		for _, row := range t.Rows {
			code := accountCode(row.Get("Account"))
			switch code {
			case AccountDonation, AccountGiftCardsOutstand, AccountGiftCards, AccountPlantationPayable:
			default:
				continue
			}
			nj := strings.Contains(row.Get("Transaction Number"), NJTag)
			if (code == AccountGiftCardsOutstand || code == AccountGiftCards) && !nj {
				continue
			}

			loc, ok := l.location(row.Get("Location"))
			if !ok {
				continue
			}
			date, ok := l.date(row, "Date")
			if !ok {
				continue
			}
			debit, err := row.Money("Debit")
			if err != nil {
				l.warn(err)
				continue
			}
			credit, err := row.Money("Credit")
			if err != nil {
				l.warn(err)
				continue
			}

			d := l.day(loc, date)
			switch code {
			case AccountDonation:
				d.Adjustment = d.Adjustment.Add(credit)
			case AccountGiftCardsOutstand:
				d.Adjustment = d.Adjustment.Add(credit)
				d.GiftCard = d.GiftCard.Add(credit)
			case AccountGiftCards:
				d.Adjustment = d.Adjustment.Sub(debit)
			case AccountPlantationPayable:
				d.Adjustment = d.Adjustment.Add(credit)
				d.Plantation = d.Plantation.Add(credit)
			}
		}
	}
}

// AddExport reads the daily sales summary's Net Sales.
func (l *Ledger) AddExport(tables []*tabular.Table, warn func(error)) {
	l.warn = warn
	for _, t := range tables {
		for _, row := range t.Rows {
			loc, ok := l.location(row.Get("Location"))
			if !ok {
				continue
			}
			date, ok := l.date(row, "Date")
			if !ok {
				continue
			}
			net, err := row.Money("Net Sales")
			if err != nil {
				l.warn(err)
				continue
			}
			d := l.day(loc, date)
			d.Export = d.Export.Add(net)
		}
	}
}

// Overview reads the period Net Sales per location from the group overview.
func Overview(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) map[mapping.Location]decimal.Decimal {
	out := make(map[mapping.Location]decimal.Decimal)
	for _, t := range tables {
		for _, row := range t.Rows {
			raw := row.Get("Location")
			if raw == "" || strings.EqualFold(raw, "total") {
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
			net, err := row.Money("Net Sales")
			if err != nil {
				warn(err)
				continue
			}
			out[loc] = out[loc].Add(net)
		}
	}
	return out
}

// accountCode returns the leading number of "21200 - Payable Donation".
func accountCode(account string) string {
	fields := strings.FieldsFunc(account, func(r rune) bool { return r == ' ' || r == '-' })
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
