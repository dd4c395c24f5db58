package netsales

import (
	"sort"
	"time"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/xlsx"
	"github.com/shopspring/decimal"
)

// GiftCardNote annotates discrepancies on days with gift cards outstanding.
const GiftCardNote = "Gift card outstanding"

// LocationSummary is one row of the Summary Net Sales sheet.
type LocationSummary struct {
	Location   mapping.Location
	POS        decimal.Decimal
	Adjustment decimal.Decimal
	// Plantation is the period's Plantation Walk payable, subtracted again for the
	// plantation category before comparing.
	Plantation decimal.Decimal
	ERP        decimal.Decimal
}

// Adjusted is the POS total after every GL adjustment.
func (s LocationSummary) Adjusted() decimal.Decimal {
	return s.POS.Sub(s.Adjustment).Sub(s.Plantation)
}

// Difference is the adjusted POS total minus ERP net sales.
func (s LocationSummary) Difference() decimal.Decimal {
	return s.Adjusted().Sub(s.ERP)
}

// Report is the reconciled period.
type Report struct {
	Days          []*Day
	Locations     []LocationSummary
	Discrepancies []*Day
	GiftCards     []*Day
}

// LatestDate is the last day any source covers.
func (r Report) LatestDate() time.Time {
	var latest time.Time
	for _, d := range r.Days {
		if d.Date.After(latest) {
			latest = d.Date
		}
	}
	return latest
}

// Reconcile orders the ledger's days by date then report order and rolls them up per
// location. overview supplies the ERP period totals; a location missing from it falls
// back to the sum of its daily export figures.
func Reconcile(reg *mapping.Registry, l *Ledger, overview map[mapping.Location]decimal.Decimal) Report {
	var rep Report
	for _, d := range l.days {
		rep.Days = append(rep.Days, d)
	}
	sort.Slice(rep.Days, func(i, j int) bool {
		a, b := rep.Days[i], rep.Days[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if ai, bi := reg.SortIndex(a.Location), reg.SortIndex(b.Location); ai != bi {
			return ai < bi
		}
		return a.Location < b.Location
	})

	byLoc := make(map[mapping.Location]*LocationSummary)
	summary := func(loc mapping.Location) *LocationSummary {
		s, ok := byLoc[loc]
		if !ok {
			s = &LocationSummary{Location: loc}
			byLoc[loc] = s
		}
		return s
	}
	exportSum := make(map[mapping.Location]decimal.Decimal)

	for _, d := range rep.Days {
		s := summary(d.Location)
		s.POS = s.POS.Add(d.POS)
		s.Adjustment = s.Adjustment.Add(d.Adjustment)
		if reg.Category(d.Location) == mapping.CategoryPlantation {
			s.Plantation = s.Plantation.Add(d.Plantation)
		}
		exportSum[d.Location] = exportSum[d.Location].Add(d.Export)

		if !money.IsZero(d.Difference()) {
			rep.Discrepancies = append(rep.Discrepancies, d)
		}
		if d.GiftCard.GreaterThan(decimal.Zero) {
			rep.GiftCards = append(rep.GiftCards, d)
		}
	}
	for loc := range overview {
		summary(loc)
	}

	locs := make([]mapping.Location, 0, len(byLoc))
	for loc := range byLoc {
		locs = append(locs, loc)
	}
	reg.SortLocations(locs)
	for _, loc := range locs {
		s := byLoc[loc]
		if erp, ok := overview[loc]; ok {
			s.ERP = erp
		} else {
			s.ERP = exportSum[loc]
		}
		rep.Locations = append(rep.Locations, *s)
	}
	return rep
}

// Workbook lays out the Summary Net Sales, Discrepancies and Gift-Card sheets.
func Workbook(rep Report) *xlsx.Workbook {
	wb := xlsx.New()

	summary := wb.Sheet("Summary Net Sales")
	summary.Header(xlsx.LightBlue, "Location", "POS Total", "GL Adjustments", "Plantation Walk Payable",
		"Adjusted POS", "ERP Net Sales", "Difference")
	total := LocationSummary{}
	for _, s := range rep.Locations {
		band := xlsx.NoBand
		if !money.IsZero(s.Difference()) {
			band = xlsx.SuperLightRed
		}
		summary.BandedRow(band,
			xlsx.Text(string(s.Location)),
			xlsx.Money(s.POS),
			xlsx.Money(s.Adjustment),
			xlsx.Money(s.Plantation),
			xlsx.Money(s.Adjusted()),
			xlsx.Money(s.ERP),
			xlsx.Money(s.Difference()),
		)
		total.POS = total.POS.Add(s.POS)
		total.Adjustment = total.Adjustment.Add(s.Adjustment)
		total.Plantation = total.Plantation.Add(s.Plantation)
		total.ERP = total.ERP.Add(s.ERP)
	}
	summary.BandedRow(xlsx.LightBlue,
		xlsx.Text("Total").Strong(),
		xlsx.Money(total.POS).Strong(),
		xlsx.Money(total.Adjustment).Strong(),
		xlsx.Money(total.Plantation).Strong(),
		xlsx.Money(total.Adjusted()).Strong(),
		xlsx.Money(total.ERP).Strong(),
		xlsx.Money(total.Difference()).Strong(),
	)

	disc := wb.Sheet("Discrepancies")
	disc.Header(xlsx.LightOrange, "Date", "Location", "POS Amount", "GL Adjustment", "Adjusted POS",
		"Export Net Sales", "Difference", "Gift Card Outstanding", "Note")
	for _, d := range rep.Discrepancies {
		note := ""
		band := xlsx.NoBand
		if d.GiftCard.GreaterThan(decimal.Zero) {
			note = GiftCardNote
			band = xlsx.Yellow
		}
		disc.BandedRow(band,
			xlsx.Text(d.Date.Format("01/02/2006")),
			xlsx.Text(string(d.Location)),
			xlsx.Money(d.POS),
			xlsx.Money(d.Adjustment),
			xlsx.Money(d.Adjusted()),
			xlsx.Money(d.Export),
			xlsx.Money(d.Difference()),
			xlsx.Money(d.GiftCard),
			xlsx.Text(note),
		)
	}

	gift := wb.Sheet("Gift-Card")
	gift.Header(xlsx.LightGreen, "Date", "Location", "Gift Card Outstanding", "Difference")
	for _, d := range rep.GiftCards {
		gift.Row(
			xlsx.Text(d.Date.Format("01/02/2006")),
			xlsx.Text(string(d.Location)),
			xlsx.Money(d.GiftCard),
			xlsx.Money(d.Difference()),
		)
	}
	return wb
}
