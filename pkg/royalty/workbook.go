package royalty

import (
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/xlsx"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// TaxSheet is the last sheet of the workbook.
const TaxSheet = "Tax"

// Section bands.
const (
	bandSales      = xlsx.LightBlue
	bandRoyalty    = xlsx.LightGreen
	bandLeadership = xlsx.LightOrange
	bandTax        = xlsx.Yellow
	bandResort     = xlsx.SuperLightRed
)

// Line labels that the Tax sheet reads back.
const (
	labelExpected      = "Expected Sales Tax"
	labelReported      = "POS Tax less UberEats Tax"
	labelERP           = "ERP Sales Tax Payable"
	labelDiffPOS       = "Difference Expected vs POS"
	labelDiffERP       = "Difference POS vs ERP"
	labelDiffExpERP    = "Difference Expected vs ERP"
	labelResortExp     = "Expected Resort Tax"
	labelResortDiffPOS = "Resort Difference Expected vs POS"
	labelResortDiffERP = "Resort Difference POS vs ERP"
)

// TaxHeader is the Tax sheet's column order.
var TaxHeader = []string{
	"Tax Unit", labelExpected, labelReported, labelERP, labelDiffPOS, labelDiffERP, labelDiffExpERP,
	labelResortExp, labelResortDiffPOS, labelResortDiffERP,
}

// locationSheet writes label/value lines and remembers where each label landed.
type locationSheet struct {
	*xlsx.Sheet
	rows map[string]int
}

func (s *locationSheet) line(b xlsx.Band, label string, v decimal.Decimal) {
	s.rows[label] = s.BandedRow(b, xlsx.Text(label), xlsx.Money(v))
}

func (s *locationSheet) rate(b xlsx.Band, label string, pct decimal.Decimal) {
	s.BandedRow(b, xlsx.Text(label), xlsx.Text(pct.String()+"%"))
}

func (s *locationSheet) total(b xlsx.Band, label string, v decimal.Decimal) {
	s.rows[label] = s.BandedRow(b, xlsx.Text(label).Strong(), xlsx.Money(v).Strong().Boxed(xlsx.Thin))
}

// Workbook renders one sheet per location in report order and the Tax sheet, whose
// cells are formulas over the first sheet of each tax unit.
func Workbook(reg *mapping.Registry, rep *Report) (*excelize.File, error) {
	wb := xlsx.New()
	first := make(map[*TaxCheck]*locationSheet)

	for _, s := range rep.Statements {
		ls := &locationSheet{Sheet: wb.Sheet(string(s.Location)), rows: make(map[string]int)}
		writeStatement(reg, ls, s)
		if _, ok := first[s.Tax]; !ok {
			first[s.Tax] = ls
		}
	}

	tax := wb.Sheet(TaxSheet)
	tax.Header(xlsx.LightBlue, TaxHeader...)
	for _, t := range rep.Taxes {
		src := first[t]
		cells := []xlsx.Cell{xlsx.Text(t.Unit)}
		for _, label := range TaxHeader[1:] {
			row, ok := src.rows[label]
			if !ok {
				cells = append(cells, xlsx.Text(""))
				continue
			}
			cells = append(cells, xlsx.Formula("="+src.Ref(2, row)))
		}
		tax.Row(cells...)
	}
	return wb.Finish()
}

func writeStatement(reg *mapping.Registry, ls *locationSheet, s *Statement) {
	sales := s.Sales
	ls.Title(bandSales, string(s.Location))
	ls.Header(bandSales, "Sales", "Amount")
	ls.line(bandSales, "Net Sales", sales.NetSales)
	ls.line(bandSales, "Delivery Fee", sales.DeliveryFee)
	if s.Category == mapping.CategoryPlantation {
		ls.line(bandSales, "Plantation Walk Payable (1%)", sales.PlantationPayable)
	}
	ls.line(bandSales, "UberEats Total", sales.UberEats)
	ls.line(bandSales, "Ezcater", sales.Ezcater)
	if s.Rates.ThirdPartyDelivery {
		ls.line(bandSales, "DoorDash Total", sales.DoorDash)
		ls.line(bandSales, "Grubhub Total", sales.GrubHub)
	}
	if s.Category == mapping.CategoryNewYork {
		ls.line(bandSales, "DoorDash Discounts", sales.DoorDashDiscounts)
	}
	ls.total(bandSales, "Sales w/o 3rd Party", s.Base)
	ls.Blank()

	ls.Header(bandRoyalty, "Royalty", "Amount")
	ls.rate(bandRoyalty, "Royalty Rate", s.Rates.RoyaltyRate)
	ls.line(bandRoyalty, "Royalty on Sales", s.RoyaltySales)
	ls.rate(bandRoyalty, "3rd Party Rate", s.Rates.ThirdPartyRate)
	ls.line(bandRoyalty, "3rd Party Sales", s.ThirdParty)
	ls.line(bandRoyalty, "Royalty on 3rd Party", s.RoyaltyThirdParty)
	ls.total(bandRoyalty, "Total Royalty", s.Royalty())
	ls.Blank()

	fees := reg.Fees()
	ls.Header(bandLeadership, "Leadership", "Amount")
	ls.rate(bandLeadership, "Cleadership Rate", fees.CleadershipRate)
	ls.line(bandLeadership, "Cleadership Fee", s.Cleadership)
	if s.LeadershipOnly() {
		ls.rate(bandLeadership, "Leadership UberEats Rate", fees.MidtownLeadershipRate)
		ls.line(bandLeadership, "Leadership Fee UberEats", s.LeadershipUberEats)
	}
	ls.Blank()

	t := s.Tax
	ls.Header(bandTax, "Sales Tax - "+t.Unit, "Amount")
	ls.line(bandTax, "POS Net Sales", t.POSNetSales)
	ls.line(bandTax, "Non Taxable", t.NonTaxable)
	ls.line(bandTax, "UberEats Sales", t.UberEats)
	ls.line(bandTax, "Tax Exempt", t.Exempt)
	ls.line(bandTax, "Taxable Sales", t.Taxable())
	ls.rate(bandTax, "Tax Rate", t.Rate)
	if !t.PromotionTax.IsZero() {
		ls.line(bandTax, "Tax on Promotions", t.PromotionTax)
	}
	ls.line(bandTax, labelExpected, t.Expected())
	ls.line(bandTax, "POS Tax", t.POSTax)
	ls.line(bandTax, "UberEats Tax", t.UberEatsTax)
	ls.line(bandTax, labelReported, t.Reported())
	ls.line(bandTax, labelERP, t.ERP)
	ls.total(diffBand(t.DiffExpectedPOS()), labelDiffPOS, t.DiffExpectedPOS())
	ls.total(diffBand(t.DiffPOSERP()), labelDiffERP, t.DiffPOSERP())
	ls.total(diffBand(t.DiffExpectedERP()), labelDiffExpERP, t.DiffExpectedERP())

	if t.HasResort() {
		ls.Blank()
		ls.Header(bandResort, "Resort Tax", "Amount")
		ls.rate(bandResort, "Resort Tax Rate", t.ResortRate)
		ls.line(bandResort, labelResortExp, t.ExpectedResort())
		ls.line(bandResort, "POS Resort Tax", t.POSResort)
		ls.line(bandResort, "ERP Resort Tax Payable", t.ERPResort)
		ls.total(diffBand(t.DiffResortPOS()), labelResortDiffPOS, t.DiffResortPOS())
		ls.total(diffBand(t.DiffResortERP()), labelResortDiffERP, t.DiffResortERP())
	}
}

func diffBand(d decimal.Decimal) xlsx.Band {
	if money.IsZero(d) {
		return bandTax
	}
	return xlsx.SuperLightRed
}
