package royalty

import (
	"fmt"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/shopspring/decimal"
)

// Revenue accounts on the franchisor and leadership books.
const (
	AccountRoyalty            = "40100 - Royalty Income"
	AccountLeadership         = "40200 - Leadership Fee Income"
	AccountLeadershipUberEats = "40210 - Leadership Fee Income - UberEats"
)

// Invoice number prefixes.
const (
	PrefixFranchisor = "AR-CEFS"
	PrefixLeadership = "AR-CLEAD"
)

// Statement is the royalty computation of one location.
type Statement struct {
	Location mapping.Location
	Category mapping.Category
	Rates    mapping.CategoryRates
	Sales    Sales

	// Exclusions is the delivery fee, plus the Plantation Walk payable at Plantation.
	Exclusions decimal.Decimal
	// Base is net sales without third-party channels; royalty at the royalty rate.
	Base decimal.Decimal
	// ThirdParty is the third-party total charged at the reduced rate.
	ThirdParty decimal.Decimal

	RoyaltySales      decimal.Decimal
	RoyaltyThirdParty decimal.Decimal
	Cleadership       decimal.Decimal
	// LeadershipUberEats is only charged at Midtown.
	LeadershipUberEats decimal.Decimal

	// Tax is shared by the grouped family's three statements.
	Tax *TaxCheck
}

// Royalty is the total franchisor royalty.
func (s *Statement) Royalty() decimal.Decimal {
	return money.Round2(s.RoyaltySales).Add(money.Round2(s.RoyaltyThirdParty))
}

// LeadershipOnly reports whether the franchisor does not invoice this location.
func (s *Statement) LeadershipOnly() bool {
	return s.Category == mapping.CategoryMidtown
}

// TaxCheck cross-checks expected sales tax against what the POS reported and what the
// ERP carries as payable, for one tax unit.
type TaxCheck struct {
	Unit      string
	Locations []mapping.Location
	Rate      decimal.Decimal

	POSNetSales decimal.Decimal
	NonTaxable  decimal.Decimal
	UberEats    decimal.Decimal
	Exempt      decimal.Decimal
	POSTax      decimal.Decimal
	UberEatsTax decimal.Decimal
	// PromotionTax is computed separately on promotions in New York.
	PromotionTax decimal.Decimal
	ERP          decimal.Decimal
	HasERP       bool

	ResortRate decimal.Decimal
	POSResort  decimal.Decimal
	ERPResort  decimal.Decimal
}

// Taxable is POS net sales less non-taxable and UberEats sales, plus exempt sales.
func (t *TaxCheck) Taxable() decimal.Decimal {
	return t.POSNetSales.Sub(t.NonTaxable).Sub(t.UberEats).Add(t.Exempt)
}

// Expected is the tax the rate implies.
func (t *TaxCheck) Expected() decimal.Decimal {
	return money.Percent(t.Taxable(), t.Rate).Add(t.PromotionTax)
}

// Reported is the POS tax without the tax UberEats remits itself.
func (t *TaxCheck) Reported() decimal.Decimal {
	return t.POSTax.Sub(t.UberEatsTax)
}

func (t *TaxCheck) DiffExpectedPOS() decimal.Decimal {
	return money.Round2(t.Expected()).Sub(money.Round2(t.Reported()))
}

func (t *TaxCheck) DiffPOSERP() decimal.Decimal {
	return money.Round2(t.Reported()).Sub(money.Round2(t.ERP))
}

func (t *TaxCheck) DiffExpectedERP() decimal.Decimal {
	return money.Round2(t.Expected()).Sub(money.Round2(t.ERP))
}

// HasResort reports whether the unit also collects resort tax.
func (t *TaxCheck) HasResort() bool {
	return t.ResortRate.IsPositive()
}

// ExpectedResort is resort tax on the same taxable base.
func (t *TaxCheck) ExpectedResort() decimal.Decimal {
	return money.Percent(t.Taxable(), t.ResortRate)
}

func (t *TaxCheck) DiffResortPOS() decimal.Decimal {
	return money.Round2(t.ExpectedResort()).Sub(money.Round2(t.POSResort))
}

func (t *TaxCheck) DiffResortERP() decimal.Decimal {
	return money.Round2(t.POSResort).Sub(money.Round2(t.ERPResort))
}

// Differences counts the cross-checks off by a cent or more.
func (t *TaxCheck) Differences() int {
	diffs := []decimal.Decimal{t.DiffExpectedPOS(), t.DiffPOSERP(), t.DiffExpectedERP()}
	if t.HasResort() {
		diffs = append(diffs, t.DiffResortPOS(), t.DiffResortERP())
	}
	n := 0
	for _, d := range diffs {
		if !money.IsZero(d) {
			n++
		}
	}
	return n
}

// Report is the computation over every location with P&L data.
type Report struct {
	Statements []*Statement
	// Taxes lists each tax unit once, in location order.
	Taxes []*TaxCheck
}

// Compute applies the category rules to every location in the P&L.
func Compute(reg *mapping.Registry, in Inputs) *Report {
	locs := make([]mapping.Location, 0, len(in.Sales))
	for loc := range in.Sales {
		locs = append(locs, loc)
	}
	reg.SortLocations(locs)

	rep := &Report{}
	units := make(map[string]*TaxCheck)
	fees := reg.Fees()
	for _, loc := range locs {
		s := statement(reg, loc, *in.Sales[loc])
		s.Cleadership = money.Percent(s.Sales.NetSales.Sub(s.Sales.DeliveryFee), fees.CleadershipRate)
		if s.LeadershipOnly() {
			s.LeadershipUberEats = money.Percent(s.Sales.UberEats, fees.MidtownLeadershipRate)
		}

		unit := TaxUnit(reg, loc)
		t, ok := units[unit]
		if !ok {
			t = &TaxCheck{Unit: unit, Rate: s.Rates.TaxRate, ResortRate: s.Rates.ResortTaxRate}
			if p, ok := in.Payables[unit]; ok {
				t.ERP, t.ERPResort, t.HasERP = p.SalesTax, p.ResortTax, true
			}
			units[unit] = t
			rep.Taxes = append(rep.Taxes, t)
		}
		t.Locations = append(t.Locations, loc)
		addTax(t, s, in.POS[loc], in.Exempt[loc])
		s.Tax = t
		rep.Statements = append(rep.Statements, s)
	}
	return rep
}

func statement(reg *mapping.Registry, loc mapping.Location, sales Sales) *Statement {
	category := reg.Category(loc)
	s := &Statement{Location: loc, Category: category, Rates: reg.Rates(category), Sales: sales}

	s.Exclusions = sales.DeliveryFee
	if category == mapping.CategoryPlantation {
		s.Exclusions = s.Exclusions.Add(sales.PlantationPayable)
	}
	s.Base = sales.NetSales.Sub(s.Exclusions).Sub(sales.UberEats).Sub(sales.Ezcater)
	s.ThirdParty = sales.UberEats.Add(sales.Ezcater)
	if s.Rates.ThirdPartyDelivery {
		s.Base = s.Base.Sub(sales.DoorDash).Sub(sales.GrubHub)
		s.ThirdParty = s.ThirdParty.Add(sales.DoorDash).Add(sales.GrubHub)
	}
	if category == mapping.CategoryNewYork {
		// DoorDash discounts come off twice in New York.
		s.Base = s.Base.Sub(sales.DoorDashDiscounts).Sub(sales.DoorDashDiscounts)
	}

	s.RoyaltySales = money.Percent(s.Base, s.Rates.RoyaltyRate)
	s.RoyaltyThirdParty = money.Percent(s.ThirdParty, s.Rates.ThirdPartyRate)
	return s
}

// addTax folds one location into its tax unit. Without a POS overview the P&L net
// sales stand in for POS sales.
func addTax(t *TaxCheck, s *Statement, pos *POSTotals, exempt decimal.Decimal) {
	if pos != nil {
		t.POSNetSales = t.POSNetSales.Add(pos.NetSales)
		t.NonTaxable = t.NonTaxable.Add(pos.NonTaxable)
		t.POSTax = t.POSTax.Add(pos.Tax)
		t.POSResort = t.POSResort.Add(pos.ResortTax)
	} else {
		t.POSNetSales = t.POSNetSales.Add(s.Sales.NetSales)
	}
	t.UberEats = t.UberEats.Add(s.Sales.UberEats)
	t.UberEatsTax = t.UberEatsTax.Add(s.Sales.UberEatsTax)
	t.Exempt = t.Exempt.Add(exempt)
	if s.Category == mapping.CategoryNewYork {
		t.PromotionTax = t.PromotionTax.Add(money.Percent(s.Sales.Promotions, t.Rate))
	}
}

// Invoices builds the AR invoices of the period, each followed by its AP mirror on the
// location's books. Zero-amount invoices are not emitted.
func Invoices(reg *mapping.Registry, rep *Report, date time.Time) ([]journal.Invoice, error) {
	fees := reg.Fees()
	due := date.AddDate(0, 0, fees.DueDays)
	seq := map[string]int{}
	var out []journal.Invoice

	add := func(s *Statement, prefix, issuer, account, comment string, amount decimal.Decimal) error {
		if money.IsZero(amount) {
			return nil
		}
		seq[prefix]++
		ar := journal.Invoice{
			Type:         journal.ARInvoice,
			Location:     issuer,
			Vendor:       string(s.Location),
			Number:       journal.InvoiceNumber(prefix, date, seq[prefix]),
			Date:         date,
			GLDate:       date,
			DueDate:      due,
			PaymentTerms: fees.PaymentTerms,
			Comment:      comment,
			Details: []journal.InvoiceDetail{
				{Location: issuer, Comment: comment, Account: account, Amount: amount},
			},
		}
		ap, err := ar.Mirror(reg.ExpenseAccountFor)
		if err != nil {
			return fmt.Errorf("invoice %s: %w", ar.Number, err)
		}
		out = append(out, ar, ap)
		return nil
	}

	period := date.Format("January 2006")
	for _, s := range rep.Statements {
		if !s.LeadershipOnly() {
			if err := add(s, PrefixFranchisor, fees.Franchisor, AccountRoyalty, "Royalty "+period, s.Royalty()); err != nil {
				return nil, err
			}
		}
		if err := add(s, PrefixLeadership, fees.Leadership, AccountLeadership, "Cleadership fee "+period, s.Cleadership); err != nil {
			return nil, err
		}
		if err := add(s, PrefixLeadership, fees.Leadership, AccountLeadershipUberEats, "Leadership fee UberEats "+period, s.LeadershipUberEats); err != nil {
			return nil, err
		}
	}
	return out, nil
}
