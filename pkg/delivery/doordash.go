package delivery

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DoorDash constants.
const (
	DoorDashName   = "doordash"
	DoorDashPrefix = "DD"
	DoorDashAR     = "12110 - A/R DoorDash"
	// DoorDashRows is the size of the daily entry.
	DoorDashRows = 14
)

// DoorDashDeposit is the Friday of the week after the order: orders Monday through
// Sunday are paid together.
func DoorDashDeposit(order time.Time) time.Time {
	sinceMonday := (int(order.Weekday()) + 6) % 7
	return tabular.Day(order).AddDate(0, 0, 11-sinceMonday)
}

// DoorDashDay is one location's DoorDash activity for an order date. Charges keep the
// export's sign (negative).
type DoorDashDay struct {
	Location mapping.Location
	Suffix   string
	Date     time.Time

	SubtotalDelivery   decimal.Decimal
	SubtotalPickup     decimal.Decimal
	Tax                decimal.Decimal
	POSTax             decimal.Decimal
	CommissionDelivery decimal.Decimal
	CommissionPickup   decimal.Decimal
	Discounts          decimal.Decimal
	Marketing          decimal.Decimal
	ErrorCharges       decimal.Decimal
	Adjustments        decimal.Decimal
	Fees               decimal.Decimal
	NetPayout          decimal.Decimal

	// Sales is false for days that only carry FEE rows.
	Sales bool
}

// Entry renders the fourteen-row daily entry; the last row balances it on A/R.
func (d *DoorDashDay) Entry() *journal.Entry {
	e := journal.NewEntry(journal.Number(DoorDashPrefix, d.Date, d.Suffix, CounterDaily), d.Date, string(d.Location), "DoorDash sales")
	taxGap := d.POSTax.Sub(d.Tax)

	e.Post(DoorDashAR, journal.Debit, d.NetPayout, "Net Payout")
	e.Post(AccountCommissionDel, journal.Debit, d.CommissionDelivery.Neg(), "Commission - Delivery")
	e.Post(AccountCommissionPU, journal.Debit, d.CommissionPickup.Neg(), "Commission - Pickup")
	e.Post(AccountDiscounts, journal.Debit, d.Discounts.Neg(), "Customer discounts")
	e.Post(AccountMarketing, journal.Debit, d.Marketing.Neg(), "Marketing fees")
	e.Post(AccountPlatformFees, journal.Debit, d.Fees.Neg(), "DoorDash fees")
	e.Post(AccountErrorCharges, journal.Debit, d.ErrorCharges.Neg(), "Error charges")
	e.Post(AccountAdjustments, journal.Credit, d.Adjustments, "Adjustments")
	e.Post(AccountSalesTax, journal.Credit, d.Tax, "DoorDash sales tax")
	e.Post(AccountSalesTax, journal.Credit, taxGap, commentTaxReclass)
	e.Post(AccountFoodDelivery, journal.Credit, d.SubtotalDelivery, "Food sales - Delivery")
	e.Post(AccountFoodPickup, journal.Credit, d.SubtotalPickup, "Food sales - Pickup")
	e.Post(AccountFoodDelivery, journal.Debit, taxGap, commentTaxReclass)
	e.Balance(DoorDashAR, journal.Debit, commentBalancing)
	return e
}

// IsFee reports whether a transaction type is a standalone DoorDash fee.
func IsFee(transactionType string) bool {
	return strings.EqualFold(strings.TrimSpace(transactionType), "FEE")
}

// DoorDashDays groups transactions by location and order date.
func DoorDashDays(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) map[dayKey]*DoorDashDay {
	r := resolver{reg: reg, warn: warn}
	days := make(map[dayKey]*DoorDashDay)
	for _, t := range tables {
		for _, row := range t.Rows {
			loc, ok := r.location(row.Get("Store name"))
			if !ok {
				continue
			}
			date, ok := r.date(row, "Order date")
			if !ok {
				continue
			}
			net, ok := r.money(row, "Net total")
			if !ok {
				continue
			}
			fee := IsFee(row.Get("Transaction type"))
			vals := make([]decimal.Decimal, 7)
			if !fee {
				for i, col := range []string{"Subtotal", "Subtotal tax passed to merchant", "Commission",
					"Customer discounts", "Marketing fees", "Error charges", "Adjustments"} {
					if vals[i], ok = r.money(row, col); !ok {
						break
					}
				}
				if !ok {
					continue
				}
			}

			k := dayKey{Location: loc, Date: date}
			d, exists := days[k]
			if !exists {
				d = &DoorDashDay{Location: loc, Suffix: reg.JESuffix(loc), Date: date}
				days[k] = d
			}
			d.NetPayout = d.NetPayout.Add(net)
			if fee {
				d.Fees = d.Fees.Add(net)
				continue
			}
			d.Sales = true
			if isPickup(row.Get("Fulfillment type")) {
				d.SubtotalPickup = d.SubtotalPickup.Add(vals[0])
				d.CommissionPickup = d.CommissionPickup.Add(vals[2])
			} else {
				d.SubtotalDelivery = d.SubtotalDelivery.Add(vals[0])
				d.CommissionDelivery = d.CommissionDelivery.Add(vals[2])
			}
			d.Tax = d.Tax.Add(vals[1])
			d.Discounts = d.Discounts.Add(vals[3])
			d.Marketing = d.Marketing.Add(vals[4])
			d.ErrorCharges = d.ErrorCharges.Add(vals[5])
			d.Adjustments = d.Adjustments.Add(vals[6])
		}
	}
	return days
}

// ReattachFees moves each FEE-only day onto the earliest sales day of the same
// location paid on the same deposit date. A FEE-only day with no such sales day keeps
// its fees in place. It returns the days that absorbed fees.
func ReattachFees(reg *mapping.Registry, days map[dayKey]*DoorDashDay) []dayKey {
	keys := sortedKeys(reg, days)
	var moved []dayKey
	for _, k := range keys {
		d := days[k]
		if d.Sales {
			continue
		}
		var candidates []dayKey
		for _, other := range keys {
			o, ok := days[other]
			if !ok || !o.Sales || other.Location != k.Location {
				continue
			}
			if DoorDashDeposit(other.Date).Equal(DoorDashDeposit(k.Date)) {
				candidates = append(candidates, other)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Date.Before(candidates[j].Date) })
		target := days[candidates[0]]
		target.Fees = target.Fees.Add(d.Fees)
		target.NetPayout = target.NetPayout.Add(d.NetPayout)
		delete(days, k)
		moved = append(moved, candidates[0])
	}
	return moved
}

// DoorDash is the DoorDash posting pipeline.
type DoorDash struct {
	posting
	byDay map[dayKey]*DoorDashDay
}

// NewDoorDash returns the DoorDash pipeline.
func NewDoorDash() *DoorDash {
	return &DoorDash{posting: posting{name: DoorDashName, title: "DoorDash", role: tabular.RoleDoorDash}}
}

func (p *DoorDash) Normalize(ctx context.Context, env *pipeline.Env) error {
	p.indexPOS(env)
	p.byDay = DoorDashDays(env.Registry, p.tables, p.warn(env))
	moved := ReattachFees(env.Registry, p.byDay)
	for _, d := range p.byDay {
		d.POSTax = d.Tax
		if p.posIdx.Loaded() {
			d.POSTax = p.posIdx.Tax(d.Location, d.Date, POSDoorDash)
		}
	}
	p.days = len(p.byDay)
	env.Log.WithFields(logrus.Fields{"days": p.days, "fee_days_reattached": len(moved)}).Info("DoorDash days grouped")
	return nil
}

func (p *DoorDash) Aggregate(ctx context.Context, env *pipeline.Env) error {
	var templates []Template
	payouts := make(map[dayKey]decimal.Decimal)
	for _, k := range sortedKeys(env.Registry, p.byDay) {
		d := p.byDay[k]
		templates = append(templates, d)
		dep := dayKey{Location: k.Location, Date: DoorDashDeposit(k.Date)}
		payouts[dep] = payouts[dep].Add(d.NetPayout)
	}
	templates = append(templates, Deposits(env.Registry, DoorDashPrefix, "DoorDash", DoorDashAR, payouts)...)
	return p.build(env, templates)
}

var _ pipeline.Pipeline = (*DoorDash)(nil)
