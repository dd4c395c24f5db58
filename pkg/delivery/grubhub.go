package delivery

import (
	"context"
	"strings"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// GrubHub constants.
const (
	GrubHubName   = "grubhub"
	GrubHubPrefix = "GH"
	GrubHubAR     = "12120 - A/R GrubHub"

	// GrubHubRows is the standard daily entry; Bryant Park's has GrubHubFacilitatorRows.
	GrubHubRows            = 19
	GrubHubFacilitatorRows = 18
	TipAdjustmentRows      = 5
)

// FacilitatorLocation is the store whose GrubHub tax is collected and remitted by the
// marketplace: its sales rows carry Subtotal+Tax and the delivery fee is split out.
const FacilitatorLocation mapping.Location = "Bryant Park"

// GrubHubDeposit anchors the order on the latest Tuesday on or before it and pays the
// Friday ten days later. A Tuesday that closes its month is paid that Friday, and a
// Wednesday that opens the next month starts the new cycle, paid the Friday of the
// following week.
func GrubHubDeposit(order time.Time) time.Time {
	day := tabular.Day(order)
	switch {
	case day.Weekday() == time.Tuesday && day.AddDate(0, 0, 1).Day() == 1:
		return day.AddDate(0, 0, 3)
	case day.Weekday() == time.Wednesday && day.Day() == 1:
		return day.AddDate(0, 0, 9)
	}
	sinceTuesday := (int(day.Weekday()) - int(time.Tuesday) + 7) % 7
	return day.AddDate(0, 0, 10-sinceTuesday)
}

// fulfillment splits GrubHub amounts between Pick-Up and Self Delivery.
type fulfillment struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Tip         decimal.Decimal
	Promotion   decimal.Decimal
	Commission  decimal.Decimal
	Processing  decimal.Decimal
	DeliveryFee decimal.Decimal
	DeliveryCom decimal.Decimal
}

// GrubHubDay is one location's GrubHub activity for an order date. Charges keep the
// export's sign (negative).
type GrubHubDay struct {
	Location mapping.Location
	Suffix   string
	Date     time.Time

	Pickup      fulfillment
	Delivery    fulfillment
	Adjustments decimal.Decimal
	NetPayout   decimal.Decimal
	POSTax      decimal.Decimal
}

// Tax is the platform's tax across fulfillments.
func (d *GrubHubDay) Tax() decimal.Decimal {
	return d.Pickup.Tax.Add(d.Delivery.Tax)
}

// Entry renders the nineteen-row entry, or the eighteen-row facilitator layout for
// Bryant Park. The last row balances it on A/R.
func (d *GrubHubDay) Entry() *journal.Entry {
	e := journal.NewEntry(journal.Number(GrubHubPrefix, d.Date, d.Suffix, CounterDaily), d.Date, string(d.Location), "GrubHub sales")
	pu, dl := d.Pickup, d.Delivery
	taxGap := d.POSTax.Sub(d.Tax())

	e.Post(GrubHubAR, journal.Debit, d.NetPayout, "Net Payout")
	e.Post(AccountCommissionPU, journal.Debit, pu.Commission.Neg(), "Commission - Pick-Up")
	e.Post(AccountCommissionDel, journal.Debit, dl.Commission.Neg(), "Commission - Self Delivery")
	e.Post(AccountDeliveryComm, journal.Debit, dl.DeliveryCom.Add(pu.DeliveryCom).Neg(), "Delivery commission")
	e.Post(AccountProcessingFees, journal.Debit, pu.Processing.Neg(), "Processing fee - Pick-Up")
	e.Post(AccountProcessingFees, journal.Debit, dl.Processing.Neg(), "Processing fee - Self Delivery")
	e.Post(AccountPromotions, journal.Debit, pu.Promotion.Neg(), "Merchant funded promotion - Pick-Up")
	e.Post(AccountPromotions, journal.Debit, dl.Promotion.Neg(), "Merchant funded promotion - Self Delivery")
	e.Post(AccountAdjustments, journal.Debit, d.Adjustments.Neg(), "Adjustments")

	if d.Location == FacilitatorLocation {
		e.Post(AccountFoodPickup, journal.Credit, pu.Subtotal.Add(pu.Tax), "Food sales + tax - Pick-Up")
		e.Post(AccountFoodDelivery, journal.Credit, dl.Subtotal.Add(dl.Tax), "Food sales + tax - Self Delivery")
		e.Post(AccountDeliveryFee, journal.Credit, dl.DeliveryFee.Add(pu.DeliveryFee), "Delivery fee")
		e.Post(AccountFacilitatorTax, journal.Debit, d.Tax(), "Tax remitted by GrubHub")
	} else {
		e.Post(AccountFoodPickup, journal.Credit, pu.Subtotal, "Food sales - Pick-Up")
		e.Post(AccountFoodDelivery, journal.Credit, dl.Subtotal, "Food sales - Self Delivery")
		e.Post(AccountDeliveryFee, journal.Credit, dl.DeliveryFee.Add(pu.DeliveryFee), "Delivery fee")
		e.Post(AccountSalesTax, journal.Credit, pu.Tax, "GrubHub sales tax - Pick-Up")
		e.Post(AccountSalesTax, journal.Credit, dl.Tax, "GrubHub sales tax - Self Delivery")
	}

	e.Post(AccountTipsPayable, journal.Credit, pu.Tip, "Tips - Pick-Up")
	e.Post(AccountTipsPayable, journal.Credit, dl.Tip, "Tips - Self Delivery")
	e.Post(AccountSalesTax, journal.Credit, taxGap, commentTaxReclass)
	e.Post(AccountFoodDelivery, journal.Debit, taxGap, commentTaxReclass)
	e.Balance(GrubHubAR, journal.Debit, commentBalancing)
	return e
}

// TipAdjustment moves the gap between POS tips and GrubHub tips out of tips payable
// and into sales, per fulfillment.
type TipAdjustment struct {
	Location    mapping.Location
	Suffix      string
	Date        time.Time
	PlatformPU  decimal.Decimal
	PlatformDel decimal.Decimal
	POSPickup   decimal.Decimal
	POSDelivery decimal.Decimal
}

// Needed reports whether POS and GrubHub tips differ by more than a cent.
func (t TipAdjustment) Needed() bool {
	return !money.Equal(t.PlatformPU.Add(t.PlatformDel), t.POSPickup.Add(t.POSDelivery))
}

// Entry renders the five-row tip adjustment.
func (t TipAdjustment) Entry() *journal.Entry {
	e := journal.NewEntry(journal.Number(GrubHubPrefix, t.Date, t.Suffix, CounterTipAdjust), t.Date, string(t.Location), "GrubHub tip adjustment")
	e.Post(AccountTipsPayable, journal.Debit, t.PlatformPU, "GrubHub tips - Pick-Up")
	e.Post(AccountTipsPayable, journal.Debit, t.PlatformDel, "GrubHub tips - Self Delivery")
	e.Post(AccountTipsPayable, journal.Credit, t.POSPickup.Add(t.POSDelivery), "POS tips")
	e.Post(AccountFoodPickup, journal.Debit, t.POSPickup.Sub(t.PlatformPU), "Tip difference - Pick-Up")
	e.Post(AccountFoodDelivery, journal.Debit, t.POSDelivery.Sub(t.PlatformDel), "Tip difference - Self Delivery")
	return e
}

// isOrder reports whether a GrubHub transaction type carries order amounts.
func isOrder(transactionType string) bool {
	t := strings.ToLower(strings.TrimSpace(transactionType))
	return t == "" || strings.Contains(t, "order")
}

// GrubHubDays groups transactions by location and order date.
func GrubHubDays(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) map[dayKey]*GrubHubDay {
	r := resolver{reg: reg, warn: warn}
	days := make(map[dayKey]*GrubHubDay)
	cols := []string{"Subtotal", "Tax", "Tip", "Merchant funded promotion", "Commission", "Processing fee",
		"Delivery Fee", "Delivery commission"}

	for _, t := range tables {
		for _, row := range t.Rows {
			loc, ok := r.location(row.Get("Restaurant"))
			if !ok {
				continue
			}
			date, ok := r.date(row, "Transaction date")
			if !ok {
				continue
			}
			net, ok := r.money(row, "Merchant net total")
			if !ok {
				continue
			}
			vals := make([]decimal.Decimal, len(cols))
			order := isOrder(row.Get("Transaction type"))
			if order {
				for i, c := range cols {
					if vals[i], ok = r.money(row, c); !ok {
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
				d = &GrubHubDay{Location: loc, Suffix: reg.JESuffix(loc), Date: date}
				days[k] = d
			}
			d.NetPayout = d.NetPayout.Add(net)
			if !order {
				d.Adjustments = d.Adjustments.Add(net)
				continue
			}

			f := &d.Delivery
			if isPickup(row.Get("Fulfillment type")) {
				f = &d.Pickup
			}
			f.Subtotal = f.Subtotal.Add(vals[0])
			f.Tax = f.Tax.Add(vals[1])
			f.Tip = f.Tip.Add(vals[2])
			f.Promotion = f.Promotion.Add(vals[3])
			f.Commission = f.Commission.Add(vals[4])
			f.Processing = f.Processing.Add(vals[5])
			f.DeliveryFee = f.DeliveryFee.Add(vals[6])
			f.DeliveryCom = f.DeliveryCom.Add(vals[7])
		}
	}
	return days
}

// GrubHub is the GrubHub posting pipeline.
type GrubHub struct {
	posting
	byDay map[dayKey]*GrubHubDay
	tips  int
}

// NewGrubHub returns the GrubHub pipeline.
func NewGrubHub() *GrubHub {
	return &GrubHub{posting: posting{name: GrubHubName, title: "GrubHub", role: tabular.RoleGrubHub}}
}

func (p *GrubHub) Normalize(ctx context.Context, env *pipeline.Env) error {
	p.indexPOS(env)
	p.byDay = GrubHubDays(env.Registry, p.tables, p.warn(env))
	for _, d := range p.byDay {
		d.POSTax = d.Tax()
		if p.posIdx.Loaded() {
			d.POSTax = p.posIdx.Tax(d.Location, d.Date, POSGrubHub)
		}
	}
	p.days = len(p.byDay)
	env.Log.WithField("days", p.days).Info("GrubHub days grouped")
	return nil
}

func (p *GrubHub) Aggregate(ctx context.Context, env *pipeline.Env) error {
	var templates []Template
	payouts := make(map[dayKey]decimal.Decimal)
	for _, k := range sortedKeys(env.Registry, p.byDay) {
		d := p.byDay[k]
		templates = append(templates, d)

		if p.posIdx.Loaded() {
			adj := TipAdjustment{
				Location:    d.Location,
				Suffix:      d.Suffix,
				Date:        d.Date,
				PlatformPU:  d.Pickup.Tip,
				PlatformDel: d.Delivery.Tip,
				POSPickup:   p.posIdx.Tips(d.Location, d.Date, POSGrubHub, true),
				POSDelivery: p.posIdx.Tips(d.Location, d.Date, POSGrubHub, false),
			}
			if adj.Needed() {
				templates = append(templates, adj)
				p.tips++
			}
		}

		dep := dayKey{Location: k.Location, Date: GrubHubDeposit(k.Date)}
		payouts[dep] = payouts[dep].Add(d.NetPayout)
	}
	templates = append(templates, Deposits(env.Registry, GrubHubPrefix, "GrubHub", GrubHubAR, payouts)...)
	env.Log.WithFields(logrus.Fields{"tip_adjustments": p.tips, "deposits": len(payouts)}).Info("GrubHub entries built")
	return p.build(env, templates)
}

var _ pipeline.Pipeline = (*GrubHub)(nil)
