package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// UberEats constants.
const (
	UberEatsName   = "ubereats"
	UberEatsPrefix = "UE"
	UberEatsAR     = "12130 - A/R UberEats"
)

// UberEatsClass is the bucket an UberEats account line posts to.
type UberEatsClass int

const (
	UberEatsPickup UberEatsClass = iota
	UberEatsDelivery
	UberEatsRefund
	UberEatsDiscount
	UberEatsTax
)

var uberEatsAccounts = []struct {
	match string
	class UberEatsClass
}{
	{"ue pickup & takeout", UberEatsPickup},
	{"ue delivery", UberEatsDelivery},
	{"ubereats discount", UberEatsDiscount},
	{"refunds", UberEatsRefund},
	{"sales tax payable", UberEatsTax},
}

// ClassifyUberEats buckets an export account name by substring.
func ClassifyUberEats(account string) (UberEatsClass, bool) {
	a := strings.ToLower(strings.Join(strings.Fields(account), " "))
	for _, m := range uberEatsAccounts {
		if strings.Contains(a, m.match) {
			return m.class, true
		}
	}
	return 0, false
}

// UberEatsDay is one location's UberEats lines for an order date.
type UberEatsDay struct {
	Location mapping.Location
	Suffix   string
	Date     time.Time
	Amounts  [5]decimal.Decimal
}

// Entry renders the five classified rows plus the balancing A/R line.
func (d *UberEatsDay) Entry() *journal.Entry {
	e := journal.NewEntry(journal.Number(UberEatsPrefix, d.Date, d.Suffix, CounterDaily), d.Date, string(d.Location), "UberEats sales")
	e.Post(AccountFoodPickup, journal.Credit, d.Amounts[UberEatsPickup], "UE Pickup & Takeout")
	e.Post(AccountFoodDelivery, journal.Credit, d.Amounts[UberEatsDelivery], "UE Delivery")
	e.Post(AccountRefunds, journal.Debit, d.Amounts[UberEatsRefund].Neg(), "Refunds")
	e.Post(AccountDiscounts, journal.Debit, d.Amounts[UberEatsDiscount].Neg(), "UberEats Discount")
	e.Post(AccountSalesTax, journal.Credit, d.Amounts[UberEatsTax], "Sales Tax Payable")
	e.Balance(UberEatsAR, journal.Debit, "Net Payout")
	return e
}

// UberEats is the UberEats posting pipeline. The export is already at journal-line
// level, so lines are only classified and summed.
type UberEats struct {
	posting
	byDay   map[dayKey]*UberEatsDay
	payouts map[dayKey]decimal.Decimal
}

// NewUberEats returns the UberEats pipeline.
func NewUberEats() *UberEats {
	return &UberEats{posting: posting{name: UberEatsName, title: "UberEats", role: tabular.RoleUberEats}}
}

func (p *UberEats) Normalize(ctx context.Context, env *pipeline.Env) error {
	warn := p.warn(env)
	r := resolver{reg: env.Registry, warn: warn}
	p.byDay = make(map[dayKey]*UberEatsDay)
	p.payouts = make(map[dayKey]decimal.Decimal)
	unpaid := 0

	for _, t := range p.tables {
		for _, row := range t.Rows {
			class, ok := ClassifyUberEats(row.Get("Account"))
			if !ok {
				warn(reconerr.MappingMiss(row.Get("Account")))
				continue
			}
			loc, ok := r.location(row.Get("Location"))
			if !ok {
				continue
			}
			date, ok := r.date(row, "Order Date")
			if !ok {
				continue
			}
			amount, ok := r.money(row, "Amount")
			if !ok {
				continue
			}

			k := dayKey{Location: loc, Date: date}
			d, exists := p.byDay[k]
			if !exists {
				d = &UberEatsDay{Location: loc, Suffix: env.Registry.JESuffix(loc), Date: date}
				p.byDay[k] = d
			}
			d.Amounts[class] = d.Amounts[class].Add(amount)

			payout, has, err := row.Date("Payout Date")
			if err != nil || !has {
				unpaid++
				continue
			}
			dep := dayKey{Location: loc, Date: tabular.Day(payout)}
			p.payouts[dep] = p.payouts[dep].Add(amount)
		}
	}
	p.days = len(p.byDay)
	if unpaid > 0 {
		env.Warnings.Add(reconerr.KindValueParse, p.title, fmt.Sprintf("%d line(s) without a payout date left out of deposits", unpaid))
	}
	env.Log.WithFields(logrus.Fields{"days": p.days, "deposits": len(p.payouts)}).Info("UberEats lines classified")
	return nil
}

func (p *UberEats) Aggregate(ctx context.Context, env *pipeline.Env) error {
	var templates []Template
	for _, k := range sortedKeys(env.Registry, p.byDay) {
		templates = append(templates, p.byDay[k])
	}
	templates = append(templates, Deposits(env.Registry, UberEatsPrefix, "UberEats", UberEatsAR, p.payouts)...)
	return p.build(env, templates)
}

var _ pipeline.Pipeline = (*UberEats)(nil)
