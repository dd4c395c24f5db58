// Package delivery turns third-party marketplace exports (DoorDash, GrubHub, UberEats)
// into daily sales journal entries, tip adjustments and weekly deposit entries.
package delivery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// JE number counters.
const (
	CounterDaily     = 1
	CounterTipAdjust = 2
	CounterDeposit   = 3
)

// ERP accounts shared by the platforms.
const (
	AccountSalesTax       = "23000 - Sales Tax Payable"
	AccountFacilitatorTax = "23050 - Marketplace Facilitator Tax"
	AccountTipsPayable    = "24100 - Tips Payable"
	AccountFoodPickup     = "40110 - Food Sales - 3rd Party Pickup"
	AccountFoodDelivery   = "40120 - Food Sales - 3rd Party Delivery"
	AccountDeliveryFee    = "40300 - Delivery Fee Income"
	AccountAdjustments    = "40900 - 3rd Party Adjustments"
	AccountDiscounts      = "41500 - Discounts - 3rd Party"
	AccountRefunds        = "41600 - Refunds - 3rd Party"
	AccountCommissionDel  = "61100 - 3rd Party Commission - Delivery"
	AccountCommissionPU   = "61110 - 3rd Party Commission - Pickup"
	AccountDeliveryComm   = "61120 - 3rd Party Delivery Commission"
	AccountPlatformFees   = "61200 - 3rd Party Fees"
	AccountMarketing      = "61300 - 3rd Party Marketing"
	AccountPromotions     = "61310 - 3rd Party Promotions"
	AccountProcessingFees = "61400 - 3rd Party Processing Fees"
	AccountErrorCharges   = "61500 - 3rd Party Error Charges"
)

const (
	commentTaxReclass = "POS sales tax adjustment"
	commentBalancing  = "Balancing"
	commentDeposit    = "%s deposit"
)

// Template is one journal entry layout. Every variant converts itself to the common
// row schema.
type Template interface {
	Entry() *journal.Entry
}

// dayKey groups a platform's transactions.
type dayKey struct {
	Location mapping.Location
	Date     time.Time
}

// Deposit is the two-row payout entry: checking debited, platform A/R credited.
type Deposit struct {
	Prefix   string
	Platform string
	Location mapping.Location
	Suffix   string
	Date     time.Time
	Checking string
	AR       string
	Amount   decimal.Decimal
}

func (d Deposit) Entry() *journal.Entry {
	comment := fmt.Sprintf(commentDeposit, d.Platform)
	e := journal.NewEntry(journal.Number(d.Prefix, d.Date, d.Suffix, CounterDeposit), d.Date, string(d.Location), comment)
	e.Post(d.Checking, journal.Debit, d.Amount, comment)
	e.Post(d.AR, journal.Credit, d.Amount, comment)
	return e
}

// Deposits sums payouts by location and deposit date.
func Deposits(reg *mapping.Registry, prefix, platform, ar string, payouts map[dayKey]decimal.Decimal) []Template {
	keys := sortedKeys(reg, payouts)
	out := make([]Template, 0, len(keys))
	for _, k := range keys {
		out = append(out, Deposit{
			Prefix:   prefix,
			Platform: platform,
			Location: k.Location,
			Suffix:   reg.JESuffix(k.Location),
			Date:     k.Date,
			Checking: reg.CheckingAccount(reg.LegalEntityOf(k.Location)),
			AR:       ar,
			Amount:   payouts[k],
		})
	}
	return out
}

func sortedKeys[V any](reg *mapping.Registry, m map[dayKey]V) []dayKey {
	keys := make([]dayKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortDayKeys(reg, keys)
	return keys
}

// sortDayKeys orders by report position, then date.
func sortDayKeys(reg *mapping.Registry, keys []dayKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if ai, bi := reg.SortIndex(a.Location), reg.SortIndex(b.Location); ai != bi {
			return ai < bi
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Date.Before(b.Date)
	})
}

// sortEntries orders entries by location report position, then date, then number.
func sortEntries(reg *mapping.Registry, entries []*journal.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		ai, bi := reg.SortIndex(mapping.Location(a.Location)), reg.SortIndex(mapping.Location(b.Location))
		if ai != bi {
			return ai < bi
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Number < b.Number
	})
}

// resolver maps store names and dates, reporting what it cannot read.
type resolver struct {
	reg  *mapping.Registry
	warn func(error)
}

func (r resolver) location(raw string) (mapping.Location, bool) {
	loc, ok := r.reg.ResolveLocation(raw)
	if !ok {
		r.warn(r.reg.Miss(raw))
		return "", false
	}
	return loc, !r.reg.Excluded(loc)
}

func (r resolver) date(row tabular.Row, col string) (time.Time, bool) {
	d, ok, err := row.Date(col)
	if err != nil {
		r.warn(err)
		return time.Time{}, false
	}
	if !ok {
		r.warn(reconerr.ValueParse(row.File(), "", fmt.Errorf("line %d: empty %s", row.Line, col)))
		return time.Time{}, false
	}
	return tabular.Day(d), true
}

// money reads several columns and sums them, reporting the first bad cell.
func (r resolver) money(row tabular.Row, cols ...string) (decimal.Decimal, bool) {
	total := decimal.Zero
	for _, c := range cols {
		v, err := row.Money(c)
		if err != nil {
			r.warn(err)
			return decimal.Zero, false
		}
		total = total.Add(v)
	}
	return total, true
}

func isPickup(fulfillment string) bool {
	f := strings.ToLower(fulfillment)
	return strings.Contains(f, "pick") || strings.Contains(f, "takeout") || strings.Contains(f, "take out")
}

// posKey identifies POS orders for one platform and fulfillment on one day.
type posKey struct {
	Location mapping.Location
	Date     time.Time
	Platform string
	Pickup   bool
}

// POSIndex holds POS tax and tips of marketplace orders, keyed by the dining option.
type POSIndex struct {
	tax  map[posKey]decimal.Decimal
	tips map[posKey]decimal.Decimal
	// loaded is false when no POS export was supplied.
	loaded bool
}

// Platform keywords as they appear in the POS Dining Options column.
const (
	POSDoorDash = "doordash"
	POSGrubHub  = "grubhub"
	POSUberEats = "uber"
)

// BuildPOSIndex reads POS order exports.
func BuildPOSIndex(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) *POSIndex {
	idx := &POSIndex{
		tax:    make(map[posKey]decimal.Decimal),
		tips:   make(map[posKey]decimal.Decimal),
		loaded: len(tables) > 0,
	}
	r := resolver{reg: reg, warn: warn}
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, row := range t.Rows {
			option := strings.ToLower(row.Get("Dining Options"))
			platform := ""
			for _, p := range []string{POSDoorDash, POSGrubHub, POSUberEats} {
				if strings.Contains(strings.ReplaceAll(option, " ", ""), p) {
					platform = p
					break
				}
			}
			if platform == "" {
				continue
			}
			loc, ok := r.location(row.Get("Location"))
			if !ok {
				continue
			}
			date, ok := r.date(row, "Opened")
			if !ok {
				continue
			}
			id := strings.Join([]string{string(loc), row.Get("Order Id"), row.Get("Opened")}, "|")
			if seen[id] {
				continue
			}
			seen[id] = true

			tax, ok := r.money(row, "Tax")
			if !ok {
				continue
			}
			tip, ok := r.money(row, "Tip", "Gratuity")
			if !ok {
				continue
			}
			k := posKey{Location: loc, Date: date, Platform: platform, Pickup: isPickup(option)}
			idx.tax[k] = idx.tax[k].Add(tax)
			idx.tips[k] = idx.tips[k].Add(tip)
		}
	}
	return idx
}

// Loaded reports whether any POS export was read.
func (idx *POSIndex) Loaded() bool {
	return idx != nil && idx.loaded
}

// Tax is the POS tax for a platform day across both fulfillments.
func (idx *POSIndex) Tax(loc mapping.Location, date time.Time, platform string) decimal.Decimal {
	k := posKey{Location: loc, Date: date, Platform: platform}
	pu := k
	pu.Pickup = true
	return idx.tax[k].Add(idx.tax[pu])
}

// Tips is the POS tip total for one fulfillment.
func (idx *POSIndex) Tips(loc mapping.Location, date time.Time, platform string, pickup bool) decimal.Decimal {
	return idx.tips[posKey{Location: loc, Date: date, Platform: platform, Pickup: pickup}]
}

// posting is the shared stage plumbing of the platform pipelines.
type posting struct {
	name    string
	title   string
	role    tabular.Role
	tables  []*tabular.Table
	pos     []*tabular.Table
	posIdx  *POSIndex
	entries []*journal.Entry
	latest  time.Time
	days    int
	skipped int
}

func (p *posting) Name() string { return p.name }

// Role is the platform export this pipeline reads.
func (p *posting) Role() tabular.Role { return p.role }

func (p *posting) Ingest(ctx context.Context, env *pipeline.Env) error {
	var err error
	if p.tables, err = tabular.LoadRole(ctx, env.Inputs, p.role, true); err != nil {
		return err
	}
	if p.pos, err = tabular.LoadRole(ctx, env.Inputs, tabular.RolePOSOrder, false); err != nil {
		return err
	}
	return nil
}

func (p *posting) warn(env *pipeline.Env) func(error) {
	return func(err error) {
		p.skipped++
		env.Log.WithError(err).Debug("skipping row")
		env.Warnings.AddErr(p.title, err)
	}
}

func (p *posting) indexPOS(env *pipeline.Env) {
	p.posIdx = BuildPOSIndex(env.Registry, p.pos, func(err error) {
		env.Warnings.AddErr("POS orders", err)
	})
}

// build converts templates to entries, failing on the first that does not balance.
func (p *posting) build(env *pipeline.Env, templates []Template) error {
	for _, t := range templates {
		e := t.Entry()
		if err := e.Check(); err != nil {
			env.Log.WithFields(logrus.Fields{"je": e.Number}).Error(journal.Format(e))
			return err
		}
		p.entries = append(p.entries, e)
		if e.Date.After(p.latest) {
			p.latest = e.Date
		}
	}
	sortEntries(env.Registry, p.entries)
	return nil
}

func (p *posting) Emit(ctx context.Context, env *pipeline.Env) error {
	records, err := journal.Records(p.entries)
	if err != nil {
		return err
	}
	date := p.latest
	if date.IsZero() {
		date = env.Now
	}
	return env.Out.WriteCSV(pathutil.Dated(p.title+"_JE", date, ".csv"), records)
}

func (p *posting) Summary() string {
	return fmt.Sprintf("%s: %d entries for %d location-days, %d rows skipped", p.title, len(p.entries), p.days, p.skipped)
}
