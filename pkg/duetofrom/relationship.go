// Package duetofrom matches inter-entity "Due To/From" balances from a GL export,
// synthesizes the bank transfers and journal entries that settle the matches, and
// details the transactions behind every mismatch.
package duetofrom

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
)

// ParentPrefix marks the GL rows this package reads.
const ParentPrefix = "Due To/From "

// Txn is one GL line of a relationship.
type Txn struct {
	Date    time.Time
	Number  string
	Company string
	Comment string
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// Net is debit minus credit.
func (t Txn) Net() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

// Relationship is one holder's balance against one counterparty.
type Relationship struct {
	ID int
	// Holder is the canonical location when the GL spelling resolved, the raw text otherwise.
	Holder       string
	Location     mapping.Location
	Counterparty string
	Ending       decimal.Decimal
	Txns         []Txn

	key   string
	cpKey string
}

// Beginning is the balance before this period's transactions.
func (r *Relationship) Beginning() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Txns {
		total = total.Add(t.Net())
	}
	return r.Ending.Sub(total)
}

var stripWords = map[string]bool{"CARROT": true, "LLC": true, "OPERATING": true}

var punctuation = strings.NewReplacer("(", " ", ")", " ", "-", " ")

// Standardize upper-cases a name, drops CARROT, LLC and OPERATING, parentheses and
// hyphens, and collapses whitespace.
func Standardize(name string) string {
	words := strings.Fields(punctuation.Replace(strings.ToUpper(name)))
	out := words[:0]
	for _, w := range words {
		if !stripWords[w] {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

type groupKey struct {
	holder string
	parent string
}

// Build groups the in-scope GL rows by (location, parent account). Rows that fail to
// parse are skipped and reported through warn; so are relationships whose ending
// balance is unreadable.
func Build(reg *mapping.Registry, tables []*tabular.Table, warn func(error)) []*Relationship {
	groups := make(map[groupKey]*Relationship)
	endings := make(map[groupKey]tabular.Row)

	for _, t := range tables {
		for _, row := range t.Rows {
			parent := row.Get("Parent Account")
			if !strings.HasPrefix(parent, ParentPrefix) {
				continue
			}
			rawHolder := row.Get("Location")
			holder, loc := rawHolder, mapping.Location("")
			if resolved, ok := reg.ResolveLocation(rawHolder); ok {
				holder, loc = string(resolved), resolved
			} else if rawHolder != "" {
				warn(fmt.Errorf("%w: holder location of %s line %d", reconerr.MappingMiss(rawHolder), row.File(), row.Line))
			}

			key := groupKey{holder: holder, parent: parent}
			rel, ok := groups[key]
			if !ok {
				rel = &Relationship{
					Holder:       holder,
					Location:     loc,
					Counterparty: strings.TrimSpace(strings.TrimPrefix(parent, ParentPrefix)),
				}
				groups[key] = rel
			}

			if row.Get("Ending Balance") != "" {
				endings[key] = row
			}

			txn, err := parseTxn(row)
			if err != nil {
				warn(err)
				continue
			}
			rel.Txns = append(rel.Txns, txn)
		}
	}

	rels := make([]*Relationship, 0, len(groups))
	for key, rel := range groups {
		row, ok := endings[key]
		if !ok {
			// No balance column: the period movement is the balance.
			rel.Ending = money.Sum(nets(rel.Txns)...)
		} else {
			end, err := row.Money("Ending Balance")
			if err != nil {
				warn(fmt.Errorf("skipping %s / %s: %w", rel.Holder, rel.Counterparty, err))
				continue
			}
			rel.Ending = end
		}
		rels = append(rels, rel)
	}

	sortRelationships(reg, rels)
	for i, rel := range rels {
		rel.ID = i
		rel.key = Standardize(rel.Holder)
		rel.cpKey = Standardize(canonicalCounterparty(reg, rel.Counterparty))
		sort.SliceStable(rel.Txns, func(a, b int) bool {
			if !rel.Txns[a].Date.Equal(rel.Txns[b].Date) {
				return rel.Txns[a].Date.Before(rel.Txns[b].Date)
			}
			return rel.Txns[a].Number < rel.Txns[b].Number
		})
	}
	return rels
}

func parseTxn(row tabular.Row) (Txn, error) {
	date, _, err := row.Date("Date")
	if err != nil {
		return Txn{}, err
	}
	debit, err := row.Money("Debit")
	if err != nil {
		return Txn{}, err
	}
	credit, err := row.Money("Credit")
	if err != nil {
		return Txn{}, err
	}
	return Txn{
		Date:    date,
		Number:  row.Get("Transaction Number"),
		Company: row.Get("Company"),
		Comment: row.Get("Comment"),
		Debit:   debit,
		Credit:  credit,
	}, nil
}

func nets(txns []Txn) []decimal.Decimal {
	out := make([]decimal.Decimal, len(txns))
	for i, t := range txns {
		out[i] = t.Net()
	}
	return out
}

// canonicalCounterparty prefers the registry's display name so export spellings like
// "Ft Lauderdale" still pair with the holder "Fort Lauderdale".
func canonicalCounterparty(reg *mapping.Registry, raw string) string {
	if loc, ok := reg.ResolveLocation(raw); ok {
		return string(loc)
	}
	return raw
}

func sortRelationships(reg *mapping.Registry, rels []*Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		ai, bi := reg.SortIndex(a.Location), reg.SortIndex(b.Location)
		if ai != bi {
			return ai < bi
		}
		if a.Holder != b.Holder {
			return a.Holder < b.Holder
		}
		return a.Counterparty < b.Counterparty
	})
}

// Resolves reports whether a counterparty names a known location or legal entity.
func Resolves(reg *mapping.Registry, counterparty string) bool {
	if _, ok := reg.ResolveLocation(counterparty); ok {
		return true
	}
	_, ok := reg.ResolveEntity(counterparty)
	return ok
}

// LatestDate is the last transaction date across rels; zero when there are none.
func LatestDate(rels []*Relationship) time.Time {
	var latest time.Time
	for _, r := range rels {
		for _, t := range r.Txns {
			if t.Date.After(latest) {
				latest = t.Date
			}
		}
	}
	return latest
}
