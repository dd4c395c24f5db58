package duetofrom

import (
	"sort"
	"strings"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/shopspring/decimal"
)

// Pair is a holder's relationship together with its reciprocal side. For the grouped
// family, Others holds every member's relationship back to the holder.
type Pair struct {
	Holder  *Relationship
	Others  []*Relationship
	Grouped bool
}

// Difference is the holder's balance plus the reciprocal balances; zero when consistent.
func (p Pair) Difference() decimal.Decimal {
	total := p.Holder.Ending
	for _, o := range p.Others {
		total = total.Add(o.Ending)
	}
	return total
}

// Matched reports whether the two sides cancel to the cent.
func (p Pair) Matched() bool {
	return money.IsZero(p.Difference())
}

// OtherBalance is the sum of the reciprocal balances.
func (p Pair) OtherBalance() decimal.Decimal {
	total := decimal.Zero
	for _, o := range p.Others {
		total = total.Add(o.Ending)
	}
	return total
}

// OtherName names the reciprocal side ("Dadeland", or "Carrot Love LLC (Aventura, North Beach)").
func (p Pair) OtherName() string {
	if !p.Grouped {
		return p.Others[0].Holder
	}
	names := make([]string, len(p.Others))
	for i, o := range p.Others {
		names[i] = o.Holder
	}
	return p.Holder.Counterparty + " (" + strings.Join(names, ", ") + ")"
}

// Label is used as the pair identifier in reports.
func (p Pair) Label() string {
	return p.Holder.Holder + " <-> " + p.OtherName()
}

// Result is the outcome of matching.
type Result struct {
	Matches    []Pair
	Mismatches []Pair
	Unpaired   []*Relationship
}

// Match pairs reciprocal relationships. Relationships naming the grouped family are
// paired first, each against every grouped member's relationship back to it; the
// rest pair one to one. Each relationship is used at most once and iteration follows
// the order of rels, which Build sorts.
func Match(reg *mapping.Registry, rels []*Relationship) Result {
	byHolder := make(map[string][]int)
	for i, r := range rels {
		if r.key != "" {
			byHolder[r.key] = append(byHolder[r.key], i)
		}
	}
	holderKeys := make([]string, 0, len(byHolder))
	for k := range byHolder {
		holderKeys = append(holderKeys, k)
	}
	// Longest names first so "NORTH BEACH" wins over a shorter contained name.
	sort.Slice(holderKeys, func(i, j int) bool {
		if len(holderKeys[i]) != len(holderKeys[j]) {
			return len(holderKeys[i]) > len(holderKeys[j])
		}
		return holderKeys[i] < holderKeys[j]
	})

	used := make([]bool, len(rels))
	var pairs []Pair

	family := reg.GroupedFamily()
	familyKey := Standardize(string(family.LegalEntity))
	for i, r := range rels {
		if used[i] || r.key == "" || reg.IsGrouped(r.Location) || !namesFamily(reg, r.Counterparty, familyKey) {
			continue
		}
		var members []*Relationship
		var memberIDs []int
		for _, loc := range family.Locations {
			for _, id := range byHolder[Standardize(string(loc))] {
				m := rels[id]
				if used[id] || !strings.Contains(m.cpKey, r.key) {
					continue
				}
				members = append(members, m)
				memberIDs = append(memberIDs, id)
				break
			}
		}
		if len(members) == 0 {
			continue
		}
		used[i] = true
		for _, id := range memberIDs {
			used[id] = true
		}
		pairs = append(pairs, Pair{Holder: r, Others: members, Grouped: true})
	}

	for i, r := range rels {
		if used[i] || r.key == "" || r.cpKey == "" {
			continue
		}
		if j, ok := reciprocal(rels, used, byHolder, holderKeys, i); ok {
			used[i], used[j] = true, true
			pairs = append(pairs, Pair{Holder: r, Others: []*Relationship{rels[j]}})
		}
	}

	var res Result
	for _, p := range pairs {
		if p.Matched() {
			res.Matches = append(res.Matches, p)
		} else {
			res.Mismatches = append(res.Mismatches, p)
		}
	}
	for i, r := range rels {
		if !used[i] {
			res.Unpaired = append(res.Unpaired, r)
		}
	}
	return res
}

func reciprocal(rels []*Relationship, used []bool, byHolder map[string][]int, holderKeys []string, i int) (int, bool) {
	r := rels[i]
	for _, k := range holderKeys {
		if !strings.Contains(r.cpKey, k) {
			continue
		}
		for _, j := range byHolder[k] {
			if j == i || used[j] {
				continue
			}
			if strings.Contains(rels[j].cpKey, r.key) {
				return j, true
			}
		}
	}
	return 0, false
}

func namesFamily(reg *mapping.Registry, counterparty, familyKey string) bool {
	if e, ok := reg.ResolveEntity(counterparty); ok && e == reg.GroupedFamily().LegalEntity {
		return true
	}
	return Standardize(counterparty) == familyKey
}
