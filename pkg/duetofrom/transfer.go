package duetofrom

import (
	"fmt"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/shopspring/decimal"
)

// Party is one side of a transfer.
type Party struct {
	// Name is what the annotation shows: the location, or the entity when it has several.
	Name     string
	Location mapping.Location
	Entity   mapping.LegalEntity
	Account  string
}

// PartyFor resolves a relationship holder to its entity and checking account.
func PartyFor(reg *mapping.Registry, r *Relationship) (Party, error) {
	if r.Location == "" {
		return Party{}, fmt.Errorf("no transfer for %s: %w", r.Label(), reconerr.MappingMiss(r.Holder))
	}
	entity := reg.LegalEntityOf(r.Location)
	acct, ok := reg.BankAccountFor(entity, mapping.Checking)
	if !ok {
		return Party{}, fmt.Errorf("no transfer for %s: %w", r.Label(), reconerr.MappingMiss(string(entity)+" checking account"))
	}
	return Party{Name: r.Holder, Location: r.Location, Entity: entity, Account: acct}, nil
}

// Label names the relationship in messages.
func (r *Relationship) Label() string {
	return r.Holder + " / " + ParentPrefix + r.Counterparty
}

// Settlement is one synthesized transfer and its journal entry.
type Settlement struct {
	Transfer journal.Transfer
	Entry    *journal.Entry
}

// Synthesize turns matches into transfers: the side carrying the negative balance
// sends |balance| to the other. Zero balances produce nothing. For a grouped pair each
// member settles its own balance against the holder. Sides that cannot be resolved to
// a bank account are reported through warn and skipped.
func Synthesize(reg *mapping.Registry, matches []Pair, date time.Time, warn func(error)) ([]Settlement, error) {
	var out []Settlement
	seq := 0
	for _, p := range matches {
		if !p.Matched() {
			continue
		}
		var legs [][2]*Relationship
		if p.Grouped {
			for _, m := range p.Others {
				legs = append(legs, [2]*Relationship{p.Holder, m})
			}
		} else {
			legs = append(legs, [2]*Relationship{p.Holder, p.Others[0]})
		}

		for _, leg := range legs {
			// The holder side's view of the leg: for a grouped pair the member's balance
			// mirrors what the holder owes that member.
			balance := leg[1].Ending.Neg()
			if !p.Grouped {
				balance = leg[0].Ending
			}
			if money.IsZero(balance) {
				continue
			}
			a, err := PartyFor(reg, leg[0])
			if err != nil {
				warn(err)
				continue
			}
			b, err := PartyFor(reg, leg[1])
			if err != nil {
				warn(err)
				continue
			}
			from, to := a, b
			if balance.IsPositive() {
				from, to = b, a
			}

			seq++
			entry, err := TransferEntry(reg, EntryNumber("DTF", date, seq), date, from, to, balance.Abs())
			if err != nil {
				return nil, err
			}
			out = append(out, Settlement{
				Transfer: journal.Transfer{
					FromAccount: from.Account,
					ToAccount:   to.Account,
					Amount:      money.Round2(balance.Abs()),
					FromName:    from.Name,
					ToName:      to.Name,
				},
				Entry: entry,
			})
		}
	}
	return out, nil
}

// EntryNumber builds "<prefix><MMDDYYYY>-NNN".
func EntryNumber(prefix string, date time.Time, seq int) string {
	return fmt.Sprintf("%s%s-%03d", prefix, date.Format("01022006"), seq)
}

// TransferEntry is the four-row settlement entry: the sender debits its due-to/from
// account for the receiver and credits checking; the receiver credits its due-to/from
// account for the sender and debits checking.
func TransferEntry(reg *mapping.Registry, number string, date time.Time, from, to Party, amount decimal.Decimal) (*journal.Entry, error) {
	comment := from.Name + " ---> " + to.Name
	e := journal.NewEntry(number, date, string(from.Location), comment)
	e.PostAt(reg.DueToFromAccount(to.Entity), journal.Debit, amount, string(from.Location), comment)
	e.PostAt(reg.CheckingAccount(from.Entity), journal.Credit, amount, string(from.Location), comment)
	e.PostAt(reg.DueToFromAccount(from.Entity), journal.Credit, amount, string(to.Location), comment)
	e.PostAt(reg.CheckingAccount(to.Entity), journal.Debit, amount, string(to.Location), comment)
	if err := e.Check(); err != nil {
		return nil, err
	}
	return e, nil
}
