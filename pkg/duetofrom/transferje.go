package duetofrom

import (
	"context"
	"fmt"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
)

// TransferJEName is the command name of the transfer journal pipeline.
const TransferJEName = "transfer-je"

// TransferJE books settlement entries for transfer instructions that were prepared
// outside the matcher (CNB and Funds transfer uploads).
type TransferJE struct {
	// Date is the entry date; the run date when zero.
	Date time.Time

	tables  []*tabular.Table
	entries []*journal.Entry
	skipped int
}

// NewTransferJE returns a transfer-je pipeline.
func NewTransferJE(date time.Time) *TransferJE {
	return &TransferJE{Date: date}
}

func (p *TransferJE) Name() string { return TransferJEName }

func (p *TransferJE) Ingest(ctx context.Context, env *pipeline.Env) error {
	cnb, err := tabular.LoadRole(ctx, env.Inputs, tabular.RoleCNBTransfer, false)
	if err != nil {
		return err
	}
	funds, err := tabular.LoadRole(ctx, env.Inputs, tabular.RoleFundsTransfer, false)
	if err != nil {
		return err
	}
	p.tables = append(cnb, funds...)
	if len(p.tables) == 0 {
		return reconerr.FileNotFound(string(tabular.RoleCNBTransfer) + " or " + string(tabular.RoleFundsTransfer))
	}
	return nil
}

func (p *TransferJE) Normalize(ctx context.Context, env *pipeline.Env) error {
	if p.Date.IsZero() {
		p.Date = tabular.Day(env.Now)
	}
	return nil
}

func (p *TransferJE) Aggregate(ctx context.Context, env *pipeline.Env) error {
	seq := 0
	for _, t := range p.tables {
		for _, row := range t.Rows {
			amount, err := row.Money("Amount")
			if err != nil {
				env.Warnings.AddErr(t.Name, err)
				p.skipped++
				continue
			}
			if money.IsZero(amount) {
				continue
			}
			from, errFrom := partyForAccount(env.Registry, row.Get("From"))
			to, errTo := partyForAccount(env.Registry, row.Get("To"))
			if errFrom != nil || errTo != nil {
				for _, e := range []error{errFrom, errTo} {
					if e != nil {
						env.Warnings.AddErr(t.Name, fmt.Errorf("line %d: %w", row.Line, e))
					}
				}
				p.skipped++
				continue
			}

			seq++
			entry, err := TransferEntry(env.Registry, EntryNumber("XFR", p.Date, seq), p.Date, from, to, amount.Abs())
			if err != nil {
				return err
			}
			p.entries = append(p.entries, entry)
		}
	}
	return nil
}

func (p *TransferJE) Emit(ctx context.Context, env *pipeline.Env) error {
	records, err := journal.Records(p.entries)
	if err != nil {
		return err
	}
	return env.Out.WriteCSV(pathutil.Dated("Transfer_JE", p.Date, ".csv"), records)
}

func (p *TransferJE) Summary() string {
	return fmt.Sprintf("%d transfer entries, %d rows skipped", len(p.entries), p.skipped)
}

// partyForAccount maps a bank account back to its entity. The grouped family is
// named by its legal entity and booked against its first member.
func partyForAccount(reg *mapping.Registry, account string) (Party, error) {
	entity, ok := reg.EntityForBankAccount(account)
	if !ok {
		return Party{}, reconerr.MappingMiss("bank account " + account)
	}
	locs := reg.LocationsOf(entity)
	if len(locs) == 0 {
		return Party{}, reconerr.MappingMiss(string(entity))
	}
	name := string(locs[0])
	if len(locs) > 1 {
		name = string(entity)
	}
	return Party{Name: name, Location: locs[0], Entity: entity, Account: account}, nil
}

var _ pipeline.Pipeline = (*TransferJE)(nil)
