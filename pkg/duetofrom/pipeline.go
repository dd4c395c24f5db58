package duetofrom

import (
	"context"
	"fmt"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/carrotexpress/backoffice/pkg/xlsx"
	"github.com/sirupsen/logrus"
)

// Name is the pipeline's command name.
const Name = "due-to-from"

// Pipeline runs the due-to/from reconciliation over ERP-GL inputs.
type Pipeline struct {
	tables      []*tabular.Table
	rels        []*Relationship
	result      Result
	settlements []Settlement
	asOf        time.Time
	batches     int
}

// New returns a due-to/from pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) Name() string { return Name }

func (p *Pipeline) Ingest(ctx context.Context, env *pipeline.Env) error {
	tables, err := tabular.LoadRole(ctx, env.Inputs, tabular.RoleERPGL, true)
	if err != nil {
		return err
	}
	p.tables = tables
	return nil
}

func (p *Pipeline) Normalize(ctx context.Context, env *pipeline.Env) error {
	p.rels = Build(env.Registry, p.tables, func(err error) {
		env.Log.WithError(err).Warn("skipping GL row")
		env.Warnings.AddErr("GL", err)
	})
	for _, r := range p.rels {
		if !Resolves(env.Registry, r.Counterparty) {
			env.Warnings.Add(reconerr.KindMappingMiss, r.Holder,
				fmt.Sprintf("counterparty %q does not resolve to a known entity", r.Counterparty))
		}
	}

	p.asOf = LatestDate(p.rels)
	if p.asOf.IsZero() {
		p.asOf = tabular.Day(env.Now)
	}
	env.Log.WithFields(logrus.Fields{"relationships": len(p.rels), "as_of": journal.FormatDate(p.asOf)}).Info("relationships built")
	return nil
}

func (p *Pipeline) Aggregate(ctx context.Context, env *pipeline.Env) error {
	p.result = Match(env.Registry, p.rels)

	settlements, err := Synthesize(env.Registry, p.result.Matches, p.asOf, func(err error) {
		env.Warnings.AddErr("transfers", err)
	})
	if err != nil {
		return err
	}
	p.settlements = settlements

	env.Log.WithFields(logrus.Fields{
		"matches":    len(p.result.Matches),
		"mismatches": len(p.result.Mismatches),
		"unpaired":   len(p.result.Unpaired),
		"transfers":  len(settlements),
	}).Info("relationships matched")
	return nil
}

func (p *Pipeline) Emit(ctx context.Context, env *pipeline.Env) error {
	entries := make([]*journal.Entry, len(p.settlements))
	transfers := make([]journal.Transfer, len(p.settlements))
	for i, s := range p.settlements {
		entries[i] = s.Entry
		transfers[i] = s.Transfer
	}

	records, err := journal.Records(entries)
	if err != nil {
		return err
	}
	if err := env.Out.WriteCSV(pathutil.Dated("DueToFrom_JE", p.asOf, ".csv"), records); err != nil {
		return err
	}

	batches := journal.BatchTransfers(transfers, journal.TransferBatchSize)
	for i, batch := range batches {
		if err := env.Out.WriteCSV(pathutil.CNBFileName(i+1, p.asOf), journal.TransferRecords(batch)); err != nil {
			return err
		}
	}
	p.batches = len(batches)

	if err := env.Out.WriteCSV(pathutil.Dated("DueToFrom_Discrepancies", p.asOf, ".csv"), DetailRecords(p.result.Mismatches)); err != nil {
		return err
	}

	if warnings := env.Warnings.List(); len(warnings) > 0 {
		rows := [][]string{{"Kind", "Source", "Message"}}
		for _, w := range warnings {
			rows = append(rows, []string{w.Kind.String(), w.Source, w.Message})
		}
		if err := env.Out.WriteCSV(pathutil.Dated("DueToFrom_Warnings", p.asOf, ".csv"), rows); err != nil {
			return err
		}
	}

	wb, err := SummaryWorkbook(p.result, p.settlements).Finish()
	if err != nil {
		return fmt.Errorf("failed to build summary workbook: %w", err)
	}
	return env.Out.WriteXLSX(pathutil.Dated("DueToFrom_Summary", p.asOf, ".xlsx"), wb)
}

func (p *Pipeline) Summary() string {
	return fmt.Sprintf("%d matches, %d mismatches, %d unpaired; %d transfers in %d CNB file(s)",
		len(p.result.Matches), len(p.result.Mismatches), len(p.result.Unpaired), len(p.settlements), p.batches)
}

// SummaryWorkbook lays out the Matches, Mismatches and Unpaired sheets.
func SummaryWorkbook(res Result, settlements []Settlement) *xlsx.Workbook {
	wb := xlsx.New()

	matches := wb.Sheet("Matches")
	matches.Header(xlsx.LightBlue, "Holder", "Counterparty", "Holder Balance", "Counterparty Balance", "Difference")
	for _, m := range res.Matches {
		matches.Row(
			xlsx.Text(m.Holder.Holder),
			xlsx.Text(m.OtherName()),
			xlsx.Money(m.Holder.Ending),
			xlsx.Money(m.OtherBalance()),
			xlsx.Money(m.Difference()),
		)
	}
	matches.Blank()
	matches.Header(xlsx.LightGreen, "JENumber", "From", "To", "From Account", "To Account", "Amount")
	for _, s := range settlements {
		matches.Row(
			xlsx.Text(s.Entry.Number),
			xlsx.Text(s.Transfer.FromName),
			xlsx.Text(s.Transfer.ToName),
			xlsx.ID(s.Transfer.FromAccount),
			xlsx.ID(s.Transfer.ToAccount),
			xlsx.Money(s.Transfer.Amount),
		)
	}

	mismatches := wb.Sheet("Mismatches")
	mismatches.Header(xlsx.LightOrange, "Holder", "Counterparty", "Holder Balance", "Counterparty Balance", "Difference")
	for _, m := range res.Mismatches {
		mismatches.BandedRow(xlsx.SuperLightRed,
			xlsx.Text(m.Holder.Holder),
			xlsx.Text(m.OtherName()),
			xlsx.Money(m.Holder.Ending),
			xlsx.Money(m.OtherBalance()),
			xlsx.Money(m.Difference().Abs()),
		)
	}

	unpaired := wb.Sheet("Unpaired")
	unpaired.Header(xlsx.Yellow, "Holder", "Counterparty", "Balance")
	for _, r := range res.Unpaired {
		if money.IsZero(r.Ending) && len(r.Txns) == 0 {
			continue
		}
		unpaired.Row(xlsx.Text(r.Holder), xlsx.Text(r.Counterparty), xlsx.Money(r.Ending))
	}
	return wb
}

var _ pipeline.Pipeline = (*Pipeline)(nil)
