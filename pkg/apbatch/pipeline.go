package apbatch

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/carrotexpress/backoffice/pkg/xlsx"
	"github.com/sirupsen/logrus"
)

// Name is the pipeline's command name.
const Name = "ap-batch"

// Pipeline builds the ACH upload workbooks.
type Pipeline struct {
	// Originator enables one NACHA file per workbook when set.
	Originator *Originator

	tables     []*tabular.Table
	payments   []Payment
	unresolved []string
	books      []*Workbook
	achFiles   int
}

// New returns an AP batch pipeline; originator may be nil.
func New(originator *Originator) *Pipeline {
	return &Pipeline{Originator: originator}
}

func (p *Pipeline) Name() string { return Name }

func (p *Pipeline) Ingest(ctx context.Context, env *pipeline.Env) error {
	tables, err := tabular.LoadRole(ctx, env.Inputs, tabular.RoleAPPaymentRun, true)
	if err != nil {
		return err
	}
	p.tables = tables
	return nil
}

func (p *Pipeline) Normalize(ctx context.Context, env *pipeline.Env) error {
	p.payments, p.unresolved = Normalize(env.Registry, p.tables, func(err error) {
		env.Log.WithError(err).Warn("payment row")
		env.Warnings.AddErr("payment run", err)
	})
	return nil
}

func (p *Pipeline) Aggregate(ctx context.Context, env *pipeline.Env) error {
	p.books = Group(env.Registry, p.payments)
	for _, v := range p.unresolved {
		env.Warnings.Add(reconerr.KindMappingMiss, "vendors", v)
	}
	env.Log.WithFields(logrus.Fields{
		"payments":   len(p.payments),
		"workbooks":  len(p.books),
		"unresolved": len(p.unresolved),
	}).Info("payments grouped")
	return nil
}

func (p *Pipeline) Emit(ctx context.Context, env *pipeline.Env) error {
	dir := pathutil.ACHBDir(env.Now)
	effective := env.Now.AddDate(0, 0, 1)

	for _, wb := range p.books {
		base := FileBase(wb, env.Now)
		f, err := Render(wb).Finish()
		if err != nil {
			return fmt.Errorf("failed to build %s: %w", base, err)
		}
		if err := env.Out.WriteXLSX(path.Join(dir, base+".xlsx"), f); err != nil {
			return err
		}

		if p.Originator == nil {
			continue
		}
		data, entries, skipped, err := NACHA(*p.Originator, wb, env.Now, effective)
		if err != nil {
			return err
		}
		if skipped > 0 {
			env.Log.WithFields(logrus.Fields{"workbook": wb.Name, "skipped": skipped}).Warn("unresolved vendors left out of ACH file")
		}
		if data == nil {
			continue
		}
		if err := env.Out.WriteBytes(path.Join(dir, base+".ach"), data, entries); err != nil {
			return err
		}
		p.achFiles++
	}
	return nil
}

func (p *Pipeline) Summary() string {
	s := fmt.Sprintf("%d payments in %d workbook(s)", len(p.payments), len(p.books))
	if p.Originator != nil {
		s += fmt.Sprintf(", %d ACH file(s)", p.achFiles)
	}
	if len(p.unresolved) > 0 {
		s += fmt.Sprintf("; %d unresolved vendor(s)", len(p.unresolved))
	}
	return s
}

// FileBase names a workbook: the family's fixed name, or "<Location> ACHB <mm-dd-YYYY>".
func FileBase(wb *Workbook, now time.Time) string {
	if wb.Grouped {
		return wb.Name
	}
	return wb.Name + " " + pathutil.ACHBDir(now)
}

// Render lays out one workbook; account and routing numbers are text cells.
func Render(wb *Workbook) *xlsx.Workbook {
	book := xlsx.New()
	sheet := book.Sheet("ACHB")
	sheet.Header(xlsx.LightBlue, Columns...)
	for _, pay := range wb.Payments {
		sheet.Row(
			xlsx.Text(SECCode),
			xlsx.ID(pay.BankAccount),
			xlsx.Text(string(pay.Entity)),
			xlsx.Text(pay.Vendor),
			xlsx.ID(pay.Account),
			xlsx.ID(pay.Routing),
			xlsx.Text(pay.InvDate),
			xlsx.ID(pay.Invoice),
			xlsx.Text(pay.PayDate),
			xlsx.Text(pay.LocationName()),
			xlsx.Money(pay.Amount),
		)
	}
	return book
}

var _ pipeline.Pipeline = (*Pipeline)(nil)
