package royalty

import (
	"context"
	"fmt"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/sirupsen/logrus"
)

// Name is the pipeline's command name.
const Name = "royalty"

// Pipeline computes royalties and tax cross-checks and emits invoices.
type Pipeline struct {
	pnl      []*tabular.Table
	overview []*tabular.Table
	exempt   []*tabular.Table
	gl       []*tabular.Table

	inputs   Inputs
	report   *Report
	invoices []journal.Invoice
}

// New returns a royalty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) Name() string { return Name }

func (p *Pipeline) Ingest(ctx context.Context, env *pipeline.Env) error {
	var err error
	if p.pnl, err = tabular.LoadRole(ctx, env.Inputs, tabular.RolePnL, true); err != nil {
		return err
	}
	if p.overview, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleGroupOverview, false); err != nil {
		return err
	}
	if p.exempt, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleTaxExempt, false); err != nil {
		return err
	}
	if p.gl, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleERPGL, false); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) Normalize(ctx context.Context, env *pipeline.Env) error {
	warn := func(source string) func(error) {
		return func(err error) {
			env.Log.WithError(err).Debug("skipping row")
			env.Warnings.AddErr(source, err)
		}
	}

	reg := env.Registry
	p.inputs = Inputs{
		Sales:    ReadSales(reg, p.pnl, warn("P&L")),
		POS:      ReadPOS(reg, p.overview, warn("group overview")),
		Exempt:   ReadExempt(reg, p.exempt, warn("tax exempt")),
		Payables: ReadPayables(reg, p.gl, warn("GL")),
	}
	env.Log.WithFields(logrus.Fields{
		"locations": len(p.inputs.Sales),
		"pos":       len(p.inputs.POS),
		"payables":  len(p.inputs.Payables),
	}).Info("royalty inputs read")
	return nil
}

func (p *Pipeline) Aggregate(ctx context.Context, env *pipeline.Env) error {
	p.report = Compute(env.Registry, p.inputs)
	for _, t := range p.report.Taxes {
		if n := t.Differences(); n > 0 {
			env.Log.WithFields(logrus.Fields{"unit": t.Unit, "differences": n}).Warn("sales tax does not reconcile")
		}
	}

	var err error
	p.invoices, err = Invoices(env.Registry, p.report, env.Now)
	return err
}

func (p *Pipeline) Emit(ctx context.Context, env *pipeline.Env) error {
	f, err := Workbook(env.Registry, p.report)
	if err != nil {
		return fmt.Errorf("failed to build royalty workbook: %w", err)
	}
	if err := env.Out.WriteXLSX(pathutil.Dated("Royalty", env.Now, ".xlsx"), f); err != nil {
		return err
	}
	return env.Out.WriteCSV(pathutil.Dated("AR_AP_Invoices", env.Now, ".csv"), journal.InvoiceRecords(p.invoices))
}

func (p *Pipeline) Summary() string {
	diffs := 0
	for _, t := range p.report.Taxes {
		diffs += t.Differences()
	}
	return fmt.Sprintf("%d locations, %d invoices, %d tax differences", len(p.report.Statements), len(p.invoices), diffs)
}

var _ pipeline.Pipeline = (*Pipeline)(nil)
