package netsales

import (
	"context"
	"fmt"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Name is the pipeline's command name.
const Name = "net-sales"

// Pipeline is the POS-vs-ERP net-sales reconciler.
type Pipeline struct {
	orders   []*tabular.Table
	gl       []*tabular.Table
	export   []*tabular.Table
	overview []*tabular.Table

	ledger    *Ledger
	summaries map[mapping.Location]decimal.Decimal
	report    Report
}

// New returns a net-sales pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) Name() string { return Name }

func (p *Pipeline) Ingest(ctx context.Context, env *pipeline.Env) error {
	var err error
	if p.orders, err = tabular.LoadRole(ctx, env.Inputs, tabular.RolePOSOrder, true); err != nil {
		return err
	}
	if p.gl, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleERPGL, true); err != nil {
		return err
	}
	if p.export, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleDailySalesSummary, true); err != nil {
		return err
	}
	if p.overview, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleGroupOverview, false); err != nil {
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

	p.ledger = NewLedger(env.Registry)
	p.ledger.AddOrders(p.orders, warn("orders"))
	p.ledger.AddGL(p.gl, warn("GL"))
	p.ledger.AddExport(p.export, warn("sales summary"))
	p.summaries = Overview(env.Registry, p.overview, warn("group overview"))

	env.Log.WithFields(logrus.Fields{
		"location_days": p.ledger.Len(),
		"overview":      len(p.summaries),
	}).Info("sales normalized")
	return nil
}

func (p *Pipeline) Aggregate(ctx context.Context, env *pipeline.Env) error {
	p.report = Reconcile(env.Registry, p.ledger, p.summaries)
	return nil
}

func (p *Pipeline) Emit(ctx context.Context, env *pipeline.Env) error {
	date := p.report.LatestDate()
	if date.IsZero() {
		date = env.Now
	}
	f, err := Workbook(p.report).Finish()
	if err != nil {
		return fmt.Errorf("failed to build net sales workbook: %w", err)
	}
	return env.Out.WriteXLSX(pathutil.Dated("Net_Sales_Recon", date, ".xlsx"), f)
}

func (p *Pipeline) Summary() string {
	return fmt.Sprintf("%d locations, %d discrepancies, %d gift-card days",
		len(p.report.Locations), len(p.report.Discrepancies), len(p.report.GiftCards))
}

var _ pipeline.Pipeline = (*Pipeline)(nil)
