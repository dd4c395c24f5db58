package aprecon

import (
	"context"
	"fmt"

	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/sirupsen/logrus"
)

// Name is the pipeline's command name.
const Name = "ap-recon"

// Pipeline reconciles ERP AP payments with the bank.
type Pipeline struct {
	apTables      []*tabular.Table
	achTables     []*tabular.Table
	balanceTables []*tabular.Table

	balances map[string]Balance
	ap       []APPayment
	ach      []ACHPayment
	report   Report
}

// New returns an AP reconciler pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) Name() string { return Name }

func (p *Pipeline) Ingest(ctx context.Context, env *pipeline.Env) error {
	var err error
	if p.apTables, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleAPReport, true); err != nil {
		return err
	}
	if p.achTables, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleACHBatch, true); err != nil {
		return err
	}
	if p.balanceTables, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleBankBalance, true); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) Normalize(ctx context.Context, env *pipeline.Env) error {
	warn := func(err error) {
		env.Log.WithError(err).Warn("skipping row")
		env.Warnings.AddErr("AP recon", err)
	}

	p.balances = make(map[string]Balance)
	for _, t := range p.balanceTables {
		b, err := ParseBalances(t)
		if err != nil {
			return err
		}
		for acct, bal := range b {
			p.balances[acct] = bal
		}
	}
	for _, t := range p.apTables {
		p.ap = append(p.ap, ParseAPReport(t, warn)...)
	}
	for _, t := range p.achTables {
		payments, err := ParseACHBatch(t, warn)
		if err != nil {
			return err
		}
		p.ach = append(p.ach, payments...)
	}

	env.Log.WithFields(logrus.Fields{
		"balances":    len(p.balances),
		"ap_payments": len(p.ap),
		"ach_lines":   len(p.ach),
	}).Info("inputs parsed")
	return nil
}

func (p *Pipeline) Aggregate(ctx context.Context, env *pipeline.Env) error {
	p.report = Reconcile(env.Registry, p.balances, p.ap, p.ach)
	for _, acct := range p.report.OnlyERP {
		env.Warnings.Add(reconerr.KindMappingMiss, acct, "bank account has ERP payments but no ACH batch lines")
	}
	for _, acct := range p.report.OnlyBank {
		env.Warnings.Add(reconerr.KindMappingMiss, acct, "bank account has ACH batch lines but no ERP payments")
	}
	for _, acct := range p.report.NoBalance {
		env.Warnings.Add(reconerr.KindMappingMiss, acct, "bank account missing from the balance export")
	}
	return nil
}

func (p *Pipeline) Emit(ctx context.Context, env *pipeline.Env) error {
	if err := env.Out.WriteCSV(pathutil.Dated("AP_Recon_Summary", env.Now, ".csv"), SummaryRecords(p.report)); err != nil {
		return err
	}
	return env.Out.WriteCSV(pathutil.Dated("AP_Recon_Discrepancies", env.Now, ".csv"), DiscrepancyRecords(p.report))
}

func (p *Pipeline) Summary() string {
	insufficient := 0
	for _, a := range p.report.Accounts {
		if a.Status == StatusInsufficient {
			insufficient++
		}
	}
	return fmt.Sprintf("%d bank accounts reconciled, %d with insufficient funds, %d vendor discrepancies",
		len(p.report.Accounts), insufficient, len(p.report.Vendors))
}

var _ pipeline.Pipeline = (*Pipeline)(nil)
