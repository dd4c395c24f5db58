package payroll

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/sirupsen/logrus"
)

// Name is the pipeline's command name.
const Name = "payroll"

// Pipeline computes payroll and writes the ADP import batches.
type Pipeline struct {
	timeTables []*tabular.Table
	dictTables []*tabular.Table
	posTips    []*tabular.Table
	newTips    []*tabular.Table

	dict     *Dictionary
	entries  []TimeEntry
	tips     []Tip
	unknown  []Finding
	result   *Result
	batches  []Batch
	findings []Finding
}

// New returns a payroll pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) Name() string { return Name }

func (p *Pipeline) Ingest(ctx context.Context, env *pipeline.Env) error {
	var err error
	if p.timeTables, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleTimeEntries, true); err != nil {
		return err
	}
	if p.dictTables, err = tabular.LoadRole(ctx, env.Inputs, tabular.RolePayrollDictionary, true); err != nil {
		return err
	}
	if p.posTips, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleTipsPOS, false); err != nil {
		return err
	}
	if p.newTips, err = tabular.LoadRole(ctx, env.Inputs, tabular.RoleNewCompanyTips, false); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) Normalize(ctx context.Context, env *pipeline.Env) error {
	warn := func(source string) func(error) {
		return func(err error) {
			env.Log.WithError(err).Debug("skipping row")
			env.Warnings.AddErr(source, err)
			var re *reconerr.Error
			if errors.As(err, &re) && re.Kind == reconerr.KindMappingMiss {
				p.unknown = append(p.unknown, Finding{
					Class:  ClassUnknownLocation,
					Detail: fmt.Sprintf("%s: %q", source, re.Value),
				})
			}
		}
	}

	reg := env.Registry
	p.dict = ReadDictionary(reg, p.dictTables, warn("payroll dictionary"))
	p.entries = ReadTimeEntries(reg, p.timeTables, warn("time entries"))
	p.tips = append(ReadTips(reg, p.posTips, "POS", warn("POS tips")),
		ReadTips(reg, p.newTips, "New Company", warn("new company tips"))...)

	env.Log.WithFields(logrus.Fields{
		"employees": len(p.dict.Employees),
		"entries":   len(p.entries),
		"tips":      len(p.tips),
		"holidays":  len(p.dict.Holidays),
	}).Info("payroll inputs read")
	return nil
}

func (p *Pipeline) Aggregate(ctx context.Context, env *pipeline.Env) error {
	p.result = Compute(env.Registry, p.dict, p.entries, p.tips)
	var excluded []Finding
	p.batches, excluded = Batches(p.result.Pays)

	p.findings = append(append(append(p.findings, p.unknown...), p.result.Findings...), excluded...)
	for _, f := range p.findings {
		if f.Class == ClassUnknownLocation {
			continue
		}
		env.Warnings.Add(f.Class.kind(), string(f.Class), fmt.Sprintf("%s %s: %s", f.Location, f.Employee, f.Detail))
	}

	env.Log.WithFields(logrus.Fields{
		"paid":     len(p.result.Pays),
		"batches":  len(p.batches),
		"findings": len(p.findings),
		"logins":   p.result.Logins,
	}).Info("payroll computed")
	return nil
}

func (p *Pipeline) Emit(ctx context.Context, env *pipeline.Env) error {
	ts := pathutil.Timestamp(env.Now)
	dir := pathutil.ADPDir(env.Now)
	for _, b := range p.batches {
		if err := env.Out.WriteCSV(path.Join(dir, b.ID+".csv"), b.Records()); err != nil {
			return err
		}
	}

	summary, err := SummaryWorkbook(env.Registry, p.dict, p.entries, p.tips, p.result, p.batches)
	if err != nil {
		return fmt.Errorf("failed to build payroll summary: %w", err)
	}
	if err := env.Out.WriteXLSX("Payroll_Summary_"+ts+".xlsx", summary); err != nil {
		return err
	}

	comp, err := WorkersCompWorkbook(WorkersComp(env.Registry, p.result.Pays))
	if err != nil {
		return fmt.Errorf("failed to build workers comp report: %w", err)
	}
	if err := env.Out.WriteXLSX("Workers_Comp_"+ts+".xlsx", comp); err != nil {
		return err
	}

	warnings, err := WarningsWorkbook(p.findings)
	if err != nil {
		return fmt.Errorf("failed to build payroll warnings: %w", err)
	}
	return env.Out.WriteXLSX("Payroll_Warnings_"+ts+".xlsx", warnings)
}

func (p *Pipeline) Summary() string {
	rows := 0
	for _, b := range p.batches {
		rows += len(b.Rows)
	}
	return fmt.Sprintf("%d employees paid, %d ADP rows in %d batches, %d warnings",
		len(p.result.Pays), rows, len(p.batches), len(p.findings))
}

var _ pipeline.Pipeline = (*Pipeline)(nil)
