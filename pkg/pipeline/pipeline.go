// Package pipeline runs the four-stage reconciliation pipelines: Ingest, Normalize,
// Aggregate and Emit. It owns cancellation, staged emission, warnings and the run
// manifest so the individual pipelines only implement their stages.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/carrotexpress/backoffice/pkg/audit"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/output"
	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Stage names, in execution order.
const (
	StageIngest    = "ingest"
	StageNormalize = "normalize"
	StageAggregate = "aggregate"
	StageEmit      = "emit"
)

// Pipeline is one reconciliation tool. Stages run strictly in order on one goroutine
// and keep their intermediate state on the receiver.
type Pipeline interface {
	Name() string
	Ingest(ctx context.Context, env *Env) error
	Normalize(ctx context.Context, env *Env) error
	Aggregate(ctx context.Context, env *Env) error
	Emit(ctx context.Context, env *Env) error
	// Summary is a one-line description of what was produced.
	Summary() string
}

// Env is what every stage can use.
type Env struct {
	RunID    string
	Registry *mapping.Registry
	Inputs   *tabular.InputSet
	Out      output.Repository
	Log      logrus.FieldLogger
	Warnings *Warnings
	// Now is the run time; output names derived from "today" use it.
	Now time.Time
}

// Options configures Run.
type Options struct {
	Inputs     []string
	OutputRoot string
	// Audit writes run_audit.db next to the outputs.
	Audit    bool
	Logger   *logrus.Logger
	Registry *mapping.Registry
	Now      time.Time
	RunID    string
}

// Result is what a successful run produced.
type Result struct {
	RunID     string
	Pipeline  string
	Summary   string
	Warnings  []Warning
	Artifacts []output.Artifact
}

// Execute runs the four stages, checking ctx at every boundary.
func Execute(ctx context.Context, p Pipeline, env *Env) error {
	stages := []struct {
		name string
		fn   func(context.Context, *Env) error
	}{
		{StageIngest, p.Ingest},
		{StageNormalize, p.Normalize},
		{StageAggregate, p.Aggregate},
		{StageEmit, p.Emit},
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := env.Log.WithFields(logrus.Fields{"pipeline": p.Name(), "stage": st.name})
		log.Debug("stage started")
		if err := st.fn(ctx, env); err != nil {
			LogError(env.Log, p.Name(), st.name, nil, err)
			return fmt.Errorf("%s %s: %w", p.Name(), st.name, err)
		}
		log.Debug("stage finished")
	}
	return ctx.Err()
}

// Run executes p against the inputs and commits the outputs, or leaves nothing behind.
func Run(ctx context.Context, p Pipeline, opts Options) (*Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Registry == nil {
		opts.Registry = mapping.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = runLogger(nil)
	}
	log := logger.WithField("run_id", opts.RunID)

	inputs, err := tabular.Discover(opts.Inputs)
	if err != nil {
		return nil, err
	}
	for _, ignored := range inputs.Ignored {
		log.WithField("file", filepath.Base(ignored)).Debug("ignoring file with unknown role")
	}

	auditName := ""
	if opts.Audit {
		auditName = pathutil.DefaultAuditName
	}
	resolver := pathutil.New(pathutil.Config{OutputRoot: opts.OutputRoot, AuditName: auditName})
	repo, err := output.NewStagedRepository(resolver, opts.RunID)
	if err != nil {
		return nil, err
	}
	defer repo.Abort()

	env := &Env{
		RunID:    opts.RunID,
		Registry: opts.Registry,
		Inputs:   inputs,
		Out:      repo,
		Log:      log,
		Warnings: &Warnings{},
		Now:      opts.Now,
	}

	log.WithField("pipeline", p.Name()).Info("run started")
	if err := Execute(ctx, p, env); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if auditName != "" {
		if err := writeManifest(repo, resolver, p, env, opts); err != nil {
			return nil, err
		}
	}

	artifacts, err := repo.Commit()
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     opts.RunID,
		Pipeline:  p.Name(),
		Summary:   p.Summary(),
		Warnings:  env.Warnings.List(),
		Artifacts: artifacts,
	}
	log.WithFields(logrus.Fields{
		"pipeline": p.Name(),
		"files":    len(artifacts),
		"warnings": len(result.Warnings),
	}).Info(result.Summary)
	return result, nil
}

func writeManifest(repo *output.StagedRepository, resolver *pathutil.PathResolver, p Pipeline, env *Env, opts Options) error {
	m := audit.Manifest{
		RunID:      opts.RunID,
		Pipeline:   p.Name(),
		StartedAt:  opts.Now,
		FinishedAt: time.Now(),
		OK:         true,
		Summary:    p.Summary(),
		Artifacts:  repo.Artifacts(),
	}
	for _, f := range env.Inputs.All() {
		m.Inputs = append(m.Inputs, audit.Input{Path: f.Path, Role: string(f.Role)})
	}
	for _, w := range env.Warnings.List() {
		m.Warnings = append(m.Warnings, audit.Warning{Kind: w.Kind.String(), Message: w.Message})
	}

	staged := filepath.Join(repo.StagingDir(), resolver.GetAuditName())
	if err := audit.Write(staged, m); err != nil {
		return fmt.Errorf("failed to write run manifest: %w", err)
	}
	return repo.Adopt(resolver.GetAuditName(), 0)
}
