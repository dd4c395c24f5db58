package delivery

import (
	"context"
	"strings"

	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"golang.org/x/sync/errgroup"
)

// platform is one marketplace pipeline plus the export role it reads.
type platform interface {
	pipeline.Pipeline
	Role() tabular.Role
}

// All runs every platform that has an export in the input folder. Each stage runs
// the platforms concurrently; they write distinct files and share only the registry.
type All struct {
	platforms []platform
	active    []platform
}

// NewAll returns the combined pipeline over DoorDash, GrubHub and UberEats.
func NewAll() *All {
	return &All{platforms: []platform{NewDoorDash(), NewGrubHub(), NewUberEats()}}
}

// New returns the pipeline for a platform name, or "all".
func New(name string) (pipeline.Pipeline, bool) {
	switch strings.ToLower(name) {
	case DoorDashName:
		return NewDoorDash(), true
	case GrubHubName:
		return NewGrubHub(), true
	case UberEatsName:
		return NewUberEats(), true
	case "", "all":
		return NewAll(), true
	}
	return nil, false
}

func (a *All) Name() string { return "delivery" }

func (a *All) Ingest(ctx context.Context, env *pipeline.Env) error {
	a.active = a.active[:0]
	for _, p := range a.platforms {
		if len(env.Inputs.Files(p.Role())) == 0 {
			env.Log.WithField("platform", p.Name()).Info("no export found, skipping platform")
			continue
		}
		a.active = append(a.active, p)
	}
	if len(a.active) == 0 {
		return reconerr.FileNotFound(strings.Join([]string{
			string(tabular.RoleDoorDash), string(tabular.RoleGrubHub), string(tabular.RoleUberEats),
		}, " | "))
	}
	return a.each(ctx, env, func(p platform) func(context.Context, *pipeline.Env) error { return p.Ingest })
}

func (a *All) Normalize(ctx context.Context, env *pipeline.Env) error {
	return a.each(ctx, env, func(p platform) func(context.Context, *pipeline.Env) error { return p.Normalize })
}

func (a *All) Aggregate(ctx context.Context, env *pipeline.Env) error {
	return a.each(ctx, env, func(p platform) func(context.Context, *pipeline.Env) error { return p.Aggregate })
}

func (a *All) Emit(ctx context.Context, env *pipeline.Env) error {
	return a.each(ctx, env, func(p platform) func(context.Context, *pipeline.Env) error { return p.Emit })
}

func (a *All) each(ctx context.Context, env *pipeline.Env, stage func(platform) func(context.Context, *pipeline.Env) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range a.active {
		sub := *env
		sub.Log = env.Log.WithField("platform", p.Name())
		fn := stage(p)
		g.Go(func() error {
			return fn(ctx, &sub)
		})
	}
	return g.Wait()
}

func (a *All) Summary() string {
	parts := make([]string, 0, len(a.active))
	for _, p := range a.active {
		parts = append(parts, p.Summary())
	}
	return strings.Join(parts, "; ")
}

var _ pipeline.Pipeline = (*All)(nil)
