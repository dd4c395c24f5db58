package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	stages  []string
	failAt  string
	cancel  context.CancelFunc
	emitted bool
}

func (f *fakePipeline) Name() string { return "fake" }

func (f *fakePipeline) step(name string, env *Env) error {
	f.stages = append(f.stages, name)
	env.Log.Info("running " + name)
	if f.failAt == name {
		return reconerr.MissingColumn("GL.csv", "Debit")
	}
	if f.cancel != nil && name == StageNormalize {
		f.cancel()
	}
	return nil
}

func (f *fakePipeline) Ingest(ctx context.Context, env *Env) error {
	return f.step(StageIngest, env)
}

func (f *fakePipeline) Normalize(ctx context.Context, env *Env) error {
	env.Warnings.Add(reconerr.KindMappingMiss, "GL.csv", "unknown location Orlando")
	env.Warnings.Add(reconerr.KindMappingMiss, "GL.csv", "unknown location Orlando")
	return f.step(StageNormalize, env)
}

func (f *fakePipeline) Aggregate(ctx context.Context, env *Env) error {
	return f.step(StageAggregate, env)
}

func (f *fakePipeline) Emit(ctx context.Context, env *Env) error {
	if err := env.Out.WriteCSV("report.csv", [][]string{{"h"}, {"v"}}); err != nil {
		return err
	}
	f.emitted = true
	return f.step(StageEmit, env)
}

func (f *fakePipeline) Summary() string { return "1 report" }

func newOptions(t *testing.T) (Options, string) {
	t.Helper()
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "GL_0125.csv"), []byte("a\n"), 0o644))
	return Options{
		Inputs:     []string{in},
		OutputRoot: out,
		Audit:      true,
		Now:        time.Date(2025, 2, 4, 9, 0, 0, 0, time.UTC),
		RunID:      "run-test",
	}, out
}

func TestRunCommitsOutputsAndManifest(t *testing.T) {
	opts, out := newOptions(t)
	p := &fakePipeline{}

	result, err := Run(context.Background(), p, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{StageIngest, StageNormalize, StageAggregate, StageEmit}, p.stages)
	assert.Len(t, result.Warnings, 1, "duplicate warnings collapse")
	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, "report.csv", result.Artifacts[0].RelPath)
	assert.Equal(t, "run_audit.db", result.Artifacts[1].RelPath)

	assert.FileExists(t, filepath.Join(out, "report.csv"))
	assert.FileExists(t, filepath.Join(out, "run_audit.db"))
	assert.NoDirExists(t, filepath.Join(out, ".staging-run-test"))
}

func TestRunFailureLeavesNoOutput(t *testing.T) {
	opts, out := newOptions(t)
	p := &fakePipeline{failAt: StageEmit}

	_, err := Run(context.Background(), p, opts)
	require.Error(t, err)
	assert.Equal(t, reconerr.KindMissingColumn, reconerr.KindOf(err))
	assert.True(t, p.emitted)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunObservesCancellationBetweenStages(t *testing.T) {
	opts, out := newOptions(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &fakePipeline{cancel: cancel}

	_, err := Run(ctx, p, opts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{StageIngest, StageNormalize}, p.stages)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStartPublishesProgressThenDone(t *testing.T) {
	opts, _ := newOptions(t)
	opts.Logger = NewLogger(false, false, nil)
	opts.Logger.SetOutput(&discard{})

	var messages []string
	done := Wait(Start(context.Background(), &fakePipeline{}, opts), func(p Progress) {
		messages = append(messages, p.Message)
	})

	require.True(t, done.OK)
	require.NoError(t, done.Err)
	assert.Contains(t, messages, "running ingest")
	assert.Contains(t, messages, "running emit")
	assert.Equal(t, "1 report", done.Result.Summary)
}

func TestStartReportsFailure(t *testing.T) {
	opts, _ := newOptions(t)
	done := Wait(Start(context.Background(), &fakePipeline{failAt: StageIngest}, opts), nil)

	assert.False(t, done.OK)
	assert.Nil(t, done.Result)
	assert.Error(t, done.Err)
}

func TestWarningsAddErr(t *testing.T) {
	var w Warnings
	w.AddErr("Order_1.csv", reconerr.ValueParse("Order_2.csv", "abc", errors.New("bad")))
	w.AddErr("x", errors.New("plain"))

	list := w.List()
	require.Len(t, list, 2)
	assert.Equal(t, reconerr.KindUnknown, list[0].Kind)
	assert.Equal(t, "Order_2.csv", list[1].Source)
	assert.Equal(t, 1, w.Count(reconerr.KindValueParse))
}

func TestLogErrorFields(t *testing.T) {
	logger := NewLogger(false, true, &discard{})
	hook := &captureHook{}
	logger.AddHook(hook)

	LogError(logger, "net-sales", StageIngest, nil, reconerr.Encoding("Order_1.csv"))
	require.Len(t, hook.entries, 1)
	assert.Equal(t, "Encoding", hook.entries[0].Data["kind"])
	assert.Contains(t, hook.entries[0].Data["remediation"], "UTF-8")
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }

type captureHook struct {
	entries []*logrus.Entry
}

func (h *captureHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *captureHook) Fire(e *logrus.Entry) error {
	h.entries = append(h.entries, e)
	return nil
}
