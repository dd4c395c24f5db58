// Package inspect checks input files without running a pipeline: which role each
// file was detected as, how it decoded, whether the role's required columns are
// present and how many data rows it has.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"text/tabwriter"

	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"golang.org/x/sync/errgroup"
)

// Report describes one input file.
type Report struct {
	Path     string
	Role     tabular.Role
	Encoding string
	Rows     int
	// Missing lists required columns the file lacks.
	Missing []string
	Err     error
}

// OK reports whether the file can feed a pipeline.
func (r Report) OK() bool {
	return r.Role != "" && r.Err == nil
}

// Status is the one-word verdict shown in the table.
func (r Report) Status() string {
	switch {
	case r.Role == "":
		return "IGNORED"
	case r.Err == nil:
		return "OK"
	}
	return reconerr.KindOf(r.Err).String()
}

// Files inspects every file under paths. Directories are expanded the way pipelines
// expand them. Per-file problems are recorded in the reports; the error is only for
// paths that cannot be listed or a cancelled ctx.
func Files(ctx context.Context, paths []string) ([]Report, error) {
	set, err := tabular.Discover(paths)
	if err != nil {
		return nil, err
	}
	files := set.All()
	reports := make([]Report, len(files), len(files)+len(set.Ignored))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = check(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, path := range set.Ignored {
		reports = append(reports, Report{Path: path})
	}
	return reports, nil
}

func check(f tabular.File) Report {
	r := Report{Path: f.Path, Role: f.Role}
	t, err := tabular.Load(f)
	if err != nil {
		r.Err = err
		return r
	}
	r.Encoding = t.Encoding
	if err := t.Apply(); err != nil {
		r.Err = err
		var re *reconerr.Error
		if errors.As(err, &re) && re.Kind == reconerr.KindMissingColumn {
			r.Missing = re.Columns
		}
		return r
	}
	for _, row := range t.Rows {
		if !row.IsEmpty() {
			r.Rows++
		}
	}
	return r
}

// Print writes the reports as an aligned table followed by the remediation of each
// failed file.
func Print(w io.Writer, reports []Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tROLE\tENCODING\tROWS\tSTATUS")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", filepath.Base(r.Path), r.Role, r.Encoding, r.Rows, r.Status())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range reports {
		if r.Err == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s: %v\n  %s\n", filepath.Base(r.Path), r.Err, reconerr.Remediation(r.Err))
	}
	return nil
}
