// Package output writes report files for one invocation. Everything is written into a
// staging directory first and moved into place only on Commit, so a failed or
// cancelled run leaves nothing behind.
package output

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/carrotexpress/backoffice/pkg/pathutil"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/xuri/excelize/v2"
)

// Artifact describes one emitted file.
type Artifact struct {
	// RelPath is relative to the output root.
	RelPath string
	Rows    int
	Bytes   int64
	SHA256  string
}

// Repository defines the interface for report file operations.
type Repository interface {
	// WriteCSV writes records (header included) to rel
	WriteCSV(rel string, records [][]string) error

	// WriteXLSX saves a workbook to rel
	WriteXLSX(rel string, wb *excelize.File) error

	// WriteBytes writes raw content to rel
	WriteBytes(rel string, data []byte, rows int) error

	// Artifacts lists what has been written so far, sorted by path
	Artifacts() []Artifact
}

// StagedRepository is a file system implementation of Repository. Writes to
// distinct paths may run concurrently.
type StagedRepository struct {
	pathResolver *pathutil.PathResolver
	stagingDir   string

	mu        sync.Mutex
	artifacts map[string]Artifact
	committed bool
}

// NewStagedRepository creates the staging directory for runID.
func NewStagedRepository(pathResolver *pathutil.PathResolver, runID string) (*StagedRepository, error) {
	staging := pathResolver.GetStagingDir(runID)
	if err := pathResolver.EnsureDir(staging); err != nil {
		return nil, classify(staging, err)
	}
	return &StagedRepository{
		pathResolver: pathResolver,
		stagingDir:   staging,
		artifacts:    make(map[string]Artifact),
	}, nil
}

// StagingDir returns the directory files are written to before commit.
func (r *StagedRepository) StagingDir() string {
	return r.stagingDir
}

// WriteCSV writes records to rel inside the staging directory.
func (r *StagedRepository) WriteCSV(rel string, records [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to encode %s: %w", rel, err)
	}

	rows := len(records) - 1
	if rows < 0 {
		rows = 0
	}
	return r.WriteBytes(rel, buf.Bytes(), rows)
}

// WriteXLSX saves the workbook to rel inside the staging directory.
func (r *StagedRepository) WriteXLSX(rel string, wb *excelize.File) error {
	buf, err := wb.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("failed to render workbook %s: %w", rel, err)
	}

	rows := 0
	for _, sheet := range wb.GetSheetList() {
		sheetRows, err := wb.GetRows(sheet)
		if err == nil && len(sheetRows) > 1 {
			rows += len(sheetRows) - 1
		}
	}
	return r.WriteBytes(rel, buf.Bytes(), rows)
}

// WriteBytes writes data to rel inside the staging directory.
func (r *StagedRepository) WriteBytes(rel string, data []byte, rows int) error {
	if r.isCommitted() {
		return fmt.Errorf("repository already committed")
	}
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("output path %q escapes the output directory", rel)
	}

	filePath := filepath.Join(r.stagingDir, rel)
	if err := r.pathResolver.EnsureParentDir(filePath); err != nil {
		return classify(filePath, err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return classify(filePath, err)
	}

	r.record(rel, data, rows)
	return nil
}

func (r *StagedRepository) record(rel string, data []byte, rows int) {
	sum := sha256.Sum256(data)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[rel] = Artifact{
		RelPath: filepath.ToSlash(rel),
		Rows:    rows,
		Bytes:   int64(len(data)),
		SHA256:  hex.EncodeToString(sum[:]),
	}
}

func (r *StagedRepository) isCommitted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

// Adopt registers a file some other writer (e.g. SQLite) created inside the staging
// directory so it is committed with the rest.
func (r *StagedRepository) Adopt(rel string, rows int) error {
	data, err := os.ReadFile(filepath.Join(r.stagingDir, rel))
	if err != nil {
		return fmt.Errorf("failed to read staged file %s: %w", rel, err)
	}
	r.record(rel, data, rows)
	return nil
}

// Artifacts lists what has been written so far, sorted by path.
func (r *StagedRepository) Artifacts() []Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Artifact, 0, len(r.artifacts))
	for _, a := range r.artifacts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// Commit moves every staged file into the output root and removes the staging
// directory. Destinations are probed first so a file held open elsewhere fails the
// commit before anything moves.
func (r *StagedRepository) Commit() ([]Artifact, error) {
	artifacts := r.Artifacts()
	root := r.pathResolver.GetOutputRoot()

	for _, a := range artifacts {
		dest := filepath.Join(root, filepath.FromSlash(a.RelPath))
		if err := probeWritable(dest); err != nil {
			return nil, err
		}
	}

	for _, a := range artifacts {
		rel := filepath.FromSlash(a.RelPath)
		src := filepath.Join(r.stagingDir, rel)
		dest := filepath.Join(root, rel)
		if err := r.pathResolver.EnsureParentDir(dest); err != nil {
			return nil, classify(dest, err)
		}
		if err := os.Rename(src, dest); err != nil {
			return nil, classify(dest, err)
		}
	}

	r.mu.Lock()
	r.committed = true
	r.mu.Unlock()
	if err := os.RemoveAll(r.stagingDir); err != nil {
		return artifacts, fmt.Errorf("failed to remove staging directory: %w", err)
	}
	return artifacts, nil
}

// Abort discards everything staged. It is safe to call after Commit.
func (r *StagedRepository) Abort() error {
	if err := os.RemoveAll(r.stagingDir); err != nil {
		return fmt.Errorf("failed to remove staging directory: %w", err)
	}
	return nil
}

// probeWritable opens an existing destination for writing without truncating it.
func probeWritable(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return classify(path, err)
	}
	return f.Close()
}

// classify turns sharing and permission failures into FileLocked.
func classify(path string, err error) error {
	if IsLockError(err) {
		return reconerr.FileLocked(filepath.Base(path), err)
	}
	return fmt.Errorf("failed to write %s: %w", path, err)
}

// IsLockError reports whether err is the OS refusing a write because another
// program holds the file.
func IsLockError(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY)
}
