package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/xuri/excelize/v2"
)

// File is one input file with its detected role.
type File struct {
	Path string
	Role Role
}

// Name returns the file's base name.
func (f File) Name() string {
	return filepath.Base(f.Path)
}

// InputSet groups the input files of an invocation by role.
type InputSet struct {
	byRole map[Role][]File
	// Ignored lists files whose names match no role.
	Ignored []string
}

// Discover expands directories (non-recursively) and detects each file's role.
// Files are ordered by name within a role so reruns see the same order.
func Discover(paths []string) (*InputSet, error) {
	set := &InputSet{byRole: make(map[Role][]File)}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat input %s: %w", p, err)
		}
		if !info.IsDir() {
			set.add(p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read input directory %s: %w", p, err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), "~$") || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			set.add(filepath.Join(p, e.Name()))
		}
	}
	for role := range set.byRole {
		files := set.byRole[role]
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	}
	sort.Strings(set.Ignored)
	return set, nil
}

func (s *InputSet) add(path string) {
	role, ok := DetectRole(path)
	if !ok {
		s.Ignored = append(s.Ignored, path)
		return
	}
	s.byRole[role] = append(s.byRole[role], File{Path: path, Role: role})
}

// Files returns the files of a role; nil when there are none.
func (s *InputSet) Files(role Role) []File {
	return s.byRole[role]
}

// Require returns the files of a role or a FileNotFound error.
func (s *InputSet) Require(role Role) ([]File, error) {
	files := s.byRole[role]
	if len(files) == 0 {
		return nil, reconerr.FileNotFound(string(role))
	}
	return files, nil
}

// All returns every recognized file ordered by role then path.
func (s *InputSet) All() []File {
	var out []File
	for _, role := range Roles() {
		out = append(out, s.byRole[role]...)
	}
	return out
}

// Load reads and decodes one file into a Table.
func Load(f File) (*Table, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, reconerr.FileNotFound(string(f.Role))
		}
		return nil, fmt.Errorf("failed to read %s: %w", f.Name(), err)
	}
	return Parse(f.Name(), f.Role, data)
}

// LoadAll loads every file in order, stopping early when ctx is cancelled.
func LoadAll(ctx context.Context, files []File) ([]*Table, error) {
	tables := make([]*Table, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := Load(f)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Parse decodes bytes for the given file name; the extension picks CSV or XLSX.
func Parse(name string, role Role, data []byte) (*Table, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return parseXLSX(name, role, data, "")
	}
	return parseCSV(name, role, data)
}

func parseCSV(name string, role Role, data []byte) (*Table, error) {
	text, enc, err := Decode(data)
	if err != nil {
		return nil, reconerr.Encoding(name)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, reconerr.ValueParse(name, "", fmt.Errorf("malformed CSV: %w", err))
		}
		records = append(records, rec)
	}

	t := NewTable(name, role, records)
	t.Encoding = enc
	return t, nil
}

// ParseSheet reads a named worksheet of an XLSX file; an empty sheet name reads the first one.
func ParseSheet(name string, role Role, data []byte, sheet string) (*Table, error) {
	return parseXLSX(name, role, data, sheet)
}

func parseXLSX(name string, role Role, data []byte, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, reconerr.Encoding(name)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return NewTable(name, role, nil), nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, name, err)
	}

	t := NewTable(name, role, rows)
	t.Encoding = "XLSX"
	return t, nil
}
