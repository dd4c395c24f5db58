package tabular

import (
	"strings"
	"time"

	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/shopspring/decimal"
)

// headerScanLimit bounds how far Bind looks for a header row below report titles.
const headerScanLimit = 20

// Column is a named column plus the other spellings exports use for it.
type Column struct {
	Name    string
	Aliases []string
}

// Col is shorthand for building a Column.
func Col(name string, aliases ...string) Column {
	return Column{Name: name, Aliases: aliases}
}

// Table is one decoded input file.
type Table struct {
	Name     string
	Role     Role
	Encoding string
	// Records holds every parsed line, including titles above the header.
	Records [][]string
	Header  []string
	Rows    []Row

	headerAt int
	byHeader map[string]int
	bound    map[string]int
}

// Row is one data line of a Table.
type Row struct {
	// Line is the 1-based line (or spreadsheet row) number.
	Line   int
	Values []string
	table  *Table
}

// NewTable builds a table whose header is the first non-empty record.
func NewTable(name string, role Role, records [][]string) *Table {
	t := &Table{Name: name, Role: role, Records: records}
	for i, rec := range records {
		if !isBlank(rec) {
			t.setHeader(i)
			return t
		}
	}
	t.headerAt = -1
	return t
}

func (t *Table) setHeader(i int) {
	t.headerAt = i
	t.Header = t.Records[i]
	t.byHeader = make(map[string]int, len(t.Header))
	for idx, h := range t.Header {
		key := headerKey(h)
		if _, dup := t.byHeader[key]; !dup {
			t.byHeader[key] = idx
		}
	}
	t.Rows = t.Rows[:0]
	for j := i + 1; j < len(t.Records); j++ {
		if isBlank(t.Records[j]) {
			continue
		}
		t.Rows = append(t.Rows, Row{Line: j + 1, Values: t.Records[j], table: t})
	}
}

// Index returns the position of a column by any of its spellings.
func (t *Table) Index(c Column) (int, bool) {
	if i, ok := t.bound[c.Name]; ok {
		return i, true
	}
	for _, name := range append([]string{c.Name}, c.Aliases...) {
		if i, ok := t.byHeader[headerKey(name)]; ok {
			return i, true
		}
	}
	return -1, false
}

// Has reports whether the column is present.
func (t *Table) Has(c Column) bool {
	_, ok := t.Index(c)
	return ok
}

// Bind resolves the required and optional columns. When the first non-empty line
// is a report title rather than the header, the first line carrying every required
// column is used instead. Every missing required column is listed in the error.
func (t *Table) Bind(required []Column, optional ...Column) error {
	if missing := t.missing(required); len(missing) > 0 {
		found := false
		for i := 0; i < len(t.Records) && i < headerScanLimit; i++ {
			if i == t.headerAt || isBlank(t.Records[i]) {
				continue
			}
			prev := t.headerAt
			t.setHeader(i)
			if len(t.missing(required)) == 0 {
				found = true
				break
			}
			if prev >= 0 {
				t.setHeader(prev)
			}
		}
		if !found {
			return reconerr.MissingColumn(t.Name, missing...)
		}
	}

	t.bound = make(map[string]int)
	for _, c := range append(append([]Column{}, required...), optional...) {
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if i, ok := t.byHeader[headerKey(name)]; ok {
				t.bound[c.Name] = i
				break
			}
		}
	}
	return nil
}

func (t *Table) missing(required []Column) []string {
	var out []string
	for _, c := range required {
		if t.byHeader == nil {
			out = append(out, c.Name)
			continue
		}
		found := false
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if _, ok := t.byHeader[headerKey(name)]; ok {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c.Name)
		}
	}
	return out
}

// Get returns the trimmed cell of a bound or header column; absent columns read as "".
func (r Row) Get(name string) string {
	i, ok := r.table.bound[name]
	if !ok {
		i, ok = r.table.byHeader[headerKey(name)]
	}
	if !ok || i >= len(r.Values) {
		return ""
	}
	return strings.TrimSpace(r.Values[i])
}

// Money parses a currency cell. Empty cells are zero.
func (r Row) Money(name string) (decimal.Decimal, error) {
	raw := r.Get(name)
	d, err := money.Parse(raw)
	if err != nil {
		return decimal.Zero, reconerr.ValueParse(r.table.Name, raw, err)
	}
	return d, nil
}

// Date parses a date cell. The bool is false for empty cells.
func (r Row) Date(name string) (time.Time, bool, error) {
	raw := r.Get(name)
	if raw == "" {
		return time.Time{}, false, nil
	}
	d, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, false, reconerr.ValueParse(r.table.Name, raw, err)
	}
	return d, true, nil
}

// File returns the name of the table the row came from.
func (r Row) File() string {
	return r.table.Name
}

// IsEmpty reports whether every cell is blank.
func (r Row) IsEmpty() bool {
	return isBlank(r.Values)
}

func headerKey(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
