// Package xlsx assembles styled report workbooks on top of excelize.
package xlsx

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Band is a named header/section fill color.
type Band string

const (
	NoBand        Band = ""
	LightBlue     Band = "DDEBF7"
	LightOrange   Band = "FCE4D6"
	LightGreen    Band = "E2EFDA"
	Yellow        Band = "FFFF00"
	SuperLightRed Band = "FFF0F0"
)

const (
	CurrencyFormat = "$#,##0.00"
	NegativeFormat = "[Red]#,##0.00"

	maxColumnWidth = 50
	textFormatID   = 49
)

// Border weight.
type Border int

const (
	NoBorder Border = iota
	Thin
	Thick
)

type kind int

const (
	kindText kind = iota
	kindMoney
	kindNumber
	kindFormula
	kindID
)

// Cell is a value plus how to render it.
type Cell struct {
	value  interface{}
	kind   kind
	Band   Band
	Bold   bool
	Border Border
}

// Text is a plain string cell.
func Text(s string) Cell { return Cell{value: s, kind: kindText} }

// ID is a text-formatted cell that keeps leading zeros (account and routing numbers).
func ID(s string) Cell { return Cell{value: s, kind: kindID} }

// Money is a currency cell rounded to cents; negatives render red.
func Money(d decimal.Decimal) Cell { return Cell{value: money.Round2(d), kind: kindMoney} }

// Number is a plain numeric cell (hours, counts).
func Number(v interface{}) Cell { return Cell{value: v, kind: kindNumber} }

// Formula is a cell computed by Excel, e.g. "='Brickell'!C12".
func Formula(f string) Cell { return Cell{value: strings.TrimPrefix(f, "="), kind: kindFormula} }

// WithBand returns c filled with b.
func (c Cell) WithBand(b Band) Cell { c.Band = b; return c }

// Strong returns c in bold.
func (c Cell) Strong() Cell { c.Bold = true; return c }

// Boxed returns c with a border.
func (c Cell) Boxed(b Border) Cell { c.Border = b; return c }

type styleKey struct {
	band     Band
	bold     bool
	border   Border
	kind     kind
	negative bool
}

// Workbook keeps sheets in creation order and caches styles.
type Workbook struct {
	f      *excelize.File
	sheets []*Sheet
	styles map[styleKey]int
	err    error
}

// Sheet writes rows top to bottom.
type Sheet struct {
	wb     *Workbook
	Name   string
	row    int
	widths map[int]int
}

// New creates an empty workbook.
func New() *Workbook {
	return &Workbook{f: excelize.NewFile(), styles: make(map[styleKey]int)}
}

// Sheet appends a sheet; sheets keep the order they are created in.
func (w *Workbook) Sheet(name string) *Sheet {
	name = SheetName(name)
	if len(w.sheets) == 0 {
		w.setErr(w.f.SetSheetName(w.f.GetSheetName(0), name))
	} else {
		_, err := w.f.NewSheet(name)
		w.setErr(err)
	}
	s := &Sheet{wb: w, Name: name, widths: make(map[int]int)}
	w.sheets = append(w.sheets, s)
	return s
}

// SheetNames lists the sheets in order.
func (w *Workbook) SheetNames() []string {
	out := make([]string, len(w.sheets))
	for i, s := range w.sheets {
		out[i] = s.Name
	}
	return out
}

// Finish applies column widths and returns the file, or the first error recorded
// while writing.
func (w *Workbook) Finish() (*excelize.File, error) {
	if w.err != nil {
		return nil, w.err
	}
	for _, s := range w.sheets {
		for col, width := range s.widths {
			name, err := excelize.ColumnNumberToName(col)
			if err != nil {
				return nil, err
			}
			if width > maxColumnWidth {
				width = maxColumnWidth
			}
			if err := w.f.SetColWidth(s.Name, name, name, float64(width+2)); err != nil {
				return nil, err
			}
		}
	}
	if len(w.sheets) > 0 {
		w.f.SetActiveSheet(0)
	}
	return w.f, nil
}

func (w *Workbook) setErr(err error) {
	if err != nil && w.err == nil {
		w.err = err
	}
}

func (w *Workbook) style(c Cell, negative bool) int {
	key := styleKey{band: c.Band, bold: c.Bold, border: c.Border, kind: c.kind, negative: negative}
	if id, ok := w.styles[key]; ok {
		return id
	}

	st := &excelize.Style{}
	if c.Band != NoBand {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{string(c.Band)}}
	}
	if c.Bold {
		st.Font = &excelize.Font{Bold: true}
	}
	if c.Border != NoBorder {
		weight := 1
		if c.Border == Thick {
			weight = 5
		}
		for _, side := range []string{"left", "top", "right", "bottom"} {
			st.Border = append(st.Border, excelize.Border{Type: side, Color: "000000", Style: weight})
		}
	}
	switch c.kind {
	case kindMoney:
		format := CurrencyFormat
		if negative {
			format = NegativeFormat
		}
		st.CustomNumFmt = &format
	case kindID:
		st.NumFmt = textFormatID
	}

	id, err := w.f.NewStyle(st)
	w.setErr(err)
	w.styles[key] = id
	return id
}

// Row writes cells at the next row and returns its 1-based number.
func (s *Sheet) Row(cells ...Cell) int {
	s.row++
	for i, c := range cells {
		s.set(i+1, s.row, c)
	}
	return s.row
}

// BandedRow writes a row where every cell without a band takes b.
func (s *Sheet) BandedRow(b Band, cells ...Cell) int {
	for i := range cells {
		if cells[i].Band == NoBand {
			cells[i].Band = b
		}
	}
	return s.Row(cells...)
}

// Header writes bold, banded, thin-bordered column titles.
func (s *Sheet) Header(b Band, titles ...string) int {
	cells := make([]Cell, len(titles))
	for i, t := range titles {
		cells[i] = Text(t).WithBand(b).Strong().Boxed(Thin)
	}
	return s.Row(cells...)
}

// Title writes a single bold banded cell.
func (s *Sheet) Title(b Band, text string) int {
	return s.Row(Text(text).WithBand(b).Strong().Boxed(Thick))
}

// Blank skips a row.
func (s *Sheet) Blank() {
	s.row++
}

// CurrentRow is the last row written.
func (s *Sheet) CurrentRow() int {
	return s.row
}

// Ref returns an absolute cross-sheet reference to a cell, e.g. 'South Beach'!$C$4.
func (s *Sheet) Ref(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row, true)
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.Name, "'", "''"), cell)
}

func (s *Sheet) set(col, row int, c Cell) {
	f := s.wb.f
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		s.wb.setErr(err)
		return
	}

	negative := false
	width := 0
	switch c.kind {
	case kindText:
		v := c.value.(string)
		s.wb.setErr(f.SetCellStr(s.Name, cell, v))
		width = utf8.RuneCountInString(v)
	case kindID:
		v := c.value.(string)
		s.wb.setErr(f.SetCellStr(s.Name, cell, v))
		width = utf8.RuneCountInString(v)
	case kindMoney:
		d := c.value.(decimal.Decimal)
		negative = d.IsNegative()
		s.wb.setErr(f.SetCellFloat(s.Name, cell, money.Float(d), 2, 64))
		width = len(money.Format(d)) + 2
	case kindNumber:
		s.wb.setErr(f.SetCellValue(s.Name, cell, c.value))
		width = len(fmt.Sprint(c.value))
	case kindFormula:
		s.wb.setErr(f.SetCellFormula(s.Name, cell, c.value.(string)))
		width = 12
	}

	if c.Band != NoBand || c.Bold || c.Border != NoBorder || c.kind == kindMoney || c.kind == kindID {
		s.wb.setErr(f.SetCellStyle(s.Name, cell, cell, s.wb.style(c, negative)))
	}
	if width > s.widths[col] {
		s.widths[col] = width
	}
}

// SheetName makes a valid worksheet name: at most 31 characters, none of []:*?/\.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, name)
	if utf8.RuneCountInString(name) > 31 {
		name = string([]rune(name)[:31])
	}
	return name
}
