package xlsx

import (
	"testing"

	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbookSheetOrderAndCells(t *testing.T) {
	wb := New()
	summary := wb.Sheet("Summary Net Sales")
	summary.Header(LightBlue, "Location", "POS Total", "Account")
	summary.Row(Text("Brickell"), Money(money.MustParse("-12.5")), ID("0000617724"))
	wb.Sheet("Discrepancies")
	wb.Sheet("Gift-Card")

	f, err := wb.Finish()
	require.NoError(t, err)

	assert.Equal(t, []string{"Summary Net Sales", "Discrepancies", "Gift-Card"}, f.GetSheetList())

	v, err := f.GetCellValue("Summary Net Sales", "C2")
	require.NoError(t, err)
	assert.Equal(t, "0000617724", v)

	raw, err := f.GetCellValue("Summary Net Sales", "B2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "-12.50", raw)

	width, err := f.GetColWidth("Summary Net Sales", "A")
	require.NoError(t, err)
	assert.InDelta(t, 10, width, 0.01) // "Location" (8) + 2
}

func TestColumnWidthCapped(t *testing.T) {
	wb := New()
	s := wb.Sheet("Warnings")
	long := make([]byte, 120)
	for i := range long {
		long[i] = 'x'
	}
	s.Row(Text(string(long)))

	f, err := wb.Finish()
	require.NoError(t, err)
	width, err := f.GetColWidth("Warnings", "A")
	require.NoError(t, err)
	assert.InDelta(t, maxColumnWidth+2, width, 0.01)
}

func TestFormulaAndRef(t *testing.T) {
	wb := New()
	loc := wb.Sheet("South Beach")
	row := loc.Row(Text("Tax"), Money(money.MustParse("70")))
	tax := wb.Sheet("Tax")
	tax.Row(Formula("=" + loc.Ref(2, row)))

	f, err := wb.Finish()
	require.NoError(t, err)
	formula, err := f.GetCellFormula("Tax", "A1")
	require.NoError(t, err)
	assert.Equal(t, "'South Beach'!$B$1", formula)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "A-B", SheetName("A/B"))
	assert.Len(t, []rune(SheetName("Carrot Love LLC (North Beach - Aventura - Coral Gables)")), 31)
}
