package netsales

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var inputs = map[string]string{
	"Order_A.csv": "Location,Order Id,Opened,Dining Options,Amount\n" +
		"Brickell,1001,02/01/2025 11:30,Take Out,6000.00\n" +
		"Brickell,1002,02/01/2025 12:15,Dine In,4000.00\n" +
		"Plantation,2001,02/01/2025 12:00,Dine In,5000.00\n" +
		"Commissary,9001,02/01/2025 08:00,Dine In,700.00\n",
	"Order_B.csv": "Location,Order Id,Opened,Dining Options,Amount\n" +
		"Brickell,1002,02/01/2025 12:15,Dine In,4000.00\n" +
		"Dadeland,3001,02/02/2025 10:00,Dine In,1500.00\n" +
		"Orlando,4001,02/02/2025 10:00,Dine In,20.00\n",
	"GL_0201.csv": "Location,Parent Account,Account,Transaction Number,Date,Debit,Credit\n" +
		"Brickell,Liabilities,21200 - Payable Donation,JE-1,02/01/2025,0,50.00\n" +
		"Brickell,Liabilities,25050 - Gift Cards Outstanding,NJ-100,02/01/2025,0,25.00\n" +
		"Brickell,Liabilities,25050 - Gift Cards Outstanding,FL-100,02/01/2025,0,40.00\n" +
		"Brickell,Expenses,73405 - Gift Cards,NJ-101,02/01/2025,10.00,0\n" +
		"Brickell,Revenue,40000 - Food Sales,NJ-102,02/01/2025,0,9999.00\n" +
		"Plantation,Liabilities,25101 - Plantation Walk Payable (1%),JE-2,02/01/2025,0,50.00\n",
	"SalesSummary_0201.csv": "Location,Date,Net Sales\n" +
		"Brickell,02/01/2025,9900.00\n" +
		"Plantation,02/01/2025,4950.00\n" +
		"Dadeland,02/02/2025,1500.00\n",
	"GroupOverview_0201.csv": "Location,Net Sales\n" +
		"Brickell,9900.00\n" +
		"Plantation,4900.00\n" +
		"Total,14800.00\n",
}

func load(t *testing.T, name string, role tabular.Role) *tabular.Table {
	t.Helper()
	tbl, err := tabular.Parse(name, role, []byte(inputs[name]))
	require.NoError(t, err)
	require.NoError(t, tbl.Apply())
	return tbl
}

func TestGiftCardDiscrepancy(t *testing.T) {
	reg := mapping.Default()
	var warnings []error
	warn := func(err error) { warnings = append(warnings, err) }

	l := NewLedger(reg)
	l.AddOrders([]*tabular.Table{
		load(t, "Order_A.csv", tabular.RolePOSOrder),
		load(t, "Order_B.csv", tabular.RolePOSOrder),
	}, warn)
	l.AddGL([]*tabular.Table{load(t, "GL_0201.csv", tabular.RoleERPGL)}, warn)
	l.AddExport([]*tabular.Table{load(t, "SalesSummary_0201.csv", tabular.RoleDailySalesSummary)}, warn)

	rep := Reconcile(reg, l, nil)
	require.Len(t, rep.Discrepancies, 1)

	d := rep.Discrepancies[0]
	assert.Equal(t, mapping.Location("Brickell"), d.Location)
	assert.Equal(t, "10000.00", money.Format(d.POS))
	assert.Equal(t, "65.00", money.Format(d.Adjustment))
	assert.Equal(t, "9935.00", money.Format(d.Adjusted()))
	assert.Equal(t, "35.00", money.Format(d.Difference()))
	assert.Equal(t, "25.00", money.Format(d.GiftCard))

	require.Len(t, rep.GiftCards, 1)
	assert.Same(t, d, rep.GiftCards[0])

	require.Len(t, warnings, 1)
	assert.Equal(t, reconerr.KindMappingMiss, reconerr.KindOf(warnings[0]))
	assert.Contains(t, warnings[0].Error(), "Orlando")
}

func TestSummaryDifference(t *testing.T) {
	reg := mapping.Default()
	l := NewLedger(reg)
	noWarn := func(err error) {}
	l.AddOrders([]*tabular.Table{load(t, "Order_A.csv", tabular.RolePOSOrder)}, noWarn)
	l.AddGL([]*tabular.Table{load(t, "GL_0201.csv", tabular.RoleERPGL)}, noWarn)
	l.AddExport([]*tabular.Table{load(t, "SalesSummary_0201.csv", tabular.RoleDailySalesSummary)}, noWarn)

	rep := Reconcile(reg, l, nil)

	for _, s := range rep.Locations {
		t.Run(string(s.Location), func(t *testing.T) {
			want := s.POS.Sub(s.Adjustment).Sub(s.ERP)
			if reg.Category(s.Location) == mapping.CategoryPlantation {
				want = want.Sub(s.Plantation)
				assert.Equal(t, "50.00", money.Format(s.Plantation))
			} else {
				assert.True(t, s.Plantation.IsZero())
			}
			assert.True(t, money.Equal(want, s.Difference()))
		})
	}
}

func TestAccountCode(t *testing.T) {
	tests := []struct {
		account string
		want    string
	}{
		{"21200 - Payable Donation", "21200"},
		{"25101 - Plantation Walk Payable (1%)", "25101"},
		{"73405-Gift Cards", "73405"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			assert.Equal(t, tt.want, accountCode(tt.account))
		})
	}
}

func TestRunWritesWorkbook(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	for name, data := range inputs {
		require.NoError(t, os.WriteFile(filepath.Join(in, name), []byte(data), 0o644))
	}

	result, err := pipeline.Run(context.Background(), New(), pipeline.Options{
		Inputs:     []string{in},
		OutputRoot: out,
		Now:        time.Date(2025, 2, 3, 8, 0, 0, 0, time.UTC),
		RunID:      "ns",
	})
	require.NoError(t, err)
	assert.Equal(t, "3 locations, 1 discrepancies, 1 gift-card days", result.Summary)

	f, err := excelize.OpenFile(filepath.Join(out, "Net_Sales_Recon_02022025.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary Net Sales", "Discrepancies", "Gift-Card"}, f.GetSheetList())

	raw := excelize.Options{RawCellValue: true}
	summary, err := f.GetRows("Summary Net Sales", raw)
	require.NoError(t, err)
	require.Len(t, summary, 5)
	assert.Equal(t, []string{"Brickell", "10000.00", "65.00", "0.00", "9935.00", "9900.00", "35.00"}, summary[1])
	assert.Equal(t, []string{"Dadeland", "1500.00", "0.00", "0.00", "1500.00", "1500.00", "0.00"}, summary[2])
	assert.Equal(t, []string{"Plantation", "5000.00", "50.00", "50.00", "4900.00", "4900.00", "0.00"}, summary[3])

	disc, err := f.GetRows("Discrepancies", raw)
	require.NoError(t, err)
	require.Len(t, disc, 2)
	assert.Equal(t, "02/01/2025", disc[1][0])
	assert.Equal(t, "35.00", disc[1][6])
	assert.Equal(t, GiftCardNote, disc[1][8])

	gift, err := f.GetRows("Gift-Card", raw)
	require.NoError(t, err)
	require.Len(t, gift, 2)
	assert.Equal(t, []string{"02/01/2025", "Brickell", "25.00", "35.00"}, gift[1])
}
