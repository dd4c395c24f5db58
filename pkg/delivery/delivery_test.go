package delivery

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doordashCSV = "Store name,Order date,Transaction type,Fulfillment type,Subtotal,Subtotal tax passed to merchant,Commission,Marketing fees,Customer discounts,Error charges,Adjustments,Net total\n" +
	"Flatiron,02/03/2025,FEE,,,,,,,,,-5.00\n" +
	"Flatiron,02/03/2025,FEE,,,,,,,,,-7.00\n" +
	"Flatiron,02/04/2025,DELIVERY,Delivery,100.00,8.88,-20.00,0,0,0,0,88.88\n"

const grubhubCSV = "Restaurant,Transaction date,Transaction type,Fulfillment type,Subtotal,Delivery Fee,Tax,Tip,Merchant funded promotion,Commission,Delivery commission,Processing fee,Merchant net total\n" +
	"Brickell,01/07/2025,Prepaid Order,Pick-Up,50.00,0,3.50,2.00,-1.00,-5.00,0,-1.50,48.00\n" +
	"Brickell,01/07/2025,Prepaid Order,Self Delivery,80.00,4.99,5.60,6.00,0,-12.00,-3.00,-2.40,79.19\n" +
	"Brickell,01/07/2025,Adjustment,,0,0,0,0,0,0,0,0,-4.00\n" +
	"Bryant Park,01/07/2025,Prepaid Order,Self Delivery,100.00,5.00,8.88,10.00,0,-15.00,0,-3.00,97.00\n"

const posCSV = "Location,Order Id,Opened,Dining Options,Amount,Tax,Tip\n" +
	"Brickell,5001,01/07/2025 12:00,Grubhub Pickup,55.50,3.50,2.00\n" +
	"Brickell,5002,01/07/2025 18:30,Grubhub Delivery,92.60,5.60,7.00\n" +
	"Brickell,5002,01/07/2025 18:30,Grubhub Delivery,92.60,5.60,7.00\n" +
	"Bryant Park,6001,01/07/2025 13:00,Grubhub Delivery,118.88,8.88,10.00\n" +
	"Brickell,5003,01/07/2025 13:00,Dine In,30.00,2.10,0\n"

const uberEatsCSV = "Location,Order Date,Payout Date,Account,Amount\n" +
	"Hoboken,02/04/2025,02/10/2025,UE Pickup & Takeout,40.00\n" +
	"Hoboken,02/04/2025,02/10/2025,UE Delivery,60.00\n" +
	"Hoboken,02/04/2025,02/10/2025,Refunds,-5.00\n" +
	"Hoboken,02/04/2025,02/10/2025,UberEats Discount,-3.00\n" +
	"Hoboken,02/04/2025,02/10/2025,Sales Tax Payable,6.63\n" +
	"Hoboken,02/04/2025,,UE Delivery,10.00\n" +
	"Hoboken,02/04/2025,02/10/2025,Marketing Spend,-2.00\n"

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parse(t *testing.T, name string, role tabular.Role, data string) []*tabular.Table {
	t.Helper()
	tbl, err := tabular.Parse(name, role, []byte(data))
	require.NoError(t, err)
	require.NoError(t, tbl.Apply())
	return []*tabular.Table{tbl}
}

func failOnWarn(t *testing.T) func(error) {
	return func(err error) { t.Errorf("unexpected warning: %v", err) }
}

func writeInputs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}
	return dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestFeeOnlyDayJoinsSalesDay(t *testing.T) {
	reg := mapping.Default()
	days := DoorDashDays(reg, parse(t, "doordash_0204.csv", tabular.RoleDoorDash, doordashCSV), failOnWarn(t))
	require.Len(t, days, 2)

	moved := ReattachFees(reg, days)
	require.Len(t, moved, 1)
	require.Len(t, days, 1)

	d, ok := days[dayKey{Location: "Flatiron", Date: day(2025, 2, 4)}]
	require.True(t, ok)
	assert.Equal(t, "-12.00", money.Format(d.Fees))
	assert.Equal(t, "76.88", money.Format(d.NetPayout))

	d.POSTax = d.Tax
	e := d.Entry()
	require.NoError(t, e.Check())
	require.Len(t, e.Lines, DoorDashRows)
	assert.Equal(t, "DD02042025FLT1", e.Number)

	fees := e.Lines[5]
	assert.Equal(t, AccountPlatformFees, fees.Account)
	assert.Equal(t, "12.00", money.Format(fees.Debit))

	last := e.Lines[DoorDashRows-1]
	assert.True(t, last.Debit.IsZero() && last.Credit.IsZero(), "net payout should already balance the entry")
}

func TestDoorDashTaxGap(t *testing.T) {
	d := &DoorDashDay{
		Location:         "Flatiron",
		Suffix:           "FLT",
		Date:             day(2025, 2, 4),
		SubtotalDelivery: money.MustParse("100"),
		Tax:              money.MustParse("8.88"),
		POSTax:           money.MustParse("9.00"),
		NetPayout:        money.MustParse("108.88"),
		Sales:            true,
	}
	e := d.Entry()
	require.NoError(t, e.Check())
	require.Len(t, e.Lines, DoorDashRows)

	assert.Equal(t, "0.12", money.Format(e.Lines[9].Credit))
	assert.Equal(t, AccountFoodDelivery, e.Lines[12].Account)
	assert.Equal(t, "0.12", money.Format(e.Lines[12].Debit))
}

func TestDoorDashDeposit(t *testing.T) {
	tests := []struct {
		order time.Time
		want  time.Time
	}{
		{day(2025, 2, 3), day(2025, 2, 14)},
		{day(2025, 2, 4), day(2025, 2, 14)},
		{day(2025, 2, 9), day(2025, 2, 14)},
		{day(2025, 2, 10), day(2025, 2, 21)},
	}
	for _, tt := range tests {
		t.Run(tt.order.Format("2006-01-02"), func(t *testing.T) {
			assert.Equal(t, tt.want, DoorDashDeposit(tt.order))
		})
	}
}

func TestGrubHubDeposit(t *testing.T) {
	tests := []struct {
		order time.Time
		want  time.Time
	}{
		{day(2024, 12, 31), day(2025, 1, 3)},
		{day(2025, 1, 1), day(2025, 1, 10)},
		{day(2025, 9, 30), day(2025, 10, 3)},
		{day(2025, 10, 1), day(2025, 10, 10)},
		{day(2025, 10, 6), day(2025, 10, 10)},
		{day(2025, 10, 8), day(2025, 10, 17)},
		{day(2025, 1, 7), day(2025, 1, 17)},
		{day(2025, 1, 13), day(2025, 1, 17)},
	}
	for _, tt := range tests {
		t.Run(tt.order.Format("2006-01-02"), func(t *testing.T) {
			assert.Equal(t, tt.want, GrubHubDeposit(tt.order))
		})
	}
}

func TestGrubHubLayouts(t *testing.T) {
	reg := mapping.Default()
	days := GrubHubDays(reg, parse(t, "grubhub_0107.csv", tabular.RoleGrubHub, grubhubCSV), failOnWarn(t))
	require.Len(t, days, 2)

	tests := []struct {
		location mapping.Location
		rows     int
		number   string
	}{
		{"Brickell", GrubHubRows, "GH01072025BRK1"},
		{"Bryant Park", GrubHubFacilitatorRows, "GH01072025BRP1"},
	}
	for _, tt := range tests {
		t.Run(string(tt.location), func(t *testing.T) {
			d := days[dayKey{Location: tt.location, Date: day(2025, 1, 7)}]
			require.NotNil(t, d)
			d.POSTax = d.Tax()

			e := d.Entry()
			require.NoError(t, e.Check())
			assert.Len(t, e.Lines, tt.rows)
			assert.Equal(t, tt.number, e.Number)

			last := e.Lines[len(e.Lines)-1]
			assert.Equal(t, GrubHubAR, last.Account)
			assert.True(t, last.Debit.IsZero() && last.Credit.IsZero())
		})
	}

	brickell := days[dayKey{Location: "Brickell", Date: day(2025, 1, 7)}]
	assert.Equal(t, "-4.00", money.Format(brickell.Adjustments))
	assert.Equal(t, "123.19", money.Format(brickell.NetPayout))
}

func TestTipAdjustment(t *testing.T) {
	adj := TipAdjustment{
		Location:    "Brickell",
		Suffix:      "BRK",
		Date:        day(2025, 1, 7),
		PlatformPU:  money.MustParse("2.00"),
		PlatformDel: money.MustParse("6.00"),
		POSPickup:   money.MustParse("2.00"),
		POSDelivery: money.MustParse("7.00"),
	}
	require.True(t, adj.Needed())

	e := adj.Entry()
	require.NoError(t, e.Check())
	require.Len(t, e.Lines, TipAdjustmentRows)
	assert.Equal(t, "GH01072025BRK2", e.Number)
	assert.Equal(t, "1.00", money.Format(e.Lines[4].Debit))

	adj.POSDelivery = money.MustParse("6.004")
	assert.False(t, adj.Needed())
}

func TestPOSIndexDeduplicatesOrders(t *testing.T) {
	idx := BuildPOSIndex(mapping.Default(), parse(t, "Order_0107.csv", tabular.RolePOSOrder, posCSV), failOnWarn(t))
	require.True(t, idx.Loaded())

	assert.Equal(t, "9.10", money.Format(idx.Tax("Brickell", day(2025, 1, 7), POSGrubHub)))
	assert.Equal(t, "2.00", money.Format(idx.Tips("Brickell", day(2025, 1, 7), POSGrubHub, true)))
	assert.Equal(t, "7.00", money.Format(idx.Tips("Brickell", day(2025, 1, 7), POSGrubHub, false)))
	assert.True(t, idx.Tax("Brickell", day(2025, 1, 7), POSDoorDash).IsZero())
}

func TestGrubHubRunWithPOS(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"grubhub_0107.csv": grubhubCSV,
		"Order_0107.csv":   posCSV,
	})
	out := t.TempDir()

	result, err := pipeline.Run(context.Background(), NewGrubHub(), pipeline.Options{
		Inputs:     []string{in},
		OutputRoot: out,
		Now:        day(2025, 1, 20),
		RunID:      "gh",
	})
	require.NoError(t, err)
	assert.Equal(t, "GrubHub: 5 entries for 2 location-days, 0 rows skipped", result.Summary)

	records := readCSV(t, filepath.Join(out, "GrubHub_JE_01172025.csv"))
	assert.Equal(t, journal.Header, records[0])

	counts := make(map[string]int)
	for _, r := range records[1:] {
		counts[r[0]]++
	}
	assert.Equal(t, map[string]int{
		"GH01072025BRK1": GrubHubRows,
		"GH01072025BRK2": TipAdjustmentRows,
		"GH01172025BRK3": 2,
		"GH01072025BRP1": GrubHubFacilitatorRows,
		"GH01172025BRP3": 2,
	}, counts)
}

func TestUberEatsClassification(t *testing.T) {
	tests := []struct {
		account string
		class   UberEatsClass
		ok      bool
	}{
		{"UE Pickup & Takeout", UberEatsPickup, true},
		{"UE  Delivery", UberEatsDelivery, true},
		{"Refunds", UberEatsRefund, true},
		{"UberEats Discount", UberEatsDiscount, true},
		{"Sales Tax Payable", UberEatsTax, true},
		{"Marketing Spend", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			class, ok := ClassifyUberEats(tt.account)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.class, class)
			}
		})
	}
}

func TestAllRunsPlatformsWithExports(t *testing.T) {
	in := writeInputs(t, map[string]string{
		"doordash_0204.csv": doordashCSV,
		"ue_0204.csv":       uberEatsCSV,
	})
	out := t.TempDir()

	p, ok := New("all")
	require.True(t, ok)
	result, err := pipeline.Run(context.Background(), p, pipeline.Options{
		Inputs:     []string{in},
		OutputRoot: out,
		Now:        day(2025, 2, 17),
		RunID:      "all",
	})
	require.NoError(t, err)
	assert.Equal(t, "DoorDash: 2 entries for 1 location-days, 0 rows skipped; UberEats: 2 entries for 1 location-days, 1 rows skipped", result.Summary)

	dd := readCSV(t, filepath.Join(out, "DoorDash_JE_02142025.csv"))
	require.Len(t, dd, 1+DoorDashRows+2)
	deposit := dd[len(dd)-2]
	assert.Equal(t, "DD02142025FLT3", deposit[0])
	assert.Equal(t, "10100 - Checking Flatiron", deposit[6])
	assert.Equal(t, "76.88", deposit[7])

	ue := readCSV(t, filepath.Join(out, "UberEats_JE_02102025.csv"))
	require.Len(t, ue, 1+6+2)
	assert.Equal(t, []string{UberEatsAR, "108.63", "0.00"}, ue[6][6:9])
	assert.Equal(t, "98.63", ue[7][7])

	_, err = os.Stat(filepath.Join(out, "GrubHub_JE_02142025.csv"))
	assert.True(t, os.IsNotExist(err))

	var kinds []reconerr.Kind
	for _, w := range result.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Contains(t, kinds, reconerr.KindMappingMiss)
	assert.Contains(t, kinds, reconerr.KindValueParse)
}

func TestAllWithoutExports(t *testing.T) {
	in := writeInputs(t, map[string]string{"Order_0107.csv": posCSV})

	_, err := pipeline.Run(context.Background(), NewAll(), pipeline.Options{
		Inputs:     []string{in},
		OutputRoot: t.TempDir(),
		RunID:      "none",
	})
	require.Error(t, err)
	assert.Equal(t, reconerr.KindFileNotFound, reconerr.KindOf(err))
}

func TestUnknownPlatform(t *testing.T) {
	_, ok := New("postmates")
	assert.False(t, ok)
}
