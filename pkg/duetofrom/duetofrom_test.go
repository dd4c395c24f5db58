package duetofrom

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const glHeader = "Location,Parent Account,Account,Debit,Credit,Date,Transaction Number,Company,Comment,Ending Balance\n"

var periodEnd = time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

func glTable(t *testing.T, body string) *tabular.Table {
	t.Helper()
	table, err := tabular.Parse("GL_0125.csv", tabular.RoleERPGL, []byte(glHeader+body))
	require.NoError(t, err)
	require.NoError(t, table.Apply())
	return table
}

func build(t *testing.T, body string) ([]*Relationship, []error) {
	t.Helper()
	var warnings []error
	rels := Build(mapping.Default(), []*tabular.Table{glTable(t, body)}, func(err error) {
		warnings = append(warnings, err)
	})
	return rels, warnings
}

func TestStandardize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Carrot Love Brickell Operating LLC", "LOVE BRICKELL"},
		{"Carrot Love LLC (North Beach - Aventura)", "LOVE NORTH BEACH AVENTURA"},
		{"  dadeland  ", "DADELAND"},
		{"Coconut-Grove", "COCONUT GROVE"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Standardize(tt.in))
		})
	}
}

func TestDirectMatchProducesOneTransfer(t *testing.T) {
	rels, warnings := build(t,
		"Brickell,Due To/From Dadeland,14000,0,1000.00,01/31/2025,JE-1,Brickell,Rent share,-1000.00\n"+
			"Dadeland,Due To/From Brickell,14000,1000.00,0,01/31/2025,JE-1,Dadeland,Rent share,1000.00\n")
	require.Empty(t, warnings)
	require.Len(t, rels, 2)

	res := Match(mapping.Default(), rels)
	require.Len(t, res.Matches, 1)
	assert.Empty(t, res.Mismatches)
	assert.Empty(t, res.Unpaired)

	settlements, err := Synthesize(mapping.Default(), res.Matches, periodEnd, func(err error) { t.Fatal(err) })
	require.NoError(t, err)
	require.Len(t, settlements, 1)

	tr := settlements[0].Transfer
	assert.Equal(t, []string{"30000488101", "30000488104", "1000.00", "Brickell ---> Dadeland"}, tr.Record())

	entry := settlements[0].Entry
	assert.Equal(t, "DTF01312025-001", entry.Number)
	require.Len(t, entry.Lines, 4)
	assert.NoError(t, entry.Check())
	debit, credit := entry.Totals()
	assert.Equal(t, "2000.00", money.Format(debit))
	assert.Equal(t, "2000.00", money.Format(credit))
	assert.Equal(t, "Due To/From Dadeland", entry.Lines[0].Account)
	assert.Equal(t, "10100 - Checking Brickell", entry.Lines[1].Account)
	assert.Equal(t, "Due To/From Brickell", entry.Lines[2].Account)
	assert.Equal(t, "Dadeland", entry.Lines[3].DetailLocation)
}

func TestGroupedFamilyMatchesAllMembers(t *testing.T) {
	rels, _ := build(t,
		"Brickell,Due To/From Carrot Love LLC,14000,0,300.00,01/31/2025,JE-9,Brickell,,-300.00\n"+
			"Aventura,Due To/From Brickell,14000,100.00,0,01/31/2025,JE-9,Carrot Love LLC,,100.00\n"+
			"Coral Gables,Due To/From Brickell,14000,100.00,0,01/31/2025,JE-9,Carrot Love LLC,,100.00\n"+
			"North Beach,Due To/From Brickell,14000,100.00,0,01/31/2025,JE-9,Carrot Love LLC,,100.00\n")

	res := Match(mapping.Default(), rels)
	require.Len(t, res.Matches, 1)
	pair := res.Matches[0]
	assert.True(t, pair.Grouped)
	assert.Len(t, pair.Others, 3)
	assert.Empty(t, res.Unpaired)

	settlements, err := Synthesize(mapping.Default(), res.Matches, periodEnd, func(err error) { t.Fatal(err) })
	require.NoError(t, err)
	require.Len(t, settlements, 3)

	var to []string
	for i, s := range settlements {
		assert.Equal(t, "30000488101", s.Transfer.FromAccount)
		assert.Equal(t, "30000488149", s.Transfer.ToAccount)
		assert.Equal(t, "100.00", money.Format(s.Transfer.Amount))
		assert.Equal(t, fmt.Sprintf("DTF01312025-%03d", i+1), s.Entry.Number)
		assert.NoError(t, s.Entry.Check())
		to = append(to, s.Transfer.ToName)
	}
	assert.Equal(t, []string{"North Beach", "Aventura", "Coral Gables"}, to)
}

func TestMismatchHasNoTransferAndFlagsDetail(t *testing.T) {
	rels, _ := build(t,
		"Brickell,Due To/From Dadeland,14000,0,900.00,01/10/2025,JE-1,,Rent,\n"+
			"Brickell,Due To/From Dadeland,14000,0,100.00,01/20/2025,JE-2,,Supplies,-1000.00\n"+
			"Dadeland,Due To/From Brickell,14000,900.00,0,01/10/2025,JE-1,,Rent,900.00\n")

	res := Match(mapping.Default(), rels)
	assert.Empty(t, res.Matches)
	require.Len(t, res.Mismatches, 1)

	settlements, err := Synthesize(mapping.Default(), res.Mismatches, periodEnd, func(error) {})
	require.NoError(t, err)
	assert.Empty(t, settlements)

	records := DetailRecords(res.Mismatches)
	var flagged []string
	for _, rec := range records[1:] {
		if rec[10] == MismatchFlag {
			flagged = append(flagged, rec[4])
		}
	}
	assert.Equal(t, []string{"JE-2"}, flagged)

	last := records[len(records)-1]
	assert.Equal(t, "Difference", last[6])
	assert.Equal(t, "100.00", last[9])
	assert.Equal(t, "Beg Balance", records[1][6])
	assert.Equal(t, "0.00", records[1][9])
}

func TestUnmatchedSecondPassIgnoresDate(t *testing.T) {
	d1 := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	a := []Txn{
		{Date: d1, Credit: money.MustParse("50")},
		{Date: d1, Credit: money.MustParse("20")},
	}
	b := []Txn{
		{Date: d2, Debit: money.MustParse("50")},
		{Date: d1, Debit: money.MustParse("20")},
		{Date: d1, Debit: money.MustParse("7")},
	}

	flagsA, flagsB := Unmatched(a, b)
	assert.Equal(t, []bool{false, false}, flagsA)
	assert.Equal(t, []bool{false, false, true}, flagsB)
}

func TestUnparseableEndingIsSkipped(t *testing.T) {
	rels, warnings := build(t,
		"Brickell,Due To/From Dadeland,14000,0,10.00,01/31/2025,JE-1,,,n/a\n"+
			"Dadeland,Due To/From Brickell,14000,10.00,0,01/31/2025,JE-1,,,10.00\n")

	require.Len(t, rels, 1)
	assert.Equal(t, "Dadeland", rels[0].Holder)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Error(), "n/a")
}

// pairwiseGL builds a GL where each of the first n locations holds a balance against
// every other, all consistent.
func pairwiseGL(locs []mapping.Location, reverse bool) string {
	var rows []string
	for i := range locs {
		for j := i + 1; j < len(locs); j++ {
			amt := fmt.Sprintf("%d.00", (i+1)*100+j)
			rows = append(rows,
				fmt.Sprintf("%s,Due To/From %s,14000,0,%s,01/31/2025,JE,,,-%s", locs[i], locs[j], amt, amt),
				fmt.Sprintf("%s,Due To/From %s,14000,%s,0,01/31/2025,JE,,,%s", locs[j], locs[i], amt, amt),
			)
		}
	}
	if reverse {
		for l, r := 0, len(rows)-1; l < r; l, r = l+1, r-1 {
			rows[l], rows[r] = rows[r], rows[l]
		}
	}
	return strings.Join(rows, "\n") + "\n"
}

func standaloneLocations(n int) []mapping.Location {
	reg := mapping.Default()
	var out []mapping.Location
	for _, loc := range reg.ActiveLocations() {
		if reg.IsGrouped(loc) {
			continue
		}
		out = append(out, loc)
		if len(out) == n {
			break
		}
	}
	return out
}

func TestNumberingIsIndependentOfInputOrder(t *testing.T) {
	locs := standaloneLocations(6)

	numbers := func(reverse bool) []string {
		rels, _ := build(t, pairwiseGL(locs, reverse))
		res := Match(mapping.Default(), rels)
		settlements, err := Synthesize(mapping.Default(), res.Matches, periodEnd, func(err error) { t.Fatal(err) })
		require.NoError(t, err)

		seen := make(map[string]bool)
		var out []string
		for _, s := range settlements {
			out = append(out, s.Entry.Number+" "+s.Transfer.Annotation()+" "+money.Format(s.Transfer.Amount))
			fwd := s.Transfer.FromName + ">" + s.Transfer.ToName + " " + money.Format(s.Transfer.Amount)
			back := s.Transfer.ToName + ">" + s.Transfer.FromName + " " + money.Format(s.Transfer.Amount)
			assert.False(t, seen[back], "reverse transfer emitted for %s", fwd)
			seen[fwd] = true
		}
		return out
	}

	forward := numbers(false)
	assert.Len(t, forward, 15)
	assert.Equal(t, forward, numbers(true))
}

func TestRunBatchesTransfersAndWritesReports(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	body := glHeader + pairwiseGL(standaloneLocations(10), false) +
		"Brickell,Due To/From Orlando,14000,0,5.00,01/31/2025,JE-X,,,-5.00\n"
	require.NoError(t, os.WriteFile(filepath.Join(in, "GL_0125.csv"), []byte(body), 0o644))

	p := New()
	result, err := pipeline.Run(context.Background(), p, pipeline.Options{
		Inputs:     []string{in},
		OutputRoot: out,
		Now:        time.Date(2025, 2, 4, 9, 0, 0, 0, time.UTC),
		RunID:      "dtf",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Summary, "45 transfers in 2 CNB file(s)")

	countRows := func(name string) int {
		f, err := os.Open(filepath.Join(out, name))
		require.NoError(t, err)
		defer f.Close()
		records, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		return len(records) - 1
	}
	assert.Equal(t, 35, countRows("CNB-1_Transfer_01312025.csv"))
	assert.Equal(t, 10, countRows("CNB-2_Transfer_01312025.csv"))
	assert.NoFileExists(t, filepath.Join(out, "CNB-3_Transfer_01312025.csv"))
	assert.Equal(t, 45*4, countRows("DueToFrom_JE_01312025.csv"))
	assert.FileExists(t, filepath.Join(out, "DueToFrom_Summary_01312025.xlsx"))
	assert.FileExists(t, filepath.Join(out, "DueToFrom_Discrepancies_01312025.csv"))

	// The Orlando relationship is unpaired and its counterparty unknown.
	assert.Equal(t, 1, countRows("DueToFrom_Warnings_01312025.csv"))
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "Orlando")
}

func TestTransferJEBooksUploadedTransfers(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "CNB_upload.csv"), []byte(
		"From,To,Amount\n30000488101,30000488149,250.00\n99999999999,30000488104,10.00\n"), 0o644))

	date := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	result, err := pipeline.Run(context.Background(), NewTransferJE(date), pipeline.Options{
		Inputs:     []string{in},
		OutputRoot: out,
		RunID:      "xfr",
	})
	require.NoError(t, err)
	assert.Equal(t, "1 transfer entries, 1 rows skipped", result.Summary)

	f, err := os.Open(filepath.Join(out, "Transfer_JE_02032025.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, journal.Header, records[0])
	assert.Equal(t, "XFR02032025-001", records[1][0])
	assert.Equal(t, "Brickell ---> Carrot Love LLC", records[1][4])
	assert.Equal(t, "North Beach", records[3][9])
}

func TestTransferJERequiresInput(t *testing.T) {
	_, err := pipeline.Run(context.Background(), NewTransferJE(time.Time{}), pipeline.Options{
		Inputs:     []string{t.TempDir()},
		OutputRoot: t.TempDir(),
	})
	assert.Error(t, err)
}
