package payroll

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/pipeline"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var runAt = time.Date(2024, 12, 31, 15, 30, 0, 0, time.UTC)

const dictionaryCSV = "Location,Employee,Co Code,File #,Rate,Wage Basis,Holiday Date,PAY?,Tip Adjustment,Bonus,Wage Owed,Reimbursements\n" +
	"Brickell,Maria Lopez,CL1,1001,20.00,Hourly,12/25/2024,Yes,0,0,0,0\n" +
	"Brickell,Jose Perez,CL1,1002,15.00,Hourly,,Yes,1.50,25.00,0,12.00\n" +
	"Brickell,Ana Gomez,CL1,1003,1200.00,Salary,,Yes,0,0,100.00,0\n" +
	"Brickell,Nina Vale,,,14.00,Hourly,,Yes,0,0,0,0\n" +
	"Midtown,Luis Diaz,QB,2001,18.00,Hourly,,Yes,0,0,0,0\n" +
	"Midtown,Carla Ruiz,CL2,2002,16.00,Hourly,,no,0,0,0,0\n" +
	"North Beach,Eva Stone,CLV,4001,17.00,Hourly,,Yes,0,0,0,0\n" +
	"Aventura,Tom Hart,CLV,4002,17.00,Hourly,,Yes,0,0,0,0\n" +
	"Flatiron,Sam Lee,NY1,3001,22.00,Hourly,,,0,0,0,0\n"

const timeEntriesCSV = "Location,Employee,In Date,Total Hours\n" +
	"Brickell,Maria Lopez,12/23/2024,10\n" +
	"Brickell,Maria Lopez,12/24/2024,10\n" +
	"Brickell,Maria Lopez,12/25/2024,8\n" +
	"Brickell,Maria Lopez,12/26/2024,11\n" +
	"Brickell,Maria Lopez,12/27/2024,11\n" +
	"Brickell,jose  perez,12/23/2024,8\n" +
	"Brickell,Jose Perez,12/24/2024,8\n" +
	"Brickell,Nina Vale,12/23/2024,4\n" +
	"Brickell,Cashier 1,12/23/2024,12\n" +
	"Brickell,Pat Unknown,12/23/2024,7\n" +
	"Midtown,Luis Diaz,12/23/2024,6\n" +
	"Midtown,Carla Ruiz,12/23/2024,5\n" +
	"North Beach,Eva Stone,12/24/2024,20\n" +
	"Aventura,Tom Hart,12/24/2024,10\n" +
	"Orlando,Joe Ray,12/23/2024,3\n"

const tipsCSV = "Location,Employee,Tips\n" +
	"Brickell,Maria Lopez,100.00\n" +
	"Brickell,JosePerez,40.00\n" +
	"Midtown,Ghost Person,9.00\n"

func parse(t *testing.T, name string, role tabular.Role, data string) []*tabular.Table {
	t.Helper()
	tbl, err := tabular.Parse(name, role, []byte(data))
	require.NoError(t, err)
	require.NoError(t, tbl.Apply())
	return []*tabular.Table{tbl}
}

type fixture struct {
	dict     *Dictionary
	entries  []TimeEntry
	tips     []Tip
	result   *Result
	warnings []error
}

func compute(t *testing.T, newTips string) *fixture {
	t.Helper()
	reg := mapping.Default()
	fx := &fixture{}
	warn := func(err error) { fx.warnings = append(fx.warnings, err) }

	fx.dict = ReadDictionary(reg, parse(t, "PayrollDictionary_1231.csv", tabular.RolePayrollDictionary, dictionaryCSV), warn)
	fx.entries = ReadTimeEntries(reg, parse(t, "TimeEntries_1231.csv", tabular.RoleTimeEntries, timeEntriesCSV), warn)
	fx.tips = ReadTips(reg, parse(t, "Payroll_1231.csv", tabular.RoleTipsPOS, tipsCSV), "POS", warn)
	if newTips != "" {
		fx.tips = append(fx.tips, ReadTips(reg, parse(t, "Relacion_1231.csv", tabular.RoleNewCompanyTips, newTips), "New Company", warn)...)
	}
	fx.result = Compute(reg, fx.dict, fx.entries, fx.tips)
	return fx
}

func payOf(t *testing.T, res *Result, name string) *Pay {
	t.Helper()
	for _, p := range res.Pays {
		if p.Employee.Name == name {
			return p
		}
	}
	t.Fatalf("no pay for %s", name)
	return nil
}

func d(s string) decimal.Decimal { return money.MustParse(s) }

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		holiday string
		regular string
		ot      string
	}{
		{"under forty", "38", "0", "38", "0"},
		{"plain overtime", "44", "0", "40", "4"},
		{"holiday covers overtime", "45", "8", "40", "0"},
		{"holiday larger than overtime", "50", "12", "40", "0"},
		{"holiday and overtime", "50", "8", "40", "2"},
		{"short holiday week", "30", "8", "22", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regular, ot := Split(d(tt.total), d(tt.holiday))
			assert.True(t, regular.Equal(d(tt.regular)), "regular %s", regular)
			assert.True(t, ot.Equal(d(tt.ot)), "ot %s", ot)
			assert.True(t, regular.LessThanOrEqual(d("40")))
		})
	}
}

func TestHolidayWeek(t *testing.T) {
	fx := compute(t, "")
	maria := payOf(t, fx.result, "Maria Lopez")

	assert.Equal(t, "50.00", maria.Hours.StringFixed(2))
	assert.Equal(t, "8.00", maria.Holiday.StringFixed(2))
	assert.Equal(t, "40.00", maria.Regular.StringFixed(2))
	assert.Equal(t, "2.00", maria.OT.StringFixed(2))
	assert.Equal(t, "1100.00", money.Format(maria.Gross()))

	rows := Rows(maria)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"CL1", "PRCL1EPI", "1001", "1", "40.00", "2.00", "T", "100.00", "", "", "", "", ""}, rows[0].Record())
	assert.Equal(t, []string{"CL1", "PRCL1EPI", "1001", "2", "0.00", "8.00", "", "", "", "", "", "", ""}, rows[1].Record())
}

func TestOneRowWithoutHolidayHours(t *testing.T) {
	fx := compute(t, "")
	for _, p := range fx.result.Pays {
		if p.Holiday.IsZero() {
			assert.Len(t, Rows(p), 1, p.Employee.Name)
		}
	}
}

func TestAmountsAndCodes(t *testing.T) {
	fx := compute(t, "")

	jose := payOf(t, fx.result, "Jose Perez")
	assert.Equal(t, "16.00", jose.Hours.StringFixed(2))
	assert.Equal(t, "265.00", money.Format(jose.Gross()))
	assert.Equal(t, "41.50", money.Format(jose.Tips))
	assert.Equal(t, "306.50", money.Format(jose.GrossPlusTips()))
	assert.Equal(t, []string{"CL1", "PRCL1EPI", "1002", "1", "16.00", "0.00", "T", "41.50", "NTR", "-12.00", "BN", "25.00", ""},
		Rows(jose)[0].Record())

	ana := payOf(t, fx.result, "Ana Gomez")
	assert.True(t, ana.NoHours)
	assert.Equal(t, "1300.00", money.Format(ana.Gross()))
	assert.Equal(t, []string{"CL1", "PRCL1EPI", "1003", "1", "0.00", "0.00", "", "", "", "", "", "", "1300.00"},
		Rows(ana)[0].Record())
}

func TestFindings(t *testing.T) {
	fx := compute(t, "")
	res := fx.result

	names := make([]string, len(res.Pays))
	for i, p := range res.Pays {
		names[i] = p.Employee.Name
	}
	assert.Equal(t, []string{"Ana Gomez", "Jose Perez", "Maria Lopez", "Nina Vale", "Luis Diaz", "Eva Stone", "Tom Hart"}, names)
	assert.Equal(t, 1, res.Logins)

	assert.Equal(t, 1, res.Count(ClassNotInDictionary))
	assert.Equal(t, 1, res.Count(ClassNotPaid))
	assert.Equal(t, 1, res.Count(ClassNoTimeEntries))
	assert.Equal(t, 1, res.Count(ClassUnmatchedTips))
	assert.Len(t, res.Findings, 4)

	for _, f := range res.Findings {
		switch f.Class {
		case ClassNotInDictionary:
			assert.Equal(t, "Pat Unknown", f.Employee)
		case ClassNotPaid:
			assert.Equal(t, "Carla Ruiz", f.Employee)
			assert.Contains(t, f.Detail, "5.00 hours")
		case ClassNoTimeEntries:
			assert.Equal(t, "Sam Lee", f.Employee)
		case ClassUnmatchedTips:
			assert.Equal(t, "Ghost Person", f.Employee)
			assert.Contains(t, f.Detail, "9.00")
		}
	}

	require.Len(t, fx.warnings, 1)
	assert.Equal(t, reconerr.KindMappingMiss, reconerr.KindOf(fx.warnings[0]))
}

func TestTipsWithoutLocation(t *testing.T) {
	fx := compute(t, "Empleado,Propinas\nEva  Stone,30.00\n")
	assert.Equal(t, "30.00", money.Format(payOf(t, fx.result, "Eva Stone").Tips))
	assert.Equal(t, 1, fx.result.Count(ClassUnmatchedTips))
}

func TestBatchesSkipExcludedCompanies(t *testing.T) {
	fx := compute(t, "")
	batches, findings := Batches(fx.result.Pays)

	require.Len(t, batches, 2)
	assert.Equal(t, "PRCL1EPI", batches[0].ID)
	assert.Len(t, batches[0].Rows, 4)
	assert.Equal(t, "PRCLVEPI", batches[1].ID)
	assert.Len(t, batches[1].Rows, 2)

	require.Len(t, findings, 2)
	assert.Equal(t, ClassMissingADPCode, findings[0].Class)
	assert.Equal(t, "Nina Vale", findings[0].Employee)
	assert.Equal(t, ClassExcludedCompany, findings[1].Class)
	assert.Equal(t, "Luis Diaz", findings[1].Employee)

	for _, co := range []string{"QB", "qbs", "Run"} {
		assert.True(t, IsExcludedCompany(co), co)
	}
	assert.False(t, IsExcludedCompany("CL1"))
}

func TestExcludedLogins(t *testing.T) {
	tests := []struct {
		name     string
		excluded bool
	}{
		{"Cashier 1", true},
		{"KDS-Expo", true},
		{"Front Kiosk", true},
		{"Training Login", true},
		{"Maria Lopez", false},
		{"Kioskia Brown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.excluded, IsExcludedLogin(tt.name))
		})
	}
}

func TestWorkersCompCombinesGroupedFamily(t *testing.T) {
	fx := compute(t, "")
	totals := WorkersComp(mapping.Default(), fx.result.Pays)

	require.Len(t, totals, 3)
	assert.Equal(t, "Carrot Love Brickell Operating LLC", totals[0].Name)
	assert.Equal(t, 4, totals[0].Employees)
	assert.Equal(t, "2721.00", money.Format(totals[0].Gross))
	assert.Equal(t, "108.00", money.Format(totals[1].Gross))
	assert.Equal(t, mapping.Default().GroupedFamily().CombinedName, totals[2].Name)
	assert.Equal(t, []mapping.Location{"North Beach", "Aventura"}, totals[2].Locations)
	assert.Equal(t, "510.00", money.Format(totals[2].Gross))
}

func writeDictionaryXLSX(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, line := range strings.Split(strings.TrimSpace(dictionaryCSV), "\n") {
		var row []interface{}
		for _, v := range strings.Split(line, ",") {
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunWritesBatchesAndWorkbooks(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeDictionaryXLSX(t, filepath.Join(in, "PayrollDictionary_1231.xlsx"))
	require.NoError(t, os.WriteFile(filepath.Join(in, "TimeEntries_1231.csv"), []byte(timeEntriesCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "Payroll_1231.csv"), []byte(tipsCSV), 0o644))

	result, err := pipeline.Run(context.Background(), New(), pipeline.Options{
		Inputs:     []string{in},
		OutputRoot: out,
		Now:        runAt,
		RunID:      "payroll",
	})
	require.NoError(t, err)
	assert.Equal(t, "7 employees paid, 6 ADP rows in 2 batches, 7 warnings", result.Summary)
	assert.Len(t, result.Warnings, 7)

	dir := filepath.Join(out, "ADP_Cargue_20241231_153000")
	cl1 := readCSV(t, filepath.Join(dir, "PRCL1EPI.csv"))
	require.Len(t, cl1, 5)
	assert.Equal(t, ADPHeader, cl1[0])
	assert.Equal(t, "1003", cl1[1][2])
	assert.Equal(t, []string{"CL1", "PRCL1EPI", "1001", "2", "0.00", "8.00", "", "", "", "", "", "", ""}, cl1[4])
	assert.Len(t, readCSV(t, filepath.Join(dir, "PRCLVEPI.csv")), 3)
	assert.NoFileExists(t, filepath.Join(dir, "PRQBEPI.csv"))

	summary, err := excelize.OpenFile(filepath.Join(out, "Payroll_Summary_20241231_153000.xlsx"))
	require.NoError(t, err)
	defer summary.Close()
	assert.Equal(t, []string{SheetSummary, SheetTime, SheetDictionary, SheetTips, SheetLocations, SheetADP}, summary.GetSheetList())
	rows, err := summary.GetRows(SheetSummary, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 8)
	col := make(map[string]int)
	for i, title := range rows[0] {
		col[title] = i
	}
	var jose []string
	for _, row := range rows[1:] {
		if row[1] == "Jose Perez" {
			jose = row
		}
	}
	require.NotNil(t, jose)
	assert.True(t, d(jose[col["Gross + Tips"]]).Equal(d("306.50")), jose[col["Gross + Tips"]])
	assert.True(t, d(jose[col["Reimbursements"]]).Equal(d("12.00")), jose[col["Reimbursements"]])

	locs, err := summary.GetRows(SheetLocations, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "Gross + Tips", locs[0][5])

	warnings, err := excelize.OpenFile(filepath.Join(out, "Payroll_Warnings_20241231_153000.xlsx"))
	require.NoError(t, err)
	defer warnings.Close()
	dash, err := warnings.GetRows(SheetDashboard, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, dash, len(Classes)+1)
	for _, row := range dash[1:] {
		assert.Equal(t, "1", row[1], row[0])
	}
	assert.Len(t, warnings.GetSheetList(), len(Classes)+1)

	assert.FileExists(t, filepath.Join(out, "Workers_Comp_20241231_153000.xlsx"))
}

func TestRunWithoutDictionary(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "TimeEntries_1231.csv"), []byte(timeEntriesCSV), 0o644))

	_, err := pipeline.Run(context.Background(), New(), pipeline.Options{
		Inputs:     []string{in},
		OutputRoot: t.TempDir(),
		Now:        runAt,
		RunID:      "payroll",
	})
	require.Error(t, err)
	assert.Equal(t, reconerr.KindFileNotFound, reconerr.KindOf(err))
}
