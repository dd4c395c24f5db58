package payroll

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/shopspring/decimal"
)

// Earnings and deduction codes of the ADP import.
const (
	CodeTips          = "T"
	CodeReimbursement = "NTR"
	CodeBonus         = "BN"
)

// ADPHeader is the column layout of an ADP payroll import file.
var ADPHeader = []string{
	"Co Code",
	"Batch ID",
	"File #",
	"Pay #",
	"Reg Hours",
	"O/T Hours",
	"Earnings 3 Code",
	"Earnings 3 Amount",
	"Adjust Ded Code",
	"Adjust Ded Amount",
	"Earnings 5 Code",
	"Earnings 5 Amount",
	"Reg Earnings",
}

// excludedCompanies are company codes paid outside ADP.
var excludedCompanies = map[string]bool{
	"QB":  true,
	"QBS": true,
	"RUN": true,
}

// IsExcludedCompany reports whether a company code is paid outside ADP.
func IsExcludedCompany(co string) bool {
	return excludedCompanies[strings.ToUpper(strings.TrimSpace(co))]
}

// BatchID names the import batch of a company code.
func BatchID(co string) string {
	return "PR" + co + "EPI"
}

// ADPRow is one line of an ADP import.
type ADPRow struct {
	CoCode        string
	BatchID       string
	FileNumber    string
	PayNumber     int
	RegHours      decimal.Decimal
	OTHours       decimal.Decimal
	Tips          decimal.Decimal
	Reimbursement decimal.Decimal
	Bonus         decimal.Decimal
	RegEarnings   decimal.Decimal
	Pay           *Pay
}

// Record renders the row in ADPHeader order. Earning codes appear only next to a
// non-zero amount.
func (r ADPRow) Record() []string {
	code := func(c string, v decimal.Decimal) (string, string) {
		if money.IsZero(v) {
			return "", ""
		}
		return c, money.Format(v)
	}
	tipCode, tipAmt := code(CodeTips, r.Tips)
	ntrCode, ntrAmt := code(CodeReimbursement, r.Reimbursement.Neg())
	bnCode, bnAmt := code(CodeBonus, r.Bonus)
	earnings := ""
	if !money.IsZero(r.RegEarnings) {
		earnings = money.Format(r.RegEarnings)
	}
	return []string{
		r.CoCode,
		r.BatchID,
		r.FileNumber,
		fmt.Sprint(r.PayNumber),
		r.RegHours.StringFixed(2),
		r.OTHours.StringFixed(2),
		tipCode, tipAmt,
		ntrCode, ntrAmt,
		bnCode, bnAmt,
		earnings,
	}
}

// Batch is the rows of one import file.
type Batch struct {
	ID   string
	Rows []ADPRow
}

// Records returns the header and every row.
func (b Batch) Records() [][]string {
	out := [][]string{ADPHeader}
	for _, r := range b.Rows {
		out = append(out, r.Record())
	}
	return out
}

// Rows builds the ADP rows of a pay. The first row carries regular and overtime
// hours plus every amount; a second row carries holiday hours in the overtime column.
func Rows(p *Pay) []ADPRow {
	e := p.Employee
	first := ADPRow{
		CoCode:        e.CoCode,
		BatchID:       BatchID(e.CoCode),
		FileNumber:    e.FileNumber,
		PayNumber:     1,
		RegHours:      p.Regular,
		OTHours:       p.OT,
		Tips:          p.Tips,
		Reimbursement: e.Reimbursement,
		Bonus:         e.Bonus,
		RegEarnings:   e.WageOwed,
		Pay:           p,
	}
	if e.Basis == Salary {
		first.RegEarnings = e.Rate.Add(e.WageOwed)
	}
	rows := []ADPRow{first}
	if p.Holiday.IsPositive() {
		rows = append(rows, ADPRow{
			CoCode:     e.CoCode,
			BatchID:    first.BatchID,
			FileNumber: e.FileNumber,
			PayNumber:  2,
			RegHours:   decimal.Zero,
			OTHours:    p.Holiday,
			Pay:        p,
		})
	}
	return rows
}

// Batches groups the ADP rows of every pay by batch. Pays under an excluded company
// code or without a company code or file number are reported instead.
func Batches(pays []*Pay) ([]Batch, []Finding) {
	var findings []Finding
	byID := make(map[string]*Batch)
	for _, p := range pays {
		e := p.Employee
		switch {
		case IsExcludedCompany(e.CoCode):
			findings = append(findings, Finding{
				Class:    ClassExcludedCompany,
				Location: e.Location,
				Employee: e.Name,
				Detail:   fmt.Sprintf("company code %s is paid outside ADP", e.CoCode),
			})
			continue
		case e.CoCode == "" || e.FileNumber == "":
			findings = append(findings, Finding{
				Class:    ClassMissingADPCode,
				Location: e.Location,
				Employee: e.Name,
				Detail:   fmt.Sprintf("co code %q, file # %q", e.CoCode, e.FileNumber),
			})
			continue
		}
		id := BatchID(e.CoCode)
		b := byID[id]
		if b == nil {
			b = &Batch{ID: id}
			byID[id] = b
		}
		b.Rows = append(b.Rows, Rows(p)...)
	}

	out := make([]Batch, 0, len(byID))
	for _, b := range byID {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, findings
}
