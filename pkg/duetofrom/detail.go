package duetofrom

import (
	"github.com/carrotexpress/backoffice/pkg/journal"
	"github.com/carrotexpress/backoffice/pkg/money"
)

// MismatchFlag marks a transaction with no counterpart on the other side.
const MismatchFlag = "***MISMATCH***"

// DetailHeader is the discrepancy CSV column order.
var DetailHeader = []string{
	"Pair", "Entity", "Counterparty", "Date", "Transaction Number", "Company", "Comment",
	"Debit", "Credit", "Balance", "Flag",
}

// Unmatched pairs the two sides' transactions in two passes and reports which rows
// found no partner. A row pairs with one whose net has the opposite sign and equal
// magnitude: first on the same date, then on any date.
func Unmatched(a, b []Txn) ([]bool, []bool) {
	matchedA := make([]bool, len(a))
	matchedB := make([]bool, len(b))

	pass := func(sameDate bool) {
		for i, ta := range a {
			if matchedA[i] {
				continue
			}
			for j, tb := range b {
				if matchedB[j] {
					continue
				}
				if sameDate && !ta.Date.Equal(tb.Date) {
					continue
				}
				if money.IsZero(ta.Net().Add(tb.Net())) {
					matchedA[i], matchedB[j] = true, true
					break
				}
			}
		}
	}
	pass(true)
	pass(false)

	for i := range matchedA {
		matchedA[i] = !matchedA[i]
	}
	for j := range matchedB {
		matchedB[j] = !matchedB[j]
	}
	return matchedA, matchedB
}

// DetailRecords renders the long-form discrepancy report for mismatched pairs: per
// side a Beg Balance row, its transactions (unmatched ones flagged) and an End
// Balance row, then the absolute difference.
func DetailRecords(mismatches []Pair) [][]string {
	out := [][]string{DetailHeader}
	for _, p := range mismatches {
		label := p.Label()

		var others []Txn
		for _, o := range p.Others {
			others = append(others, o.Txns...)
		}
		flagsA, flagsB := Unmatched(p.Holder.Txns, others)

		out = append(out, sideRecords(label, p.Holder, p.Holder.Txns, flagsA)...)
		offset := 0
		for _, o := range p.Others {
			out = append(out, sideRecords(label, o, o.Txns, flagsB[offset:offset+len(o.Txns)])...)
			offset += len(o.Txns)
		}
		out = append(out, []string{label, "", "", "", "", "", "Difference", "", "", money.Format(p.Difference().Abs()), ""})
	}
	return out
}

func sideRecords(label string, r *Relationship, txns []Txn, flags []bool) [][]string {
	rows := [][]string{{label, r.Holder, r.Counterparty, "", "", "", "Beg Balance", "", "", money.Format(r.Beginning()), ""}}
	for i, t := range txns {
		flag := ""
		if flags[i] {
			flag = MismatchFlag
		}
		date := ""
		if !t.Date.IsZero() {
			date = journal.FormatDate(t.Date)
		}
		rows = append(rows, []string{
			label, r.Holder, r.Counterparty, date, t.Number, t.Company, t.Comment,
			money.Format(t.Debit), money.Format(t.Credit), "", flag,
		})
	}
	rows = append(rows, []string{label, r.Holder, r.Counterparty, "", "", "", "End Balance", "", "", money.Format(r.Ending), ""})
	return rows
}
