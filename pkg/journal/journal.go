// Package journal holds the ERP import row shapes: journal entries, AR/AP invoices
// and bank transfer instructions.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/shopspring/decimal"
)

// EntryType is the only JE type the ERP import accepts from these tools.
const EntryType = "Standard"

// Header is the JE CSV column order.
var Header = []string{
	"JENumber", "Type", "DetailComment", "Reversal Date", "JEComment", "JELocation",
	"Account", "Debit", "Credit", "DetailLocation", "Date",
}

// Side is the natural side of a posting.
type Side int

const (
	Debit Side = iota
	Credit
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Debit {
		return Credit
	}
	return Debit
}

// Line is one JE row.
type Line struct {
	Account        string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	DetailLocation string
	DetailComment  string
}

// Entry is a group of lines sharing a JE number.
type Entry struct {
	Number   string
	Date     time.Time
	Location string
	Comment  string
	Lines    []Line
}

// NewEntry starts an entry; lines default their DetailLocation to location.
func NewEntry(number string, date time.Time, location, comment string) *Entry {
	return &Entry{Number: number, Date: date, Location: location, Comment: comment}
}

// Post adds a line applying the sign rule: a non-negative value goes on its natural
// side, a negative one on the opposite side as its absolute value. Values are rounded
// to cents here.
func (e *Entry) Post(account string, natural Side, value decimal.Decimal, comment string) {
	e.Lines = append(e.Lines, NewLine(account, natural, value, e.Location, comment))
}

// PostAt is Post with an explicit detail location.
func (e *Entry) PostAt(account string, natural Side, value decimal.Decimal, detailLocation, comment string) {
	e.Lines = append(e.Lines, NewLine(account, natural, value, detailLocation, comment))
}

// NewLine builds a line with the sign rule applied.
func NewLine(account string, natural Side, value decimal.Decimal, detailLocation, comment string) Line {
	v := money.Round2(value)
	side := natural
	if v.IsNegative() {
		side = natural.Opposite()
		v = v.Abs()
	}
	line := Line{
		Account:        account,
		Debit:          decimal.Zero,
		Credit:         decimal.Zero,
		DetailLocation: detailLocation,
		DetailComment:  comment,
	}
	if side == Debit {
		line.Debit = v
	} else {
		line.Credit = v
	}
	return line
}

// Totals sums the emitted (rounded) debits and credits.
func (e *Entry) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(money.Round2(l.Debit))
		credit = credit.Add(money.Round2(l.Credit))
	}
	return debit, credit
}

// Imbalance returns debits minus credits.
func (e *Entry) Imbalance() decimal.Decimal {
	d, c := e.Totals()
	return d.Sub(c)
}

// Balance appends a line on account that zeroes the imbalance. The line lands on
// natural's side unless the sign rule flips it.
func (e *Entry) Balance(account string, natural Side, comment string) {
	diff := e.Imbalance().Neg()
	if natural == Credit {
		diff = diff.Neg()
	}
	e.Post(account, natural, diff, comment)
}

// Check verifies the entry balances to the cent.
func (e *Entry) Check() error {
	d, c := e.Totals()
	if !d.Equal(c) {
		return reconerr.Invariant(e.Location, FormatDate(e.Date), e.Number,
			fmt.Errorf("debits %s != credits %s", money.Format(d), money.Format(c)))
	}
	return nil
}

// Records renders the entry's CSV rows.
func (e *Entry) Records() [][]string {
	rows := make([][]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		rows = append(rows, []string{
			e.Number,
			EntryType,
			l.DetailComment,
			"",
			e.Comment,
			e.Location,
			l.Account,
			money.Format(l.Debit),
			money.Format(l.Credit),
			l.DetailLocation,
			FormatDate(e.Date),
		})
	}
	return rows
}

// Records renders a header plus every entry's rows, checking each entry balances.
func Records(entries []*Entry) ([][]string, error) {
	out := [][]string{Header}
	for _, e := range entries {
		if err := e.Check(); err != nil {
			return nil, err
		}
		out = append(out, e.Records()...)
	}
	return out, nil
}

// Format renders an entry as indented text for logs and error detail.
func Format(e *Entry) string {
	var sb strings.Builder

	sb.WriteString(FormatDate(e.Date))
	sb.WriteString(" ")
	sb.WriteString(e.Number)
	if e.Location != "" {
		sb.WriteString(fmt.Sprintf(" [%s]", e.Location))
	}
	if e.Comment != "" {
		sb.WriteString(fmt.Sprintf(" %q", e.Comment))
	}
	sb.WriteString("\n")

	for _, l := range e.Lines {
		sb.WriteString("  ")
		sb.WriteString(l.Account)

		spaces := 50 - len(l.Account)
		if spaces < 1 {
			spaces = 1
		}
		sb.WriteString(strings.Repeat(" ", spaces))
		sb.WriteString(fmt.Sprintf("%12s %12s", money.Format(l.Debit), money.Format(l.Credit)))

		if l.DetailComment != "" {
			sb.WriteString(fmt.Sprintf(" ; %s", l.DetailComment))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatDate renders MM/DD/YYYY.
func FormatDate(t time.Time) string {
	return t.Format("01/02/2006")
}

// Number builds "<prefix><MMDDYYYY><suffix><counter>" (e.g. DD02042025FLT1).
func Number(prefix string, date time.Time, suffix string, counter int) string {
	return fmt.Sprintf("%s%s%s%d", prefix, date.Format("01022006"), suffix, counter)
}
