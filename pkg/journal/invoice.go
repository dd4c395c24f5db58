package journal

import (
	"fmt"
	"time"

	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/shopspring/decimal"
)

// InvoiceType is AR or AP.
type InvoiceType string

const (
	ARInvoice InvoiceType = "AR Invoice"
	APInvoice InvoiceType = "AP Invoice"
)

// InvoiceHeader is the AR/AP invoice CSV column order.
var InvoiceHeader = []string{
	"Type", "Location", "Vendor", "Number", "Date", "Gl Date", "Amount", "Payment Terms",
	"Due Date", "Comment", "Detail Location", "Detail Comment", "Detail Account", "Detail Amount",
}

// InvoiceDetail is one detail line of an invoice.
type InvoiceDetail struct {
	Location string
	Comment  string
	Account  string
	Amount   decimal.Decimal
}

// Invoice is an AR or AP invoice; one CSV row is written per detail line.
type Invoice struct {
	Type         InvoiceType
	Location     string
	Vendor       string
	Number       string
	Date         time.Time
	GLDate       time.Time
	DueDate      time.Time
	PaymentTerms string
	Comment      string
	Details      []InvoiceDetail
}

// Amount is the sum of the rounded detail amounts.
func (inv Invoice) Amount() decimal.Decimal {
	total := decimal.Zero
	for _, d := range inv.Details {
		total = total.Add(money.Round2(d.Amount))
	}
	return total
}

// Mirror returns the AP counterpart of an AR invoice: same number and dates, vendor and
// location swapped, detail accounts mapped through counterpart. Unmapped accounts are
// reported in the error and kept as-is.
func (inv Invoice) Mirror(counterpart func(string) (string, bool)) (Invoice, error) {
	out := inv
	out.Type = APInvoice
	out.Location, out.Vendor = inv.Vendor, inv.Location
	out.Details = make([]InvoiceDetail, len(inv.Details))

	var missing []string
	for i, d := range inv.Details {
		acct, ok := counterpart(d.Account)
		if !ok {
			missing = append(missing, d.Account)
			acct = d.Account
		}
		out.Details[i] = InvoiceDetail{Location: out.Location, Comment: d.Comment, Account: acct, Amount: d.Amount}
	}
	if len(missing) > 0 {
		return out, fmt.Errorf("no expense account for %v", missing)
	}
	return out, nil
}

// InvoiceRecords renders a header plus one row per invoice detail.
func InvoiceRecords(invoices []Invoice) [][]string {
	out := [][]string{InvoiceHeader}
	for _, inv := range invoices {
		amount := money.Format(inv.Amount())
		for _, d := range inv.Details {
			out = append(out, []string{
				string(inv.Type),
				inv.Location,
				inv.Vendor,
				inv.Number,
				FormatDate(inv.Date),
				FormatDate(inv.GLDate),
				amount,
				inv.PaymentTerms,
				FormatDate(inv.DueDate),
				inv.Comment,
				d.Location,
				d.Comment,
				d.Account,
				money.Format(d.Amount),
			})
		}
	}
	return out
}

// InvoiceNumber builds "<prefix><MMDDYYYY>-NN" (e.g. AR-CEFS02012025-03).
func InvoiceNumber(prefix string, date time.Time, seq int) string {
	return fmt.Sprintf("%s%s-%02d", prefix, date.Format("01022006"), seq)
}
