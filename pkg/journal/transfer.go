package journal

import (
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/shopspring/decimal"
)

// TransferBatchSize is the most rows the bank accepts per transfer upload.
const TransferBatchSize = 35

// TransferHeader is the CNB transfer CSV column order.
var TransferHeader = []string{"From", "To", "Amount", "From company ---> To company"}

// Transfer is one bank transfer instruction between two entity accounts.
type Transfer struct {
	FromAccount string
	ToAccount   string
	Amount      decimal.Decimal
	FromName    string
	ToName      string
}

// Annotation renders "<from> ---> <to>".
func (t Transfer) Annotation() string {
	return t.FromName + " ---> " + t.ToName
}

// Record renders the CSV row.
func (t Transfer) Record() []string {
	return []string{t.FromAccount, t.ToAccount, money.Format(t.Amount), t.Annotation()}
}

// BatchTransfers splits transfers into consecutive chunks of at most size rows.
func BatchTransfers(transfers []Transfer, size int) [][]Transfer {
	if size <= 0 {
		size = TransferBatchSize
	}
	var batches [][]Transfer
	for start := 0; start < len(transfers); start += size {
		end := start + size
		if end > len(transfers) {
			end = len(transfers)
		}
		batches = append(batches, transfers[start:end])
	}
	return batches
}

// TransferRecords renders a header plus one row per transfer.
func TransferRecords(transfers []Transfer) [][]string {
	out := [][]string{TransferHeader}
	for _, t := range transfers {
		out = append(out, t.Record())
	}
	return out
}
