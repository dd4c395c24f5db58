// Package aprecon reconciles the ERP's approved AP payments against the bank's ACH
// batch export and each account's available balance.
package aprecon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/shopspring/decimal"
)

// BankPrefix starts the third line of each account block in the balance export.
const BankPrefix = "City National Bank of Florida"

var accountPattern = regexp.MustCompile(`\d{8,}`)

// AccountNumber extracts the bank account number from a label such as
// "Brickell - 30000488101". It returns "" when there is none.
func AccountNumber(s string) string {
	found := accountPattern.FindAllString(s, -1)
	if len(found) == 0 {
		return ""
	}
	return found[len(found)-1]
}

// Balance is one account block of the balance export.
type Balance struct {
	Account   string
	Label     string
	Available decimal.Decimal
	Current   decimal.Decimal
}

// ParseBalances walks the three-lines-per-account layout:
//
//	Available Balance $X
//	Current Balance $Y
//	City National Bank of Florida <label> <acct#>
//
// Accounts whose label names a loan are skipped.
func ParseBalances(t *tabular.Table) (map[string]Balance, error) {
	out := make(map[string]Balance)
	var available, current *decimal.Decimal

	for _, rec := range t.Records {
		line := strings.Join(strings.Fields(strings.Join(rec, " ")), " ")
		switch {
		case line == "":
			continue
		case hasPrefixFold(line, "Available Balance"):
			v, err := amountAfter(t.Name, line, "Available Balance")
			if err != nil {
				return nil, err
			}
			available = &v
		case hasPrefixFold(line, "Current Balance"):
			v, err := amountAfter(t.Name, line, "Current Balance")
			if err != nil {
				return nil, err
			}
			current = &v
		case hasPrefixFold(line, BankPrefix):
			rest := strings.TrimSpace(line[len(BankPrefix):])
			acct := AccountNumber(rest)
			label := strings.TrimSpace(strings.TrimSuffix(rest, acct))
			if acct == "" || available == nil {
				available, current = nil, nil
				continue
			}
			if !strings.Contains(strings.ToLower(label), "loan") {
				b := Balance{Account: acct, Label: label, Available: *available}
				if current != nil {
					b.Current = *current
				}
				out[acct] = b
			}
			available, current = nil, nil
		}
	}
	return out, nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func amountAfter(file, line, label string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(strings.TrimLeft(line[len(label):], " :"))
	v, err := money.Parse(raw)
	if err != nil {
		return decimal.Zero, reconerr.ValueParse(file, raw, err)
	}
	return v, nil
}

// ACHPayment is one recipient line of the bank's ACH batch export.
type ACHPayment struct {
	Account   string
	Recipient string
	Amount    decimal.Decimal
}

// ParseACHBatch reads the bank export where each account section starts with a
// "From Account,<acct>" anchor row followed by a detail header carrying
// "Recipient Name" and "Recipient Payment Amount". Unreadable amounts are reported
// through warn and skipped.
func ParseACHBatch(t *tabular.Table, warn func(error)) ([]ACHPayment, error) {
	var out []ACHPayment
	account := ""
	nameCol, amountCol := -1, -1
	sawAnchor := false

	for i, rec := range t.Records {
		if len(rec) == 0 {
			continue
		}
		first := strings.TrimSpace(rec[0])
		if hasPrefixFold(first, "From Account") {
			rest := strings.Join(rec, " ")
			account = AccountNumber(rest)
			sawAnchor = true
			continue
		}
		if idx := indexFold(rec, "Recipient Name"); idx >= 0 {
			nameCol = idx
			amountCol = indexFold(rec, "Recipient Payment Amount")
			continue
		}
		if account == "" || nameCol < 0 || amountCol < 0 || amountCol >= len(rec) || nameCol >= len(rec) {
			continue
		}
		name := strings.TrimSpace(rec[nameCol])
		if name == "" {
			continue
		}
		raw := strings.TrimSpace(rec[amountCol])
		amount, err := money.Parse(raw)
		if err != nil {
			warn(reconerr.ValueParse(t.Name, raw, fmt.Errorf("line %d: %w", i+1, err)))
			continue
		}
		out = append(out, ACHPayment{Account: account, Recipient: name, Amount: amount})
	}
	if !sawAnchor {
		return nil, reconerr.MissingColumn(t.Name, "From Account")
	}
	if nameCol < 0 || amountCol < 0 {
		return nil, reconerr.MissingColumn(t.Name, "Recipient Name", "Recipient Payment Amount")
	}
	return out, nil
}

func indexFold(rec []string, name string) int {
	for i, v := range rec {
		if strings.EqualFold(strings.TrimSpace(v), name) {
			return i
		}
	}
	return -1
}

// Payment type buckets of the ERP AP report.
const (
	TypeACHB = "ACHB"
	TypeWire = "WIRE"
	TypeRent = "RENT"
	TypeXFR  = "XFR"
)

// APPayment is one approved payment from the ERP AP report.
type APPayment struct {
	Account string
	Vendor  string
	Invoice string
	Type    string
	Amount  decimal.Decimal
}

// ParseAPReport keeps ACHB, WIRE, RENT and XFR rows. XFR rows already marked paid in
// Approved Payment Date are dropped.
func ParseAPReport(t *tabular.Table, warn func(error)) []APPayment {
	var out []APPayment
	for _, row := range t.Rows {
		kind := strings.ToUpper(row.Get("Payment Type"))
		switch kind {
		case TypeACHB, TypeWire, TypeRent:
		case TypeXFR:
			if strings.Contains(strings.ToLower(row.Get("Approved Payment Date")), "paid") {
				continue
			}
		default:
			continue
		}
		amount, err := row.Money("Amount")
		if err != nil {
			warn(err)
			continue
		}
		acct := AccountNumber(row.Get("Bank Account"))
		if acct == "" {
			warn(reconerr.ValueParse(t.Name, row.Get("Bank Account"), fmt.Errorf("line %d: no account number", row.Line)))
			continue
		}
		out = append(out, APPayment{
			Account: acct,
			Vendor:  row.Get("Vendor"),
			Invoice: row.Get("Invoice Number"),
			Type:    kind,
			Amount:  amount,
		})
	}
	return out
}
