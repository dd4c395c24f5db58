package aprecon

import (
	"sort"

	"github.com/carrotexpress/backoffice/pkg/mapping"
	"github.com/carrotexpress/backoffice/pkg/money"
	"github.com/shopspring/decimal"
)

// Payment statuses.
const (
	StatusPay          = "Pay"
	StatusInsufficient = "Insufficient Funds"
)

// SummaryHeader is the summary CSV column order.
var SummaryHeader = []string{
	"Bank Account", "Available Balance", "R365 Net", "WIRE/XFR Net", "ACH Net", "Difference", "Payment Status",
}

// DiscrepancyHeader is the per-vendor drill-down column order.
var DiscrepancyHeader = []string{
	"Bank Account", "Vendor", "R365 Amount", "ACH Amount", "Difference", "First Invoice",
}

// AccountSummary is one bank account's reconciliation.
type AccountSummary struct {
	Account    string
	Available  decimal.Decimal
	R365Net    decimal.Decimal
	WireXFRNet decimal.Decimal
	ACHNet     decimal.Decimal
	Status     string
}

// Difference is R365 net minus ACH net.
func (s AccountSummary) Difference() decimal.Decimal {
	return s.R365Net.Sub(s.ACHNet)
}

// VendorDiff is one vendor whose ERP and bank totals disagree.
type VendorDiff struct {
	Account      string
	Vendor       string
	R365         decimal.Decimal
	ACH          decimal.Decimal
	FirstInvoice string
	// Total marks the end-of-bank summary row.
	Total bool
}

// Report is the reconciler's output.
type Report struct {
	Accounts []AccountSummary
	Vendors  []VendorDiff
	// OnlyERP and OnlyBank list accounts present in one payment source only.
	OnlyERP  []string
	OnlyBank []string
	// NoBalance lists accounts missing from the balance export.
	NoBalance []string
}

// Reconcile computes the per-account nets and, where ERP ACHB and bank ACH totals
// differ, the per-vendor drill-down. Vendors are compared by their canonical name.
func Reconcile(reg *mapping.Registry, balances map[string]Balance, ap []APPayment, ach []ACHPayment) Report {
	type sums struct {
		r365, wire, ach decimal.Decimal
		inERP, inBank   bool
	}
	byAccount := make(map[string]*sums)
	get := func(acct string) *sums {
		s, ok := byAccount[acct]
		if !ok {
			s = &sums{}
			byAccount[acct] = s
		}
		return s
	}

	for _, p := range ap {
		s := get(p.Account)
		s.inERP = true
		if p.Type == TypeACHB {
			s.r365 = s.r365.Add(p.Amount)
		} else {
			s.wire = s.wire.Add(p.Amount)
		}
	}
	for _, p := range ach {
		s := get(p.Account)
		s.inBank = true
		s.ach = s.ach.Add(p.Amount)
	}

	accounts := make([]string, 0, len(byAccount))
	for acct := range byAccount {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)

	var rep Report
	for _, acct := range accounts {
		s := byAccount[acct]
		if !s.inBank {
			rep.OnlyERP = append(rep.OnlyERP, acct)
		}
		if !s.inERP {
			rep.OnlyBank = append(rep.OnlyBank, acct)
		}
		bal, ok := balances[acct]
		if !ok {
			rep.NoBalance = append(rep.NoBalance, acct)
		}

		summary := AccountSummary{
			Account:    acct,
			Available:  bal.Available,
			R365Net:    s.r365,
			WireXFRNet: s.wire,
			ACHNet:     s.ach,
			Status:     StatusPay,
		}
		if bal.Available.LessThan(money.Round2(s.ach.Add(s.wire))) {
			summary.Status = StatusInsufficient
		}
		rep.Accounts = append(rep.Accounts, summary)

		if !s.r365.Sub(s.ach).Abs().GreaterThan(money.Cent) {
			continue
		}
		rep.Vendors = append(rep.Vendors, drillDown(reg, acct, ap, ach)...)
		rep.Vendors = append(rep.Vendors, VendorDiff{Account: acct, Vendor: "TOTAL", R365: s.r365, ACH: s.ach, Total: true})
	}
	return rep
}

func drillDown(reg *mapping.Registry, acct string, ap []APPayment, ach []ACHPayment) []VendorDiff {
	erp := make(map[string]decimal.Decimal)
	bank := make(map[string]decimal.Decimal)
	first := make(map[string]string)

	for _, p := range ap {
		if p.Account != acct || p.Type != TypeACHB {
			continue
		}
		v := reg.CanonicalVendor(p.Vendor)
		erp[v] = erp[v].Add(p.Amount)
		if _, ok := first[v]; !ok {
			first[v] = p.Invoice
		}
	}
	for _, p := range ach {
		if p.Account != acct {
			continue
		}
		v := reg.CanonicalVendor(p.Recipient)
		bank[v] = bank[v].Add(p.Amount)
	}

	vendors := make(map[string]bool)
	for v := range erp {
		vendors[v] = true
	}
	for v := range bank {
		vendors[v] = true
	}
	names := make([]string, 0, len(vendors))
	for v := range vendors {
		names = append(names, v)
	}
	sort.Strings(names)

	var out []VendorDiff
	for _, v := range names {
		if money.Equal(erp[v], bank[v]) {
			continue
		}
		out = append(out, VendorDiff{Account: acct, Vendor: v, R365: erp[v], ACH: bank[v], FirstInvoice: first[v]})
	}
	return out
}

// SummaryRecords renders the summary CSV.
func SummaryRecords(rep Report) [][]string {
	out := [][]string{SummaryHeader}
	for _, s := range rep.Accounts {
		out = append(out, []string{
			s.Account,
			money.Format(s.Available),
			money.Format(s.R365Net),
			money.Format(s.WireXFRNet),
			money.Format(s.ACHNet),
			money.Format(s.Difference()),
			s.Status,
		})
	}
	return out
}

// DiscrepancyRecords renders the drill-down CSV.
func DiscrepancyRecords(rep Report) [][]string {
	out := [][]string{DiscrepancyHeader}
	for _, v := range rep.Vendors {
		out = append(out, []string{
			v.Account,
			v.Vendor,
			money.Format(v.R365),
			money.Format(v.ACH),
			money.Format(v.R365.Sub(v.ACH)),
			v.FirstInvoice,
		})
	}
	return out
}
