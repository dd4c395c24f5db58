package tabular

import (
	"path/filepath"
	"sort"
	"strings"
)

// Role identifies which export a file is, and therefore which parser reads it.
type Role string

const (
	RolePOSOrder          Role = "POS-order"
	RoleOLOItemized       Role = "OLO-itemized"
	RoleOLOCancelled      Role = "OLO-cancelled"
	RoleOLOTransaction    Role = "OLO-transaction"
	RoleERPGL             Role = "ERP-GL"
	RoleKnockBilling      Role = "knock-billing"
	RoleRelay             Role = "relay"
	RoleNewCompanyTips    Role = "new-company-tips"
	RoleTipsPOS           Role = "tips-pos"
	RoleGroupOverview     Role = "group-overview"
	RolePnL               Role = "PnL"
	RoleTaxExempt         Role = "tax-exempt"
	RoleDoorDash          Role = "DD-JE-input"
	RoleGrubHub           Role = "GH-JE-input"
	RoleUberEats          Role = "UE-JE-input"
	RoleBankBalance       Role = "bank-balance"
	RoleACHBatch          Role = "ACH-batch"
	RoleCNBTransfer       Role = "CNB-transfer-input"
	RoleFundsTransfer     Role = "Funds-transfer-input"
	RoleAPReport          Role = "AP-report"
	RoleAPPaymentRun      Role = "AP-payment-run"
	RoleTimeEntries       Role = "time-entries"
	RolePayrollDictionary Role = "payroll-dictionary"
	RoleDailySalesSummary Role = "daily-sales-summary"
)

type roleRule struct {
	prefix string
	exts   []string
	role   Role
}

var roleRules = []roleRule{
	{"order", []string{".csv"}, RolePOSOrder},
	{"itemized_orders", []string{".csv"}, RoleOLOItemized},
	{"itemized_cancelled", []string{".csv"}, RoleOLOCancelled},
	{"transaction", []string{".csv"}, RoleOLOTransaction},
	{"gl", []string{".csv"}, RoleERPGL},
	{"billing", []string{".xlsx"}, RoleKnockBilling},
	{"relay_", []string{".xlsx"}, RoleRelay},
	{"relacion", []string{".xlsx"}, RoleNewCompanyTips},
	{"payroll", []string{".csv"}, RoleTipsPOS},
	{"groupoverview", []string{".csv"}, RoleGroupOverview},
	{"profitloss", []string{".csv"}, RolePnL},
	{"tax", []string{".csv"}, RoleTaxExempt},
	{"doordash", []string{".csv"}, RoleDoorDash},
	{"grubhub", []string{".csv"}, RoleGrubHub},
	{"ue", []string{".csv"}, RoleUberEats},
	{"balance", []string{".csv"}, RoleBankBalance},
	{"ach", []string{".csv"}, RoleACHBatch},
	{"cnb", []string{".csv"}, RoleCNBTransfer},
	{"funds", []string{".csv"}, RoleFundsTransfer},
	{"apreport", []string{".csv"}, RoleAPReport},
	{"appayments", []string{".csv", ".xlsx"}, RoleAPPaymentRun},
	{"timeentries", []string{".csv"}, RoleTimeEntries},
	{"payrolldictionary", []string{".xlsx"}, RolePayrollDictionary},
	{"salessummary", []string{".csv"}, RoleDailySalesSummary},
}

func init() {
	// Longest prefix wins.
	sort.SliceStable(roleRules, func(i, j int) bool {
		return len(roleRules[i].prefix) > len(roleRules[j].prefix)
	})
}

// DetectRole infers the role from a file name (case-insensitive prefix plus extension).
func DetectRole(path string) (Role, bool) {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)
	for _, rule := range roleRules {
		if !strings.HasPrefix(base, rule.prefix) {
			continue
		}
		for _, e := range rule.exts {
			if e == ext {
				return rule.role, true
			}
		}
	}
	return "", false
}

// Roles lists every known role in a stable order.
func Roles() []Role {
	seen := make(map[Role]bool)
	var out []Role
	for _, rule := range roleRules {
		if !seen[rule.role] {
			seen[rule.role] = true
			out = append(out, rule.role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
