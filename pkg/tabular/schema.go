package tabular

import (
	"context"

	"github.com/carrotexpress/backoffice/pkg/reconerr"
)

// Schema lists the columns a role's parser relies on.
type Schema struct {
	Required []Column
	Optional []Column
	// Irregular layouts (bank balance, ACH batch) are walked record by record.
	Irregular bool
}

var schemas = map[Role]Schema{
	RolePOSOrder: {
		Required: []Column{
			Col("Location", "Restaurant", "Store"),
			Col("Order Id", "Order #", "Order Number"),
			Col("Opened", "Opened Date"),
			Col("Dining Options", "Dining Option"),
			Col("Amount", "Total"),
		},
		Optional: []Column{Col("Subtotal"), Col("Tax"), Col("Tip"), Col("Gratuity")},
	},
	RoleOLOItemized: {
		Required: []Column{Col("Store Name", "Location", "Store"), Col("Order Id", "Order ID", "Order Number")},
	},
	RoleOLOCancelled: {
		Required: []Column{Col("Store Name", "Location", "Store"), Col("Order Id", "Order ID", "Order Number")},
	},
	RoleOLOTransaction: {
		Required: []Column{Col("Store Name", "Location", "Store"), Col("Amount", "Total")},
	},
	RoleERPGL: {
		Required: []Column{
			Col("Location"),
			Col("Parent Account"),
			Col("Account"),
			Col("Debit"),
			Col("Credit"),
			Col("Date", "Trx Date"),
		},
		Optional: []Column{
			Col("Transaction Number", "Trx Number"),
			Col("Company"),
			Col("Comment"),
			Col("Ending Balance", "textbox31"),
			Col("Textbox49"),
			Col("Textbox50"),
		},
	},
	RoleKnockBilling: {
		Required: []Column{Col("Location", "Store"), Col("Amount", "Total")},
	},
	RoleRelay: {
		Required: []Column{Col("Location", "Store", "Restaurant"), Col("Amount", "Total", "Fee")},
	},
	RoleNewCompanyTips: {
		Required: []Column{Col("Employee", "Empleado"), Col("Tips", "Propinas")},
		Optional: []Column{Col("Location", "Tienda")},
	},
	RoleTipsPOS: {
		Required: []Column{Col("Location"), Col("Employee"), Col("Tips", "Tip Total")},
	},
	RoleGroupOverview: {
		Required: []Column{Col("Location"), Col("Net Sales")},
		Optional: []Column{Col("Tax Amount"), Col("Non Taxable"), Col("Resort Tax")},
	},
	RolePnL: {
		Required: []Column{Col("Location"), Col("Net Sales")},
		Optional: []Column{
			Col("Delivery Fee"),
			Col("UberEats Total"),
			Col("UberEats Tax"),
			Col("Ezcater"),
			Col("DoorDash Total"),
			Col("Grubhub Total", "GrubHub Total"),
			Col("DoorDash Discounts"),
			Col("Promotions"),
			Col("Plantation Walk Payable"),
		},
	},
	RoleTaxExempt: {
		Required: []Column{Col("Location"), Col("Tax Exempt")},
	},
	RoleDoorDash: {
		Required: []Column{
			Col("Store name", "Store Name"),
			Col("Order date", "Timestamp local date"),
			Col("Transaction type"),
			Col("Subtotal"),
			Col("Net total"),
		},
		Optional: []Column{
			Col("Fulfillment type", "Channel"),
			Col("Subtotal tax passed to merchant", "Subtotal tax passed to Merchant"),
			Col("Commission"),
			Col("Marketing fees", "Marketing fees | (including any applicable taxes)"),
			Col("Customer discounts", "Customer discounts from marketing | (funded by you)"),
			Col("Error charges"),
			Col("Adjustments"),
		},
	},
	RoleGrubHub: {
		Required: []Column{
			Col("Restaurant"),
			Col("Transaction date", "transaction_date"),
			Col("Transaction type", "transaction_type"),
			Col("Fulfillment type", "fulfillment_type"),
			Col("Subtotal", "subtotal"),
			Col("Merchant net total", "merchant_net_total"),
		},
		Optional: []Column{
			Col("Delivery Fee", "delivery_fee"),
			Col("Tax", "subtotal_sales_tax"),
			Col("Tip", "tip"),
			Col("Merchant funded promotion", "merchant_funded_promotion"),
			Col("Commission", "commission"),
			Col("Delivery commission", "delivery_commission"),
			Col("Processing fee", "processing_fee"),
		},
	},
	RoleUberEats: {
		Required: []Column{Col("Location"), Col("Order Date"), Col("Account"), Col("Amount")},
		Optional: []Column{Col("Payout Date")},
	},
	RoleBankBalance:   {Irregular: true},
	RoleACHBatch:      {Irregular: true},
	RoleCNBTransfer:   {Required: []Column{Col("From"), Col("To"), Col("Amount")}},
	RoleFundsTransfer: {Required: []Column{Col("From"), Col("To"), Col("Amount")}},
	RoleAPReport: {
		Required: []Column{Col("Bank Account"), Col("Vendor"), Col("Payment Type"), Col("Amount")},
		Optional: []Column{Col("Invoice Number", "Invoice"), Col("Approved Payment Date")},
	},
	RoleAPPaymentRun: {
		Required: []Column{
			Col("Location"),
			Col("Vendor"),
			Col("Inv. Date", "Invoice Date"),
			Col("Invoice"),
			Col("Payment Date", "Due Date"),
			Col("Pay $", "Amount Due"),
		},
	},
	RoleTimeEntries: {
		Required: []Column{Col("Location"), Col("Employee"), Col("In Date"), Col("Total Hours")},
	},
	RolePayrollDictionary: {
		Required: []Column{Col("Location"), Col("Employee"), Col("Rate"), Col("Wage Basis")},
		Optional: []Column{
			Col("Co Code"),
			Col("File #", "File Number"),
			Col("Holiday Date"),
			Col("PAY?", "Pay"),
			Col("Tip Adjustment"),
			Col("Bonus"),
			Col("Wage Owed"),
			Col("Reimbursements", "Reimbursement"),
		},
	},
	RoleDailySalesSummary: {
		Required: []Column{Col("Location"), Col("Date"), Col("Net Sales")},
	},
}

// SchemaFor returns the column contract of a role.
func SchemaFor(role Role) (Schema, bool) {
	s, ok := schemas[role]
	return s, ok
}

// Apply binds the role's schema to t.
func (t *Table) Apply() error {
	s, ok := schemas[t.Role]
	if !ok || s.Irregular {
		return nil
	}
	return t.Bind(s.Required, s.Optional...)
}

// LoadRole loads and validates every file of a role. A required role with no
// files fails with FileNotFound; an optional one returns nil.
func LoadRole(ctx context.Context, set *InputSet, role Role, required bool) ([]*Table, error) {
	files := set.Files(role)
	if len(files) == 0 {
		if required {
			return nil, reconerr.FileNotFound(string(role))
		}
		return nil, nil
	}
	tables, err := LoadAll(ctx, files)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if err := t.Apply(); err != nil {
			return nil, err
		}
	}
	return tables, nil
}
