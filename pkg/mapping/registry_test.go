package mapping

import (
	"testing"

	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocation(t *testing.T) {
	reg := Default()

	tests := []struct {
		name string
		raw  string
		want Location
		ok   bool
	}{
		{"display name", "Brickell", "Brickell", true},
		{"upper case", "FORT LAUDERDALE", "Fort Lauderdale", true},
		{"pos wrapper", "Carrot Express - Ft. Lauderdale", "Fort Lauderdale", true},
		{"legal entity", "Carrot Love Weston Operating LLC", "Weston", true},
		{"accent", "Coral Gábles", "Coral Gables", true},
		{"alias", "NoBe", "North Beach", true},
		{"alias beats prefix", "Midtown NYC", "Bryant Park", true},
		{"midtown miami", "Midtown", "Midtown", true},
		{"excluded still resolves", "Central Kitchen", "Commissary", true},
		{"unknown", "Orlando", "", false},
		{"empty", "  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reg.ResolveLocation(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroupedFamily(t *testing.T) {
	reg := Default()
	family := reg.GroupedFamily()

	assert.Equal(t, LegalEntity("Carrot Love LLC"), family.LegalEntity)
	assert.Equal(t, []Location{"North Beach", "Aventura", "Coral Gables"}, reg.LocationsOf(family.LegalEntity))
	assert.True(t, reg.IsGrouped("Aventura"))
	assert.False(t, reg.IsGrouped("Brickell"))
	assert.Equal(t, family.LegalEntity, reg.LegalEntityOf("Coral Gables"))

	// The three members share one bank account.
	acct, ok := reg.BankAccountFor(family.LegalEntity, Checking)
	require.True(t, ok)
	entity, ok := reg.EntityForBankAccount(acct)
	require.True(t, ok)
	assert.Equal(t, family.LegalEntity, entity)
}

func TestResolveEntity(t *testing.T) {
	reg := Default()

	e, ok := reg.ResolveEntity("CARROT LOVE LLC")
	require.True(t, ok)
	assert.Equal(t, LegalEntity("Carrot Love LLC"), e)

	e, ok = reg.ResolveEntity("Carrot Love Brickell Operating, LLC")
	require.True(t, ok)
	assert.Equal(t, LegalEntity("Carrot Love Brickell Operating LLC"), e)

	_, ok = reg.ResolveEntity("")
	assert.False(t, ok)
}

func TestVendorInfoKeepsLeadingZeros(t *testing.T) {
	reg := Default()

	v, ok := reg.VendorInfo("ECOLAB INC")
	require.True(t, ok)
	assert.Equal(t, "Ecolab", v.Name)
	assert.Equal(t, "0000617724", v.Account)
	assert.Equal(t, "031100209", v.Routing)

	_, ok = reg.VendorInfo("Nobody Supplies")
	assert.False(t, ok)
}

func TestCanonicalVendor(t *testing.T) {
	reg := Default()

	assert.Equal(t, "Sysco South Florida", reg.CanonicalVendor("SYSCO FOOD SVC"))
	assert.Equal(t, "Sysco South Florida", reg.CanonicalVendor("sysco"))
	assert.Equal(t, "ACME ICE CO", reg.CanonicalVendor("  acme   ice co "))
}

func TestBankAccounts(t *testing.T) {
	reg := Default()
	brickell := reg.LegalEntityOf("Brickell")

	checking, ok := reg.BankAccountFor(brickell, Checking)
	require.True(t, ok)
	assert.Equal(t, "30000488101", checking)

	_, ok = reg.BankAccountFor(reg.LegalEntityOf("Weston"), Loan)
	assert.False(t, ok)

	assert.Equal(t, "Due To/From Brickell", reg.DueToFromAccount(brickell))
	assert.Equal(t, "10100 - Checking Brickell", reg.CheckingAccount(brickell))
}

func TestExcludedLocations(t *testing.T) {
	reg := Default()

	excluded := reg.ExcludedLocations()
	assert.Contains(t, excluded, Location("Commissary"))
	for _, loc := range reg.ActiveLocations() {
		assert.False(t, reg.Excluded(loc), "%s should not be active", loc)
	}
}

func TestCategoriesAndRates(t *testing.T) {
	reg := Default()

	assert.Equal(t, CategoryNewYork, reg.Category("Flatiron"))
	assert.Equal(t, "8.875", reg.Rates(CategoryNewYork).TaxRate.String())
	assert.True(t, reg.Rates(CategoryNewJersey).ThirdPartyDelivery)
	assert.Equal(t, "2", reg.Rates(CategorySouthBeach).ResortTaxRate.String())
	assert.Equal(t, "FLT", reg.JESuffix("Flatiron"))
}

func TestCounterpartAccounts(t *testing.T) {
	reg := Default()

	exp, ok := reg.ExpenseAccountFor("40100 - Royalty Income")
	require.True(t, ok)
	assert.Equal(t, "60100 - Royalty Expense", exp)

	rev, ok := reg.RevenueAccountFor(exp)
	require.True(t, ok)
	assert.Equal(t, "40100 - Royalty Income", rev)
}

func TestSortLocations(t *testing.T) {
	reg := Default()
	locs := []Location{"Zeta Unknown", "Hoboken", "Brickell"}
	reg.SortLocations(locs)

	assert.Equal(t, Location("Brickell"), locs[0])
	assert.Equal(t, Location("Zeta Unknown"), locs[2])
}

func TestSuggest(t *testing.T) {
	reg := Default()

	loc, ok := reg.Suggest("Brickel")
	require.True(t, ok)
	assert.Equal(t, Location("Brickell"), loc)

	_, ok = reg.ResolveLocation("Brickel")
	assert.False(t, ok, "suggestions must never resolve")

	err := reg.Miss("Brickel")
	assert.Equal(t, reconerr.KindMappingMiss, reconerr.KindOf(err))
	assert.Contains(t, err.Error(), `did you mean "Brickell"`)
}

func TestLoadRejectsDanglingEntity(t *testing.T) {
	doc := []byte(`
locations:
  - {name: Ghost, legal_entity: Nobody LLC, category: standard_fl}
`)
	_, err := Load(doc)
	assert.Error(t, err)
}
