// Package mapping provides the canonical name tables shared by every pipeline:
// locations, legal entities, bank accounts, vendors and the grouped family.
package mapping

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var registryYAML []byte

// Location is a canonical store display name (e.g. "Brickell").
type Location string

// LegalEntity is a formal entity name (e.g. "Carrot Love Brickell Operating LLC").
type LegalEntity string

// Category drives royalty and tax rules.
type Category string

const (
	CategoryStandardFL    Category = "standard_fl"
	CategorySouthBeach    Category = "south_beach"
	CategoryPlantation    Category = "plantation"
	CategoryMidtown       Category = "midtown"
	CategoryGroupedFamily Category = "grouped_family"
	CategoryNewYork       Category = "new_york"
	CategoryNewJersey     Category = "new_jersey"
	CategoryExcluded      Category = "excluded"
)

// AccountKind selects a bank product.
type AccountKind string

const (
	Checking AccountKind = "checking"
	Savings  AccountKind = "savings"
	Loan     AccountKind = "loan"
)

// LocationEntry is one row of the locations table.
type LocationEntry struct {
	Name        Location    `yaml:"name"`
	LegalEntity LegalEntity `yaml:"legal_entity"`
	Category    Category    `yaml:"category"`
	State       string      `yaml:"state"`
	JESuffix    string      `yaml:"je_suffix"`
	Excluded    bool        `yaml:"excluded"`
	Aliases     []string    `yaml:"aliases"`
}

// EntityEntry is one row of the legal entities table.
type EntityEntry struct {
	Name             LegalEntity            `yaml:"name"`
	DueToFromAccount string                 `yaml:"due_to_from_account"`
	CheckingAccount  string                 `yaml:"checking_account"`
	BankLabel        string                 `yaml:"bank_label"`
	Bank             map[AccountKind]string `yaml:"bank"`
}

// VendorInfo is the ACH payee data for a vendor. Account and routing are text.
type VendorInfo struct {
	Name    string   `yaml:"name"`
	Account string   `yaml:"account"`
	Routing string   `yaml:"routing"`
	Aliases []string `yaml:"aliases"`
}

// CategoryRates holds percentages as decimal strings ("8.875").
type CategoryRates struct {
	TaxRate            decimal.Decimal `yaml:"tax_rate"`
	RoyaltyRate        decimal.Decimal `yaml:"royalty_rate"`
	ThirdPartyRate     decimal.Decimal `yaml:"third_party_rate"`
	ResortTaxRate      decimal.Decimal `yaml:"resort_tax_rate"`
	ThirdPartyDelivery bool            `yaml:"third_party_delivery"`
}

// Fees holds the franchisor/leadership invoice parameters.
type Fees struct {
	Franchisor            string          `yaml:"franchisor"`
	Leadership            string          `yaml:"leadership"`
	CleadershipRate       decimal.Decimal `yaml:"cleadership_rate"`
	MidtownLeadershipRate decimal.Decimal `yaml:"midtown_leadership_rate"`
	PaymentTerms          string          `yaml:"payment_terms"`
	DueDays               int             `yaml:"due_days"`
}

// AccountPair maps a revenue account to its mirror expense account.
type AccountPair struct {
	Revenue string `yaml:"revenue"`
	Expense string `yaml:"expense"`
}

// GroupedFamily describes the locations that share one legal entity.
type GroupedFamily struct {
	LegalEntity  LegalEntity `yaml:"legal_entity"`
	CombinedName string      `yaml:"combined_name"`
	Locations    []Location  `yaml:"locations"`
}

// Document is the YAML shape of the registry.
type Document struct {
	GroupedFamily GroupedFamily              `yaml:"grouped_family"`
	Locations     []LocationEntry            `yaml:"locations"`
	LegalEntities []EntityEntry              `yaml:"legal_entities"`
	SortOrder     []Location                 `yaml:"sort_order"`
	Categories    map[Category]CategoryRates `yaml:"categories"`
	Fees          Fees                       `yaml:"fees"`
	AccountPairs  []AccountPair              `yaml:"account_pairs"`
	Vendors       []VendorInfo               `yaml:"vendors"`
	ACHAliases    map[string]string          `yaml:"ach_aliases"`
}

// Registry is the read-only lookup service. It is safe for concurrent use.
type Registry struct {
	doc Document

	locationByKey   map[string]Location
	locations       map[Location]LocationEntry
	entities        map[LegalEntity]EntityEntry
	entityByKey     map[string]LegalEntity
	locationsOf     map[LegalEntity][]Location
	entityByAccount map[string]LegalEntity
	vendorByKey     map[string]VendorInfo
	achAliases      map[string]string
	revenueToExp    map[string]string
	expenseToRev    map[string]string
	sortIndex       map[Location]int

	suggestOnce sync.Once
	suggester   *suggester
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry compiled into the binary.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Load(registryYAML)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded mapping registry is invalid: %v", defaultErr))
	}
	return defaultRegistry
}

// Load parses a registry document.
func Load(data []byte) (*Registry, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	r := &Registry{doc: doc}
	if err := r.buildIndexes(); err != nil {
		return nil, err
	}
	return r, nil
}

// buildIndexes builds the lookup maps from the document and checks cross references.
func (r *Registry) buildIndexes() error {
	r.locationByKey = make(map[string]Location)
	r.locations = make(map[Location]LocationEntry)
	r.entities = make(map[LegalEntity]EntityEntry)
	r.entityByKey = make(map[string]LegalEntity)
	r.locationsOf = make(map[LegalEntity][]Location)
	r.entityByAccount = make(map[string]LegalEntity)
	r.vendorByKey = make(map[string]VendorInfo)
	r.achAliases = make(map[string]string)
	r.revenueToExp = make(map[string]string)
	r.expenseToRev = make(map[string]string)
	r.sortIndex = make(map[Location]int)

	for _, e := range r.doc.LegalEntities {
		r.entities[e.Name] = e
		if k := LocationKey(string(e.Name)); k != "" {
			r.entityByKey[k] = e.Name
		}
		r.entityByKey[looseKey(string(e.Name))] = e.Name
		for _, acct := range e.Bank {
			r.entityByAccount[acct] = e.Name
		}
	}

	for _, loc := range r.doc.Locations {
		if _, ok := r.entities[loc.LegalEntity]; !ok {
			return fmt.Errorf("location %s references unknown legal entity %s", loc.Name, loc.LegalEntity)
		}
		r.locations[loc.Name] = loc
		r.locationByKey[LocationKey(string(loc.Name))] = loc.Name
		for _, alias := range loc.Aliases {
			r.locationByKey[LocationKey(alias)] = loc.Name
		}
		if loc.LegalEntity != r.doc.GroupedFamily.LegalEntity {
			r.locationByKey[LocationKey(string(loc.LegalEntity))] = loc.Name
		}
		r.locationsOf[loc.LegalEntity] = append(r.locationsOf[loc.LegalEntity], loc.Name)
	}

	for i, name := range r.doc.SortOrder {
		r.sortIndex[name] = i
	}

	for _, v := range r.doc.Vendors {
		r.vendorByKey[looseKey(v.Name)] = v
		for _, alias := range v.Aliases {
			r.vendorByKey[looseKey(alias)] = v
		}
	}
	for raw, vendor := range r.doc.ACHAliases {
		r.achAliases[looseKey(raw)] = vendor
	}

	for _, p := range r.doc.AccountPairs {
		r.revenueToExp[p.Revenue] = p.Expense
		r.expenseToRev[p.Expense] = p.Revenue
	}

	for _, loc := range r.doc.GroupedFamily.Locations {
		if _, ok := r.locations[loc]; !ok {
			return fmt.Errorf("grouped family references unknown location %s", loc)
		}
	}
	return nil
}

// ResolveLocation normalizes any system's spelling of a store.
// The second result is false when the spelling is unknown; callers report it.
func (r *Registry) ResolveLocation(raw string) (Location, bool) {
	key := LocationKey(raw)
	if key == "" {
		return "", false
	}
	loc, ok := r.locationByKey[key]
	return loc, ok
}

// HasLocation reports whether name is a canonical location.
func (r *Registry) HasLocation(name Location) bool {
	_, ok := r.locations[name]
	return ok
}

// Entry returns the full table row for a canonical location.
func (r *Registry) Entry(loc Location) (LocationEntry, bool) {
	e, ok := r.locations[loc]
	return e, ok
}

// LegalEntityOf maps a location to its legal entity.
func (r *Registry) LegalEntityOf(loc Location) LegalEntity {
	return r.locations[loc].LegalEntity
}

// LocationsOf is the reverse lookup; it returns three locations for the grouped family.
func (r *Registry) LocationsOf(entity LegalEntity) []Location {
	out := make([]Location, len(r.locationsOf[entity]))
	copy(out, r.locationsOf[entity])
	r.SortLocations(out)
	return out
}

// ResolveEntity resolves a raw legal-entity spelling.
func (r *Registry) ResolveEntity(raw string) (LegalEntity, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	if e, ok := r.entityByKey[looseKey(raw)]; ok {
		return e, true
	}
	if e, ok := r.entityByKey[LocationKey(raw)]; ok {
		return e, true
	}
	return "", false
}

// Entity returns the full row for a legal entity.
func (r *Registry) Entity(entity LegalEntity) (EntityEntry, bool) {
	e, ok := r.entities[entity]
	return e, ok
}

// GroupedFamily returns the grouped-family description.
func (r *Registry) GroupedFamily() GroupedFamily {
	return r.doc.GroupedFamily
}

// IsGrouped reports whether loc belongs to the grouped family.
func (r *Registry) IsGrouped(loc Location) bool {
	return r.locations[loc].LegalEntity == r.doc.GroupedFamily.LegalEntity
}

// Category returns the royalty/tax category of loc.
func (r *Registry) Category(loc Location) Category {
	return r.locations[loc].Category
}

// Rates returns the percentages for a category.
func (r *Registry) Rates(c Category) CategoryRates {
	return r.doc.Categories[c]
}

// Fees returns the franchisor and leadership invoice parameters.
func (r *Registry) Fees() Fees {
	return r.doc.Fees
}

// JESuffix returns the short code used in journal entry numbers.
func (r *Registry) JESuffix(loc Location) string {
	return r.locations[loc].JESuffix
}

// State returns the two-letter state of loc.
func (r *Registry) State(loc Location) string {
	return r.locations[loc].State
}

// Excluded reports whether loc is never processed.
func (r *Registry) Excluded(loc Location) bool {
	return r.locations[loc].Excluded
}

// ExcludedLocations lists the stores that are never processed.
func (r *Registry) ExcludedLocations() []Location {
	var out []Location
	for _, loc := range r.doc.Locations {
		if loc.Excluded {
			out = append(out, loc.Name)
		}
	}
	return out
}

// ActiveLocations lists processed locations in report order.
func (r *Registry) ActiveLocations() []Location {
	out := make([]Location, 0, len(r.doc.Locations))
	for _, loc := range r.doc.Locations {
		if !loc.Excluded {
			out = append(out, loc.Name)
		}
	}
	r.SortLocations(out)
	return out
}

// VendorInfo resolves a raw vendor string.
func (r *Registry) VendorInfo(raw string) (VendorInfo, bool) {
	v, ok := r.vendorByKey[looseKey(raw)]
	return v, ok
}

// CanonicalVendor maps a vendor spelling from either the ERP or the bank's ACH export to
// one comparable name. Unknown names come back trimmed and upper-cased.
func (r *Registry) CanonicalVendor(raw string) string {
	if v, ok := r.achAliases[looseKey(raw)]; ok {
		return v
	}
	if v, ok := r.vendorByKey[looseKey(raw)]; ok {
		return v.Name
	}
	return strings.ToUpper(strings.Join(strings.Fields(raw), " "))
}

// BankAccountFor returns the bank account of an entity for a product kind.
func (r *Registry) BankAccountFor(entity LegalEntity, kind AccountKind) (string, bool) {
	acct, ok := r.entities[entity].Bank[kind]
	return acct, ok && acct != ""
}

// EntityForBankAccount is the reverse of BankAccountFor.
func (r *Registry) EntityForBankAccount(account string) (LegalEntity, bool) {
	e, ok := r.entityByAccount[strings.TrimSpace(account)]
	return e, ok
}

// BankLabel returns the human label of an entity's checking account.
func (r *Registry) BankLabel(entity LegalEntity) string {
	return r.entities[entity].BankLabel
}

// DueToFromAccount returns the ERP account that other entities use for entity.
func (r *Registry) DueToFromAccount(entity LegalEntity) string {
	return r.entities[entity].DueToFromAccount
}

// CheckingAccount returns the ERP cash account of entity.
func (r *Registry) CheckingAccount(entity LegalEntity) string {
	return r.entities[entity].CheckingAccount
}

// ExpenseAccountFor maps a revenue account to the mirrored expense account.
func (r *Registry) ExpenseAccountFor(revenue string) (string, bool) {
	e, ok := r.revenueToExp[revenue]
	return e, ok
}

// RevenueAccountFor maps an expense account back to its revenue account.
func (r *Registry) RevenueAccountFor(expense string) (string, bool) {
	rev, ok := r.expenseToRev[expense]
	return rev, ok
}

// SortIndex returns the report position of loc; unknown locations sort last.
func (r *Registry) SortIndex(loc Location) int {
	if i, ok := r.sortIndex[loc]; ok {
		return i
	}
	return len(r.sortIndex)
}

// SortLocations sorts in report order, then by name.
func (r *Registry) SortLocations(locs []Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		a, b := r.SortIndex(locs[i]), r.SortIndex(locs[j])
		if a != b {
			return a < b
		}
		return locs[i] < locs[j]
	})
}

// GetAllLocations returns every canonical location including excluded ones.
func (r *Registry) GetAllLocations() []Location {
	out := make([]Location, 0, len(r.doc.Locations))
	for _, loc := range r.doc.Locations {
		out = append(out, loc.Name)
	}
	return out
}
