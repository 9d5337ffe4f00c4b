// Package fields maps business-semantic column roles (sales rep, deal value,
// deal stage, close date) onto the actual headers of a user's dataset.
// CRM exports spell the same concept a dozen ways ("Amount ($)", "deal_value",
// "Revenue"); the registry holds the keyword families and the resolver picks
// the best header per dataset.
package fields

// CanonicalField describes one semantic column role.
type CanonicalField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
}

// Semantic field keys used across the service.
const (
	SalesRep  = "sales_rep"
	DealValue = "deal_value"
	DealStage = "deal_stage"
	CloseDate = "close_date"
	Customer  = "customer"
	City      = "city"
	Region    = "region"
	Country   = "country"
)

// Registry is the static table of canonical fields. Populated once at process
// start, read-only thereafter. Keyword order is stable for reproducible
// diagnostics even though matching is a set test.
var Registry = map[string]CanonicalField{
	SalesRep: {
		Key:   SalesRep,
		Label: "Sales Representative",
		Keywords: []string{
			"rep", "sales_rep", "salesperson",
			"agent", "owner", "account_manager", "manager",
		},
	},
	DealValue: {
		Key:   DealValue,
		Label: "Deal Value",
		Keywords: []string{
			"amount", "value", "deal_value",
			"revenue", "price", "total",
		},
	},
	DealStage: {
		Key:   DealStage,
		Label: "Deal Stage",
		Keywords: []string{
			"stage", "status",
			"pipeline_stage", "deal_stage",
		},
	},
	CloseDate: {
		Key:   CloseDate,
		Label: "Close Date",
		Keywords: []string{
			"close_date", "closed_date",
			"won_date", "date_closed",
		},
	},
	Customer: {
		Key:      Customer,
		Label:    "Customer",
		Keywords: []string{"customer", "client", "account", "company"},
	},
	City: {
		Key:      City,
		Label:    "City",
		Keywords: []string{"city", "town"},
	},
	Region: {
		Key:      Region,
		Label:    "Region",
		Keywords: []string{"region", "territory", "area"},
	},
	Country: {
		Key:      Country,
		Label:    "Country",
		Keywords: []string{"country", "nation"},
	},
}

// Lookup returns the canonical field for a key. Unknown keys return an empty
// field with no keywords so callers can treat "no mapping" uniformly.
func Lookup(key string) CanonicalField {
	if f, ok := Registry[key]; ok {
		return f
	}
	return CanonicalField{Key: key}
}
