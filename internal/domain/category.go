package domain

// Category is a household spending category.
type Category struct {
	ID          int64  `json:"id"`
	HouseholdID string `json:"household_id"`
	Name        string `json:"name"`
}

// Rule maps an uppercase merchant substring to a category. Rules are matched
// in ascending ID order.
type Rule struct {
	ID          int64  `json:"id"`
	HouseholdID string `json:"household_id"`
	Pattern     string `json:"pattern"`
	CategoryID  int64  `json:"category_id"`
	Category    string `json:"category"`
}
