package categorize

// DefaultKeywords is the upload-time keyword map, checked in this order.
var DefaultKeywords = []Keyword{
	{Category: "Medical", Words: []string{"medplus", "pharma", "chemist", "hospital"}},
	{Category: "Groceries", Words: []string{"vegetable", "fruit", "grocery", "supermarket", "mart"}},
	{Category: "Fuel", Words: []string{"hp", "indian oil", "indianoil", "shell", "petrol"}},
	{Category: "Food", Words: []string{"hotel", "restaurant", "biryani", "grill", "cafe"}},
	{Category: "Shopping", Words: []string{"mobile", "electronics", "clothing", "store"}},
	{Category: "Finance", Words: []string{"zerodha", "bank", "broker", "mutual"}},
	{Category: "Family", Words: []string{"jenitha", "ashok", "amma", "dad"}},
}

// DefaultCategories are seeded into a new household.
var DefaultCategories = []string{
	"Groceries",
	"Medical",
	"Electronics",
	"Finance",
	"Transport",
	"Food",
	"Shopping",
	"Others",
}

// SeedRule is a default pattern and the name of its category.
type SeedRule struct {
	Pattern  string
	Category string
}

// DefaultRules are seeded into a new household, in match order.
var DefaultRules = []SeedRule{
	{"VEGETABLE", "Groceries"},
	{"VEG", "Groceries"},
	{"FRUITS", "Groceries"},
	{"AR ", "Groceries"},
	{"AMUDHAM", "Groceries"},
	{"RATIONS", "Groceries"},

	{"MEDPLUS", "Medical"},
	{"PHARMACY", "Medical"},

	{"MOBILE", "Electronics"},
	{"MOBILES", "Electronics"},
	{"SATHYA", "Electronics"},

	{"ZERODHA", "Finance"},
	{"GROWW", "Finance"},
	{"PHONEPE", "Finance"},

	{"AUTO", "Transport"},
	{"CAB", "Transport"},
	{"OLA", "Transport"},
	{"UBER", "Transport"},

	{"FOOD", "Food"},
	{"HOTEL", "Food"},
	{"RESTAURANT", "Food"},

	{"STARKINDUSTRIES", "Shopping"},
	{"AMAZON", "Shopping"},
	{"FLIPKART", "Shopping"},
}
