package categorize

import (
	"errors"
	"testing"

	"github.com/dvloznov/family-ledger/internal/domain"
)

func rules(pairs ...string) []domain.Rule {
	var out []domain.Rule
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.Rule{ID: int64(i/2 + 1), Pattern: pairs[i], Category: pairs[i+1]})
	}
	return out
}

func TestRuleEngine_FirstMatchWins(t *testing.T) {
	engine := NewRuleEngine(rules("AMAZON", "Shopping", "ZON", "Finance"))

	if got := engine.Classify("AMAZON PAY"); got != "Shopping" {
		t.Errorf("Classify(AMAZON PAY) = %q, want Shopping", got)
	}

	reversed := NewRuleEngine(rules("ZON", "Finance", "AMAZON", "Shopping"))
	if got := reversed.Classify("AMAZON PAY"); got != "Finance" {
		t.Errorf("reversed Classify(AMAZON PAY) = %q, want Finance", got)
	}
}

func TestRuleEngine_Classify(t *testing.T) {
	engine := NewRuleEngine(rules("medplus", "Medical", "UBER", "Transport", "AR ", "Groceries"))

	tests := []struct {
		merchant string
		want     string
	}{
		{"MedPlus Pharmacy", "Medical"},
		{"uber trip 42", "Transport"},
		{"SRI AR STORES", "Groceries"},
		{"STAR", "Others"},
		{"", "Others"},
	}

	for _, tt := range tests {
		t.Run(tt.merchant, func(t *testing.T) {
			if got := engine.Classify(tt.merchant); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.merchant, got, tt.want)
			}
		})
	}
}

func TestRuleEngine_SkipsEmptyPatterns(t *testing.T) {
	engine := NewRuleEngine(rules("", "Finance", "CAB", "Transport"))
	if got := engine.Classify("anything"); got != DefaultRuleCategory {
		t.Errorf("Classify() = %q, want %q", got, DefaultRuleCategory)
	}
}

func TestKeywordClassifier_Classify(t *testing.T) {
	k := NewKeywordClassifier(nil)

	tests := []struct {
		merchant string
		want     string
	}{
		{"MEDPLUS CHENNAI", "Medical"},
		{"Fresh Fruit Mart", "Groceries"},
		{"Indian Oil Petrol Bunk", "Fuel"},
		{"Paradise Biryani", "Food"},
		{"Zerodha Broking", "Finance"},
		{"Amma", "Family"},
		{"STARBUCKS", "Other"},
		{"", "Other"},
		// "hotel" is Food but "mart" (Groceries) is checked first.
		{"Hotel Mart", "Groceries"},
		{"Sathya Mobile Store", "Shopping"},
	}

	for _, tt := range tests {
		t.Run(tt.merchant, func(t *testing.T) {
			if got := k.Classify(tt.merchant); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.merchant, got, tt.want)
			}
		})
	}
}

func TestChain(t *testing.T) {
	c := NewChain(NewRuleEngine(rules("STARBUCKS", "Food")), NewKeywordClassifier(nil))

	if got := c.Classify("STARBUCKS MG ROAD"); got != "Food" {
		t.Errorf("rule hit = %q, want Food", got)
	}
	if got := c.Classify("medplus"); got != "Medical" {
		t.Errorf("keyword fallback = %q, want Medical", got)
	}
	if got := c.Classify("nothing matches"); got != DefaultKeywordCategory {
		t.Errorf("no match = %q, want %q", got, DefaultKeywordCategory)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		strategy string
		wantName string
		wantErr  bool
	}{
		{StrategyKeywords, StrategyKeywords, false},
		{"", StrategyKeywords, false},
		{StrategyRules, StrategyRules, false},
		{StrategyChain, StrategyChain, false},
		{"llm", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			c, err := New(tt.strategy, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.strategy, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if c.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.wantName)
			}
		})
	}
}

func TestDefaultRulesReferenceDefaultCategories(t *testing.T) {
	known := make(map[string]bool)
	for _, c := range DefaultCategories {
		known[c] = true
	}
	for _, r := range DefaultRules {
		if !known[r.Category] {
			t.Errorf("rule %q references unknown category %q", r.Pattern, r.Category)
		}
		if r.Pattern != toUpperASCII(r.Pattern) {
			t.Errorf("rule pattern %q is not uppercase", r.Pattern)
		}
	}
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
