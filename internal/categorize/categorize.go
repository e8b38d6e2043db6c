// Package categorize assigns spending categories to merchant text.
//
// Two strategies exist side by side and are intentionally not unified: the
// household rule engine (uppercase substring rules, default "Others") and the
// static keyword map (lowercase keywords, default "Other"). Which one runs at
// import time is a configuration choice; existing rows keep whatever category
// they were imported with.
package categorize

import (
	"fmt"
	"strings"

	"github.com/dvloznov/family-ledger/internal/domain"
)

// Strategy names accepted by New.
const (
	StrategyKeywords = "keywords"
	StrategyRules    = "rules"
	StrategyChain    = "chain"
)

// Default categories returned when nothing matches.
const (
	DefaultRuleCategory    = "Others"
	DefaultKeywordCategory = "Other"
)

// Classifier maps merchant text to a category name.
type Classifier interface {
	Classify(merchant string) string
	Name() string
}

// RuleEngine matches ordered household rules against uppercased merchant text.
type RuleEngine struct {
	rules []domain.Rule
}

// NewRuleEngine keeps rules in the given order; patterns are uppercased.
func NewRuleEngine(rules []domain.Rule) *RuleEngine {
	normalized := make([]domain.Rule, 0, len(rules))
	for _, r := range rules {
		r.Pattern = strings.ToUpper(r.Pattern)
		if r.Pattern == "" {
			continue
		}
		normalized = append(normalized, r)
	}
	return &RuleEngine{rules: normalized}
}

// Match returns the category of the first rule whose pattern occurs in the
// merchant text.
func (e *RuleEngine) Match(merchant string) (string, bool) {
	upper := strings.ToUpper(merchant)
	for _, r := range e.rules {
		if strings.Contains(upper, r.Pattern) {
			return r.Category, true
		}
	}
	return "", false
}

// Classify implements Classifier.
func (e *RuleEngine) Classify(merchant string) string {
	if category, ok := e.Match(merchant); ok {
		return category
	}
	return DefaultRuleCategory
}

// Name implements Classifier.
func (e *RuleEngine) Name() string { return StrategyRules }

// Keyword is one entry of the static keyword map.
type Keyword struct {
	Category string
	Words    []string
}

// KeywordClassifier matches lowercased merchant text against a static map.
type KeywordClassifier struct {
	keywords []Keyword
}

// NewKeywordClassifier uses DefaultKeywords when keywords is nil.
func NewKeywordClassifier(keywords []Keyword) *KeywordClassifier {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	return &KeywordClassifier{keywords: keywords}
}

// Match returns the first category with a keyword contained in the merchant.
func (k *KeywordClassifier) Match(merchant string) (string, bool) {
	if merchant == "" {
		return "", false
	}
	lower := strings.ToLower(merchant)
	for _, kw := range k.keywords {
		for _, w := range kw.Words {
			if strings.Contains(lower, w) {
				return kw.Category, true
			}
		}
	}
	return "", false
}

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(merchant string) string {
	if category, ok := k.Match(merchant); ok {
		return category
	}
	return DefaultKeywordCategory
}

// Name implements Classifier.
func (k *KeywordClassifier) Name() string { return StrategyKeywords }

// Chain tries the household rules first and falls back to the keyword map.
type Chain struct {
	rules    *RuleEngine
	keywords *KeywordClassifier
}

// NewChain builds a Chain over both strategies.
func NewChain(rules *RuleEngine, keywords *KeywordClassifier) *Chain {
	return &Chain{rules: rules, keywords: keywords}
}

// Classify implements Classifier.
func (c *Chain) Classify(merchant string) string {
	if category, ok := c.rules.Match(merchant); ok {
		return category
	}
	return c.keywords.Classify(merchant)
}

// Name implements Classifier.
func (c *Chain) Name() string { return StrategyChain }

// New builds the classifier for a strategy name. rules is ignored by the
// keyword strategy.
func New(strategy string, rules []domain.Rule) (Classifier, error) {
	switch strategy {
	case StrategyKeywords, "":
		return NewKeywordClassifier(nil), nil
	case StrategyRules:
		return NewRuleEngine(rules), nil
	case StrategyChain:
		return NewChain(NewRuleEngine(rules), NewKeywordClassifier(nil)), nil
	default:
		return nil, fmt.Errorf("categorize: unknown strategy %q: %w", strategy, domain.ErrInvalidInput)
	}
}

// NeedsRules reports whether a strategy consults household rules.
func NeedsRules(strategy string) bool {
	return strategy == StrategyRules || strategy == StrategyChain
}
