// Package tagger implements keyword-heuristic classification of inbound
// messages into language, voice-of-customer and priority categories. It is
// a placeholder for a real classifier: a pure function from text to
// category names, with the rule tables injected as configuration.
package tagger

import (
	"strings"
)

// Rule maps a set of keywords to a category name. Rules are evaluated in
// order; the first rule with any keyword present wins.
type Rule struct {
	Keywords []string
	Category string
}

// Result holds the category names chosen for one message.
type Result struct {
	Language string
	VOC      string
	Priority string
}

// Tagger classifies text against three ordered rule tables, one per
// category dimension.
type Tagger struct {
	languageRules []Rule
	vocRules      []Rule
	priorityRules []Rule

	defaultLanguage string
	defaultVOC      string
	defaultPriority string
}

// New creates a Tagger with the given rule tables. Nil tables fall back to
// the built-in defaults.
func New(language, voc, priority []Rule) *Tagger {
	if language == nil {
		language = DefaultLanguageRules()
	}
	if voc == nil {
		voc = DefaultVOCRules()
	}
	if priority == nil {
		priority = DefaultPriorityRules()
	}
	return &Tagger{
		languageRules:   language,
		vocRules:        voc,
		priorityRules:   priority,
		defaultLanguage: "English",
		defaultVOC:      "General Inquiry",
		defaultPriority: "Low",
	}
}

// Classify returns the category names for a message. The subject and body
// are matched as one lowercased text; each dimension falls back to its
// baseline category when no rule fires.
func (t *Tagger) Classify(subject, body string) Result {
	text := strings.ToLower(subject + " " + body)
	return Result{
		Language: match(t.languageRules, text, t.defaultLanguage),
		VOC:      match(t.vocRules, text, t.defaultVOC),
		Priority: match(t.priorityRules, text, t.defaultPriority),
	}
}

func match(rules []Rule, text, fallback string) string {
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return rule.Category
			}
		}
	}
	return fallback
}

// DefaultLanguageRules returns the built-in language keyword table.
func DefaultLanguageRules() []Rule {
	return []Rule{
		{Keywords: []string{"hola", "gracias", "español"}, Category: "Spanish"},
		{Keywords: []string{"bonjour", "merci", "français"}, Category: "French"},
		{Keywords: []string{"namaste", "hindi"}, Category: "Hindi"},
	}
}

// DefaultVOCRules returns the built-in voice-of-customer keyword table.
func DefaultVOCRules() []Rule {
	return []Rule{
		{Keywords: []string{"refund", "money"}, Category: "Refund Request"},
		{Keywords: []string{"delay", "late"}, Category: "Delivery Issue"},
		{Keywords: []string{"broken", "damaged"}, Category: "Product Damage"},
	}
}

// DefaultPriorityRules returns the built-in priority keyword table.
func DefaultPriorityRules() []Rule {
	return []Rule{
		{Keywords: []string{"urgent", "immediately", "asap"}, Category: "High"},
		{Keywords: []string{"soon"}, Category: "Medium"},
	}
}
