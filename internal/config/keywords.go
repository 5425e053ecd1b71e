package config

import "strings"

// DefaultMandatoryCategories are gated categories used when a taxonomy
// flags none explicitly.
var DefaultMandatoryCategories = []string{"election", "processus"}

// Keyword is a single weighted term.
type Keyword struct {
	Term   string  `mapstructure:"term"   yaml:"term"`
	Weight float64 `mapstructure:"weight" yaml:"weight"`
}

// KeywordCategory groups terms. Mandatory categories gate relevance:
// an article matching none of their terms scores zero.
type KeywordCategory struct {
	Name      string    `mapstructure:"category"  yaml:"category"`
	Mandatory bool      `mapstructure:"mandatory" yaml:"mandatory"`
	Weight    float64   `mapstructure:"weight"    yaml:"weight,omitempty"`
	Terms     []Keyword `mapstructure:"terms"     yaml:"terms"`
}

// Taxonomy is the ordered set of keyword categories used for relevance scoring.
type Taxonomy struct {
	Categories []KeywordCategory `yaml:"keywords"`
}

// Normalize trims terms, drops blanks, and defaults term weights to the
// category weight, then to 1. When no category is flagged mandatory, the
// default mandatory names are applied.
func (t *Taxonomy) Normalize() {
	cats := t.Categories[:0]
	for _, c := range t.Categories {
		c.Name = strings.ToLower(strings.TrimSpace(c.Name))
		terms := c.Terms[:0]
		for _, k := range c.Terms {
			k.Term = strings.TrimSpace(k.Term)
			if k.Term == "" {
				continue
			}
			if k.Weight <= 0 {
				k.Weight = c.Weight
			}
			if k.Weight <= 0 {
				k.Weight = 1
			}
			terms = append(terms, k)
		}
		c.Terms = terms
		if len(c.Terms) > 0 {
			cats = append(cats, c)
		}
	}
	t.Categories = cats

	if t.HasMandatory() {
		return
	}
	for i := range t.Categories {
		for _, name := range DefaultMandatoryCategories {
			if t.Categories[i].Name == name {
				t.Categories[i].Mandatory = true
			}
		}
	}
}

// Empty reports whether the taxonomy has no terms.
func (t *Taxonomy) Empty() bool {
	return len(t.Categories) == 0
}

// HasMandatory reports whether any category is mandatory.
func (t *Taxonomy) HasMandatory() bool {
	for _, c := range t.Categories {
		if c.Mandatory {
			return true
		}
	}
	return false
}
