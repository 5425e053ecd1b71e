package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Predicate decides whether extracted text is good enough to stop a chain.
type Predicate func(text string) bool

// NonEmpty accepts any non-blank text.
func NonEmpty(text string) bool {
	return strings.TrimSpace(text) != ""
}

// LongerThan accepts text with more than n characters.
func LongerThan(n int) Predicate {
	return func(text string) bool {
		return utf8.RuneCountInString(text) > n
	}
}

// Pick selects which of several matches of one selector is considered.
type Pick int

const (
	// PickFirst considers only the first match in document order.
	PickFirst Pick = iota
	// PickRichest considers the match with the most text.
	PickRichest
)

// Step is one selector in a chain.
type Step struct {
	Selector string
	Pick     Pick
}

// First builds PickFirst steps.
func First(selectors ...string) []Step {
	steps := make([]Step, 0, len(selectors))
	for _, s := range selectors {
		steps = append(steps, Step{Selector: s, Pick: PickFirst})
	}
	return steps
}

// Richest builds PickRichest steps.
func Richest(selectors ...string) []Step {
	steps := make([]Step, 0, len(selectors))
	for _, s := range selectors {
		steps = append(steps, Step{Selector: s, Pick: PickRichest})
	}
	return steps
}

// Chain is an ordered selector fallback list for one field. The first step
// whose picked element satisfies Good wins.
type Chain struct {
	Name  string
	Steps []Step
	Good  Predicate
}

// NewChain concatenates step groups into a chain.
func NewChain(name string, good Predicate, groups ...[]Step) Chain {
	var steps []Step
	for _, g := range groups {
		steps = append(steps, g...)
	}
	if good == nil {
		good = NonEmpty
	}
	return Chain{Name: name, Steps: steps, Good: good}
}

// Find returns the winning element and its normalized text.
func (c Chain) Find(root *goquery.Selection) (*goquery.Selection, string, bool) {
	for _, step := range c.Steps {
		matches := root.Find(step.Selector)
		if matches.Length() == 0 {
			continue
		}

		var sel *goquery.Selection
		var text string
		switch step.Pick {
		case PickRichest:
			sel, text = richest(matches)
		default:
			sel = matches.First()
			text = normalizedText(sel)
		}

		if c.Good(text) {
			return sel, text, true
		}
	}
	return nil, "", false
}

// Text returns only the winning text.
func (c Chain) Text(root *goquery.Selection) string {
	_, text, _ := c.Find(root)
	return text
}

func richest(matches *goquery.Selection) (*goquery.Selection, string) {
	var best *goquery.Selection
	bestText := ""
	bestLen := -1
	matches.Each(func(_ int, s *goquery.Selection) {
		t := normalizedText(s)
		if n := utf8.RuneCountInString(t); n > bestLen {
			best, bestText, bestLen = s, t, n
		}
	})
	return best, bestText
}

// normalizedText is the element text with whitespace runs collapsed.
func normalizedText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
