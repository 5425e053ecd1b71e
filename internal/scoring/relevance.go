// Package scoring ranks extracted articles: a weighted keyword relevance
// score in [0,1] and a raw election-vocabulary counter.
package scoring

import (
	"math"
	"strings"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
)

// Saturation is the accumulated weight at which the score reaches 1.0.
const Saturation = 3.0

// Scorer computes relevance scores against a keyword taxonomy. The taxonomy
// is read-only after construction.
type Scorer struct {
	terms []scoredTerm
}

type scoredTerm struct {
	term      string
	lower     string
	weight    float64
	mandatory bool
}

// NewScorer prepares a scorer for a normalized taxonomy.
func NewScorer(tax config.Taxonomy) *Scorer {
	s := &Scorer{}
	for _, cat := range tax.Categories {
		for _, kw := range cat.Terms {
			lower := strings.ToLower(strings.TrimSpace(kw.Term))
			if lower == "" {
				continue
			}
			s.terms = append(s.terms, scoredTerm{
				term:      kw.Term,
				lower:     lower,
				weight:    kw.Weight,
				mandatory: cat.Mandatory,
			})
		}
	}
	return s
}

// Score returns the relevance of text and the configured terms it contains.
// Matching is a case-insensitive substring search; each term counts once.
// Without a mandatory-category hit the score is 0, though matches are
// still reported.
func (s *Scorer) Score(text string) (float64, []string) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	lower := strings.ToLower(text)

	var (
		raw       float64
		mandatory bool
		matched   []string
		seen      = make(map[string]bool)
	)
	for _, t := range s.terms {
		if !strings.Contains(lower, t.lower) {
			continue
		}
		raw += t.weight
		if t.mandatory {
			mandatory = true
		}
		if !seen[t.term] {
			seen[t.term] = true
			matched = append(matched, t.term)
		}
	}

	if !mandatory {
		return 0, matched
	}
	return round3(math.Min(1, raw/Saturation)), matched
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
