package dedup

import (
	"log/slog"

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// Default similarity thresholds.
const (
	DefaultTitleThreshold   = 0.85
	DefaultContentThreshold = 0.90
)

// Match kinds reported by FindDuplicates.
const (
	ByURL     = "url"
	ByTitle   = "title"
	ByContent = "content"
)

// Duplicate is a pair of candidate indexes judged duplicates.
type Duplicate struct {
	First  int
	Second int
	Kind   string
}

// Deduplicator holds similarity thresholds. The zero value is not usable;
// use New.
type Deduplicator struct {
	TitleThreshold   float64
	ContentThreshold float64
	logger           *slog.Logger
}

// New creates a Deduplicator with default thresholds.
func New(logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		TitleThreshold:   DefaultTitleThreshold,
		ContentThreshold: DefaultContentThreshold,
		logger:           logger.With("component", "dedup"),
	}
}

// IsDuplicateTitle reports title similarity at or above the threshold.
func (d *Deduplicator) IsDuplicateTitle(a, b string) bool {
	return TitleSimilarity(a, b) >= d.TitleThreshold
}

// IsDuplicateContent reports content similarity at or above the threshold.
func (d *Deduplicator) IsDuplicateContent(a, b string) bool {
	return ContentSimilarity(a, b) >= d.ContentThreshold
}

// FindDuplicates compares every pair and reports the first matching kind:
// URL, then title, then content.
func (d *Deduplicator) FindDuplicates(cands []*types.Candidate, checkTitle, checkContent bool) []Duplicate {
	var dups []Duplicate
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			a, b := cands[i], cands[j]
			switch {
			case IsDuplicateURL(a.URL, b.URL):
				dups = append(dups, Duplicate{i, j, ByURL})
			case checkTitle && d.IsDuplicateTitle(a.Title, b.Title):
				dups = append(dups, Duplicate{i, j, ByTitle})
			case checkContent && d.IsDuplicateContent(a.Content, b.Content):
				dups = append(dups, Duplicate{i, j, ByContent})
			}
		}
	}
	return dups
}

// DeduplicateList keeps the first occurrence of each canonical URL and,
// when checkTitle is set, drops candidates whose title is too close to an
// already kept one. Order is preserved and the operation is idempotent.
func (d *Deduplicator) DeduplicateList(cands []*types.Candidate, checkTitle bool) []*types.Candidate {
	if len(cands) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(cands))
	var keptTitles []string
	out := make([]*types.Candidate, 0, len(cands))

	for _, c := range cands {
		key := NormalizeURL(c.URL)
		if seen[key] {
			continue
		}
		if checkTitle {
			dup := false
			for _, t := range keptTitles {
				if d.IsDuplicateTitle(c.Title, t) {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			keptTitles = append(keptTitles, c.Title)
		}
		seen[key] = true
		out = append(out, c)
	}

	d.logger.Debug("deduplicated", "in", len(cands), "out", len(out))
	return out
}
