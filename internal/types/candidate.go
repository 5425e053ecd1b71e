package types

import (
	"strings"
	"time"
)

// ScoreMode selects how a candidate is ranked.
type ScoreMode string

const (
	// ModeRelevance ranks with the weighted keyword taxonomy, score in [0,1].
	ModeRelevance ScoreMode = "relevance"
	// ModeElectionCount ranks with the raw election-vocabulary match count.
	ModeElectionCount ScoreMode = "election_count"
)

// Ranking thresholds.
const (
	HighRelevanceScore   = 0.7
	ElectionRelatedCount = 3
	HighPriorityCount    = 6
)

// ListEntry is one article reference found on a listing page.
type ListEntry struct {
	Title       string
	URL         string
	PublishedAt *time.Time
}

// ArticleContent is what an extraction strategy pulls out of an article page.
type ArticleContent struct {
	Title       string
	Content     string
	PublishedAt *time.Time
	Tags        []string
}

// Candidate is an extracted, not-yet-persisted article.
type Candidate struct {
	Title           string     `json:"title"                 bson:"title"`
	URL             string     `json:"url"                   bson:"url"`
	PublishedAt     *time.Time `json:"published_at,omitempty" bson:"published_at,omitempty"`
	Content         string     `json:"content"               bson:"content"`
	Tags            []string   `json:"tags,omitempty"        bson:"tags,omitempty"`
	Category        string     `json:"category"              bson:"category"`
	Summary         string     `json:"summary"               bson:"summary"`
	Source          string     `json:"source"                bson:"source"`
	Mode            ScoreMode  `json:"mode"                  bson:"mode"`
	RelevanceScore  float64    `json:"relevance_score"       bson:"relevance_score"`
	ElectionCount   int        `json:"election_count"        bson:"election_count"`
	KeywordsMatched []string   `json:"keywords_matched,omitempty" bson:"keywords_matched,omitempty"`
	ContentHash     string     `json:"content_hash"          bson:"content_hash"`
	GUID            string     `json:"guid"                  bson:"guid"`
	Language        string     `json:"language,omitempty"    bson:"language,omitempty"`
	ImportedAt      time.Time  `json:"imported_at"           bson:"imported_at"`
}

// Valid reports whether the candidate can be persisted.
func (c *Candidate) Valid() bool {
	return c != nil && strings.TrimSpace(c.Title) != "" && strings.TrimSpace(c.URL) != ""
}

// HighRelevance reports whether the candidate should be surfaced to notifiers.
func (c *Candidate) HighRelevance() bool {
	switch c.Mode {
	case ModeElectionCount:
		return c.ElectionCount >= ElectionRelatedCount
	default:
		return c.RelevanceScore >= HighRelevanceScore
	}
}

// HighPriority is only meaningful for election-count candidates.
func (c *Candidate) HighPriority() bool {
	return c.Mode == ModeElectionCount && c.ElectionCount >= HighPriorityCount
}

// Rank returns the candidate's ranking value in its own mode.
func (c *Candidate) Rank() float64 {
	if c.Mode == ModeElectionCount {
		return float64(c.ElectionCount)
	}
	return c.RelevanceScore
}
