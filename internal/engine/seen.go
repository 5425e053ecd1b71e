package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/blackdavinci/guinea-election-monitor/internal/dedup"
)

// SeenSet tracks article URLs discovered during one source run so that no
// URL is fetched twice across categories or pages.
type SeenSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewSeenSet creates a SeenSet with the given estimated capacity.
func NewSeenSet(estimatedCapacity int) *SeenSet {
	return &SeenSet{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// IsSeen returns true if the URL (after canonicalization) has been seen before.
func (s *SeenSet) IsSeen(rawURL string) bool {
	hash := hashURL(dedup.NormalizeURL(rawURL))

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[hash]
	return ok
}

// MarkSeen records a URL and reports whether it was new.
func (s *SeenSet) MarkSeen(rawURL string) bool {
	hash := hashURL(dedup.NormalizeURL(rawURL))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[hash]; ok {
		return false
	}
	s.seen[hash] = struct{}{}
	return true
}

// Count returns the number of unique URLs seen.
func (s *SeenSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// hashURL creates a compact hash of a canonical URL.
func hashURL(canonicalURL string) string {
	h := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(h[:16])
}
