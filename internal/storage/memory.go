package storage

import (
	"context"
	"sync"

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// MemoryStore keeps articles in process memory. It backs dry runs and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	articles []*types.Candidate
	byURL    map[string]struct{}
	byGUID   map[string]struct{}
	byHash   map[string]struct{}
	runs     []RunLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byURL:  make(map[string]struct{}),
		byGUID: make(map[string]struct{}),
		byHash: make(map[string]struct{}),
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) BulkCreate(_ context.Context, cands []*types.Candidate) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, skipped := 0, 0
	for _, c := range cands {
		_, urlTaken := s.byURL[c.URL]
		_, guidTaken := s.byGUID[c.GUID]
		if urlTaken || (c.GUID != "" && guidTaken) {
			skipped++
			continue
		}
		s.byURL[c.URL] = struct{}{}
		if c.GUID != "" {
			s.byGUID[c.GUID] = struct{}{}
		}
		if c.ContentHash != "" {
			s.byHash[c.ContentHash] = struct{}{}
		}
		s.articles = append(s.articles, c)
		created++
	}
	return created, skipped, nil
}

func (s *MemoryStore) has(m map[string]struct{}, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := m[key]
	return ok
}

func (s *MemoryStore) ExistsByGUID(_ context.Context, guid string) (bool, error) {
	return s.has(s.byGUID, guid), nil
}

func (s *MemoryStore) ExistsByURL(_ context.Context, url string) (bool, error) {
	return s.has(s.byURL, url), nil
}

func (s *MemoryStore) ExistsByContentHash(_ context.Context, hash string) (bool, error) {
	return s.has(s.byHash, hash), nil
}

func (s *MemoryStore) LogRun(_ context.Context, log RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, log)
	return nil
}

// Articles returns a snapshot of the stored articles in insertion order.
func (s *MemoryStore) Articles() []*types.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*types.Candidate(nil), s.articles...)
}

// Runs returns a snapshot of the recorded scraping logs.
func (s *MemoryStore) Runs() []RunLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RunLog(nil), s.runs...)
}

// RecentRuns returns up to limit scraping logs, newest first.
func (s *MemoryStore) RecentRuns(_ context.Context, limit int) ([]RunLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RunLog
	for i := len(s.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
