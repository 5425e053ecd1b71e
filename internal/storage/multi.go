package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// MultiStore writes to a primary backend and mirrors to secondary ones.
// Existence checks and reported counts come from the primary; mirror
// failures are logged and never fail the write.
type MultiStore struct {
	primary ArticleStore
	mirrors []ArticleStore
	logger  *slog.Logger
}

// NewMultiStore creates a store that fans out to multiple backends.
func NewMultiStore(primary ArticleStore, mirrors []ArticleStore, logger *slog.Logger) *MultiStore {
	return &MultiStore{
		primary: primary,
		mirrors: mirrors,
		logger:  logger.With("component", "multi_storage"),
	}
}

func (s *MultiStore) Name() string { return "multi(" + s.primary.Name() + ")" }

func (s *MultiStore) BulkCreate(ctx context.Context, cands []*types.Candidate) (int, int, error) {
	created, skipped, err := s.primary.BulkCreate(ctx, cands)
	if err != nil {
		return created, skipped, err
	}
	for _, m := range s.mirrors {
		if _, _, err := m.BulkCreate(ctx, cands); err != nil {
			s.logger.Error("mirror store failed", "backend", m.Name(), "error", err)
		}
	}
	return created, skipped, nil
}

func (s *MultiStore) ExistsByGUID(ctx context.Context, guid string) (bool, error) {
	return s.primary.ExistsByGUID(ctx, guid)
}

func (s *MultiStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	return s.primary.ExistsByURL(ctx, url)
}

func (s *MultiStore) ExistsByContentHash(ctx context.Context, hash string) (bool, error) {
	return s.primary.ExistsByContentHash(ctx, hash)
}

func (s *MultiStore) LogRun(ctx context.Context, log RunLog) error {
	err := s.primary.LogRun(ctx, log)
	for _, m := range s.mirrors {
		if merr := m.LogRun(ctx, log); merr != nil {
			s.logger.Error("mirror log failed", "backend", m.Name(), "error", merr)
		}
	}
	return err
}

// RecentRuns reads the primary's scraping logs.
func (s *MultiStore) RecentRuns(ctx context.Context, limit int) ([]RunLog, error) {
	h, ok := s.primary.(RunHistory)
	if !ok {
		return nil, fmt.Errorf("%s backend keeps no run history", s.primary.Name())
	}
	return h.RecentRuns(ctx, limit)
}

func (s *MultiStore) Close() error {
	firstErr := s.primary.Close()
	for _, m := range s.mirrors {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
