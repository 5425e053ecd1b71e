package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// JSONLStore appends articles as newline-delimited JSON (one object per
// line). It is an export sink: existence checks only see articles written
// by this process.
type JSONLStore struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	seen   map[string]struct{}
	count  int
	logger *slog.Logger
}

// jsonlRecord tags each line so articles and run logs can share a file.
type jsonlRecord struct {
	Kind    string           `json:"kind"`
	Article *types.Candidate `json:"article,omitempty"`
	Run     *RunLog          `json:"run,omitempty"`
}

// NewJSONLStore opens outputPath for appending (streaming writes).
func NewJSONLStore(outputPath string, logger *slog.Logger) (*JSONLStore, error) {
	if outputPath == "" {
		return nil, fmt.Errorf("jsonl storage: empty output path")
	}
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	return &JSONLStore{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		seen:   make(map[string]struct{}),
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStore) Name() string { return "jsonl" }

func (s *JSONLStore) BulkCreate(_ context.Context, cands []*types.Candidate) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, skipped := 0, 0
	for _, c := range cands {
		if _, dup := s.seen[c.URL]; dup {
			skipped++
			continue
		}
		if err := s.enc.Encode(jsonlRecord{Kind: "article", Article: c}); err != nil {
			return created, skipped, &types.StorageError{Backend: "jsonl", Op: "encode", Err: err}
		}
		s.seen[c.URL] = struct{}{}
		created++
		s.count++
	}
	return created, skipped, nil
}

func (s *JSONLStore) ExistsByGUID(context.Context, string) (bool, error) { return false, nil }

func (s *JSONLStore) ExistsByURL(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[url]
	return ok, nil
}

func (s *JSONLStore) ExistsByContentHash(context.Context, string) (bool, error) { return false, nil }

func (s *JSONLStore) LogRun(_ context.Context, log RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(jsonlRecord{Kind: "run", Run: &log}); err != nil {
		return &types.StorageError{Backend: "jsonl", Op: "log_run", Err: err}
	}
	return nil
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("JSONL written", "path", s.path, "articles", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
