package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// Run statuses recorded in the scraping log.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// RunLog is one scraping-log record: the outcome of a source run.
type RunLog struct {
	RunID           string    `json:"run_id"           db:"run_id"           bson:"run_id"`
	Source          string    `json:"source"           db:"source"           bson:"source"`
	Status          string    `json:"status"           db:"status"           bson:"status"`
	ArticlesFound   int       `json:"articles_found"   db:"articles_found"   bson:"articles_found"`
	ArticlesSaved   int       `json:"articles_saved"   db:"articles_saved"   bson:"articles_saved"`
	ArticlesSkipped int       `json:"articles_skipped" db:"articles_skipped" bson:"articles_skipped"`
	ErrorMessage    string    `json:"error_message,omitempty" db:"error_message" bson:"error_message,omitempty"`
	StartedAt       time.Time `json:"started_at"       db:"started_at"       bson:"started_at"`
	FinishedAt      time.Time `json:"finished_at"      db:"finished_at"      bson:"finished_at"`
}

// ArticleStore is the interface for all article backends.
type ArticleStore interface {
	// ExistsByGUID reports whether an article with the GUID is persisted.
	ExistsByGUID(ctx context.Context, guid string) (bool, error)

	// ExistsByURL reports whether an article with the URL is persisted.
	ExistsByURL(ctx context.Context, url string) (bool, error)

	// ExistsByContentHash reports whether an article with the same
	// normalized content is persisted.
	ExistsByContentHash(ctx context.Context, hash string) (bool, error)

	// BulkCreate persists candidates in one commit boundary. Candidates
	// colliding with a persisted URL or GUID are skipped, not failed.
	BulkCreate(ctx context.Context, cands []*types.Candidate) (created, skipped int, err error)

	// LogRun records the outcome of a source run.
	LogRun(ctx context.Context, log RunLog) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// RunHistory is implemented by stores that can list recorded scraping logs.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]RunLog, error)
}

// Open creates the store selected by cfg. A non-empty MirrorPath adds a
// JSONL export next to the primary backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ArticleStore, error) {
	var (
		primary ArticleStore
		err     error
	)
	switch cfg.Driver {
	case "postgres", "sqlite3":
		primary, err = OpenSQL(ctx, cfg.Driver, cfg.DSN, logger)
	case "mongodb":
		primary, err = OpenMongo(ctx, cfg.DSN, cfg.Database, logger)
	case "jsonl":
		primary, err = NewJSONLStore(cfg.DSN, logger)
	case "memory", "":
		primary = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MirrorPath == "" {
		return primary, nil
	}
	mirror, err := NewJSONLStore(cfg.MirrorPath, logger)
	if err != nil {
		primary.Close()
		return nil, err
	}
	return NewMultiStore(primary, []ArticleStore{mirror}, logger), nil
}
