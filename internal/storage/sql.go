package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

const (
	// DefaultMaxOpenConns bounds the Postgres pool. SQLite uses a single
	// connection.
	DefaultMaxOpenConns = 10

	// DefaultConnMaxLifetime is the maximum lifetime of a pooled connection.
	DefaultConnMaxLifetime = 5 * time.Minute

	// DefaultPingTimeout is the timeout for the connect-time ping.
	DefaultPingTimeout = 5 * time.Second
)

// SQLStore persists articles in Postgres or SQLite through sqlx.
type SQLStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// OpenSQL connects, configures the pool and applies the schema.
func OpenSQL(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(pingCtx, driver, dsn)
	if err != nil {
		return nil, &types.StorageError{Backend: driver, Op: "connect", Err: err}
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(DefaultMaxOpenConns)
		db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	}

	s := NewSQLStore(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open connection.
func NewSQLStore(db *sqlx.DB, logger *slog.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger.With("component", "sql_storage", "driver", db.DriverName()),
	}
}

func (s *SQLStore) Name() string { return s.db.DriverName() }

func (s *SQLStore) idColumn() string {
	if s.db.DriverName() == "postgres" {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// Migrate creates the tables and indexes when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS articles (
	id %s,
	guid TEXT NOT NULL UNIQUE,
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	published_at TIMESTAMP NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	mode TEXT NOT NULL,
	relevance_score REAL NOT NULL DEFAULT 0,
	election_count INTEGER NOT NULL DEFAULT 0,
	keywords_matched TEXT NOT NULL DEFAULT '[]',
	content_hash TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	imported_at TIMESTAMP NOT NULL
)`, s.idColumn()),
		`CREATE INDEX IF NOT EXISTS idx_articles_content_hash ON articles (content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles (published_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scraping_logs (
	id %s,
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	articles_found INTEGER NOT NULL DEFAULT 0,
	articles_saved INTEGER NOT NULL DEFAULT 0,
	articles_skipped INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
)`, s.idColumn()),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &types.StorageError{Backend: s.Name(), Op: "migrate", Err: err}
		}
	}
	return nil
}

// articleRow is the flattened row form of a candidate.
type articleRow struct {
	GUID            string     `db:"guid"`
	URL             string     `db:"url"`
	Title           string     `db:"title"`
	Content         string     `db:"content"`
	Summary         string     `db:"summary"`
	Category        string     `db:"category"`
	Source          string     `db:"source"`
	PublishedAt     *time.Time `db:"published_at"`
	Tags            string     `db:"tags"`
	Mode            string     `db:"mode"`
	RelevanceScore  float64    `db:"relevance_score"`
	ElectionCount   int        `db:"election_count"`
	KeywordsMatched string     `db:"keywords_matched"`
	ContentHash     string     `db:"content_hash"`
	Language        string     `db:"language"`
	ImportedAt      time.Time  `db:"imported_at"`
}

func toRow(c *types.Candidate) (articleRow, error) {
	tags, err := json.Marshal(nonNil(c.Tags))
	if err != nil {
		return articleRow{}, err
	}
	kws, err := json.Marshal(nonNil(c.KeywordsMatched))
	if err != nil {
		return articleRow{}, err
	}
	imported := c.ImportedAt
	if imported.IsZero() {
		imported = time.Now().UTC()
	}
	return articleRow{
		GUID:            c.GUID,
		URL:             c.URL,
		Title:           c.Title,
		Content:         c.Content,
		Summary:         c.Summary,
		Category:        c.Category,
		Source:          c.Source,
		PublishedAt:     c.PublishedAt,
		Tags:            string(tags),
		Mode:            string(c.Mode),
		RelevanceScore:  c.RelevanceScore,
		ElectionCount:   c.ElectionCount,
		KeywordsMatched: string(kws),
		ContentHash:     c.ContentHash,
		Language:        c.Language,
		ImportedAt:      imported,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const insertArticle = `INSERT INTO articles (
	guid, url, title, content, summary, category, source, published_at, tags, mode,
	relevance_score, election_count, keywords_matched, content_hash, language, imported_at
) VALUES (
	:guid, :url, :title, :content, :summary, :category, :source, :published_at, :tags, :mode,
	:relevance_score, :election_count, :keywords_matched, :content_hash, :language, :imported_at
) ON CONFLICT DO NOTHING`

// BulkCreate inserts every candidate in one transaction. Rows that hit a
// unique constraint are counted as skipped.
func (s *SQLStore) BulkCreate(ctx context.Context, cands []*types.Candidate) (int, int, error) {
	if len(cands) == 0 {
		return 0, 0, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, &types.StorageError{Backend: s.Name(), Op: "begin", Err: err}
	}
	defer tx.Rollback()

	created, skipped := 0, 0
	for _, c := range cands {
		row, err := toRow(c)
		if err != nil {
			return 0, 0, &types.StorageError{Backend: s.Name(), Op: "encode", Err: err}
		}
		res, err := tx.NamedExecContext(ctx, insertArticle, row)
		if err != nil {
			return 0, 0, &types.StorageError{Backend: s.Name(), Op: "insert", Err: fmt.Errorf("%s: %w", c.URL, err)}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, &types.StorageError{Backend: s.Name(), Op: "insert", Err: err}
		}
		if n > 0 {
			created++
		} else {
			skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, &types.StorageError{Backend: s.Name(), Op: "commit", Err: err}
	}
	s.logger.Debug("articles stored", "created", created, "skipped", skipped)
	return created, skipped, nil
}

func (s *SQLStore) exists(ctx context.Context, column, value string) (bool, error) {
	var found bool
	q := s.db.Rebind(fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM articles WHERE %s = ?)", column))
	if err := s.db.GetContext(ctx, &found, q, value); err != nil {
		return false, &types.StorageError{Backend: s.Name(), Op: "exists_" + column, Err: err}
	}
	return found, nil
}

func (s *SQLStore) ExistsByGUID(ctx context.Context, guid string) (bool, error) {
	return s.exists(ctx, "guid", guid)
}

func (s *SQLStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	return s.exists(ctx, "url", url)
}

func (s *SQLStore) ExistsByContentHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	return s.exists(ctx, "content_hash", hash)
}

const insertRunLog = `INSERT INTO scraping_logs (
	run_id, source, status, articles_found, articles_saved, articles_skipped,
	error_message, started_at, finished_at
) VALUES (
	:run_id, :source, :status, :articles_found, :articles_saved, :articles_skipped,
	:error_message, :started_at, :finished_at
)`

func (s *SQLStore) LogRun(ctx context.Context, log RunLog) error {
	if _, err := s.db.NamedExecContext(ctx, insertRunLog, log); err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "log_run", Err: err}
	}
	return nil
}

// RecentRuns returns the latest scraping-log records, newest first.
func (s *SQLStore) RecentRuns(ctx context.Context, limit int) ([]RunLog, error) {
	var logs []RunLog
	q := s.db.Rebind(`SELECT run_id, source, status, articles_found, articles_saved, articles_skipped,
	error_message, started_at, finished_at FROM scraping_logs ORDER BY started_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &logs, q, limit); err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Op: "recent_runs", Err: err}
	}
	return logs, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
