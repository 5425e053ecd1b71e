package storage

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/blackdavinci/guinea-election-monitor/internal/config"
	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(sqlx.NewDb(db, "postgres"), testLogger), mock
}

func candidate(url string) *types.Candidate {
	return &types.Candidate{
		Title:      "Article " + url,
		URL:        url,
		GUID:       "guid-" + url,
		Source:     "Test",
		Mode:       types.ModeElectionCount,
		Tags:       []string{"CENI"},
		ImportedAt: time.Date(2025, 12, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestSQLMigrate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS articles").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_articles_content_hash").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_articles_published_at").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scraping_logs").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLBulkCreate(t *testing.T) {
	testCases := []struct {
		name        string
		setupMock   func(mock sqlmock.Sqlmock)
		wantCreated int
		wantSkipped int
		wantErr     bool
	}{
		{
			name: "counts conflicts as skipped",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO articles").WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec("INSERT INTO articles").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("INSERT INTO articles").WillReturnResult(sqlmock.NewResult(2, 1))
				mock.ExpectCommit()
			},
			wantCreated: 2,
			wantSkipped: 1,
		},
		{
			name: "rolls back on insert failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO articles").WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec("INSERT INTO articles").WillReturnError(sql.ErrConnDone)
				mock.ExpectRollback()
			},
			wantErr: true,
		},
		{
			name: "fails on commit error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				for i := 0; i < 3; i++ {
					mock.ExpectExec("INSERT INTO articles").WillReturnResult(sqlmock.NewResult(1, 1))
				}
				mock.ExpectCommit().WillReturnError(sql.ErrTxDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tc.setupMock(mock)

			cands := []*types.Candidate{candidate("https://a.gn/1"), candidate("https://a.gn/2"), candidate("https://a.gn/3")}
			created, skipped, err := s.BulkCreate(context.Background(), cands)
			if (err != nil) != tc.wantErr {
				t.Fatalf("BulkCreate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				var se *types.StorageError
				if !errors.As(err, &se) {
					t.Errorf("expected StorageError, got %T", err)
				}
			} else if created != tc.wantCreated || skipped != tc.wantSkipped {
				t.Errorf("created=%d skipped=%d, want %d/%d", created, skipped, tc.wantCreated, tc.wantSkipped)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestSQLBulkCreateEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	created, skipped, err := s.BulkCreate(context.Background(), nil)
	if err != nil || created != 0 || skipped != 0 {
		t.Errorf("empty batch: %d %d %v", created, skipped, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no statement expected: %v", err)
	}
}

func TestSQLExists(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM articles WHERE url = \$1\)`).
		WithArgs("https://a.gn/1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM articles WHERE guid = \$1\)`).
		WithArgs("g").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM articles WHERE content_hash = \$1\)`).
		WithArgs("h").
		WillReturnError(sql.ErrConnDone)

	if ok, err := s.ExistsByURL(ctx, "https://a.gn/1"); err != nil || !ok {
		t.Errorf("ExistsByURL = %v, %v", ok, err)
	}
	if ok, err := s.ExistsByGUID(ctx, "g"); err != nil || ok {
		t.Errorf("ExistsByGUID = %v, %v", ok, err)
	}
	if _, err := s.ExistsByContentHash(ctx, "h"); err == nil {
		t.Error("expected error from content hash lookup")
	}
	if ok, err := s.ExistsByContentHash(ctx, ""); err != nil || ok {
		t.Error("empty hash should short-circuit")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLLogRunAndRecentRuns(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	started := time.Date(2025, 12, 10, 7, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO scraping_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT run_id, source, status").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{
			"run_id", "source", "status", "articles_found", "articles_saved", "articles_skipped",
			"error_message", "started_at", "finished_at",
		}).AddRow("r1", "Guineenews", StatusPartial, 10, 4, 6, "", started, started.Add(time.Minute)))

	if err := s.LogRun(ctx, RunLog{RunID: "r1", Source: "Guineenews", Status: StatusPartial, StartedAt: started, FinishedAt: started}); err != nil {
		t.Fatalf("LogRun() error = %v", err)
	}
	runs, err := s.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ArticlesSaved != 4 || runs[0].Status != StatusPartial {
		t.Errorf("runs: %+v", runs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestToRowEncodesLists(t *testing.T) {
	c := candidate("https://a.gn/1")
	c.Tags = nil
	c.KeywordsMatched = []string{"élection", "CENI"}
	row, err := toRow(c)
	if err != nil {
		t.Fatal(err)
	}
	if row.Tags != "[]" || row.KeywordsMatched != `["élection","CENI"]` {
		t.Errorf("tags=%s keywords=%s", row.Tags, row.KeywordsMatched)
	}
	if row.Mode != "election_count" {
		t.Errorf("mode=%s", row.Mode)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := candidate("https://a.gn/1")
	a.ContentHash = "h1"
	created, skipped, _ := s.BulkCreate(ctx, []*types.Candidate{a, candidate("https://a.gn/1"), candidate("https://a.gn/2")})
	if created != 2 || skipped != 1 {
		t.Errorf("created=%d skipped=%d", created, skipped)
	}
	if ok, _ := s.ExistsByURL(ctx, "https://a.gn/2"); !ok {
		t.Error("url not found")
	}
	if ok, _ := s.ExistsByGUID(ctx, "guid-https://a.gn/1"); !ok {
		t.Error("guid not found")
	}
	if ok, _ := s.ExistsByContentHash(ctx, "h1"); !ok {
		t.Error("hash not found")
	}

	again, skippedAgain, _ := s.BulkCreate(ctx, []*types.Candidate{candidate("https://a.gn/2")})
	if again != 0 || skippedAgain != 1 || len(s.Articles()) != 2 {
		t.Error("bulk create must be idempotent on persisted URLs")
	}
}

func TestJSONLStoreAndMulti(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "articles.jsonl")
	mirror, err := NewJSONLStore(path, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	primary := NewMemoryStore()
	s := NewMultiStore(primary, []ArticleStore{mirror}, testLogger)
	ctx := context.Background()

	created, _, err := s.BulkCreate(ctx, []*types.Candidate{candidate("https://a.gn/1"), candidate("https://a.gn/2")})
	if err != nil || created != 2 {
		t.Fatalf("created=%d err=%v", created, err)
	}
	if err := s.LogRun(ctx, RunLog{RunID: "r1", Source: "Test", Status: StatusSuccess}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.ExistsByURL(ctx, "https://a.gn/1"); !ok {
		t.Error("multi store should answer from the primary")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	kinds := map[string]int{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec jsonlRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		kinds[rec.Kind]++
	}
	if kinds["article"] != 2 || kinds["run"] != 1 {
		t.Errorf("records: %v", kinds)
	}
	if len(primary.Runs()) != 1 {
		t.Error("primary should record the run")
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	primary := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		primary.LogRun(ctx, RunLog{RunID: id, Source: "Test"})
	}

	var h RunHistory = NewMultiStore(primary, nil, testLogger)
	runs, err := h.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "r3" || runs[1].RunID != "r2" {
		t.Errorf("runs: %+v", runs)
	}

	jsonl, err := NewJSONLStore(filepath.Join(t.TempDir(), "a.jsonl"), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer jsonl.Close()
	if _, err := NewMultiStore(jsonl, nil, testLogger).RecentRuns(ctx, 1); err == nil {
		t.Error("jsonl primary keeps no history")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Driver: "memory"}, testLogger)
	if err != nil || s.Name() != "memory" {
		t.Fatalf("memory: %v %v", s, err)
	}
	if _, err := Open(context.Background(), config.StorageConfig{Driver: "cassandra"}, testLogger); err == nil {
		t.Error("expected error for unknown driver")
	}

	path := filepath.Join(t.TempDir(), "mirror.jsonl")
	s, err = Open(context.Background(), config.StorageConfig{Driver: "memory", MirrorPath: path}, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Name() != "multi(memory)" {
		t.Errorf("name = %s", s.Name())
	}
}
