package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/blackdavinci/guinea-election-monitor/internal/types"
)

// Collection names.
const (
	ArticlesCollection = "articles"
	LogsCollection     = "scraping_logs"
)

// MongoStore writes articles to a MongoDB database.
type MongoStore struct {
	client   *mongo.Client
	articles *mongo.Collection
	logs     *mongo.Collection
	logger   *slog.Logger
}

// OpenMongo connects to uri and ensures the unique indexes.
func OpenMongo(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	if database == "" {
		database = "electionwatch"
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "connect", Err: err}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Op: "ping", Err: err}
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		articles: db.Collection(ArticlesCollection),
		logs:     db.Collection(LogsCollection),
		logger:   logger.With("component", "mongo_storage"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.articles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "guid", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "content_hash", Value: 1}}},
	})
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Op: "create_indexes", Err: err}
	}
	return nil
}

func (s *MongoStore) Name() string { return "mongodb" }

// BulkCreate inserts unordered so one duplicate does not abort the batch.
// Duplicate-key write errors are counted as skipped.
func (s *MongoStore) BulkCreate(ctx context.Context, cands []*types.Candidate) (int, int, error) {
	if len(cands) == 0 {
		return 0, 0, nil
	}
	docs := make([]any, len(cands))
	for i, c := range cands {
		if c.ImportedAt.IsZero() {
			c.ImportedAt = time.Now().UTC()
		}
		docs[i] = c
	}

	res, err := s.articles.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	created := 0
	if res != nil {
		created = len(res.InsertedIDs)
	}
	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
			return 0, 0, &types.StorageError{Backend: "mongodb", Op: "insert", Err: err}
		}
		for _, we := range bwe.WriteErrors {
			if !isDuplicateKey(we.Code) {
				return 0, 0, &types.StorageError{Backend: "mongodb", Op: "insert", Err: fmt.Errorf("index %d: %s", we.Index, we.Message)}
			}
		}
		created = len(cands) - len(bwe.WriteErrors)
	}

	skipped := len(cands) - created
	s.logger.Debug("articles stored in mongodb", "created", created, "skipped", skipped)
	return created, skipped, nil
}

// isDuplicateKey matches the server codes of unique index violations.
func isDuplicateKey(code int) bool {
	return code == 11000 || code == 11001 || code == 12582
}

func (s *MongoStore) exists(ctx context.Context, field, value string) (bool, error) {
	n, err := s.articles.CountDocuments(ctx, bson.M{field: value}, options.Count().SetLimit(1))
	if err != nil {
		return false, &types.StorageError{Backend: "mongodb", Op: "exists_" + field, Err: err}
	}
	return n > 0, nil
}

func (s *MongoStore) ExistsByGUID(ctx context.Context, guid string) (bool, error) {
	return s.exists(ctx, "guid", guid)
}

func (s *MongoStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	return s.exists(ctx, "url", url)
}

func (s *MongoStore) ExistsByContentHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	return s.exists(ctx, "content_hash", hash)
}

func (s *MongoStore) LogRun(ctx context.Context, log RunLog) error {
	if _, err := s.logs.InsertOne(ctx, log); err != nil {
		return &types.StorageError{Backend: "mongodb", Op: "log_run", Err: err}
	}
	return nil
}

// RecentRuns returns the latest scraping-log records, newest first.
func (s *MongoStore) RecentRuns(ctx context.Context, limit int) ([]RunLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.logs.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "recent_runs", Err: err}
	}
	var logs []RunLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "recent_runs", Err: err}
	}
	return logs, nil
}

func (s *MongoStore) Close() error {
	s.logger.Info("mongodb storage closing")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
