package monitor

import (
	"context"
	"log/slog"
)

// Notifier delivers a finished run report.
type Notifier interface {
	Notify(ctx context.Context, r *Report) error
}

// LogNotifier writes the run summary and its high-relevance articles to the
// log.
type LogNotifier struct {
	logger *slog.Logger
	// Limit caps the number of highlights logged. Zero logs all.
	Limit int
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier"), Limit: 20}
}

func (n *LogNotifier) Notify(ctx context.Context, r *Report) error {
	level := slog.LevelInfo
	if r.Failed() {
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, "run report",
		"run_id", r.RunID,
		"window", r.Window,
		"sources", r.SourcesProcessed,
		"succeeded", r.SourcesSucceeded,
		"partial", r.SourcesPartial,
		"failed", r.SourcesFailed,
		"found", r.ArticlesFound,
		"saved", r.ArticlesSaved,
		"skipped", r.ArticlesSkipped,
		"high_relevance", len(r.HighRelevance),
	)
	for i, h := range r.HighRelevance {
		if n.Limit > 0 && i >= n.Limit {
			n.logger.Info("more high-relevance articles omitted", "count", len(r.HighRelevance)-n.Limit)
			break
		}
		n.logger.Info("high relevance",
			"source", h.Source,
			"score", h.Score,
			"priority", h.Priority,
			"title", h.Title,
			"url", h.URL,
		)
	}
	for _, s := range r.Sources {
		if s.Err != "" {
			n.logger.Warn("source failed", "source", s.Source, "status", s.Status, "error", s.Err)
		}
	}
	return nil
}
