package topic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"tradefeed/joblock"
	"tradefeed/metrics"
	"tradefeed/reddit"
)

// Comments are weighted triple as a stronger engagement signal than passive
// votes.
const commentWeight = 3

// FeedClient abstracts the external content feed.
type FeedClient interface {
	HotItems(ctx context.Context, channels []string, limit int) ([]reddit.Item, error)
}

// Store abstracts the repository operations the sourcing run needs.
type Store interface {
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	InsertBatch(ctx context.Context, topics []NewTopic) error
}

// Service maintains the ranked, self-expiring queue of candidate topics.
type Service struct {
	feed      FeedClient
	store     Store
	logger    *slog.Logger
	channels  []string
	limit     int
	minLength int
	retention time.Duration
	now       func() time.Time
}

type ServiceParams struct {
	Feed      FeedClient
	Store     Store
	Logger    *slog.Logger
	Channels  []string
	Limit     int
	MinLength int
	Retention time.Duration
}

func NewService(params ServiceParams) *Service {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		feed:      params.Feed,
		store:     params.Store,
		logger:    logger.With("job", "seed-topics"),
		channels:  params.Channels,
		limit:     params.Limit,
		minLength: params.MinLength,
		retention: params.Retention,
		now:       time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Refresh pulls the hot listing, scores and filters it, retires the stale
// queue tail, and inserts the new batch. A feed failure aborts the whole run
// with no partial writes. Zero qualifying items is a success, not an error.
func (s *Service) Refresh(ctx context.Context) (RefreshSummary, error) {
	items, err := s.feed.HotItems(ctx, s.channels, s.limit)
	if err != nil {
		metrics.JobRuns.WithLabelValues(joblock.JobSeedTopics, "failed").Inc()
		return RefreshSummary{}, fmt.Errorf("topic: source unavailable: %w", err)
	}

	candidates := lo.FilterMap(items, func(item reddit.Item, _ int) (NewTopic, bool) {
		title := strings.TrimSpace(item.Title)
		if len(title) < s.minLength {
			return NewTopic{}, false
		}
		return NewTopic{
			Source:          "r/" + item.Subreddit,
			Content:         title,
			EngagementScore: Score(item.Score, item.NumComments),
		}, true
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].EngagementScore > candidates[j].EngagementScore
	})
	if len(candidates) > s.limit {
		candidates = candidates[:s.limit]
	}

	expired, err := s.store.ExpireOlderThan(ctx, s.now().Add(-s.retention))
	if err != nil {
		metrics.JobRuns.WithLabelValues(joblock.JobSeedTopics, "failed").Inc()
		return RefreshSummary{}, err
	}

	summary := RefreshSummary{Expired: expired}
	if len(candidates) == 0 {
		s.logger.InfoContext(ctx, "no qualifying topics found", "expired", expired)
		metrics.JobRuns.WithLabelValues(joblock.JobSeedTopics, "empty_result").Inc()
		return summary, nil
	}

	if err := s.store.InsertBatch(ctx, candidates); err != nil {
		metrics.JobRuns.WithLabelValues(joblock.JobSeedTopics, "failed").Inc()
		return RefreshSummary{}, err
	}

	summary.Inserted = len(candidates)
	summary.TopExample = candidates[0].Content
	metrics.TopicsInserted.Add(float64(summary.Inserted))
	metrics.JobRuns.WithLabelValues(joblock.JobSeedTopics, "success").Inc()
	s.logger.InfoContext(ctx, "topic queue refreshed",
		"inserted", summary.Inserted, "expired", expired, "top", summary.TopExample)

	return summary, nil
}

// Score computes the engagement heuristic for a sourced item.
func Score(upvotes, comments int) int {
	return upvotes + comments*commentWeight
}
