package topic

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradefeed/reddit"
)

func TestScore(t *testing.T) {
	if got := Score(10, 4); got != 22 {
		t.Fatalf("Score(10, 4) = %d, want 22", got)
	}
	if got := Score(0, 0); got != 0 {
		t.Fatalf("Score(0, 0) = %d, want 0", got)
	}
}

func TestRefresh_ScoresAndSorts(t *testing.T) {
	feed := &fakeFeed{items: []reddit.Item{
		{Title: "Best way to flash a second-story deck ledger?", Subreddit: "Construction", Score: 10, NumComments: 4},        // 22
		{Title: "Subfloor squeaks over I-joists, screws or adhesive?", Subreddit: "DIY", Score: 50, NumComments: 1},           // 53
		{Title: "Framing inspection failed on hurricane clips, advice?", Subreddit: "Homebuilding", Score: 5, NumComments: 2}, // 11
	}}
	store := &fakeStore{}
	svc := newSourcingService(feed, store)

	summary, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if summary.Inserted != 3 {
		t.Fatalf("expected 3 inserted, got %d", summary.Inserted)
	}
	scores := []int{store.inserted[0].EngagementScore, store.inserted[1].EngagementScore, store.inserted[2].EngagementScore}
	if scores[0] != 53 || scores[1] != 22 || scores[2] != 11 {
		t.Errorf("expected descending scores [53 22 11], got %v", scores)
	}
	if summary.TopExample != "Subfloor squeaks over I-joists, screws or adhesive?" {
		t.Errorf("unexpected top example %q", summary.TopExample)
	}
	if store.inserted[0].Source != "r/DIY" {
		t.Errorf("expected source label r/DIY, got %q", store.inserted[0].Source)
	}
}

func TestRefresh_FiltersShortTitles(t *testing.T) {
	feed := &fakeFeed{items: []reddit.Item{
		{Title: "help", Subreddit: "DIY", Score: 500, NumComments: 50},
		{Title: "Tile guys: ditra or cement board over plank subfloor?", Subreddit: "Construction", Score: 3, NumComments: 1},
	}}
	store := &fakeStore{}
	svc := newSourcingService(feed, store)

	summary, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if summary.Inserted != 1 {
		t.Fatalf("expected the short title to be dropped, inserted %d", summary.Inserted)
	}
}

func TestRefresh_TruncatesToLimit(t *testing.T) {
	var items []reddit.Item
	for i := 0; i < 30; i++ {
		items = append(items, reddit.Item{
			Title:       "How do you bid time and materials on remodel work?",
			Subreddit:   "Construction",
			Score:       i,
			NumComments: 0,
		})
	}
	store := &fakeStore{}
	svc := newSourcingService(&fakeFeed{items: items}, store)

	summary, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if summary.Inserted != 20 {
		t.Fatalf("expected truncation to 20, got %d", summary.Inserted)
	}
}

func TestRefresh_SourceUnavailableAborts(t *testing.T) {
	store := &fakeStore{}
	svc := newSourcingService(&fakeFeed{err: errors.New("connection refused")}, store)

	if _, err := svc.Refresh(context.Background()); err == nil {
		t.Fatalf("expected the run to abort")
	}
	if store.expireCalls != 0 || len(store.inserted) != 0 {
		t.Errorf("expected no writes on source failure")
	}
}

func TestRefresh_ZeroQualifyingItemsIsSuccess(t *testing.T) {
	store := &fakeStore{}
	svc := newSourcingService(&fakeFeed{}, store)

	summary, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("zero items is not an error, got %v", err)
	}
	if summary.Inserted != 0 {
		t.Errorf("expected inserted 0, got %d", summary.Inserted)
	}
	if store.expireCalls != 1 {
		t.Errorf("expected stale queue retirement to still run, got %d calls", store.expireCalls)
	}
}

func TestRefresh_ExpiresBeyondRetention(t *testing.T) {
	store := &fakeStore{expired: 4}
	svc := newSourcingService(&fakeFeed{items: []reddit.Item{
		{Title: "Any good supplier for fiber cement siding near Raleigh?", Subreddit: "Construction", Score: 8, NumComments: 3},
	}}, store)

	now := time.Date(2026, time.August, 30, 6, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	summary, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if want := now.Add(-48 * time.Hour); !store.expireCutoff.Equal(want) {
		t.Errorf("expected cutoff %s, got %s", want, store.expireCutoff)
	}
	if summary.Expired != 4 {
		t.Errorf("expected 4 expired reported, got %d", summary.Expired)
	}
}

func newSourcingService(feed FeedClient, store Store) *Service {
	return NewService(ServiceParams{
		Feed:      feed,
		Store:     store,
		Channels:  []string{"Construction", "Homebuilding", "DIY"},
		Limit:     20,
		MinLength: 20,
		Retention: 48 * time.Hour,
	})
}

type fakeFeed struct {
	items []reddit.Item
	err   error
}

func (f *fakeFeed) HotItems(context.Context, []string, int) ([]reddit.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeStore struct {
	inserted     []NewTopic
	expireCalls  int
	expireCutoff time.Time
	expired      int64
}

func (f *fakeStore) ExpireOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.expireCalls++
	f.expireCutoff = cutoff
	return f.expired, nil
}

func (f *fakeStore) InsertBatch(_ context.Context, topics []NewTopic) error {
	f.inserted = topics
	return nil
}
