package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const listingBody = `{
  "data": {
    "children": [
      {"data": {"title": "Deck ledger flashing question", "subreddit": "Construction", "score": 10, "num_comments": 4}},
      {"data": {"title": "Subfloor squeak fix", "subreddit": "DIY", "score": 50, "num_comments": 1}}
    ]
  }
}`

func TestHotItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/Construction+Homebuilding+DIY/hot.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "20" || r.URL.Query().Get("t") != "day" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if ua := r.Header.Get("User-Agent"); ua != userAgent {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingBody))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	defer client.Close()

	items, err := client.HotItems(context.Background(), []string{"Construction", "Homebuilding", "DIY"}, 20)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "Deck ledger flashing question" || items[0].Subreddit != "Construction" {
		t.Errorf("unexpected first item %+v", items[0])
	}
	if items[1].Score != 50 || items[1].NumComments != 1 {
		t.Errorf("unexpected second item %+v", items[1])
	}
}

func TestHotItems_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	defer client.Close()

	if _, err := client.HotItems(context.Background(), []string{"Construction"}, 20); err == nil {
		t.Fatalf("expected non-success status to surface as an error")
	}
}

func TestHotItems_RequiresChannels(t *testing.T) {
	client := NewClient("http://localhost:0")
	defer client.Close()

	if _, err := client.HotItems(context.Background(), nil, 20); err == nil {
		t.Fatalf("expected error for empty channel set")
	}
}
