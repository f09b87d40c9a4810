package hackernews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"techtrends/aggregator/internal/models"
	"techtrends/aggregator/internal/sources"
)

func newTestClient(t *testing.T, handler http.Handler, pacer *sources.Pacer) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBaseURL(srv.Client(), srv.URL, pacer)
}

// storyHandler serves a fixed top-stories list and per-item bodies.
func storyHandler(topIDs string, items map[int]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v0/topstories.json" {
			fmt.Fprint(w, topIDs)
			return
		}
		var id int
		if _, err := fmt.Sscanf(r.URL.Path, "/v0/item/%d.json", &id); err == nil {
			if body, ok := items[id]; ok {
				fmt.Fprint(w, body)
				return
			}
		}
		http.NotFound(w, r)
	}
}

func storyJSON(id int, title string, score, descendants int) string {
	return fmt.Sprintf(`{"id":%d,"type":"story","by":"pg","time":1700000000,"title":%q,"url":"https://example.com/%d","score":%d,"descendants":%d}`,
		id, title, id, score, descendants)
}

func TestFetchMapsStories(t *testing.T) {
	client := newTestClient(t, storyHandler("[42]", map[int]string{
		42: storyJSON(42, "Show HN: A thing", 321, 87),
	}), nil)

	items, err := client.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	got := items[0]
	if got.Source != models.SourceHackerNews {
		t.Errorf("expected source %q, got %q", models.SourceHackerNews, got.Source)
	}
	if got.NativeID != "42" {
		t.Errorf("expected native ID 42, got %q", got.NativeID)
	}
	if got.Title != "Show HN: A thing" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if got.URL != "https://example.com/42" {
		t.Errorf("unexpected URL %q", got.URL)
	}
	if got.Author != "pg" {
		t.Errorf("unexpected author %q", got.Author)
	}
	if got.Points != 321 {
		t.Errorf("expected 321 points, got %d", got.Points)
	}
	if got.Comments != 87 {
		t.Errorf("expected 87 comments, got %d", got.Comments)
	}
	want := time.Unix(1700000000, 0).UTC()
	if !got.PublishedAt.Equal(want) {
		t.Errorf("expected published at %v, got %v", want, got.PublishedAt)
	}
}

func TestFetchSkipsBrokenItems(t *testing.T) {
	client := newTestClient(t, storyHandler("[1,2,3,4,5,6]", map[int]string{
		1: storyJSON(1, "Keep me", 10, 1),
		2: `{"id":2,"deleted":true,"type":"story","title":"gone"}`,
		3: `{"id":3,"dead":true,"type":"story","title":"flagged"}`,
		4: `null`,
		5: `{"id":5,"type":"job","title":"Hiring"}`,
		6: `{not json`,
	}), nil)

	items, err := client.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].NativeID != "1" {
		t.Errorf("expected item 1 to survive, got %q", items[0].NativeID)
	}
}

func TestFetchStopsAtMaxItems(t *testing.T) {
	var itemRequests atomic.Int64
	inner := storyHandler("[1,2,3,4]", map[int]string{
		1: storyJSON(1, "one", 1, 0),
		2: storyJSON(2, "two", 2, 0),
		3: storyJSON(3, "three", 3, 0),
		4: storyJSON(4, "four", 4, 0),
	})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/topstories.json" {
			itemRequests.Add(1)
		}
		inner(w, r)
	})

	client := newTestClient(t, handler, nil)

	items, err := client.Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if n := itemRequests.Load(); n != 2 {
		t.Errorf("expected 2 item requests, got %d", n)
	}
}

func TestFetchRateLimitedMidway(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/topstories.json":
			fmt.Fprint(w, "[1,2,3]")
		case "/v0/item/1.json":
			fmt.Fprint(w, storyJSON(1, "one", 1, 0))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	})

	client := newTestClient(t, handler, nil)

	items, err := client.Fetch(context.Background(), 10)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 partial item, got %d", len(items))
	}

	var fe *sources.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected a FetchError, got %T", err)
	}
	if fe.Cause != sources.CauseRateLimited {
		t.Errorf("expected cause %q, got %q", sources.CauseRateLimited, fe.Cause)
	}
	if fe.Source != models.SourceHackerNews {
		t.Errorf("expected source %q, got %q", models.SourceHackerNews, fe.Source)
	}
}

func TestFetchTopStoriesFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		cause   sources.FetchCause
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			cause: sources.CauseNetwork,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			cause: sources.CauseRateLimited,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"not":"a list"`)
			},
			cause: sources.CauseParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler, nil)

			items, err := client.Fetch(context.Background(), 10)
			if err == nil {
				t.Fatal("expected an error")
			}
			if len(items) != 0 {
				t.Errorf("expected no items, got %d", len(items))
			}

			var fe *sources.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected a FetchError, got %T", err)
			}
			if fe.Cause != tt.cause {
				t.Errorf("expected cause %q, got %q", tt.cause, fe.Cause)
			}
		})
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewWithBaseURL(nil, url, nil)

	_, err := client.Fetch(context.Background(), 10)
	if err == nil {
		t.Fatal("expected an error")
	}

	var fe *sources.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected a FetchError, got %T", err)
	}
	if fe.Cause != sources.CauseNetwork {
		t.Errorf("expected cause %q, got %q", sources.CauseNetwork, fe.Cause)
	}
}

type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return nil
}

func TestFetchSpacesItemRequests(t *testing.T) {
	clock := &fakeClock{current: time.Unix(0, 0)}
	minInterval := time.Second

	var mu sync.Mutex
	var itemTimes []time.Time

	inner := storyHandler("[1,2,3]", map[int]string{
		1: storyJSON(1, "one", 1, 0),
		2: storyJSON(2, "two", 2, 0),
		3: storyJSON(3, "three", 3, 0),
	})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/topstories.json" {
			mu.Lock()
			itemTimes = append(itemTimes, clock.Now())
			mu.Unlock()
		}
		inner(w, r)
	})

	pacer := sources.NewPacerWithClock(minInterval, clock.Now, clock.Sleep)
	client := newTestClient(t, handler, pacer)

	items, err := client.Fetch(context.Background(), 3)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	if len(itemTimes) != 3 {
		t.Fatalf("expected 3 item requests, got %d", len(itemTimes))
	}
	for i := 1; i < len(itemTimes); i++ {
		if gap := itemTimes[i].Sub(itemTimes[i-1]); gap < minInterval {
			t.Errorf("requests %d and %d were %v apart, want at least %v", i-1, i, gap, minInterval)
		}
	}
}
