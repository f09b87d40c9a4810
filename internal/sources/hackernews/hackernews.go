// Package hackernews fetches ranked front-page stories from the HackerNews
// Firebase API.
package hackernews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"techtrends/aggregator/internal/models"
	"techtrends/aggregator/internal/sources"
)

// BaseURL is the public HackerNews API endpoint.
const BaseURL = "https://hacker-news.firebaseio.com"

const userAgent = "TechTrends/1.0"

var errRateLimited = errors.New("rate limited")

// item is the wire shape of a single HackerNews item.
type item struct {
	ID          int    `json:"id"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

// Client retrieves ranked stories from HackerNews. It implements
// sources.Adapter. The pacer spaces out the per-item requests; the ranked
// ID list itself is a single call and is not paced.
type Client struct {
	http    *http.Client
	baseURL string
	pacer   *sources.Pacer
}

// New creates a client against the public API.
func New(httpClient *http.Client, pacer *sources.Pacer) *Client {
	return NewWithBaseURL(httpClient, BaseURL, pacer)
}

// NewWithBaseURL creates a client against a custom base URL (for testing).
func NewWithBaseURL(httpClient *http.Client, baseURL string, pacer *sources.Pacer) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		pacer:   pacer,
	}
}

// Source identifies this adapter.
func (c *Client) Source() models.Source {
	return models.SourceHackerNews
}

// Fetch retrieves the ranked top-story IDs and then each story's record
// until maxItems stories have been collected. Non-story, deleted, dead and
// malformed items are skipped and counted. A maxItems <= 0 means no cap.
func (c *Client) Fetch(ctx context.Context, maxItems int) ([]models.RawItem, error) {
	ids, err := c.topStories(ctx)
	if err != nil {
		return nil, err
	}

	var items []models.RawItem
	skipped := 0

	for _, id := range ids {
		if maxItems > 0 && len(items) >= maxItems {
			break
		}

		if err := c.pacer.Wait(ctx); err != nil {
			return items, err
		}

		it, err := c.getItem(ctx, id)
		if err != nil {
			if errors.Is(err, errRateLimited) {
				return items, sources.NewFetchError(models.SourceHackerNews, sources.CauseRateLimited, fmt.Errorf("item %d: %w", id, err))
			}
			if ctx.Err() != nil {
				return items, ctx.Err()
			}
			skipped++
			log.Warn().Err(err).Int("id", id).Msg("Skipping HackerNews item")
			continue
		}

		if it == nil || it.Deleted || it.Dead || it.Type != "story" || it.Title == "" {
			skipped++
			log.Debug().Int("id", id).Msg("Skipping non-story HackerNews item")
			continue
		}

		items = append(items, rawItem(it))
	}

	log.Info().
		Int("fetched", len(items)).
		Int("skipped", skipped).
		Msg("Fetched HackerNews stories")

	return items, nil
}

// topStories returns the current ranked story IDs.
func (c *Client) topStories(ctx context.Context) ([]int, error) {
	url := fmt.Sprintf("%s/v0/topstories.json", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, sources.NewFetchError(models.SourceHackerNews, sources.CauseNetwork, fmt.Errorf("creating top stories request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, sources.NewFetchError(models.SourceHackerNews, sources.CauseNetwork, fmt.Errorf("fetching top stories: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, sources.NewFetchError(models.SourceHackerNews, sources.CauseRateLimited, fmt.Errorf("top stories returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, sources.NewFetchError(models.SourceHackerNews, sources.CauseNetwork, fmt.Errorf("top stories returned status %d", resp.StatusCode))
	}

	var ids []int
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, sources.NewFetchError(models.SourceHackerNews, sources.CauseParse, fmt.Errorf("decoding top stories response: %w", err))
	}

	return ids, nil
}

// getItem fetches a single item record. A nil item with nil error means the
// item no longer exists (the API serves a JSON null body for those).
func (c *Client) getItem(ctx context.Context, id int) (*item, error) {
	url := fmt.Sprintf("%s/v0/item/%d.json", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating item request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching item %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("item %d returned status %d", id, resp.StatusCode)
	}

	var it item
	if err := json.NewDecoder(resp.Body).Decode(&it); err != nil {
		return nil, fmt.Errorf("decoding item %d: %w", id, err)
	}

	if it.ID == 0 {
		return nil, nil
	}
	return &it, nil
}

func rawItem(it *item) models.RawItem {
	raw := models.RawItem{
		Source:   models.SourceHackerNews,
		NativeID: strconv.Itoa(it.ID),
		Title:    it.Title,
		URL:      it.URL,
		Author:   it.By,
		Points:   it.Score,
		Comments: it.Descendants,
	}
	if it.Time > 0 {
		raw.PublishedAt = time.Unix(it.Time, 0).UTC()
	}
	return raw
}
