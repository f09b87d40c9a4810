// Package devto fetches recently published articles from the Dev.to REST API.
package devto

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"techtrends/aggregator/internal/models"
	"techtrends/aggregator/internal/sources"
)

// BaseURL is the public Dev.to API endpoint.
const BaseURL = "https://dev.to/api"

const (
	userAgent       = "TechTrends/1.0"
	defaultPageSize = 50
)

// article is the wire shape of a Dev.to article listing.
type article struct {
	ID                     int      `json:"id"`
	Title                  string   `json:"title"`
	Description            string   `json:"description"`
	URL                    string   `json:"url"`
	PublishedAt            string   `json:"published_at"`
	TagList                []string `json:"tag_list"`
	PositiveReactionsCount int      `json:"positive_reactions_count"`
	CommentsCount          int      `json:"comments_count"`
	ReadingTimeMinutes     int      `json:"reading_time_minutes"`
	User                   struct {
		Name string `json:"name"`
	} `json:"user"`
}

// Client retrieves article listings from Dev.to. It implements
// sources.Adapter. An optional tag narrows the listing to one topic.
type Client struct {
	http    *http.Client
	baseURL string
	tag     string
	perPage int
}

// New creates a client against the public API.
func New(httpClient *http.Client, tag string) *Client {
	return NewWithBaseURL(httpClient, BaseURL, tag)
}

// NewWithBaseURL creates a client against a custom base URL (for testing).
func NewWithBaseURL(httpClient *http.Client, baseURL, tag string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		tag:     tag,
		perPage: defaultPageSize,
	}
}

// Source identifies this adapter.
func (c *Client) Source() models.Source {
	return models.SourceDevTo
}

// Fetch pages through the article listing until maxItems articles have been
// collected or the listing runs out. Elements that fail to decode are
// skipped and counted. A maxItems <= 0 means no cap.
func (c *Client) Fetch(ctx context.Context, maxItems int) ([]models.RawItem, error) {
	var items []models.RawItem
	skipped := 0

	for page := 1; ; page++ {
		if maxItems > 0 && len(items) >= maxItems {
			break
		}

		elements, err := c.fetchPage(ctx, page)
		if err != nil {
			return items, err
		}

		for _, raw := range elements {
			if maxItems > 0 && len(items) >= maxItems {
				break
			}
			var a article
			if err := json.Unmarshal(raw, &a); err != nil {
				skipped++
				log.Warn().Err(err).Int("page", page).Msg("Skipping malformed Dev.to article")
				continue
			}
			items = append(items, rawItem(&a))
		}

		if len(elements) < c.perPage {
			break
		}
	}

	log.Info().
		Int("fetched", len(items)).
		Int("skipped", skipped).
		Str("tag", c.tag).
		Msg("Fetched Dev.to articles")

	return items, nil
}

// fetchPage returns one page of the listing as raw JSON elements, so that a
// single malformed element does not sink the whole page.
func (c *Client) fetchPage(ctx context.Context, page int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", strconv.Itoa(page))
	if c.tag != "" {
		q.Set("tag", c.tag)
	}
	reqURL := fmt.Sprintf("%s/articles?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, sources.NewFetchError(models.SourceDevTo, sources.CauseNetwork, fmt.Errorf("creating articles request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, sources.NewFetchError(models.SourceDevTo, sources.CauseNetwork, fmt.Errorf("fetching articles page %d: %w", page, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, sources.NewFetchError(models.SourceDevTo, sources.CauseRateLimited, fmt.Errorf("articles page %d returned status %d", page, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, sources.NewFetchError(models.SourceDevTo, sources.CauseNetwork, fmt.Errorf("articles page %d returned status %d", page, resp.StatusCode))
	}

	var elements []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, sources.NewFetchError(models.SourceDevTo, sources.CauseParse, fmt.Errorf("decoding articles page %d: %w", page, err))
	}

	return elements, nil
}

func rawItem(a *article) models.RawItem {
	raw := models.RawItem{
		Source:      models.SourceDevTo,
		Title:       a.Title,
		URL:         a.URL,
		Author:      a.User.Name,
		Description: a.Description,
		Reactions:   a.PositiveReactionsCount,
		Comments:    a.CommentsCount,
		ReadingTime: a.ReadingTimeMinutes,
		Tags:        a.TagList,
	}
	if a.ID != 0 {
		raw.NativeID = strconv.Itoa(a.ID)
	}
	if a.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			raw.PublishedAt = ts.UTC()
		} else {
			log.Debug().Str("published_at", a.PublishedAt).Msg("Unparseable Dev.to publish date")
		}
	}
	return raw
}
