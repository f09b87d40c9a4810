// Package normalize maps raw source items into canonical Article records.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"strings"
	"time"

	"techtrends/aggregator/internal/models"
)

const hnItemBase = "https://news.ycombinator.com/"

// Normalize converts a raw source item into the canonical Article shape.
// It never fails: missing optional fields get defaults, a missing publish
// date is approximated with the ingestion time, and the dedup identity is
// derived deterministically from the source and the item's native key, so
// incidental differences in titles or whitespace cannot change it.
func Normalize(raw models.RawItem, ingestedAt time.Time) models.Article {
	title := strings.TrimSpace(html.UnescapeString(raw.Title))
	url := strings.TrimSpace(html.UnescapeString(raw.URL))
	if strings.HasPrefix(url, "item?id=") {
		// HackerNews self-posts carry a relative discussion link.
		url = hnItemBase + url
	}

	article := models.Article{
		Identity:    Identity(raw.Source, nativeKey(raw)),
		Source:      raw.Source,
		Title:       title,
		URL:         url,
		Author:      strings.TrimSpace(raw.Author),
		Description: strings.TrimSpace(html.UnescapeString(raw.Description)),
		Points:      raw.Points,
		Comments:    raw.Comments,
		Reactions:   raw.Reactions,
		ReadingTime: raw.ReadingTime,
		Tags:        strings.Join(raw.Tags, ","),
		IngestedAt:  ingestedAt.UTC(),
	}

	if raw.PublishedAt.IsZero() {
		article.PublishedAt = ingestedAt.UTC()
		article.PublishedApprox = true
	} else {
		article.PublishedAt = raw.PublishedAt.UTC()
	}

	return article
}

// Identity derives the stable dedup key for one source item.
func Identity(source models.Source, nativeKey string) string {
	sum := sha256.Sum256([]byte(string(source) + "\x00" + nativeKey))
	return hex.EncodeToString(sum[:16])
}

// nativeKey prefers the source-native ID and falls back to the item URL for
// records that do not carry one.
func nativeKey(raw models.RawItem) string {
	if raw.NativeID != "" {
		return raw.NativeID
	}
	return strings.TrimSpace(raw.URL)
}
