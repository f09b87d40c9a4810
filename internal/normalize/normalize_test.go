package normalize

import (
	"testing"
	"time"

	"techtrends/aggregator/internal/models"
)

func TestNormalizeMapsAllFields(t *testing.T) {
	published := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	ingested := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

	raw := models.RawItem{
		Source:      models.SourceDevTo,
		NativeID:    "981",
		Title:       "Profiling Go services",
		URL:         "https://dev.to/a/981",
		Author:      "Ada",
		Description: "pprof walkthrough",
		PublishedAt: published,
		Points:      0,
		Comments:    3,
		Reactions:   12,
		ReadingTime: 6,
		Tags:        []string{"go", "performance"},
	}

	got := Normalize(raw, ingested)

	if got.Identity != Identity(models.SourceDevTo, "981") {
		t.Errorf("unexpected identity %q", got.Identity)
	}
	if len(got.Identity) != 32 {
		t.Errorf("expected a 32-char identity, got %d chars", len(got.Identity))
	}
	if got.Source != models.SourceDevTo {
		t.Errorf("unexpected source %q", got.Source)
	}
	if got.Title != "Profiling Go services" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if got.Author != "Ada" || got.Description != "pprof walkthrough" {
		t.Errorf("unexpected author/description: %q / %q", got.Author, got.Description)
	}
	if !got.PublishedAt.Equal(published) {
		t.Errorf("unexpected publish date %v", got.PublishedAt)
	}
	if got.PublishedApprox {
		t.Error("publish date should not be marked approximate")
	}
	if !got.IngestedAt.Equal(ingested) {
		t.Errorf("unexpected ingest date %v", got.IngestedAt)
	}
	if got.Comments != 3 || got.Reactions != 12 || got.ReadingTime != 6 {
		t.Errorf("unexpected counts: comments=%d reactions=%d reading_time=%d",
			got.Comments, got.Reactions, got.ReadingTime)
	}
	if got.Tags != "go,performance" {
		t.Errorf("unexpected tags %q", got.Tags)
	}
	if got.Category != nil {
		t.Errorf("expected nil category, got %v", *got.Category)
	}
}

func TestIdentityStableAcrossTitleJitter(t *testing.T) {
	now := time.Now()
	a := Normalize(models.RawItem{
		Source:   models.SourceHackerNews,
		NativeID: "42",
		Title:    "Go 1.24 released",
	}, now)
	b := Normalize(models.RawItem{
		Source:   models.SourceHackerNews,
		NativeID: "42",
		Title:    "  Go 1.24  released!  ",
	}, now)

	if a.Identity != b.Identity {
		t.Errorf("identities differ: %q vs %q", a.Identity, b.Identity)
	}
}

func TestIdentityDistinguishesSources(t *testing.T) {
	hn := Identity(models.SourceHackerNews, "42")
	dev := Identity(models.SourceDevTo, "42")
	if hn == dev {
		t.Error("same native ID on different sources must not collide")
	}
}

func TestIdentityFallsBackToURL(t *testing.T) {
	now := time.Now()
	a := Normalize(models.RawItem{
		Source: models.SourceDevTo,
		Title:  "Untracked",
		URL:    "https://dev.to/a/legacy",
	}, now)
	b := Normalize(models.RawItem{
		Source: models.SourceDevTo,
		Title:  "Untracked (renamed)",
		URL:    "  https://dev.to/a/legacy  ",
	}, now)

	if a.Identity != b.Identity {
		t.Errorf("identities differ: %q vs %q", a.Identity, b.Identity)
	}
	if a.Identity != Identity(models.SourceDevTo, "https://dev.to/a/legacy") {
		t.Errorf("unexpected URL-derived identity %q", a.Identity)
	}
}

func TestNormalizeTrimsAndUnescapes(t *testing.T) {
	got := Normalize(models.RawItem{
		Source:   models.SourceHackerNews,
		NativeID: "7",
		Title:    "  Profiling C &amp; Go together\n",
		URL:      " https://example.com/?a=1&amp;b=2 ",
	}, time.Now())

	if got.Title != "Profiling C & Go together" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if got.URL != "https://example.com/?a=1&b=2" {
		t.Errorf("unexpected URL %q", got.URL)
	}
}

func TestNormalizeAbsolutizesSelfPostLinks(t *testing.T) {
	got := Normalize(models.RawItem{
		Source:   models.SourceHackerNews,
		NativeID: "9001",
		Title:    "Ask HN: favourite debugger?",
		URL:      "item?id=9001",
	}, time.Now())

	if got.URL != "https://news.ycombinator.com/item?id=9001" {
		t.Errorf("unexpected URL %q", got.URL)
	}
}

func TestNormalizeApproximatesMissingDate(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ingested := time.Date(2024, 6, 1, 14, 0, 0, 0, loc)

	got := Normalize(models.RawItem{
		Source:   models.SourceHackerNews,
		NativeID: "1",
		Title:    "undated",
	}, ingested)

	if !got.PublishedApprox {
		t.Error("expected the publish date to be marked approximate")
	}
	if !got.PublishedAt.Equal(ingested) {
		t.Errorf("expected publish date %v, got %v", ingested, got.PublishedAt)
	}
	if got.PublishedAt.Location() != time.UTC {
		t.Errorf("expected a UTC timestamp, got %v", got.PublishedAt.Location())
	}
}
