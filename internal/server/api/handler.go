// Package api exposes the aggregator core over HTTP: ingestion runs, corpus
// queries, stats, trends, summaries and exports. Every route is a plain
// caller of the core packages and owns no state of its own.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"techtrends/aggregator/internal/backup"
	"techtrends/aggregator/internal/ingest"
	"techtrends/aggregator/internal/models"
	"techtrends/aggregator/internal/server/pagination"
	"techtrends/aggregator/internal/store"
	"techtrends/aggregator/internal/summarize"
	"techtrends/aggregator/internal/trends"
)

const defaultLimit = 100
const maxLimit = 1000
const defaultHistoryLimit = 50
const maxHistoryLimit = 200
const iso8601Format = time.RFC3339

// ArticlesResponse is the payload of the article listing endpoint.
type ArticlesResponse struct {
	Articles []models.Article `json:"articles"`
	Count    int              `json:"count"`
}

// KeywordsResponse is the payload of the trending keywords endpoint.
type KeywordsResponse struct {
	Keywords []trends.KeywordCount `json:"keywords"`
}

// CategoriesResponse is the payload of the category breakdown endpoint.
type CategoriesResponse struct {
	Categories map[string]trends.CategoryTrend `json:"categories"`
}

// SummaryResponse is the payload of the article summary endpoint.
type SummaryResponse struct {
	Identity string `json:"identity"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Degraded bool   `json:"degraded"`
}

// HistoryResponse is the payload of the search history endpoint.
type HistoryResponse struct {
	Searches   []models.SearchRecord `json:"searches"`
	NextCursor *string               `json:"next_cursor,omitempty"`
}

// Config carries the handler's tunables.
type Config struct {
	// MaxItems is the per-source default for ingestion runs triggered
	// over HTTP.
	MaxItems int
	// RecordSearches enables search history rows for text searches.
	RecordSearches bool
}

// Handler holds the core dependencies behind the HTTP surface.
type Handler struct {
	store      *store.Store
	trends     *trends.Aggregator
	runner     *ingest.Runner
	summarizer *summarize.Summarizer
	cfg        Config
}

// NewHandler creates a handler instance.
func NewHandler(st *store.Store, trendAgg *trends.Aggregator, runner *ingest.Runner, summarizer *summarize.Summarizer, cfg Config) *Handler {
	return &Handler{
		store:      st,
		trends:     trendAgg,
		runner:     runner,
		summarizer: summarizer,
		cfg:        cfg,
	}
}

// Register wires all API routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/ingest", h.RunIngestion)
	mux.HandleFunc("GET /v1/articles", h.ListArticles)
	mux.HandleFunc("GET /v1/articles/{identity}/summary", h.SummarizeArticle)
	mux.HandleFunc("GET /v1/stats", h.GetStats)
	mux.HandleFunc("GET /v1/trends/keywords", h.TrendingKeywords)
	mux.HandleFunc("GET /v1/trends/categories", h.CategoryBreakdown)
	mux.HandleFunc("GET /v1/export", h.ExportArticles)
	mux.HandleFunc("GET /v1/search-history", h.SearchHistory)
}

// RunIngestion triggers one synchronous ingestion pass and returns the run
// report. Source failures are carried inside the report, not as an HTTP
// error.
func (h *Handler) RunIngestion(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	maxItems := h.cfg.MaxItems
	if raw := r.URL.Query().Get("max_items"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			log.Warn().Str("max_items", raw).Msg("Invalid 'max_items' parameter value")
			http.Error(w, "Invalid 'max_items' parameter: must be a positive integer", http.StatusBadRequest)
			return
		}
		maxItems = parsed
	}

	report, err := h.runner.Run(r.Context(), maxItems)
	if err != nil {
		log.Error().Err(err).Msg("Ingestion run failed")
		http.Error(w, "Ingestion failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, report)
}

// ListArticles serves filtered, sorted corpus queries.
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	opts := store.QueryOpts{
		Category: query.Get("category"),
		Search:   query.Get("q"),
		SortBy:   query.Get("sort"),
	}
	if opts.SortBy == "" {
		opts.SortBy = "published_at"
	}

	if raw := query.Get("source"); raw != "" {
		source, err := models.ParseSource(strings.ToLower(raw))
		if err != nil {
			log.Warn().Str("source", raw).Msg("Invalid 'source' parameter value")
			http.Error(w, "Invalid 'source' parameter: use hackernews or devto", http.StatusBadRequest)
			return
		}
		opts.Source = source.String()
	}

	switch strings.ToLower(query.Get("order")) {
	case "", "desc":
		opts.Desc = true
	case "asc":
		opts.Desc = false
	default:
		http.Error(w, "Invalid 'order' parameter: use asc or desc", http.StatusBadRequest)
		return
	}

	limit := defaultLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxLimit {
			log.Warn().Err(err).Str("limit", raw).Msg("Invalid 'limit' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	opts.Limit = limit

	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			log.Warn().Err(err).Str("offset", raw).Msg("Invalid 'offset' parameter value")
			http.Error(w, "Invalid 'offset' parameter: must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.Offset = parsed
	}

	articles, err := h.store.Query(r.Context(), opts)
	if err != nil {
		if errors.Is(err, store.ErrBadSortField) {
			http.Error(w, "Invalid 'sort' parameter: use points, comments, reactions or published_at", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Error querying articles")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if opts.Search != "" && h.cfg.RecordSearches {
		if err := h.store.RecordSearch(r.Context(), opts.Search, len(articles)); err != nil {
			log.Warn().Err(err).Str("query", opts.Search).Msg("Failed to record search")
		}
	}

	writeJSON(w, r, ArticlesResponse{Articles: articles, Count: len(articles)})
}

// GetStats serves one consistent snapshot of corpus counts.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error computing stats")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, stats)
}

// TrendingKeywords serves ranked title keywords over a publish-date window.
func (h *Handler) TrendingKeywords(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	window, err := parseWindow(query)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid trend window")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	topN := 0
	if raw := query.Get("top"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid 'top' parameter: must be a positive integer", http.StatusBadRequest)
			return
		}
		topN = parsed
	}

	keywords, err := h.trends.TrendingKeywords(r.Context(), window, topN)
	if err != nil {
		log.Error().Err(err).Msg("Error computing trending keywords")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, KeywordsResponse{Keywords: keywords})
}

// CategoryBreakdown serves per-category counts and engagement over a
// publish-date window.
func (h *Handler) CategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	window, err := parseWindow(r.URL.Query())
	if err != nil {
		log.Warn().Err(err).Msg("Invalid trend window")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	categories, err := h.trends.CategoryBreakdown(r.Context(), window)
	if err != nil {
		log.Error().Err(err).Msg("Error computing category breakdown")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, CategoriesResponse{Categories: categories})
}

// SummarizeArticle serves a short summary of one stored article, degrading
// to a plain preview when the summarizer is unavailable or fails.
func (h *Handler) SummarizeArticle(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	identity := r.PathValue("identity")

	article, err := h.store.GetByIdentity(r.Context(), identity)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Article not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Error loading article")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	text := article.Title
	if article.Description != "" {
		text += "\n\n" + article.Description
	}

	result, err := h.summarizer.Summarize(r.Context(), text)
	if err != nil {
		log.Warn().Err(err).Str("identity", identity).Msg("Summarization failed, serving preview")
		result = &summarize.Result{Summary: summarize.Preview(text), Degraded: true}
	}

	writeJSON(w, r, SummaryResponse{
		Identity: article.Identity,
		Title:    article.Title,
		Summary:  result.Summary,
		Degraded: result.Degraded,
	})
}

// ExportArticles streams the whole corpus as a CSV or JSON attachment.
func (h *Handler) ExportArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		http.Error(w, "Invalid 'format' parameter: use csv or json", http.StatusBadRequest)
		return
	}

	articles, err := h.store.All(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error loading articles for export")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=articles.csv")
		if err := backup.WriteCSV(w, articles); err != nil {
			log.Error().Err(err).Msg("Error writing CSV export")
			return
		}
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=articles.json")
		if err := backup.WriteJSON(w, articles); err != nil {
			log.Error().Err(err).Msg("Error writing JSON export")
			return
		}
	}

	log.Info().Int("article_count", len(articles)).Str("format", format).Msg("Exported articles")
}

// SearchHistory serves recorded text searches, newest first, with opaque
// cursor pagination.
func (h *Handler) SearchHistory(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	limit := defaultHistoryLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxHistoryLimit), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var beforeTime *time.Time
	var beforeID *int64
	if raw := query.Get("cursor"); raw != "" {
		cursor, err := pagination.Decode(raw)
		if err != nil {
			log.Warn().Err(err).Str("cursor", raw).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		beforeTime = &cursor.Time
		beforeID = &cursor.ID
	}

	records, err := h.store.SearchHistory(r.Context(), limit+1, beforeTime, beforeID) // Fetch one extra
	if err != nil {
		log.Error().Err(err).Msg("Error loading search history")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var nextCursor *string
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		encoded := pagination.Encode(pagination.Cursor{Time: last.SearchedAt.UTC(), ID: last.ID})
		nextCursor = &encoded
	}

	writeJSON(w, r, HistoryResponse{Searches: records, NextCursor: nextCursor})
}

// parseWindow builds a trend window from query parameters. A relative
// "window" duration wins over explicit "since"/"until" bounds.
func parseWindow(query url.Values) (trends.Window, error) {
	var window trends.Window

	if raw := query.Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return window, fmt.Errorf("invalid 'window' parameter: use a positive duration such as 24h")
		}
		window.Since = time.Now().Add(-d).UTC()
		return window, nil
	}

	if raw := query.Get("since"); raw != "" {
		ts, err := time.Parse(iso8601Format, raw)
		if err != nil {
			return window, fmt.Errorf("invalid 'since' parameter: use RFC3339 format (e.g., 2025-03-28T15:00:00Z)")
		}
		window.Since = ts.UTC()
	}
	if raw := query.Get("until"); raw != "" {
		ts, err := time.Parse(iso8601Format, raw)
		if err != nil {
			return window, fmt.Errorf("invalid 'until' parameter: use RFC3339 format (e.g., 2025-03-28T15:00:00Z)")
		}
		window.Until = ts.UTC()
	}
	return window, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	log := hlog.FromRequest(r)

	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
	}
}
