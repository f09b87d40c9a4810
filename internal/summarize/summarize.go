// Package summarize produces short article summaries through the OpenAI
// chat API, degrading to a plain text preview when no key is configured.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	previewRunes   = 150
	maxTokens      = 300
	temperature    = 0.5
)

// Summarizer calls the chat completions API for article summaries.
type Summarizer struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// New creates a Summarizer against the public API. An empty apiKey leaves
// it in degraded preview mode.
func New(apiKey, model string, client *http.Client) *Summarizer {
	return NewWithBaseURL(apiKey, model, client, defaultBaseURL)
}

// NewWithBaseURL creates a Summarizer against a custom base URL (for
// testing).
func NewWithBaseURL(apiKey, model string, client *http.Client, baseURL string) *Summarizer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Summarizer{
		apiKey:  apiKey,
		model:   model,
		client:  client,
		baseURL: baseURL,
	}
}

// Enabled reports whether an API key is configured.
func (s *Summarizer) Enabled() bool {
	return s != nil && s.apiKey != ""
}

// Result carries one summary. Degraded marks the plain preview fallback.
type Result struct {
	Summary  string `json:"summary"`
	Degraded bool   `json:"degraded"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Summarize returns a two-to-three sentence summary of text. Without an
// API key it returns the preview fallback and no error.
func (s *Summarizer) Summarize(ctx context.Context, text string) (*Result, error) {
	if !s.Enabled() {
		return &Result{Summary: Preview(text), Degraded: true}, nil
	}

	payload := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "user", Content: "Summarize this tech article in 2-3 concise sentences:\n\n" + text},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding summary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling summary API: %w", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding summary response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("summary API returned status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("summary API returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("summary API returned no choices")
	}

	summary := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if summary == "" {
		return nil, errors.New("summary API returned an empty summary")
	}
	return &Result{Summary: summary}, nil
}

// Preview returns the first 150 characters of text, the fallback shown
// when summarization is unavailable.
func Preview(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
