package sources

import (
	"fmt"

	"techtrends/aggregator/internal/models"
)

// FetchCause classifies why an adapter call failed.
type FetchCause string

const (
	CauseNetwork     FetchCause = "network"
	CauseParse       FetchCause = "parse"
	CauseRateLimited FetchCause = "rate-limited"
)

// FetchError reports a failed adapter call. It is scoped to a single source:
// one source failing never aborts the other's ingestion.
type FetchError struct {
	Source models.Source
	Cause  FetchCause
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch failed (%s): %v", e.Source, e.Cause, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err as a FetchError for the given source and cause.
func NewFetchError(source models.Source, cause FetchCause, err error) *FetchError {
	return &FetchError{Source: source, Cause: cause, Err: err}
}
