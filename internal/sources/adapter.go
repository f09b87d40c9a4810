// Package sources defines the contract shared by all external source
// adapters plus the request pacing and error types they rely on.
package sources

import (
	"context"

	"techtrends/aggregator/internal/models"
)

// Adapter fetches raw items from one external source. Implementations are
// stateless across invocations; everything needed for a fetch is passed in
// or fixed at construction time.
type Adapter interface {
	// Source identifies which external system this adapter talks to.
	Source() models.Source

	// Fetch retrieves up to maxItems items. Individual malformed records
	// are skipped and logged, never fatal; a failure of the call as a
	// whole is reported as a *FetchError. Items collected before a
	// mid-fetch failure are returned alongside the error.
	Fetch(ctx context.Context, maxItems int) ([]models.RawItem, error)
}
