package metadata

import (
	"context"
	"errors"

	"github.com/justyntemme/quotebook/internal/models"
)

// Common errors
var (
	ErrTransport        = errors.New("metadata provider unreachable")
	ErrRateLimited      = errors.New("rate limited by provider")
	ErrUnexpectedStatus = errors.New("unexpected status from provider")
	ErrDecode           = errors.New("malformed provider response")
)

// Upstream limits on a single page request
const (
	MinPageResults = 1
	MaxPageResults = 40
)

// VolumeQuery is one page request against a search provider
type VolumeQuery struct {
	// Query is a structured expression, usually built with BuildQuery
	Query      string
	StartIndex int
	MaxResults int
	Language   models.LanguagePreference
}

// Searcher defines the interface for paginated remote book search
type Searcher interface {
	// Name returns the provider identifier (e.g., "googlebooks")
	Name() string

	// SearchVolumes returns one page of hits. Missing optional fields in
	// the response degrade to defaults rather than failing the page.
	SearchVolumes(ctx context.Context, q VolumeQuery) ([]models.BookSearchResult, error)
}

// ClampMaxResults limits a page size to what the upstream API accepts
func ClampMaxResults(n int) int {
	return max(MinPageResults, min(n, MaxPageResults))
}
