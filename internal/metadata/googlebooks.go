package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/justyntemme/quotebook/internal/models"
)

// DefaultGoogleBooksURL is the volumes API root
const DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1"

// UntitledPlaceholder replaces a missing title in search hits
const UntitledPlaceholder = "Untitled"

// GoogleBooksOptions tunes a GoogleBooksProvider. Zero values pick defaults.
type GoogleBooksOptions struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// GoogleBooksProvider implements the Searcher interface for the Google Books volumes API
type GoogleBooksProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewGoogleBooksProvider creates a new Google Books provider
func NewGoogleBooksProvider(apiKey string, opts GoogleBooksOptions) *GoogleBooksProvider {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGoogleBooksURL
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleBooksProvider{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.With("component", "googlebooks"),
	}
}

// Name returns the provider identifier
func (p *GoogleBooksProvider) Name() string {
	return "googlebooks"
}

// gbResponse represents a volumes search response
type gbResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []gbItem `json:"items"`
}

type gbItem struct {
	ID         string       `json:"id"`
	VolumeInfo gbVolumeInfo `json:"volumeInfo"`
}

type gbVolumeInfo struct {
	Title               *string        `json:"title"`
	Authors             []string       `json:"authors"`
	PublishedDate       *string        `json:"publishedDate"`
	IndustryIdentifiers []gbIdentifier `json:"industryIdentifiers"`
	ImageLinks          *gbImageLinks  `json:"imageLinks"`
}

type gbIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type gbImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}

// SearchVolumes fetches one page of volumes matching q
func (p *GoogleBooksProvider) SearchVolumes(ctx context.Context, q VolumeQuery) ([]models.BookSearchResult, error) {
	if strings.TrimSpace(q.Query) == "" {
		return []models.BookSearchResult{}, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	searchURL := p.baseURL + "/volumes?" + p.queryParams(q).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var data gbResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	results := make([]models.BookSearchResult, 0, len(data.Items))
	for i := range data.Items {
		results = append(results, p.convertItem(&data.Items[i]))
	}
	p.log.Debug("volumes page", "start", q.StartIndex, "requested", q.MaxResults, "returned", len(results))
	return results, nil
}

func (p *GoogleBooksProvider) queryParams(q VolumeQuery) url.Values {
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("printType", "books")
	params.Set("maxResults", strconv.Itoa(ClampMaxResults(q.MaxResults)))
	params.Set("startIndex", strconv.Itoa(max(0, q.StartIndex)))
	if lang := q.Language.RestrictValue(); lang != "" {
		params.Set("langRestrict", lang)
	}
	if p.apiKey != "" {
		params.Set("key", p.apiKey)
	}
	return params
}

// convertItem converts a volume to a BookSearchResult
func (p *GoogleBooksProvider) convertItem(item *gbItem) models.BookSearchResult {
	v := item.VolumeInfo
	result := models.BookSearchResult{
		ID:      item.ID,
		Title:   UntitledPlaceholder,
		Authors: v.Authors,
	}
	if v.Title != nil {
		result.Title = *v.Title
	}
	if result.Authors == nil {
		result.Authors = []string{}
	}
	if v.PublishedDate != nil {
		if year, ok := parseYear(*v.PublishedDate); ok {
			result.PublishYear = &year
		}
	}
	for _, id := range v.IndustryIdentifiers {
		if strings.Contains(id.Type, "ISBN") {
			isbn := id.Identifier
			result.ISBN = &isbn
			break
		}
	}
	if v.ImageLinks != nil {
		cover := v.ImageLinks.Thumbnail
		if cover == "" {
			cover = v.ImageLinks.SmallThumbnail
		}
		if cover != "" {
			cover = enforceHTTPS(cover)
			result.CoverURL = &cover
		}
	}
	return result
}

// parseYear reads the leading four digits of a published date ("2004-05-01", "1999")
func parseYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	prefix := date[:4]
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	year, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return year, true
}

// enforceHTTPS rewrites http:// cover links to https://
func enforceHTTPS(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.EqualFold(u.Scheme, "http") {
		u.Scheme = "https"
		return u.String()
	}
	return raw
}
