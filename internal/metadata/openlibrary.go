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

	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/justyntemme/quotebook/internal/models"
)

// DefaultOpenLibraryURL is the Open Library API root
const DefaultOpenLibraryURL = "https://openlibrary.org"

const olSearchFields = "key,title,author_name,first_publish_year,isbn,cover_i"

// Open Library filters on MARC codes, which differ from ISO 639-2/T for a few languages
var marcOverrides = map[string]string{
	"deu": "ger",
	"fra": "fre",
	"zho": "chi",
	"ces": "cze",
	"nld": "dut",
}

// OpenLibraryOptions tunes an OpenLibraryProvider. Zero values pick defaults.
type OpenLibraryOptions struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// OpenLibraryProvider implements the Searcher interface for the Open Library search API
type OpenLibraryProvider struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewOpenLibraryProvider creates a new Open Library provider
func NewOpenLibraryProvider(opts OpenLibraryOptions) *OpenLibraryProvider {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenLibraryURL
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenLibraryProvider{
		client:  client,
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.With("component", "openlibrary"),
	}
}

// Name returns the provider identifier
func (p *OpenLibraryProvider) Name() string {
	return "openlibrary"
}

// olSearchResponse represents an Open Library search response
type olSearchResponse struct {
	NumFound int           `json:"numFound"`
	Docs     []olSearchDoc `json:"docs"`
}

// olSearchDoc represents a document in search results
type olSearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	ISBN             []string `json:"isbn"`
	CoverI           int      `json:"cover_i"`
}

// SearchVolumes fetches one page of works matching q. Operator expressions
// are split back into the title and author fields of the search endpoint.
func (p *OpenLibraryProvider) SearchVolumes(ctx context.Context, q VolumeQuery) ([]models.BookSearchResult, error) {
	if strings.TrimSpace(q.Query) == "" {
		return []models.BookSearchResult{}, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf("%s/search.json?%s", p.baseURL, p.queryParams(q).Encode())
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

	var data olSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	results := make([]models.BookSearchResult, 0, len(data.Docs))
	for i := range data.Docs {
		results = append(results, convertSearchDoc(&data.Docs[i]))
	}
	p.log.Debug("search page", "offset", q.StartIndex, "requested", q.MaxResults, "returned", len(results), "found", data.NumFound)
	return results, nil
}

func (p *OpenLibraryProvider) queryParams(q VolumeQuery) url.Values {
	params := url.Values{}
	title, author, ok := ParseQuery(q.Query)
	if !ok {
		params.Set("q", strings.TrimSpace(q.Query))
	} else {
		if title != "" {
			params.Set("title", title)
		}
		if author != "" {
			params.Set("author", author)
		}
	}
	params.Set("limit", strconv.Itoa(ClampMaxResults(q.MaxResults)))
	params.Set("offset", strconv.Itoa(max(0, q.StartIndex)))
	params.Set("fields", olSearchFields)
	if code, ok := marcLanguage(q.Language.RestrictValue()); ok {
		params.Set("language", code)
	}
	return params
}

// marcLanguage maps a two-letter code to the three-letter MARC code Open Library indexes
func marcLanguage(code string) (string, bool) {
	if code == "" {
		return "", false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return "", false
	}
	iso3 := base.ISO3()
	if marc, ok := marcOverrides[iso3]; ok {
		return marc, true
	}
	return iso3, true
}

// convertSearchDoc converts a search result to a BookSearchResult
func convertSearchDoc(doc *olSearchDoc) models.BookSearchResult {
	result := models.BookSearchResult{
		ID:      doc.Key,
		Title:   doc.Title,
		Authors: doc.AuthorName,
	}
	if strings.TrimSpace(result.Title) == "" {
		result.Title = UntitledPlaceholder
	}
	if result.Authors == nil {
		result.Authors = []string{}
	}
	if doc.FirstPublishYear > 0 {
		year := doc.FirstPublishYear
		result.PublishYear = &year
	}

	// Prefer ISBN-13
	var isbn10 string
	for _, raw := range doc.ISBN {
		normalized := normalizeISBN(raw)
		if len(normalized) == 13 {
			result.ISBN = &normalized
			break
		}
		if len(normalized) == 10 && isbn10 == "" {
			isbn10 = normalized
		}
	}
	if result.ISBN == nil {
		result.ISBN = models.StringPtr(isbn10)
	}

	if doc.CoverI > 0 {
		cover := fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", doc.CoverI)
		result.CoverURL = &cover
	}
	return result
}

const isbnURNPrefix = "urn:isbn:"

// normalizeISBN removes hyphens, spaces and a URN prefix from ISBN.
// An ISBN-10 check digit is always an upper-case X.
func normalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	isbn = strings.TrimSpace(isbn)
	// Handle URN format
	if len(isbn) >= len(isbnURNPrefix) && strings.EqualFold(isbn[:len(isbnURNPrefix)], isbnURNPrefix) {
		isbn = isbn[len(isbnURNPrefix):]
	}
	return strings.ToUpper(isbn)
}
