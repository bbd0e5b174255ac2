package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/quotebook/internal/models"
)

const searchFixture = `{
  "numFound": 2,
  "docs": [
    {
      "key": "/works/OL27482W",
      "title": "The Hobbit",
      "author_name": ["J.R.R. Tolkien"],
      "first_publish_year": 1937,
      "isbn": ["054792822X", "978-0-547-92822-7"],
      "cover_i": 14627509
    },
    {
      "key": "/works/OL1W",
      "isbn": ["0-8044-2957-x"]
    }
  ]
}`

func newTestOpenLibrary(t *testing.T, handler http.HandlerFunc) *OpenLibraryProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenLibraryProvider(OpenLibraryOptions{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
}

func TestOpenLibraryProviderName(t *testing.T) {
	provider := NewOpenLibraryProvider(OpenLibraryOptions{})
	assert.Equal(t, "openlibrary", provider.Name())
}

func TestOpenLibraryRequestParams(t *testing.T) {
	tests := []struct {
		name     string
		query    VolumeQuery
		expected url.Values
	}{
		{
			name: "title and author",
			query: VolumeQuery{
				Query:      `intitle:"The Hobbit" inauthor:Tolkien`,
				StartIndex: 20,
				MaxResults: 20,
				Language:   models.LanguageCode("de"),
			},
			expected: url.Values{
				"title":    {"The Hobbit"},
				"author":   {"Tolkien"},
				"limit":    {"20"},
				"offset":   {"20"},
				"fields":   {olSearchFields},
				"language": {"ger"},
			},
		},
		{
			name:  "free text clamps and omits any language",
			query: VolumeQuery{Query: "some words", MaxResults: 500, Language: models.AnyLanguage},
			expected: url.Values{
				"q":      {"some words"},
				"limit":  {"40"},
				"offset": {"0"},
				"fields": {olSearchFields},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got url.Values
			provider := newTestOpenLibrary(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search.json", r.URL.Path)
				got = r.URL.Query()
				w.Write([]byte(`{"numFound":0,"docs":[]}`))
			})

			results, err := provider.SearchVolumes(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Empty(t, results)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestOpenLibraryConvertsDocs(t *testing.T) {
	provider := newTestOpenLibrary(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchFixture))
	})

	results, err := provider.SearchVolumes(context.Background(), VolumeQuery{Query: "intitle:Hobbit", MaxResults: 20})
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "/works/OL27482W", first.ID)
	assert.Equal(t, "The Hobbit", first.Title)
	assert.Equal(t, []string{"J.R.R. Tolkien"}, first.Authors)
	assert.Equal(t, models.IntPtr(1937), first.PublishYear)
	assert.Equal(t, models.StringPtr("9780547928227"), first.ISBN)
	assert.Equal(t, models.StringPtr("https://covers.openlibrary.org/b/id/14627509-M.jpg"), first.CoverURL)

	second := results[1]
	assert.Equal(t, UntitledPlaceholder, second.Title)
	assert.Equal(t, []string{}, second.Authors)
	assert.Nil(t, second.PublishYear)
	assert.Equal(t, models.StringPtr("080442957X"), second.ISBN)
	assert.Nil(t, second.CoverURL)
}

func TestOpenLibraryErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{"rate limited", http.StatusTooManyRequests, "", ErrRateLimited},
		{"server error", http.StatusInternalServerError, "", ErrUnexpectedStatus},
		{"malformed body", http.StatusOK, "{not json", ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestOpenLibrary(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := provider.SearchVolumes(context.Background(), VolumeQuery{Query: "intitle:x", MaxResults: 5})
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}
}

func TestOpenLibraryEmptyQuerySkipsRequest(t *testing.T) {
	called := false
	provider := newTestOpenLibrary(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	results, err := provider.SearchVolumes(context.Background(), VolumeQuery{Query: "  "})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)
}

func TestMarcLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"en", "eng", true},
		{"pl", "pol", true},
		{"de", "ger", true},
		{"fr", "fre", true},
		{"zh", "chi", true},
		{"", "", false},
		{"!!", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			code, ok := marcLanguage(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestNormalizeISBN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean ISBN-10", "0123456789", "0123456789"},
		{"clean ISBN-13", "9780123456789", "9780123456789"},
		{"with hyphens", "978-0-12-345678-9", "9780123456789"},
		{"with spaces", "978 0 12 345678 9", "9780123456789"},
		{"URN format", "urn:isbn:9780123456789", "9780123456789"},
		{"URN uppercase", "URN:ISBN:9780123456789", "9780123456789"},
		{"check digit X kept", "054792822X", "054792822X"},
		{"lowercase check digit", "0-547-92822-x", "054792822X"},
		{"URN with check digit", "urn:isbn:054792822X", "054792822X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeISBN(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
