package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CurrentSchemaVersion is the layout version written by this build
const CurrentSchemaVersion = 2

// UnknownAuthor is the single-element author fallback for books without authors
const UnknownAuthor = "Unknown author"

// Book represents a book in the personal library
type Book struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Authors            []string  `json:"authors"`
	PublishYear        *int      `json:"publishYear,omitempty"`
	ISBN               *string   `json:"isbn,omitempty"`
	CoverURL           *string   `json:"coverURL,omitempty"`
	LocalCoverFilename *string   `json:"localCoverFilename,omitempty"`
	AddedDate          time.Time `json:"addedDate"`
	Quotes             []Quote   `json:"quotes"`
}

// Quote is a passage attached to a book
type Quote struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Page      *int      `json:"page,omitempty"`
	Chapter   *string   `json:"chapter,omitempty"`
	Tags      []string  `json:"tags"`
	Note      *string   `json:"note,omitempty"`
	AddedDate time.Time `json:"addedDate"`
}

// Library is the whole persisted document. It is always saved and loaded as one unit.
type Library struct {
	SchemaVersion int    `json:"schemaVersion"`
	Books         []Book `json:"books"`
}

// BookSearchResult is a read-only projection of a remote search hit
type BookSearchResult struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	PublishYear *int     `json:"publishYear,omitempty"`
	ISBN        *string  `json:"isbn,omitempty"`
	CoverURL    *string  `json:"coverURL,omitempty"`
}

// NewLibrary returns an empty library stamped with the current schema version
func NewLibrary() Library {
	return Library{SchemaVersion: CurrentSchemaVersion, Books: []Book{}}
}

// NewBook creates a book with a fresh identifier and the current time as added date
func NewBook(title string, authors []string) Book {
	if len(authors) == 0 {
		authors = []string{UnknownAuthor}
	}
	return Book{
		ID:        uuid.New().String(),
		Title:     title,
		Authors:   authors,
		AddedDate: time.Now().UTC(),
		Quotes:    []Quote{},
	}
}

// NewQuote creates a quote with a fresh identifier
func NewQuote(content string) Quote {
	return Quote{
		ID:        uuid.New().String(),
		Content:   content,
		Tags:      []string{},
		AddedDate: time.Now().UTC(),
	}
}

// BookFromResult converts a chosen search hit into a new library book
func BookFromResult(r BookSearchResult) Book {
	title := strings.TrimSpace(r.Title)
	authors := make([]string, 0, len(r.Authors))
	for _, a := range r.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	b := NewBook(title, authors)
	b.PublishYear = r.PublishYear
	b.ISBN = r.ISBN
	b.CoverURL = r.CoverURL
	return b
}

// AuthorLine joins the authors for display and substring matching
func (b *Book) AuthorLine() string {
	return strings.Join(b.Authors, ", ")
}

// CoverKey returns the image cache key and source for the book's cover.
// A locally saved cover takes priority over the remote URL.
func (b *Book) CoverKey() (key string, local bool) {
	if b.LocalCoverFilename != nil && *b.LocalCoverFilename != "" {
		return *b.LocalCoverFilename, true
	}
	return b.ID, false
}

// FindQuote returns the index of the quote with the given id, or -1
func (b *Book) FindQuote(id string) int {
	for i := range b.Quotes {
		if b.Quotes[i].ID == id {
			return i
		}
	}
	return -1
}

// FindBook returns the index of the book with the given id, or -1
func (l *Library) FindBook(id string) int {
	for i := range l.Books {
		if l.Books[i].ID == id {
			return i
		}
	}
	return -1
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to n
func IntPtr(n int) *int {
	return &n
}
