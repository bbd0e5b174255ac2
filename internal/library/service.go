package library

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/justyntemme/quotebook/internal/models"
)

var (
	ErrBookNotFound  = errors.New("book not found")
	ErrDuplicateBook = errors.New("book already in library")
	ErrQuoteNotFound = errors.New("quote not found")
	ErrUnknownSort   = errors.New("unknown sort order")
)

// Store persists the whole library document
type Store interface {
	Load() (models.Library, error)
	Save(models.Library) error
}

// BookSort orders the book list
type BookSort int

const (
	SortAddedDesc BookSort = iota
	SortTitleAsc
	SortAuthorAsc
)

// QuoteSort orders a book's quotes
type QuoteSort int

const (
	QuoteAddedDesc QuoteSort = iota
	QuoteAddedAsc
	QuotePageAsc
	QuotePageDesc
)

// ListOptions controls Books
type ListOptions struct {
	Sort BookSort
	// Filter keeps books whose title or authors contain it, ignoring case
	Filter string
}

// Service holds the single in-memory copy of the library between loads and
// writes it back in full after every mutation
type Service struct {
	store Store
	tag   language.Tag
	log   *slog.Logger

	mu  sync.RWMutex
	lib models.Library
}

// NewService creates a library service over store. Call Load before use.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store: store,
		tag:   language.Und,
		lib:   models.NewLibrary(),
		log:   logger.With("component", "library"),
	}
}

// SetCollation changes the locale used for title and author sorting
func (s *Service) SetCollation(tag language.Tag) {
	s.mu.Lock()
	s.tag = tag
	s.mu.Unlock()
}

// Load replaces the in-memory library with the stored one. On failure the
// service is left holding an empty library.
func (s *Service) Load() error {
	lib, err := s.store.Load()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Error("failed to load library", "error", err)
		s.lib = models.NewLibrary()
		return err
	}
	s.lib = lib
	s.log.Debug("library loaded", "books", len(lib.Books))
	return nil
}

// Books returns a sorted, filtered copy of the book list
func (s *Service) Books(opts ListOptions) []models.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]models.Book, 0, len(s.lib.Books))
	for i := range s.lib.Books {
		books = append(books, cloneBook(s.lib.Books[i]))
	}

	switch opts.Sort {
	case SortTitleAsc:
		c := collate.New(s.tag, collate.IgnoreCase)
		slices.SortStableFunc(books, func(a, b models.Book) int {
			return c.CompareString(a.Title, b.Title)
		})
	case SortAuthorAsc:
		c := collate.New(s.tag, collate.IgnoreCase)
		slices.SortStableFunc(books, func(a, b models.Book) int {
			return c.CompareString(firstAuthor(a), firstAuthor(b))
		})
	default:
		slices.SortStableFunc(books, func(a, b models.Book) int {
			return b.AddedDate.Compare(a.AddedDate)
		})
	}

	if opts.Filter == "" {
		return books
	}
	q := strings.ToLower(opts.Filter)
	return slices.DeleteFunc(books, func(b models.Book) bool {
		return !strings.Contains(strings.ToLower(b.Title), q) &&
			!strings.Contains(strings.ToLower(strings.Join(b.Authors, " ")), q)
	})
}

// Book returns a copy of the book with the given id
func (s *Service) Book(id string) (models.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.lib.FindBook(id)
	if idx < 0 {
		return models.Book{}, ErrBookNotFound
	}
	return cloneBook(s.lib.Books[idx]), nil
}

// AddBook inserts book at the front of the library. A book without an id gets one.
func (s *Service) AddBook(book models.Book) (models.Book, error) {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if len(book.Authors) == 0 {
		book.Authors = []string{models.UnknownAuthor}
	}
	if book.Quotes == nil {
		book.Quotes = []models.Quote{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lib.FindBook(book.ID) >= 0 {
		return models.Book{}, fmt.Errorf("%w: %s", ErrDuplicateBook, book.ID)
	}
	s.lib.Books = slices.Insert(s.lib.Books, 0, cloneBook(book))
	return book, s.persistLocked()
}

// UpdateBook replaces the stored book that has the same id
func (s *Service) UpdateBook(book models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.lib.FindBook(book.ID)
	if idx < 0 {
		return ErrBookNotFound
	}
	s.lib.Books[idx] = cloneBook(book)
	return s.persistLocked()
}

// DeleteBook removes the book and its quotes
func (s *Service) DeleteBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.lib.FindBook(id)
	if idx < 0 {
		return ErrBookNotFound
	}
	s.lib.Books = slices.Delete(s.lib.Books, idx, idx+1)
	return s.persistLocked()
}

// AddQuote inserts quote at the front of the book's quotes
func (s *Service) AddQuote(bookID string, quote models.Quote) (models.Quote, error) {
	if quote.ID == "" {
		quote.ID = uuid.New().String()
	}
	if quote.Tags == nil {
		quote.Tags = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.lib.FindBook(bookID)
	if idx < 0 {
		return models.Quote{}, ErrBookNotFound
	}
	book := &s.lib.Books[idx]
	book.Quotes = slices.Insert(book.Quotes, 0, cloneQuote(quote))
	return quote, s.persistLocked()
}

// UpdateQuote replaces the quote with the same id
func (s *Service) UpdateQuote(bookID string, quote models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.lib.FindBook(bookID)
	if idx < 0 {
		return ErrBookNotFound
	}
	book := &s.lib.Books[idx]
	qIdx := book.FindQuote(quote.ID)
	if qIdx < 0 {
		return ErrQuoteNotFound
	}
	book.Quotes[qIdx] = cloneQuote(quote)
	return s.persistLocked()
}

// DeleteQuote removes one quote from a book
func (s *Service) DeleteQuote(bookID, quoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.lib.FindBook(bookID)
	if idx < 0 {
		return ErrBookNotFound
	}
	book := &s.lib.Books[idx]
	qIdx := book.FindQuote(quoteID)
	if qIdx < 0 {
		return ErrQuoteNotFound
	}
	book.Quotes = slices.Delete(book.Quotes, qIdx, qIdx+1)
	return s.persistLocked()
}

// Quotes returns the book's quotes in the requested order. Quotes without
// a page sort after those with one in both page orders.
func (s *Service) Quotes(bookID string, order QuoteSort) ([]models.Quote, error) {
	book, err := s.Book(bookID)
	if err != nil {
		return nil, err
	}
	quotes := book.Quotes

	switch order {
	case QuoteAddedAsc:
		slices.SortStableFunc(quotes, func(a, b models.Quote) int {
			return a.AddedDate.Compare(b.AddedDate)
		})
	case QuotePageAsc:
		slices.SortStableFunc(quotes, func(a, b models.Quote) int {
			return comparePages(a.Page, b.Page, false)
		})
	case QuotePageDesc:
		slices.SortStableFunc(quotes, func(a, b models.Quote) int {
			return comparePages(a.Page, b.Page, true)
		})
	default:
		slices.SortStableFunc(quotes, func(a, b models.Quote) int {
			return b.AddedDate.Compare(a.AddedDate)
		})
	}
	return quotes, nil
}

// TagSuggestions returns the sorted distinct tags starting with prefix, ignoring case
func (s *Service) TagSuggestions(prefix string) []string {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, b := range s.lib.Books {
		for _, q := range b.Quotes {
			for _, tag := range q.Tags {
				seen[tag] = struct{}{}
			}
		}
	}
	s.mu.RUnlock()

	p := strings.ToLower(prefix)
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		if strings.HasPrefix(strings.ToLower(tag), p) {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// ParseBookSort maps a CLI name to a BookSort
func ParseBookSort(name string) (BookSort, error) {
	switch strings.ToLower(name) {
	case "", "added":
		return SortAddedDesc, nil
	case "title":
		return SortTitleAsc, nil
	case "author":
		return SortAuthorAsc, nil
	}
	return SortAddedDesc, fmt.Errorf("%w: %q", ErrUnknownSort, name)
}

// ParseQuoteSort maps a CLI name to a QuoteSort
func ParseQuoteSort(name string) (QuoteSort, error) {
	switch strings.ToLower(name) {
	case "", "newest", "added-desc":
		return QuoteAddedDesc, nil
	case "oldest", "added-asc":
		return QuoteAddedAsc, nil
	case "page", "page-asc":
		return QuotePageAsc, nil
	case "page-desc":
		return QuotePageDesc, nil
	}
	return QuoteAddedDesc, fmt.Errorf("%w: %q", ErrUnknownSort, name)
}

func (s *Service) persistLocked() error {
	if err := s.store.Save(s.lib); err != nil {
		s.log.Error("failed to save library", "error", err)
		return err
	}
	return nil
}

func firstAuthor(b models.Book) string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}

// comparePages orders by page with missing pages last
func comparePages(a, b *int, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case desc:
		return cmp.Compare(*b, *a)
	default:
		return cmp.Compare(*a, *b)
	}
}

func cloneBook(b models.Book) models.Book {
	b.Authors = slices.Clone(b.Authors)
	quotes := make([]models.Quote, len(b.Quotes))
	for i := range b.Quotes {
		quotes[i] = cloneQuote(b.Quotes[i])
	}
	b.Quotes = quotes
	return b
}

func cloneQuote(q models.Quote) models.Quote {
	q.Tags = slices.Clone(q.Tags)
	if q.Tags == nil {
		q.Tags = []string{}
	}
	return q
}
