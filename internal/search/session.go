package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/justyntemme/quotebook/internal/metadata"
	"github.com/justyntemme/quotebook/internal/models"
)

const (
	// DefaultPageSize is the number of hits requested per page
	DefaultPageSize = 10
	// DefaultDebounce is the quiet period before a first page is requested
	DefaultDebounce = 300 * time.Millisecond
	// MinQueryLength is the shortest trimmed query that triggers a search
	MinQueryLength = 2
)

// User-facing failure messages
const (
	firstPageFailedFormat = "Search failed: %v"
	loadMoreFailedMessage = "Could not load more results. Please try again."
)

// State is a snapshot of one search
type State struct {
	Query            string
	Language         models.LanguagePreference
	Results          []models.BookSearchResult
	NextStartIndex   int
	HasMore          bool
	LoadingFirstPage bool
	LoadingMore      bool
	// ErrorMessage is empty when there is nothing to show
	ErrorMessage string
}

// Options configures a Session. Zero values pick defaults.
type Options struct {
	PageSize int
	// Debounce applies to first pages only; negative disables it
	Debounce time.Duration
	Language models.LanguagePreference
	Logger   *slog.Logger
	// OnChange receives a snapshot after every state change. It runs on
	// whichever goroutine made the change and must not block.
	OnChange func(State)
}

// Session owns the current search: it debounces first pages, cancels
// superseded ones, and accumulates deduplicated hits across pages.
// All methods are safe for concurrent use.
type Session struct {
	searcher  metadata.Searcher
	pageSize  int
	debouncer *Debouncer
	onChange  func(State)
	log       *slog.Logger

	mu    sync.Mutex
	idle  *sync.Cond
	state State
	// generation changes whenever in-flight work is superseded; results
	// from an older generation are dropped
	generation  uint64
	cancelFirst context.CancelFunc
	cancelMore  context.CancelFunc
	// scheduled or running loads
	inflight int
}

// NewSession creates a search session backed by the given searcher
func NewSession(searcher metadata.Searcher, opts Options) *Session {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	debounce := opts.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	} else if debounce < 0 {
		debounce = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		searcher:  searcher,
		pageSize:  pageSize,
		debouncer: NewDebouncer(debounce),
		onChange:  opts.OnChange,
		log:       logger.With("component", "search"),
		state:     State{Language: opts.Language},
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// PageSize returns the configured number of hits per page
func (s *Session) PageSize() int {
	return s.pageSize
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetQuery updates the query text. A query shorter than MinQueryLength
// after trimming cancels everything and resets the session to idle.
// It reports whether the query is long enough to search.
func (s *Session) SetQuery(text string) bool {
	s.mu.Lock()
	s.state.Query = text
	if searchable(text) {
		s.unlockAndNotify()
		return true
	}
	s.cancelLocked()
	s.state.Results = nil
	s.state.ErrorMessage = ""
	s.state.LoadingFirstPage = false
	s.state.LoadingMore = false
	s.state.NextStartIndex = 0
	s.state.HasMore = false
	s.unlockAndNotify()
	return false
}

// OnQueryChange is SetQuery followed by LoadFirstPage when the query is searchable
func (s *Session) OnQueryChange(text string) {
	if s.SetQuery(text) {
		s.LoadFirstPage()
	}
}

// SetLanguage changes the language filter for subsequent requests
func (s *Session) SetLanguage(lang models.LanguagePreference) {
	s.mu.Lock()
	s.state.Language = lang
	s.unlockAndNotify()
}

// LoadFirstPage cancels whatever is pending or in flight and schedules
// page zero after the debounce interval. It returns immediately.
func (s *Session) LoadFirstPage() {
	s.mu.Lock()
	query := strings.TrimSpace(s.state.Query)
	if !searchable(query) {
		s.mu.Unlock()
		return
	}

	s.cancelLocked()
	gen := s.generation
	lang := s.state.Language
	s.state.LoadingFirstPage = true
	s.state.LoadingMore = false
	s.state.ErrorMessage = ""
	s.state.NextStartIndex = 0
	s.state.HasMore = false
	s.inflight++
	s.debouncer.Schedule(func() {
		s.runFirstPage(gen, query, lang)
	})
	s.unlockAndNotify()
}

// LoadMore requests the next page immediately. It does nothing when there
// are no more pages or a load is already running.
func (s *Session) LoadMore() {
	s.mu.Lock()
	query := strings.TrimSpace(s.state.Query)
	if !s.state.HasMore || s.state.LoadingMore || s.state.LoadingFirstPage || !searchable(query) {
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelMore = cancel
	gen := s.generation
	lang := s.state.Language
	start := s.state.NextStartIndex
	s.state.LoadingMore = true
	s.state.ErrorMessage = ""
	s.inflight++
	s.unlockAndNotify()

	go s.runMore(ctx, cancel, gen, query, lang, start)
}

// Cancel stops any pending or in-flight request. Accumulated results are kept.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelLocked()
	s.state.LoadingFirstPage = false
	s.state.LoadingMore = false
	s.unlockAndNotify()
}

// Wait blocks until no load is pending or in flight
func (s *Session) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
}

// IsCancellation reports whether err means the request was superseded
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

func (s *Session) runFirstPage(gen uint64, query string, lang models.LanguagePreference) {
	s.mu.Lock()
	if gen != s.generation {
		s.doneLocked()
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFirst = cancel
	s.mu.Unlock()
	defer cancel()

	requested := metadata.ClampMaxResults(s.pageSize)
	page, err := s.searcher.SearchVolumes(ctx, metadata.VolumeQuery{
		Query:      metadata.BuildQuery(query),
		StartIndex: 0,
		MaxResults: requested,
		Language:   lang,
	})

	s.mu.Lock()
	s.doneLocked()
	if gen != s.generation {
		s.log.Debug("discarding superseded first page", "query", query)
		s.mu.Unlock()
		return
	}
	s.cancelFirst = nil
	s.state.LoadingFirstPage = false

	switch {
	case err == nil:
		s.state.Results = dedupe(nil, page)
		s.state.NextStartIndex = len(s.state.Results)
		s.state.HasMore = len(page) == requested
	case IsCancellation(err):
		s.log.Debug("first page cancelled", "query", query)
	default:
		s.log.Warn("first page failed", "query", query, "error", err)
		// first-page errors only show over an empty list
		if len(s.state.Results) == 0 {
			s.state.ErrorMessage = fmt.Sprintf(firstPageFailedFormat, err)
		}
	}
	s.unlockAndNotify()
}

func (s *Session) runMore(ctx context.Context, cancel context.CancelFunc, gen uint64, query string, lang models.LanguagePreference, start int) {
	defer cancel()

	requested := metadata.ClampMaxResults(s.pageSize)
	page, err := s.searcher.SearchVolumes(ctx, metadata.VolumeQuery{
		Query:      metadata.BuildQuery(query),
		StartIndex: start,
		MaxResults: requested,
		Language:   lang,
	})

	s.mu.Lock()
	s.doneLocked()
	if gen != s.generation {
		s.log.Debug("discarding superseded page", "query", query, "start", start)
		s.mu.Unlock()
		return
	}
	s.cancelMore = nil
	s.state.LoadingMore = false

	switch {
	case err == nil:
		s.state.Results = dedupe(s.state.Results, page)
		s.state.NextStartIndex += len(page)
		s.state.HasMore = len(page) == requested
	case IsCancellation(err):
		s.log.Debug("page cancelled", "query", query, "start", start)
	default:
		s.log.Warn("next page failed", "query", query, "start", start, "error", err)
		s.state.ErrorMessage = loadMoreFailedMessage
	}
	s.unlockAndNotify()
}

// cancelLocked supersedes every pending and running load
func (s *Session) cancelLocked() {
	s.generation++
	if s.debouncer.Cancel() {
		s.log.Debug("pending first page superseded")
		s.doneLocked()
	}
	if s.cancelFirst != nil {
		s.cancelFirst()
		s.cancelFirst = nil
	}
	if s.cancelMore != nil {
		s.cancelMore()
		s.cancelMore = nil
	}
}

func (s *Session) doneLocked() {
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
}

func (s *Session) snapshotLocked() State {
	snap := s.state
	snap.Results = slices.Clone(s.state.Results)
	return snap
}

func (s *Session) unlockAndNotify() {
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// dedupe appends hits not already present, first occurrence wins
func dedupe(existing, page []models.BookSearchResult) []models.BookSearchResult {
	seen := make(map[string]struct{}, len(existing)+len(page))
	for _, r := range existing {
		seen[r.ID] = struct{}{}
	}
	out := existing
	if out == nil {
		out = make([]models.BookSearchResult, 0, len(page))
	}
	for _, r := range page {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func searchable(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= MinQueryLength
}
