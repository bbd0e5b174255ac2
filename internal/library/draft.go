package library

import (
	"errors"
	"strconv"
	"strings"

	"github.com/justyntemme/quotebook/internal/models"
)

// ErrEmptyQuote is returned when a quote has no content after trimming
var ErrEmptyQuote = errors.New("quote content is empty")

// QuoteDraft holds the editable text fields of a quote
type QuoteDraft struct {
	Content string
	Page    string
	Chapter string
	// Tags is a comma-separated list
	Tags string
	Note string
}

// DraftFromQuote fills a draft from an existing quote for editing
func DraftFromQuote(q models.Quote) QuoteDraft {
	d := QuoteDraft{
		Content: q.Content,
		Tags:    strings.Join(q.Tags, ", "),
	}
	if q.Page != nil {
		d.Page = strconv.Itoa(*q.Page)
	}
	if q.Chapter != nil {
		d.Chapter = *q.Chapter
	}
	if q.Note != nil {
		d.Note = *q.Note
	}
	return d
}

// Build validates the draft and produces a quote. Editing an original keeps
// its id and added date; otherwise a new quote is created.
func (d QuoteDraft) Build(original *models.Quote) (models.Quote, error) {
	content := strings.TrimSpace(d.Content)
	if content == "" {
		return models.Quote{}, ErrEmptyQuote
	}

	var q models.Quote
	if original != nil {
		q = *original
		q.Content = content
	} else {
		q = models.NewQuote(content)
	}

	q.Page = nil
	if n, err := strconv.Atoi(strings.TrimSpace(d.Page)); err == nil {
		q.Page = models.IntPtr(n)
	}
	q.Chapter = models.StringPtr(d.Chapter)
	q.Note = models.StringPtr(d.Note)
	q.Tags = ParseTags(d.Tags)
	return q, nil
}

// ParseTags splits a comma-separated list, trimming entries and dropping
// empties and repeats
func ParseTags(text string) []string {
	tags := []string{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(text, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
