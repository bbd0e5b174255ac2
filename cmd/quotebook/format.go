package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/justyntemme/quotebook/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	indexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Width(4)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	quoteStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 0, 2)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("32"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func renderSearchResult(i int, r models.BookSearchResult) string {
	var b strings.Builder
	b.WriteString(indexStyle.Render(strconv.Itoa(i) + "."))
	b.WriteString(titleStyle.Render(r.Title))
	if len(r.Authors) > 0 {
		b.WriteString(" " + strings.Join(r.Authors, ", "))
	}
	var meta []string
	if r.PublishYear != nil {
		meta = append(meta, strconv.Itoa(*r.PublishYear))
	}
	if r.ISBN != nil {
		meta = append(meta, "ISBN "+*r.ISBN)
	}
	meta = append(meta, "id "+r.ID)
	b.WriteString("\n    " + metaStyle.Render(strings.Join(meta, " · ")))
	return b.String()
}

func renderBook(b models.Book) string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(b.Title))
	s.WriteString(" " + b.AuthorLine())
	meta := []string{b.ID}
	if b.PublishYear != nil {
		meta = append(meta, strconv.Itoa(*b.PublishYear))
	}
	meta = append(meta, fmt.Sprintf("%d quotes", len(b.Quotes)))
	meta = append(meta, "added "+b.AddedDate.Local().Format("2006-01-02"))
	s.WriteString("\n  " + metaStyle.Render(strings.Join(meta, " · ")))
	return s.String()
}

func renderQuote(q models.Quote) string {
	var s strings.Builder
	s.WriteString(q.Content)

	var meta []string
	if q.Page != nil {
		meta = append(meta, "p. "+strconv.Itoa(*q.Page))
	}
	if q.Chapter != nil {
		meta = append(meta, *q.Chapter)
	}
	meta = append(meta, q.ID)
	s.WriteString("\n" + metaStyle.Render(strings.Join(meta, " · ")))

	if len(q.Tags) > 0 {
		tags := make([]string, len(q.Tags))
		for i, t := range q.Tags {
			tags[i] = "#" + t
		}
		s.WriteString("\n" + tagStyle.Render(strings.Join(tags, " ")))
	}
	if q.Note != nil {
		s.WriteString("\n" + metaStyle.Render("note: "+*q.Note))
	}
	return quoteStyle.Render(s.String())
}
