package metadata

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Field operators understood by the volumes endpoint
const (
	opTitle  = "intitle:"
	opAuthor = "inauthor:"
)

// Words that never start an author name
var stopwords = map[string]bool{
	"i":    true,
	"oraz": true,
	"the":  true,
	"and":  true,
	"of":   true,
	"de":   true,
	"van":  true,
	"von":  true,
}

var multiSpacePattern = regexp.MustCompile(`\s+`)

// BuildQuery turns free text into a title/author restricted query.
//
// Rules, first match wins:
//   - "author: title" or "author - title" → intitle:title inauthor:author
//   - a fully quoted phrase → intitle:"phrase"
//   - 3+ words starting with a name-like word → intitle:rest inauthor:first
//   - 2 name-like words → inauthor:"both words"
//   - 2 other words → intitle:"both words"
//   - 1 word → intitle:word
//   - anything else → the whole input as a title phrase
//
// Terms are never dropped and no OR or full-text fallback is produced.
// Both operators together mean AND.
func BuildQuery(raw string) string {
	input := normalizeWhitespace(raw)
	if input == "" {
		return ""
	}

	if author, title, ok := splitAuthorTitle(input); ok {
		return titleAndAuthor(title, author)
	}

	if quoted, ok := fullyQuoted(input); ok {
		return opTitle + phrase(quoted)
	}

	tokens := strings.Fields(input)
	switch {
	case len(tokens) == 0:
		return ""
	case len(tokens) >= 3 && looksLikeSurname(tokens[0]):
		return titleAndAuthor(strings.Join(tokens[1:], " "), tokens[0])
	case len(tokens) == 2 && looksLikeSurname(tokens[0]) && looksLikeSurname(tokens[1]):
		return opAuthor + phrase(strings.Join(tokens, " "))
	case len(tokens) == 1:
		word := sanitizeSingle(tokens[0])
		if word == "" {
			return ""
		}
		return opTitle + word
	default:
		return opTitle + phrase(strings.Join(tokens, " "))
	}
}

func titleAndAuthor(title, author string) string {
	return opTitle + phrase(title) + " " + opAuthor + phrase(author)
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(s, " "))
}

// splitAuthorTitle splits on the first ":" or, failing that, the first " - ".
// Both sides must be non-empty.
func splitAuthorTitle(s string) (author, title string, ok bool) {
	for _, sep := range []string{":", " - "} {
		left, right, found := strings.Cut(s, sep)
		if !found {
			continue
		}
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left != "" && right != "" {
			return left, right, true
		}
	}
	return "", "", false
}

// fullyQuoted returns the interior of an input wrapped in one pair of double quotes
func fullyQuoted(s string) (string, bool) {
	if len(s) < 2 || !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return "", false
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return "", false
	}
	return inner, true
}

// looksLikeSurname: starts uppercase, at least two characters, not a stopword
func looksLikeSurname(token string) bool {
	if utf8.RuneCountInString(token) < 2 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(token)
	if !unicode.IsUpper(first) {
		return false
	}
	// Casers hold state, so each call gets its own
	return !stopwords[cases.Fold().String(token)]
}

// phrase quotes s when it contains a space. Embedded quotes are stripped so
// the expression stays well formed.
func phrase(s string) string {
	s = sanitizeSingle(s)
	if strings.Contains(s, " ") {
		return `"` + s + `"`
	}
	return s
}

func sanitizeSingle(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

// ParseQuery splits an expression produced by BuildQuery back into its
// title and author phrases. ok is false when expr is not made of
// operators, in which case it should be treated as free text.
func ParseQuery(expr string) (title, author string, ok bool) {
	rest := strings.TrimSpace(expr)
	if rest == "" {
		return "", "", false
	}
	for rest != "" {
		var target *string
		switch {
		case strings.HasPrefix(rest, opTitle):
			target, rest = &title, rest[len(opTitle):]
		case strings.HasPrefix(rest, opAuthor):
			target, rest = &author, rest[len(opAuthor):]
		default:
			return "", "", false
		}

		var value string
		if strings.HasPrefix(rest, `"`) {
			inner, tail, found := strings.Cut(rest[1:], `"`)
			if !found {
				return "", "", false
			}
			value, rest = inner, tail
		} else {
			value, rest, _ = strings.Cut(rest, " ")
		}
		*target = value
		rest = strings.TrimSpace(rest)
	}
	return title, author, true
}
