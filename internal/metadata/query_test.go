package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"author colon title", "Tolkien: Hobbit", "intitle:Hobbit inauthor:Tolkien"},
		{"author dash title", "Tolkien - The Hobbit", `intitle:"The Hobbit" inauthor:Tolkien`},
		{"multi word author", "J. R. R. Tolkien: The Hobbit", `intitle:"The Hobbit" inauthor:"J. R. R. Tolkien"`},
		{"colon with empty author falls through", ": Hobbit", `intitle:": Hobbit"`},
		{"colon with empty title tries dash", "Sapkowski - Wiedźmin:", "intitle:Wiedźmin: inauthor:Sapkowski"},
		{"hyphen inside word is not a separator", "Spider-Man", "intitle:Spider-Man"},
		{"fully quoted phrase", `"The Hobbit"`, `intitle:"The Hobbit"`},
		{"fully quoted single word", `"Hobbit"`, "intitle:Hobbit"},
		{"single word", "Hobbit", "intitle:Hobbit"},
		{"single word strips quotes", `Hob"bit`, "intitle:Hobbit"},
		{"two name-like words", "Jan Kowalski", `inauthor:"Jan Kowalski"`},
		{"two words not both names", "lord rings", `intitle:"lord rings"`},
		{"two words second is stopword", "Tolkien The", `intitle:"Tolkien The"`},
		{"three words surname first", "Sapkowski Ostatnie życzenie", `intitle:"Ostatnie życzenie" inauthor:Sapkowski`},
		{"three words stopword first", "The Lord Rings", `intitle:"The Lord Rings"`},
		{"three words lowercase first", "pan tadeusz mickiewicz", `intitle:"pan tadeusz mickiewicz"`},
		{"unicode uppercase surname", "Żeromski Ludzie bezdomni", `intitle:"Ludzie bezdomni" inauthor:Żeromski`},
		{"whitespace normalized", "  Jan \t  Kowalski \n", `inauthor:"Jan Kowalski"`},
		{"whitespace only", "  ", ""},
		{"empty", "", ""},
		{"lone quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildQuery(tt.input))
		})
	}
}

func TestBuildQueryDeterministic(t *testing.T) {
	input := "Lem Solaris Cyberiada"
	first := BuildQuery(input)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, BuildQuery(input))
	}
}

func TestLooksLikeSurname(t *testing.T) {
	tests := []struct {
		token    string
		expected bool
	}{
		{"Tolkien", true},
		{"Łuk", true},
		{"tolkien", false},
		{"A", false},
		{"Of", false},
		{"VAN", false},
		{"Oraz", false},
		{"De", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.expected, looksLikeSurname(tt.token))
		})
	}
}

func TestClampMaxResults(t *testing.T) {
	assert.Equal(t, 1, ClampMaxResults(0))
	assert.Equal(t, 1, ClampMaxResults(-5))
	assert.Equal(t, 10, ClampMaxResults(10))
	assert.Equal(t, 40, ClampMaxResults(40))
	assert.Equal(t, 40, ClampMaxResults(100))
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		title  string
		author string
		ok     bool
	}{
		{"title and author", `intitle:"The Hobbit" inauthor:"J. R. R. Tolkien"`, "The Hobbit", "J. R. R. Tolkien", true},
		{"bare title", "intitle:Solaris", "Solaris", "", true},
		{"author phrase", `inauthor:"Stanisław Lem"`, "", "Stanisław Lem", true},
		{"bare author", "inauthor:Lem", "", "Lem", true},
		{"free text", "just some words", "", "", false},
		{"unterminated phrase", `intitle:"Solaris`, "", "", false},
		{"trailing text", "intitle:Solaris extra", "", "", false},
		{"empty", "   ", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, author, ok := ParseQuery(tt.expr)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.author, author)
		})
	}
}

func TestParseQueryReadsBuildQueryOutput(t *testing.T) {
	title, author, ok := ParseQuery(BuildQuery("Tolkien: Hobbit"))
	assert.True(t, ok)
	assert.Equal(t, "Hobbit", title)
	assert.Equal(t, "Tolkien", author)
}
