package models

import "strings"

// LanguagePreference restricts search results to one language, or none
type LanguagePreference struct {
	code string
}

// AnyLanguage places no language restriction on searches
var AnyLanguage = LanguagePreference{}

// LanguageCode restricts searches to the given two-letter code
func LanguageCode(code string) LanguagePreference {
	return ParseLanguage(code)
}

// ParseLanguage reads a stored preference. "" and "any" mean no restriction.
func ParseLanguage(s string) LanguagePreference {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "any" {
		return AnyLanguage
	}
	return LanguagePreference{code: s}
}

// IsAny reports whether the preference places no restriction
func (p LanguagePreference) IsAny() bool {
	return p.code == ""
}

// RestrictValue returns the lowercased code to send upstream, or "" for any
func (p LanguagePreference) RestrictValue() string {
	return p.code
}

// DisplayCode returns "ANY" or the upper-cased code
func (p LanguagePreference) DisplayCode() string {
	if p.IsAny() {
		return "ANY"
	}
	return strings.ToUpper(p.code)
}

func (p LanguagePreference) String() string {
	return p.DisplayCode()
}
