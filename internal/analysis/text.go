package analysis

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lower-cases text and splits it into lines. Surrounding whitespace on
// each line is preserved. Empty input yields no lines.
func Normalize(text string) []string {
	if text == "" {
		return nil
	}

	lowered := cases.Lower(language.Und).String(text)
	return strings.Split(strings.ReplaceAll(lowered, "\r\n", "\n"), "\n")
}

// canonical is the comparison form of a keyword.
func canonical(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// titleCaser is built per call: a cases.Caser keeps state and must not be shared.
func titleCaser() cases.Caser {
	return cases.Title(language.Und)
}
