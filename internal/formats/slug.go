package formats

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SlugToTitle derives a display title: "-" and "_" become spaces and each word is title-cased.
func SlugToTitle(slug string) string {
	s := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return cases.Title(language.Und).String(strings.Join(strings.Fields(s), " "))
}
