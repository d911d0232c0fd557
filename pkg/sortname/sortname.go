// Package sortname derives library sort forms for book titles and orders
// books by them.
package sortname

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// titleArticles are the leading articles moved to the end of a title, keyed
// by base language. English is used for unknown or missing languages.
var titleArticles = map[string][]string{
	"en": {"The", "A", "An"},
	"fr": {"Les", "Le", "La", "L'", "Une", "Un"},
	"de": {"Der", "Die", "Das", "Ein", "Eine"},
	"es": {"Los", "Las", "El", "La", "Una", "Un"},
	"it": {"Gli", "Il", "Lo", "La", "Le", "L'", "Una", "Uno", "Un"},
}

// ForTitle generates a sort title from a display title and the book's BCP 47
// language tag. Leading articles are moved to the end.
// Examples:
//   - "The Hobbit" -> "Hobbit, The"
//   - "A Tale of Two Cities" -> "Tale of Two Cities, A"
//   - "L'Étranger" (fr) -> "Étranger, L'"
//   - "Lord of the Rings" -> "Lord of the Rings" (no change)
func ForTitle(title, lang string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	for _, article := range articlesFor(lang) {
		prefix := article
		if !strings.HasSuffix(article, "'") {
			prefix += " "
		}
		if len(title) <= len(prefix) || !strings.EqualFold(title[:len(prefix)], prefix) {
			continue
		}
		// Keep the article as written in the title.
		actual := strings.TrimSpace(title[:len(prefix)])
		if rest := strings.TrimSpace(title[len(prefix):]); rest != "" {
			return rest + ", " + actual
		}
	}

	return title
}

func articlesFor(lang string) []string {
	if lang == "" {
		return titleArticles["en"]
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return titleArticles["en"]
	}
	base, _ := tag.Base()
	if articles, ok := titleArticles[base.String()]; ok {
		return articles
	}
	return titleArticles["en"]
}

// ByTitle sorts items in place by the sort form of their titles. title
// returns an item's display title and language. Ordering uses Unicode
// collation, ignores case, and compares digit runs numerically so "Book 2"
// sorts before "Book 10". Equal titles keep their relative order.
func ByTitle[T any](items []T, title func(T) (string, string)) {
	keys := make([]string, len(items))
	for i, item := range items {
		t, lang := title(item)
		keys[i] = ForTitle(t, lang)
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	c := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
	sort.SliceStable(order, func(i, j int) bool {
		return c.CompareString(keys[order[i]], keys[order[j]]) < 0
	})

	sorted := make([]T, len(items))
	for i, idx := range order {
		sorted[i] = items[idx]
	}
	copy(items, sorted)
}
