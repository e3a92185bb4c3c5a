package evidence

import "regexp"

var (
	capitalizedRunRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	yearRe           = regexp.MustCompile(`\b\d{4}\b`)
)

// ExtractEntities returns naive named entities: runs of capitalized words
// followed by four-digit numbers, deduplicated, longer than two characters.
func ExtractEntities(text string) []string {
	var entities []string
	seen := make(map[string]bool)

	collect := func(matches []string) {
		for _, m := range matches {
			if len(m) <= 2 || seen[m] {
				continue
			}
			seen[m] = true
			entities = append(entities, m)
		}
	}

	collect(capitalizedRunRe.FindAllString(text, -1))
	collect(yearRe.FindAllString(text, -1))

	return entities
}
