package answer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/verisum/internal/model"
)

const systemPrompt = "You are a concise AI assistant. Always give short, direct answers. Maximum 1-2 sentences."

// BuildPrompt numbers each document part from 1 and asks for [n] citations
func BuildPrompt(documents []string, title, query string) string {
	numbered := make([]string, len(documents))
	for i, d := range documents {
		numbered[i] = fmt.Sprintf("[%d] %s", i+1, d)
	}

	return fmt.Sprintf(`INSTRUCTIONS:
You are answering questions about the website "%s".
Answer the QUESTION using ONLY the DOCUMENT text below.
Keep your answer VERY SHORT and CONCISE (1-2 sentences maximum).
Only state the essential facts - no explanations or elaborations.
IMPORTANT: Cite your sources by adding [1], [2], etc. after each fact from that source.
If the DOCUMENT doesn't contain the answer, say "I don't have that information."

DOCUMENT:
%s

QUESTION:
%s`, title, strings.Join(numbered, "\n\n"), query)
}

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// ExtractCitedSources returns the sources cited as [n] in answer, 1-based,
// in ascending index order. Out-of-range citations are ignored.
func ExtractCitedSources(answer string, sources []model.Source) []model.Source {
	seen := make(map[int]bool)
	var indices []int
	for _, m := range citationRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		idx := n - 1
		if idx < 0 || idx >= len(sources) || seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	cited := make([]model.Source, 0, len(indices))
	for _, idx := range indices {
		cited = append(cited, sources[idx])
	}
	return cited
}
