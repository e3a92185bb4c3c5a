package extract

import (
	"strings"

	"github.com/ppiankov/verisum/internal/model"
)

const (
	minSentenceLen = 30
	maxSentenceLen = 500
)

// Candidate is a sentence worth sending through verification
type Candidate struct {
	Text      string
	ElementID string
	Context   string // Full text of the part the sentence came from
	Heuristic string // Which keyword selected it, e.g. "keyword:according to"
}

// Request converts the candidate into a verification request for pageURL
func (c Candidate) Request(pageURL string) model.FlagRequest {
	return model.FlagRequest{
		Text:      c.Text,
		Context:   c.Context,
		ElementID: c.ElementID,
		URL:       pageURL,
	}
}

// ClaimExtractor picks checkable factual sentences out of page parts
type ClaimExtractor struct {
	keywords []string
	limit    int
}

// NewClaimExtractor creates an extractor returning at most limit candidates (0 = no limit)
func NewClaimExtractor(limit int) *ClaimExtractor {
	return &ClaimExtractor{
		keywords: []string{
			// Attribution
			"according to", "studies show", "scientists say", "experts say", "research shows",
			// Origin and firsts
			"originated", "first", "invented", "discovered", "founded",
			// Absolutes
			"always", "never", "every", "proven", "100%",
			// Causal and medical
			"causes", "cures", "prevents", "linked to",
			// Quantities
			"percent", "million", "billion", "doubled",
		},
		limit: limit,
	}
}

// Extract returns candidates from paragraphs and list items in part order
func (e *ClaimExtractor) Extract(parts []model.Part) []Candidate {
	var candidates []Candidate
	seen := make(map[string]bool)

	for _, part := range parts {
		if part.TagName != "p" && part.TagName != "li" {
			continue
		}

		for _, sentence := range splitSentences(part.Content) {
			key := strings.ToLower(sentence)
			if seen[key] {
				continue
			}

			keyword := e.match(key)
			if keyword == "" {
				continue
			}
			seen[key] = true

			candidates = append(candidates, Candidate{
				Text:      sentence,
				ElementID: part.ID,
				Context:   part.Content,
				Heuristic: "keyword:" + keyword,
			})
			if e.limit > 0 && len(candidates) == e.limit {
				return candidates
			}
		}
	}

	return candidates
}

func (e *ClaimExtractor) match(lower string) string {
	for _, keyword := range e.keywords {
		if strings.Contains(lower, keyword) {
			return keyword
		}
	}
	return ""
}

// splitSentences splits text into sentences (simple heuristic)
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Require whitespace after the terminator so "3.5" and "U.S." stay whole
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				if s := strings.TrimSpace(current.String()); keepSentence(s) {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}

	if s := strings.TrimSpace(current.String()); keepSentence(s) {
		sentences = append(sentences, s)
	}

	return sentences
}

func keepSentence(s string) bool {
	return len(s) >= minSentenceLen && len(s) <= maxSentenceLen
}
