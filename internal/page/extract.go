package page

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/ppiankov/verisum/internal/model"
)

const partSelector = "h1, h2, h3, h4, h5, h6, p, li"

// Document is the extracted content of one page
type Document struct {
	Title string
	Parts []model.Part
}

// Extract isolates the main article with readability and splits it into parts.
// Pages readability cannot handle are split from the full body instead.
func Extract(rawHTML, pageURL string) (*Document, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	title := ""
	content := rawHTML
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		content = article.Content
		title = strings.TrimSpace(article.Title)
	}

	parts, err := ExtractParts(content)
	if err != nil {
		return nil, err
	}

	// Readability can drop short pages entirely
	if len(parts) == 0 && content != rawHTML {
		if parts, err = ExtractParts(rawHTML); err != nil {
			return nil, err
		}
	}

	if title == "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML)); err == nil {
			title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	}

	return &Document{Title: title, Parts: parts}, nil
}

// ExtractParts walks headers, paragraphs and list items in document order.
// Each header opens a new section; content before the first header is in s0.
func ExtractParts(htmlContent string) ([]model.Part, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var parts []model.Part
	section := 0
	seenIDs := make(map[string]bool)

	doc.Find(partSelector).Each(func(i int, s *goquery.Selection) {
		// Nested matches (<li><p>) would repeat their text
		if s.ParentsFiltered("p, li").Length() > 0 {
			return
		}

		tag := goquery.NodeName(s)
		if isHeader(tag) {
			section++
		}

		text := normalizeSpace(s.Text())
		if text == "" {
			return
		}

		id, ok := s.Attr("id")
		if !ok || id == "" || seenIDs[id] {
			id = fmt.Sprintf("part-%d", len(parts))
		}
		seenIDs[id] = true

		parts = append(parts, model.Part{
			ID:        id,
			Content:   text,
			TagName:   tag,
			SectionID: fmt.Sprintf("s%d", section),
		})
	})

	return parts, nil
}

func isHeader(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
