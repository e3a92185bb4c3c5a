package model

// Part is one extracted unit of page content
type Part struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	TagName   string `json:"tag_name"`   // Lowercase element name: p, h2, li
	SectionID string `json:"section_id"` // Heading section the part belongs to
}

// Indexable reports whether the part belongs in the vector index.
// Only paragraphs are embedded; headers and lists stay page metadata.
func (p Part) Indexable() bool {
	return p.TagName == "p"
}

// Entry is a raw unit submitted for indexing
type Entry struct {
	Text     string `json:"text"`
	Metadata Part   `json:"metadata"`
}

// EntriesFromParts converts indexable parts to entries
func EntriesFromParts(parts []Part) []Entry {
	entries := make([]Entry, 0, len(parts))
	for _, p := range parts {
		if !p.Indexable() {
			continue
		}
		entries = append(entries, Entry{Text: p.Content, Metadata: p})
	}
	return entries
}

// Stats describes a built document index
type Stats struct {
	TotalCharacters      int `json:"total_characters"`
	EntryCount           int `json:"entry_count"`
	DistinctSectionCount int `json:"distinct_section_count"`
}

// Source is a retrieved passage shown to the user
type Source struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// RetrievalResult is what question answering reads from the index
type RetrievalResult struct {
	Sources       []Source `json:"sources"`
	DocumentParts []string `json:"document_parts"`
}
