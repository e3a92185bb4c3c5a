package model

// DomainCategory classifies the publishing domain of a claim
type DomainCategory string

const (
	DomainReliable   DomainCategory = "reliable"
	DomainMixed      DomainCategory = "mixed"
	DomainUnreliable DomainCategory = "unreliable"
	DomainSatire     DomainCategory = "satire"
	DomainUnknown    DomainCategory = "unknown"
)

// Score returns the fixed reputation score for a category
func (c DomainCategory) Score() int {
	switch c {
	case DomainReliable:
		return 90
	case DomainMixed:
		return 60
	case DomainSatire:
		return 30
	case DomainUnreliable:
		return 10
	default:
		return 50
	}
}

// DomainResult is the domain reputation lookup outcome
type DomainResult struct {
	Domain   string         `json:"domain"`
	Category DomainCategory `json:"category"`
	Score    int            `json:"score"`
	Source   string         `json:"source"` // Where the classification came from
}

// EncyclopediaResult is the encyclopedia consistency check outcome
type EncyclopediaResult struct {
	Consistent bool     `json:"consistent"`
	Sources    []string `json:"sources,omitempty"` // Article URLs consulted
	Summary    string   `json:"summary"`
	Overlap    float64  `json:"overlap"`
}

// FactCheckResult is the external fact-check registry lookup outcome
type FactCheckResult struct {
	Found       bool   `json:"found"`
	Rating      string `json:"rating,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	URL         string `json:"url,omitempty"`
	ClaimReview string `json:"claim_review,omitempty"` // Text of the reviewed claim
}

// AnalysisResult is an optional language-model assessment of the claim
type AnalysisResult struct {
	Verdict          Verdict  `json:"verdict"`
	Confidence       int      `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	SuggestedSources []string `json:"suggested_sources,omitempty"`
	Provider         string   `json:"provider,omitempty"`
}

// EvidenceBundle collects every evidence source that produced a result.
// A nil field means the source was disabled, skipped or failed.
type EvidenceBundle struct {
	FactCheck    *FactCheckResult    `json:"fact_check,omitempty"`
	Encyclopedia *EncyclopediaResult `json:"encyclopedia,omitempty"`
	Domain       *DomainResult       `json:"domain,omitempty"`
	Analysis     *AnalysisResult     `json:"analysis,omitempty"`
}

// HasFactCheck reports whether a fact-check review was found
func (b EvidenceBundle) HasFactCheck() bool {
	return b.FactCheck != nil && b.FactCheck.Found
}

// PresentCount returns the number of sources that contribute to confidence
func (b EvidenceBundle) PresentCount() int {
	n := 0
	if b.HasFactCheck() {
		n++
	}
	if b.Encyclopedia != nil {
		n++
	}
	if b.Domain != nil {
		n++
	}
	if b.Analysis != nil {
		n++
	}
	return n
}
