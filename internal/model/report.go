package model

import "time"

// ScanReport is the result of scanning a whole page for suspicious passages
type ScanReport struct {
	Subject    string    `json:"subject"`    // Page title or de-slugified path
	SourceURL  string    `json:"source_url"` // URL that was scanned
	ScannedAt  time.Time `json:"scanned_at"`
	FetchMeta  FetchMeta `json:"fetch_meta"`
	Stats      Stats     `json:"stats"`      // Document index stats for the page
	Candidates int       `json:"candidates"` // Passages selected for verification

	Claims   []Claim         `json:"claims"`
	Verdicts map[Verdict]int `json:"verdicts"`         // Count per verdict
	Errors   []string        `json:"errors,omitempty"` // Passages whose run failed
}

// FetchMeta contains HTTP metadata from fetching the page
type FetchMeta struct {
	StatusCode   int               `json:"status_code"`
	ContentType  string            `json:"content_type,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// Signal explains one contribution to a confidence score
type Signal struct {
	Type        SignalType             `json:"type"`
	Points      int                    `json:"points"`      // Points added to the average
	Description string                 `json:"description"` // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType names the evidence source behind a signal
type SignalType string

const (
	SignalFactCheck    SignalType = "fact_check"
	SignalEncyclopedia SignalType = "encyclopedia"
	SignalDomain       SignalType = "domain_reputation"
	SignalAnalysis     SignalType = "analysis"
)

// Assessment is the transparent breakdown behind a verdict
type Assessment struct {
	Confidence int      `json:"confidence"`
	Verdict    Verdict  `json:"verdict"`
	Rule       string   `json:"rule"` // Which verdict rule fired
	Signals    []Signal `json:"signals"`
}
